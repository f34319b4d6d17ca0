// Package session implements the per-connection Handshaking -> Status/Login
// -> Play state machine: one goroutine per accepted TCP connection, reading
// and dispatching packets against the world, entity store, and sandbox it is
// handed at construction time.
package session

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/plunkit-dev/plunkit/internal/config"
	"github.com/plunkit-dev/plunkit/internal/sandbox"
	"github.com/plunkit-dev/plunkit/internal/store"
	"github.com/plunkit-dev/plunkit/internal/world"
	"github.com/plunkit-dev/plunkit/pkg/chat"
	"github.com/plunkit-dev/plunkit/pkg/protocol"
)

// Deps bundles the collaborators a connection needs, injected by whatever
// owns the listener (the world manager's per-world accept loop). session
// never imports the world manager; this keeps the dependency edge one-way.
type Deps struct {
	World    *world.World
	WorldID  string
	Hub      *Hub
	Sandbox  *sandbox.Manager
	Store    store.Store
	Config   config.Config
	Logger   *logrus.Entry
}

const (
	maxUsernameLen = 16
	maxChatLen     = 256
	maxStatusLen   = 255
)

// Conn is one connection's mutable state across the handshake/status/login/
// play machine. Writes are serialized with writeMu so the hub's chat
// broadcast, the keep-alive loop, and this connection's own handlers never
// interleave frames.
type Conn struct {
	deps Deps
	log  *logrus.Entry

	netConn              net.Conn
	writeMu              sync.Mutex
	compressionThreshold int

	state int

	entityID world.EntityID
	playerID uuid.UUID
	username string
	gameMode byte

	loggedIn  bool
	closeOnce sync.Once
	done      chan struct{}
}

// Serve runs one connection to completion: handshake, then status or login,
// then (on a successful login) the play loop. It returns when the
// connection is closed, by either side or by a protocol error.
func Serve(netConn net.Conn, deps Deps) {
	c := &Conn{
		deps:                 deps,
		log:                  deps.Logger.WithField("remote", netConn.RemoteAddr().String()),
		netConn:              netConn,
		compressionThreshold: deps.Config.CompressionThreshold,
		state:                protocol.StateHandshaking,
		done:                 make(chan struct{}),
	}
	defer c.close()

	nextState, err := c.handleHandshake()
	if err != nil {
		c.log.WithError(err).Debug("session: handshake failed")
		return
	}
	c.state = nextState

	switch c.state {
	case protocol.StateStatus:
		if err := c.handleStatus(); err != nil {
			c.log.WithError(err).Debug("session: status exchange failed")
		}
	case protocol.StateLogin:
		if err := c.handleLogin(); err != nil {
			c.log.WithError(err).Debug("session: login failed")
			return
		}
		if err := c.playLoop(); err != nil {
			c.log.WithError(err).Debug("session: play loop ended")
		}
	default:
		c.log.WithField("next_state", c.state).Debug("session: unsupported next state in handshake")
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.loggedIn {
			c.deps.Hub.Unregister(int32(c.entityID))
			c.deps.World.Entities.Remove(c.entityID)
		}
		c.netConn.Close()
	})
}

func (c *Conn) readPacket() (*protocol.Packet, error) {
	return protocol.ReadFrame(c.netConn, c.compressionThreshold)
}

func (c *Conn) send(p *protocol.Packet) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.netConn, p, c.compressionThreshold)
}

// handleHandshake reads the single Handshaking-state packet and returns the
// client-requested next state (Status or Login). Protocol version and
// server address/port are read to stay wire-compatible but are not
// otherwise validated — this core serves any client speaking protocol 762
// framing.
func (c *Conn) handleHandshake() (int, error) {
	pkt, err := c.readPacket()
	if err != nil {
		return 0, err
	}
	if pkt.ID != protocol.IDHandshake {
		return 0, fmt.Errorf("session: expected handshake packet, got id %d", pkt.ID)
	}
	r := pkt.Reader()
	if _, _, err := protocol.ReadVarInt(r); err != nil { // protocol version
		return 0, err
	}
	if _, err := protocol.ReadString(r, maxStatusLen); err != nil { // server address
		return 0, err
	}
	if _, err := protocol.ReadUint16(r); err != nil { // server port
		return 0, err
	}
	next, _, err := protocol.ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	return int(next), nil
}

// handleStatus serves the Status sub-protocol: a StatusRequest answered
// with the server list ping JSON, followed by an optional StatusPing echoed
// back verbatim as StatusPong. Either packet may be absent; the connection
// closes either way once this function returns.
func (c *Conn) handleStatus() error {
	for {
		pkt, err := c.readPacket()
		if err != nil {
			return err
		}
		switch pkt.ID {
		case protocol.IDStatusRequest:
			online := len(c.deps.World.AllPlayers())
			if err := c.send(statusResponsePacket("A Plunkit Server", 20, online)); err != nil {
				return err
			}
		case protocol.IDStatusPing:
			r := pkt.Reader()
			payload, err := protocol.ReadInt64(r)
			if err != nil {
				return err
			}
			return c.send(statusPongPacket(payload))
		default:
			return fmt.Errorf("session: unexpected status packet id %d", pkt.ID)
		}
	}
}

// handleLogin reads LoginStart, allocates the player's entity exactly once,
// and drives the join sequence: LoginSuccess, JoinGame, SpawnPosition,
// PlayerPositionAndLook, and the view-distance chunk burst. A LoginStart
// naming a UUID already active in this world is rejected and the
// connection closed, enforcing the one-entity-per-login invariant even
// across reconnect races.
func (c *Conn) handleLogin() error {
	pkt, err := c.readPacket()
	if err != nil {
		return err
	}
	if pkt.ID != protocol.IDLoginStart {
		return fmt.Errorf("session: expected login start, got id %d", pkt.ID)
	}
	r := pkt.Reader()
	username, err := protocol.ReadString(r, maxUsernameLen)
	if err != nil {
		return err
	}

	hasUUID, err := protocol.ReadBool(r)
	if err != nil {
		return err
	}
	var playerID uuid.UUID
	if hasUUID {
		raw, err := protocol.ReadUUID(r)
		if err != nil {
			return err
		}
		playerID = uuid.UUID(raw)
	} else {
		playerID = uuid.New()
	}

	if c.deps.World.Entities.HasUUID(playerID) {
		c.send(disconnectPacket("already connected to this world"))
		return fmt.Errorf("session: duplicate login for uuid %s", playerID)
	}

	c.username = username
	c.playerID = playerID
	c.gameMode = 0 // survival
	c.entityID = c.deps.World.SpawnPlayer(playerID, username, c.gameMode)
	c.loggedIn = true
	c.deps.Store.UpsertPlayer(username, playerID)

	if err := c.send(loginSuccessPacket(playerID, username)); err != nil {
		return err
	}
	c.state = protocol.StatePlay

	if err := c.send(joinGamePacket(int32(c.entityID), c.gameMode, c.deps.Config.ViewDistance)); err != nil {
		return err
	}
	if err := c.send(spawnPositionPacket(0, world.SpawnGroundHeight, 0)); err != nil {
		return err
	}
	if err := c.send(playerPositionAndLookPacket(0, float64(world.SpawnGroundHeight), 0, 0, 0, 0)); err != nil {
		return err
	}

	c.deps.Hub.Register(int32(c.entityID), c)
	if inst, ok := c.deps.Sandbox.InstanceFor(c.deps.WorldID); ok {
		if err := inst.OnPlayerJoin(int32(c.entityID)); err != nil {
			c.log.WithError(err).Warn("session: on_player_join hook aborted")
		}
	}

	if err := c.sendSpawnChunks(); err != nil {
		return err
	}
	go c.keepAliveLoop()
	return nil
}

// sendSpawnChunks streams every chunk within the configured view distance
// of the world spawn, in row-major order (outer z, inner x) ascending from
// the negative corner.
func (c *Conn) sendSpawnChunks() error {
	center := world.ChunkPosOf(0, 0)
	radius := c.deps.Config.ViewDistance
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			pos := world.ChunkPos{X: center.X + dx, Z: center.Z + dz}
			encoded, biome := c.deps.World.GetChunkData(pos)
			if err := c.send(chunkDataPacket(pos.X, pos.Z, biome, encoded)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Conn) keepAliveLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case t := <-ticker.C:
			if err := c.send(clientKeepAlivePacket(t.UnixMilli())); err != nil {
				return
			}
		}
	}
}

// playLoop dispatches Play-state packets until the connection errs out or
// closes. Packet ids with no handler below are intentionally ignored:
// an unrecognized id is skipped, never treated as fatal.
func (c *Conn) playLoop() error {
	for {
		pkt, err := c.readPacket()
		if err != nil {
			return err
		}
		if err := c.dispatchPlay(pkt); err != nil {
			return err
		}
	}
}

func (c *Conn) dispatchPlay(pkt *protocol.Packet) error {
	r := pkt.Reader()
	switch pkt.ID {
	case protocol.IDServerKeepAlive:
		_, _ = protocol.ReadInt64(r) // echoed id, not otherwise validated

	case protocol.IDServerChatMessage:
		msg, err := protocol.ReadString(r, maxChatLen)
		if err != nil {
			return err
		}
		c.handleChat(msg)

	case protocol.IDServerPlayerPosition:
		x, y, z, onGround, err := readPositionUpdate(r)
		if err != nil {
			return err
		}
		c.deps.World.Entities.SetPosition(c.entityID, world.Vector3{X: x, Y: y, Z: z}, onGround)

	case protocol.IDServerPlayerPositionRotate:
		x, y, z, err := readXYZ(r)
		if err != nil {
			return err
		}
		yaw, pitch, onGround, err := readYawPitchGround(r)
		if err != nil {
			return err
		}
		c.deps.World.Entities.SetPosition(c.entityID, world.Vector3{X: x, Y: y, Z: z}, onGround)
		c.deps.World.Entities.SetRotation(c.entityID, world.Rotation{Yaw: yaw, Pitch: pitch})

	case protocol.IDServerPlayerRotation:
		yaw, pitch, onGround, err := readYawPitchGround(r)
		if err != nil {
			return err
		}
		c.deps.World.Entities.SetRotation(c.entityID, world.Rotation{Yaw: yaw, Pitch: pitch})
		if snap, ok := c.deps.World.Entities.Get(c.entityID); ok {
			c.deps.World.Entities.SetPosition(c.entityID, snap.Position, onGround)
		}

	case protocol.IDServerPlayerOnGround:
		onGround, err := protocol.ReadBool(r)
		if err != nil {
			return err
		}
		if snap, ok := c.deps.World.Entities.Get(c.entityID); ok {
			c.deps.World.Entities.SetPosition(c.entityID, snap.Position, onGround)
		}

	case protocol.IDServerPlayerDigging:
		return c.handleDigging(r)

	case protocol.IDServerPlayerBlockPlacement:
		return c.handleBlockPlacement(r)

	default:
		// Unassigned or unhandled packet id in this state: skip, not fatal.
	}
	return nil
}

func readXYZ(r io.Reader) (x, y, z float64, err error) {
	if x, err = protocol.ReadFloat64(r); err != nil {
		return
	}
	if y, err = protocol.ReadFloat64(r); err != nil {
		return
	}
	if z, err = protocol.ReadFloat64(r); err != nil {
		return
	}
	return
}

func readYawPitchGround(r io.Reader) (yaw, pitch float32, onGround bool, err error) {
	if yaw, err = protocol.ReadFloat32(r); err != nil {
		return
	}
	if pitch, err = protocol.ReadFloat32(r); err != nil {
		return
	}
	onGround, err = protocol.ReadBool(r)
	return
}

func readPositionUpdate(r io.Reader) (x, y, z float64, onGround bool, err error) {
	if x, y, z, err = readXYZ(r); err != nil {
		return
	}
	onGround, err = protocol.ReadBool(r)
	return
}

// diggingStatusFinished is the PlayerDigging status value meaning "finished
// digging" (the block should actually be removed), mirroring the
// status-code layout of the vanilla Digging packet.
const diggingStatusFinished = 2

func (c *Conn) handleDigging(r io.Reader) error {
	status, _, err := protocol.ReadVarInt(r)
	if err != nil {
		return err
	}
	x, y, z, err := protocol.ReadPosition(r)
	if err != nil {
		return err
	}
	if _, err := protocol.ReadByte(r); err != nil { // face
		return err
	}
	if status != diggingStatusFinished {
		return nil
	}

	cancelled := false
	if inst, ok := c.deps.Sandbox.InstanceFor(c.deps.WorldID); ok {
		result, err := inst.OnBlockBreak(x, y, z, int32(c.entityID))
		if err != nil {
			c.log.WithError(err).Warn("session: on_block_break hook aborted")
		} else {
			cancelled = bool(result)
		}
	}
	if !cancelled {
		c.deps.World.SetBlock(x, y, z, 0)
	}
	return nil
}

// handleBlockPlacement reads the target position and the block id to place
// directly off the wire (this core has no inventory/held-item model, so
// unlike vanilla's face+hand+cursor placement packet, the client names the
// block id explicitly) and fires the sandbox's on_block_place hook before
// applying the change.
func (c *Conn) handleBlockPlacement(r io.Reader) error {
	x, y, z, err := protocol.ReadPosition(r)
	if err != nil {
		return err
	}
	blockID, _, err := protocol.ReadVarInt(r)
	if err != nil {
		return err
	}

	cancelled := false
	if inst, ok := c.deps.Sandbox.InstanceFor(c.deps.WorldID); ok {
		result, err := inst.OnBlockPlace(x, y, z, blockID, int32(c.entityID))
		if err != nil {
			c.log.WithError(err).Warn("session: on_block_place hook aborted")
		} else {
			cancelled = bool(result)
		}
	}
	if !cancelled {
		c.deps.World.SetBlock(x, y, z, uint16(blockID))
	}
	return nil
}

func (c *Conn) handleChat(message string) {
	cancelled := false
	if inst, ok := c.deps.Sandbox.InstanceFor(c.deps.WorldID); ok {
		result, err := inst.OnPlayerChat(c.username, message)
		if err != nil {
			c.log.WithError(err).Warn("session: on_player_chat hook aborted")
		} else {
			cancelled = bool(result)
		}
	}
	if cancelled {
		return
	}
	c.deps.Hub.Broadcast(systemChatMessagePacket(chat.Text(fmt.Sprintf("<%s> %s", c.username, message))))
}
