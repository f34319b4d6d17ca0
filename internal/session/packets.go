package session

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/plunkit-dev/plunkit/pkg/chat"
	"github.com/plunkit-dev/plunkit/pkg/protocol"
)

func statusResponsePacket(motd string, maxPlayers, onlinePlayers int) *protocol.Packet {
	doc := map[string]interface{}{
		"version": map[string]interface{}{
			"name":     "1.19.4",
			"protocol": protocol.ProtocolVersion,
		},
		"players": map[string]interface{}{
			"max":    maxPlayers,
			"online": onlinePlayers,
		},
		"description": chat.Text(motd),
	}
	body, _ := json.Marshal(doc)
	return protocol.MarshalPacket(protocol.IDStatusResponse, func(w *bytes.Buffer) {
		protocol.WriteString(w, string(body))
	})
}

func statusPongPacket(payload int64) *protocol.Packet {
	return protocol.MarshalPacket(protocol.IDStatusPong, func(w *bytes.Buffer) {
		protocol.WriteInt64(w, payload)
	})
}

func loginSuccessPacket(id uuid.UUID, username string) *protocol.Packet {
	return protocol.MarshalPacket(protocol.IDLoginSuccess, func(w *bytes.Buffer) {
		protocol.WriteUUID(w, id)
		protocol.WriteString(w, username)
	})
}

func joinGamePacket(entityID int32, gameMode byte, viewDistance int32) *protocol.Packet {
	return protocol.MarshalPacket(protocol.IDJoinGame, func(w *bytes.Buffer) {
		protocol.WriteInt32(w, entityID)
		protocol.WriteByte(w, gameMode)
		protocol.WriteVarInt(w, viewDistance)
		protocol.WriteString(w, "plunkit:overworld")
	})
}

func spawnPositionPacket(x, y, z int32) *protocol.Packet {
	return protocol.MarshalPacket(protocol.IDSpawnPosition, func(w *bytes.Buffer) {
		protocol.WritePosition(w, x, y, z)
	})
}

func playerPositionAndLookPacket(x, y, z float64, yaw, pitch float32, teleportID int32) *protocol.Packet {
	return protocol.MarshalPacket(protocol.IDPlayerPositionAndLook, func(w *bytes.Buffer) {
		protocol.WriteFloat64(w, x)
		protocol.WriteFloat64(w, y)
		protocol.WriteFloat64(w, z)
		protocol.WriteFloat32(w, yaw)
		protocol.WriteFloat32(w, pitch)
		protocol.WriteByte(w, 0) // relative-flags: all absolute
		protocol.WriteVarInt(w, teleportID)
	})
}

func chunkDataPacket(chunkX, chunkZ int32, primaryBiome int32, encoded []byte) *protocol.Packet {
	return protocol.MarshalPacket(protocol.IDChunkData, func(w *bytes.Buffer) {
		protocol.WriteInt32(w, chunkX)
		protocol.WriteInt32(w, chunkZ)
		protocol.WriteInt32(w, primaryBiome)
		protocol.WriteVarInt(w, int32(len(encoded)))
		w.Write(encoded)
	})
}

func systemChatMessagePacket(msg chat.Message) *protocol.Packet {
	return protocol.MarshalPacket(protocol.IDSystemChatMessage, func(w *bytes.Buffer) {
		protocol.WriteString(w, msg.String())
		protocol.WriteBool(w, false) // not an action-bar message
	})
}

func clientKeepAlivePacket(id int64) *protocol.Packet {
	return protocol.MarshalPacket(protocol.IDClientKeepAlive, func(w *bytes.Buffer) {
		protocol.WriteInt64(w, id)
	})
}

func disconnectPacket(reason string) *protocol.Packet {
	return protocol.MarshalPacket(protocol.IDDisconnect, func(w *bytes.Buffer) {
		protocol.WriteString(w, chat.Text(reason).String())
	})
}

func removeEntitiesPacket(ids ...int32) *protocol.Packet {
	return protocol.MarshalPacket(protocol.IDRemoveEntities, func(w *bytes.Buffer) {
		protocol.WriteVarInt(w, int32(len(ids)))
		for _, id := range ids {
			protocol.WriteVarInt(w, id)
		}
	})
}
