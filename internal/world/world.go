package world

import (
	"sync"

	"github.com/google/uuid"
)

// SpawnGroundHeight is the flat-generator's ground layer, used both to
// build new chunks and to place newly spawned players.
const SpawnGroundHeight = 64

// World owns a chunk map and an entity store for one named world. Per the
// concurrency model, the chunk map and entity store are each guarded by
// their own multi-reader/single-writer lock; a writer to one must never
// hold the other's lock.
type World struct {
	ID string

	chunksMu sync.RWMutex
	chunks   map[ChunkPos]*Chunk

	Entities *Entities
}

// New returns a fresh world with an empty chunk map and entity store.
func New(id string) *World {
	return &World{
		ID:       id,
		chunks:   make(map[ChunkPos]*Chunk),
		Entities: NewEntities(),
	}
}

// GetBlock looks up the chunk containing (x,z); absent chunks and
// out-of-range y both read as air (0), never generating a chunk as a side
// effect of a read.
func (w *World) GetBlock(x, y, z int32) uint16 {
	if y < 0 || y >= ChunkHeight {
		return 0
	}
	pos := ChunkPosOf(x, z)

	w.chunksMu.RLock()
	c, ok := w.chunks[pos]
	w.chunksMu.RUnlock()
	if !ok {
		return 0
	}
	return c.GetBlock(x&15, y, z&15)
}

// SetBlock locates or generates the chunk containing (x,z), then updates
// the block and recomputes that column's heightmap.
func (w *World) SetBlock(x, y, z int32, id uint16) {
	c := w.GetOrGenerateChunk(ChunkPosOf(x, z))
	c.SetBlock(x&15, y, z&15, id)
}

// GetOrGenerateChunk returns the chunk at pos, generating and inserting a
// flat chunk on miss. Uses double-checked locking: an RLock-guarded probe
// first, then a Lock-guarded probe-and-insert if the first missed, so a
// chunk that already exists is returned under the read lock alone. The
// flat chunk is generated while the write lock is held, so other access to
// the chunk map waits for that generation to finish.
func (w *World) GetOrGenerateChunk(pos ChunkPos) *Chunk {
	w.chunksMu.RLock()
	c, ok := w.chunks[pos]
	w.chunksMu.RUnlock()
	if ok {
		return c
	}

	w.chunksMu.Lock()
	defer w.chunksMu.Unlock()
	if c, ok := w.chunks[pos]; ok {
		return c
	}
	c = GenerateFlat(SpawnGroundHeight)
	w.chunks[pos] = c
	return c
}

// GetChunkData returns a chunk's encoded wire form and the chunk's primary
// biome id (read from column (0,0), matching the flat generator's
// uniform biome map), generating the chunk on miss.
func (w *World) GetChunkData(pos ChunkPos) ([]byte, int32) {
	c := w.GetOrGenerateChunk(pos)
	return c.Encode(), c.Biomes[0][0]
}

// SpawnPlayer allocates a new player entity at the world spawn point
// (0, SpawnGroundHeight, 0).
func (w *World) SpawnPlayer(id uuid.UUID, username string, gameMode byte) EntityID {
	return w.Entities.SpawnPlayer(id, username, gameMode, Vector3{X: 0, Y: float64(SpawnGroundHeight), Z: 0})
}

// AllPlayers returns a snapshot of (entity, username, position) for every
// player currently in the world.
func (w *World) AllPlayers() []Snapshot {
	return w.Entities.Players()
}

// Tick advances the world by one simulation step. The flat-world core
// performs no simulation of its own; tick is purely a synchronization
// point at which scripted hooks (driven by the world manager) may run.
func (w *World) Tick() error {
	return nil
}
