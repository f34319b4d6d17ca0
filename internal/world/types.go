// Package world implements the chunked voxel world model: chunk storage,
// the flat terrain generator, and the component-addressed entity store.
package world

// BlockPos is an absolute block coordinate.
type BlockPos struct {
	X, Y, Z int32
}

// ChunkPos identifies a chunk column. Derived from a BlockPos by an
// arithmetic right shift of 4 on each axis.
type ChunkPos struct {
	X, Z int32
}

// ChunkPosOf returns the chunk column containing the given block coordinates.
func ChunkPosOf(x, z int32) ChunkPos {
	return ChunkPos{X: x >> 4, Z: z >> 4}
}

// EntityID is a server-assigned identifier, unique and monotonic within a
// world's lifetime.
type EntityID int32
