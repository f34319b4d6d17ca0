package world

import (
	"testing"

	"github.com/google/uuid"
)

func TestGetBlockOnMissingChunkReturnsAirWithoutGenerating(t *testing.T) {
	w := New("w")

	if got := w.GetBlock(100, 10, 100); got != 0 {
		t.Fatalf("GetBlock on missing chunk = %d, want 0", got)
	}
	if len(w.chunks) != 0 {
		t.Fatalf("GetBlock generated a chunk as a side effect; chunks = %d", len(w.chunks))
	}
}

func TestSetBlockGeneratesChunkOnMiss(t *testing.T) {
	w := New("w")

	w.SetBlock(3, 64, 5, 4)

	if got := w.GetBlock(3, 64, 5); got != 4 {
		t.Fatalf("GetBlock after SetBlock = %d, want 4", got)
	}
	pos := ChunkPosOf(3, 5)
	c := w.chunks[pos]
	if c == nil {
		t.Fatal("SetBlock did not generate a chunk")
	}
	if c.Heightmap[3][5] < 64 {
		t.Fatalf("heightmap[(3,5)] = %d, want >= 64", c.Heightmap[3][5])
	}
}

func TestSpawnPlayerPlacesAtWorldSpawn(t *testing.T) {
	w := New("w")
	id := uuid.New()

	eid := w.SpawnPlayer(id, "alice", 0)

	snap, ok := w.Entities.Get(eid)
	if !ok {
		t.Fatal("spawned player not found")
	}
	if snap.Position != (Vector3{X: 0, Y: float64(SpawnGroundHeight), Z: 0}) {
		t.Fatalf("spawn position = %+v, want origin at ground height", snap.Position)
	}
	if snap.Health.Current != 20 {
		t.Fatalf("spawn health = %v, want 20", snap.Health.Current)
	}
}

func TestOutOfRangeYReturnsAir(t *testing.T) {
	w := New("w")
	w.SetBlock(0, 0, 0, 4)

	if got := w.GetBlock(0, ChunkHeight, 0); got != 0 {
		t.Fatalf("GetBlock above ChunkHeight = %d, want 0", got)
	}
	if got := w.GetBlock(0, -1, 0); got != 0 {
		t.Fatalf("GetBlock below 0 = %d, want 0", got)
	}
}
