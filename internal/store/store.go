// Package store defines the persistence collaborator the core consumes.
// The core owns no schema; a concrete Store is free to be backed by a
// real database or, as here, to be a no-op — absence of backing
// persistence is non-fatal.
package store

import "github.com/google/uuid"

// WorldRecord is a row in the worlds table, mirroring the HTTP
// management API's world resource.
type WorldRecord struct {
	ID         string
	Name       string
	Status     string
	MaxPlayers int
}

// Store is the small interface the core consumes for persistence. All
// methods may be no-ops; callers must not treat an error from Store as
// fatal to the operation it was attached to.
type Store interface {
	SaveChunk(worldID string, chunkX, chunkZ int32, data []byte) error
	LoadChunk(worldID string, chunkX, chunkZ int32) ([]byte, bool, error)
	UpsertPlayer(username string, id uuid.UUID) error
	UpdatePlayerPosition(worldID string, id uuid.UUID, x, y, z float64) error
	ListWorlds() ([]WorldRecord, error)
	UpsertWorld(WorldRecord) error
	DeleteWorld(id string) error
}

// Noop is the zero-configuration Store: every method succeeds without
// doing anything, matching original_source's own database layer (stub
// methods returning Ok(Default)/Ok(())).
type Noop struct{}

func (Noop) SaveChunk(string, int32, int32, []byte) error { return nil }

func (Noop) LoadChunk(string, int32, int32) ([]byte, bool, error) { return nil, false, nil }

func (Noop) UpsertPlayer(string, uuid.UUID) error { return nil }

func (Noop) UpdatePlayerPosition(string, uuid.UUID, float64, float64, float64) error { return nil }

func (Noop) ListWorlds() ([]WorldRecord, error) { return nil, nil }

func (Noop) UpsertWorld(WorldRecord) error { return nil }

func (Noop) DeleteWorld(string) error { return nil }

var _ Store = Noop{}
