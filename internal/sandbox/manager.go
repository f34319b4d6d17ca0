package sandbox

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/plunkit-dev/plunkit/internal/world"
)

// Manager owns one sandbox Instance per world and the fuel/memory/table
// defaults new instances are loaded with.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*Instance

	fuelBudget   uint64
	memoryLimit  uint32
	tableLimit   uint32
	logger       *logrus.Logger
}

// NewManager returns a Manager using the given resource defaults.
func NewManager(fuelBudget uint64, memoryLimit, tableLimit uint32, logger *logrus.Logger) *Manager {
	return &Manager{
		instances:   make(map[string]*Instance),
		fuelBudget:  fuelBudget,
		memoryLimit: memoryLimit,
		tableLimit:  tableLimit,
		logger:      logger,
	}
}

// LoadPlugin compiles moduleBytes and installs it as worldID's sandbox
// instance, replacing any previous instance for that world. Compile
// failure is surfaced to the caller per the sandbox error-handling design.
func (m *Manager) LoadPlugin(worldID string, w *world.World, meta PluginMetadata, moduleBytes []byte) error {
	entry := m.logger.WithField("world", worldID).WithField("plugin", meta.Name)
	inst, err := Load(w, meta, moduleBytes, m.fuelBudget, m.memoryLimit, m.tableLimit, entry)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.instances[worldID] = inst
	m.mu.Unlock()
	return nil
}

// InstanceFor returns the sandbox instance for worldID, if one is loaded.
func (m *Manager) InstanceFor(worldID string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[worldID]
	return inst, ok
}

// Remove drops worldID's sandbox instance; any outstanding hook call for
// it completes or fails on its own without blocking the tick driver.
func (m *Manager) Remove(worldID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, worldID)
}

// ListPlugins returns the metadata of every currently-loaded instance.
func (m *Manager) ListPlugins() []PluginMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PluginMetadata, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst.Metadata())
	}
	return out
}

// TickAll refuels and ticks every loaded instance; a failing tick is
// logged and does not affect other instances or the driver.
func (m *Manager) TickAll() {
	m.mu.RLock()
	snapshot := make(map[string]*Instance, len(m.instances))
	for id, inst := range m.instances {
		snapshot[id] = inst
	}
	m.mu.RUnlock()

	for worldID, inst := range snapshot {
		inst.Refuel()
		if err := inst.Tick(); err != nil {
			m.logger.WithField("world", worldID).WithError(err).Error("sandbox tick aborted")
		}
	}
}

// errNotLoaded is the error value for a world with no loaded instance.
// InstanceFor reports that case through its bool result, and no function
// in this package returns errNotLoaded.
var errNotLoaded = fmt.Errorf("sandbox: no instance loaded for world")
