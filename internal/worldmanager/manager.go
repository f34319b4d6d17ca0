// Package worldmanager owns every world's lifecycle: creation, the
// per-world TCP listener and accept loop, and the fixed-rate tick driver
// that advances every registered world concurrently, whether or not its
// listener is running.
package worldmanager

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plunkit-dev/plunkit/internal/config"
	"github.com/plunkit-dev/plunkit/internal/sandbox"
	"github.com/plunkit-dev/plunkit/internal/session"
	"github.com/plunkit-dev/plunkit/internal/store"
	"github.com/plunkit-dev/plunkit/internal/world"
)

// TickRate is the fixed simulation rate: 20 ticks per second, a 50ms period.
const TickRate = 50 * time.Millisecond

// Status values for a managed world.
const (
	StatusStopped = "stopped"
	StatusRunning = "running"
)

// Info is a read-only snapshot of one world's management state, used by
// the HTTP API.
type Info struct {
	ID      string
	Status  string
	Address string
	Players int
}

// Stats is a point-in-time snapshot across every managed world.
type Stats struct {
	ActiveWorlds int
	TotalPlayers int
}

type worldEntry struct {
	mu       sync.Mutex
	world    *world.World
	hub      *session.Hub
	listener net.Listener
	address  string
	status   string
	stopCh   chan struct{}
}

// Manager owns the world registry and drives its tick loops.
type Manager struct {
	mu      sync.RWMutex
	worlds  map[string]*worldEntry
	cfg     config.Config
	sandbox *sandbox.Manager
	store   store.Store
	logger  *logrus.Logger

	tickStop chan struct{}
	tickWG   sync.WaitGroup
}

// NewManager returns an empty world manager.
func NewManager(cfg config.Config, sb *sandbox.Manager, st store.Store, logger *logrus.Logger) *Manager {
	return &Manager{
		worlds:  make(map[string]*worldEntry),
		cfg:     cfg,
		sandbox: sb,
		store:   st,
		logger:  logger,
	}
}

// CreateWorld registers a new, stopped world under id. It is an error to
// reuse an id already present in the registry.
func (m *Manager) CreateWorld(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.worlds[id]; exists {
		return fmt.Errorf("worldmanager: world %q already exists", id)
	}
	m.worlds[id] = &worldEntry{
		world:  world.New(id),
		hub:    session.NewHub(),
		status: StatusStopped,
	}
	m.store.UpsertWorld(store.WorldRecord{ID: id, Name: id, Status: StatusStopped, MaxPlayers: 20})
	return nil
}

// GetWorld returns the underlying world for id.
func (m *Manager) GetWorld(id string) (*world.World, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.worlds[id]
	if !ok {
		return nil, false
	}
	return entry.world, true
}

// ListWorlds returns a snapshot of every registered world's management state.
func (m *Manager) ListWorlds() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.worlds))
	for id, entry := range m.worlds {
		entry.mu.Lock()
		out = append(out, Info{
			ID:      id,
			Status:  entry.status,
			Address: entry.address,
			Players: len(entry.world.AllPlayers()),
		})
		entry.mu.Unlock()
	}
	return out
}

// RemoveWorld drops a stopped world from the registry. Removing a running
// world is rejected; callers must StopWorld first.
func (m *Manager) RemoveWorld(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.worlds[id]
	if !ok {
		return fmt.Errorf("worldmanager: no such world %q", id)
	}
	entry.mu.Lock()
	running := entry.status == StatusRunning
	entry.mu.Unlock()
	if running {
		return fmt.Errorf("worldmanager: world %q is running, stop it first", id)
	}
	delete(m.worlds, id)
	m.sandbox.Remove(id)
	m.store.DeleteWorld(id)
	return nil
}

// StartWorld binds a real TCP listener at addr for the world and begins
// accepting connections, handing each to session.Serve. A world that is
// already running is left untouched and no error is returned.
func (m *Manager) StartWorld(id, addr string) error {
	m.mu.RLock()
	entry, ok := m.worlds[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("worldmanager: no such world %q", id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.status == StatusRunning {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("worldmanager: listen on %s: %w", addr, err)
	}

	entry.listener = ln
	entry.address = addr
	entry.status = StatusRunning
	entry.stopCh = make(chan struct{})

	logger := m.logger.WithField("world", id)
	go m.acceptLoop(id, entry, logger)

	m.store.UpsertWorld(store.WorldRecord{ID: id, Name: id, Status: StatusRunning, MaxPlayers: 20})
	return nil
}

func (m *Manager) acceptLoop(id string, entry *worldEntry, logger *logrus.Entry) {
	deps := session.Deps{
		World:   entry.world,
		WorldID: id,
		Hub:     entry.hub,
		Sandbox: m.sandbox,
		Store:   m.store,
		Config:  m.cfg,
		Logger:  logger,
	}
	for {
		conn, err := entry.listener.Accept()
		if err != nil {
			select {
			case <-entry.stopCh:
				return
			default:
				logger.WithError(err).Warn("worldmanager: accept error")
				continue
			}
		}
		go session.Serve(conn, deps)
	}
}

// StopWorld closes a running world's listener. In-flight connections are
// not forcibly closed; they drain on their own.
func (m *Manager) StopWorld(id string) error {
	m.mu.RLock()
	entry, ok := m.worlds[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("worldmanager: no such world %q", id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.status != StatusRunning {
		return nil
	}
	close(entry.stopCh)
	entry.listener.Close()
	entry.status = StatusStopped
	m.store.UpsertWorld(store.WorldRecord{ID: id, Name: id, Status: StatusStopped, MaxPlayers: 20})
	return nil
}

// Stats reports an aggregate snapshot across every registered world.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	for _, entry := range m.worlds {
		entry.mu.Lock()
		if entry.status == StatusRunning {
			s.ActiveWorlds++
		}
		s.TotalPlayers += len(entry.world.AllPlayers())
		entry.mu.Unlock()
	}
	return s
}

// Run starts the fixed-rate tick driver: every world and the sandbox
// manager are advanced once every TickRate, concurrently, with a failing
// world's tick logged and isolated from the others. Run blocks until Stop
// is called.
func (m *Manager) Run() {
	m.tickStop = make(chan struct{})
	ticker := time.NewTicker(TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.tickStop:
			return
		case <-ticker.C:
			m.tickOnce()
		}
	}
}

func (m *Manager) tickOnce() {
	m.mu.RLock()
	entries := make([]*worldEntry, 0, len(m.worlds))
	for _, entry := range m.worlds {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(e *worldEntry) {
			defer wg.Done()
			if err := e.world.Tick(); err != nil {
				m.logger.WithField("world", e.world.ID).WithError(err).Error("worldmanager: world tick failed")
			}
		}(entry)
	}
	wg.Wait()

	m.sandbox.TickAll()
}

// Stop halts the tick driver started by Run.
func (m *Manager) Stop() {
	if m.tickStop != nil {
		close(m.tickStop)
	}
}
