package sandbox

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v14"
)

func newFuelStore() *wasmtime.Store {
	cfg := wasmtime.NewConfig()
	cfg.SetConsumeFuel(true)
	return wasmtime.NewStore(wasmtime.NewEngineWithConfig(cfg))
}

func TestFuelMeterTracksUsageWithinBudget(t *testing.T) {
	store := newFuelStore()
	m := NewFuelMeter(store, 100)

	if _, err := store.ConsumeFuel(60); err != nil {
		t.Fatalf("unexpected error consuming fuel within budget: %v", err)
	}
	if got := m.Used(); got != 60 {
		t.Fatalf("used = %d, want 60", got)
	}
}

func TestFuelMeterRefuelResetsUsageBaseline(t *testing.T) {
	store := newFuelStore()
	m := NewFuelMeter(store, 100)
	if _, err := store.ConsumeFuel(90); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Refuel()
	if got := m.Used(); got != 0 {
		t.Fatalf("used immediately after refuel = %d, want 0", got)
	}

	if _, err := store.ConsumeFuel(30); err != nil {
		t.Fatalf("unexpected error after refuel: %v", err)
	}
	if got := m.Used(); got != 30 {
		t.Fatalf("used = %d, want 30", got)
	}
}

func TestFuelMeterExhaustionRejectsOverBudgetConsumption(t *testing.T) {
	store := newFuelStore()
	NewFuelMeter(store, 50)

	if _, err := store.ConsumeFuel(100); err == nil {
		t.Fatal("expected error consuming more fuel than the reservoir holds")
	}
}

// TestRefuelResetsReservoirAbsolutely guards against Refuel adding budget
// on top of unused carry-over instead of resetting the reservoir to
// exactly budget. A guest that underspends its allowance across several
// ticks must not be able to bank the remainder and later consume more
// than one tick's budget in a single call.
func TestRefuelResetsReservoirAbsolutely(t *testing.T) {
	store := newFuelStore()
	const budget = uint64(100)
	m := NewFuelMeter(store, budget)

	for i := 0; i < 5; i++ {
		if _, err := store.ConsumeFuel(10); err != nil {
			t.Fatalf("tick %d: unexpected error consuming within budget: %v", i, err)
		}
		m.Refuel()
	}

	if _, err := store.ConsumeFuel(budget + 1); err == nil {
		t.Fatal("expected fuel exhaustion consuming more than one tick's budget after repeated partial-use refuels")
	}
}
