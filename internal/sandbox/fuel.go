package sandbox

import "github.com/bytecodealliance/wasmtime-go/v14"

// DefaultFuelBudget is the per-tick fuel allowance refuelled at the start
// of every tick, per the sandbox resource-discipline default.
const DefaultFuelBudget uint64 = 1_000_000_000

// DefaultMemoryLimitBytes bounds per-instance linear memory growth.
const DefaultMemoryLimitBytes uint32 = 512 * 1024 * 1024

// DefaultTableLimit bounds per-instance table growth.
const DefaultTableLimit uint32 = 10_000

// FuelMeter tracks fuel usage within one tick against a store whose engine
// has fuel consumption enabled. wasmtime decrements fuel automatically as
// compiled guest code runs, trapping the call once the reservoir is empty;
// the meter's job is just bookkeeping the per-tick budget and usage against
// that reservoir, not metering instructions itself.
type FuelMeter struct {
	store    *wasmtime.Store
	budget   uint64
	baseline uint64
}

// NewFuelMeter constructs a meter with the given per-tick budget and
// arms the store with its first reservoir.
func NewFuelMeter(store *wasmtime.Store, budget uint64) *FuelMeter {
	store.AddFuel(budget)
	return &FuelMeter{store: store, budget: budget}
}

// drainReservoir consumes whatever fuel is left in the store so the next
// AddFuel starts the reservoir from exactly zero instead of stacking on
// top of unused carry-over.
func (m *FuelMeter) drainReservoir() {
	remaining, err := m.store.ConsumeFuel(0)
	if err != nil || remaining == 0 {
		return
	}
	m.store.ConsumeFuel(remaining)
}

// Refuel resets the store's fuel reservoir to exactly one per-tick budget,
// discarding any fuel left over from the previous tick, and resets the
// usage baseline; called once per tick before any hooks run. A guest that
// underspends its budget one tick must not be able to bank the remainder
// and exceed the budget in a later tick's single hook call.
func (m *FuelMeter) Refuel() {
	m.drainReservoir()
	m.store.AddFuel(m.budget)
	if consumed, ok := m.store.FuelConsumed(); ok {
		m.baseline = consumed
	}
}

// Used returns the fuel consumed since the last Refuel.
func (m *FuelMeter) Used() uint64 {
	consumed, ok := m.store.FuelConsumed()
	if !ok || consumed < m.baseline {
		return 0
	}
	return consumed - m.baseline
}
