package sandbox

import (
	"strings"
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/plunkit-dev/plunkit/internal/world"
)

// hookFixtureWAT is a minimal guest module exercising the hook-invocation
// and fuel-metering path end to end against a real wasmtime instance:
// on_player_chat always cancels, tick runs a million-iteration loop that
// costs far more fuel than a small test budget holds (so such a budget
// reliably traps it on fuel exhaustion; DefaultFuelBudget is large enough
// for it to finish), and spawn_with_float round-trips floating point coordinates
// through the spawn_entity host import.
const hookFixtureWAT = `
(module
  (import "env" "spawn_entity" (func $spawn_entity (param i32 i32 f64 f64 f64) (result i32)))
  (memory (export "memory") 1)
  (func (export "on_player_chat") (param i32 i32 i32 i32) (result i32)
    (i32.const 1))
  (func (export "tick")
    (local $i i32)
    (local.set $i (i32.const 1000000))
    (loop $loop
      (local.set $i (i32.sub (local.get $i) (i32.const 1)))
      (br_if $loop (i32.ne (local.get $i) (i32.const 0)))))
  (func (export "spawn_with_float") (result i32)
    (call $spawn_entity (i32.const 0) (i32.const 0) (f64.const 1.5) (f64.const 2.25) (f64.const 3.75))))
`

func mustLoadHookFixture(t *testing.T, w *world.World, fuelBudget uint64) *Instance {
	t.Helper()
	wasmBytes, err := wasmtime.Wat2Wasm(hookFixtureWAT)
	if err != nil {
		t.Fatalf("compile WAT fixture: %v", err)
	}
	logger := testLogger().WithField("test", "sandbox")
	inst, err := Load(w, PluginMetadata{Name: "fixture"}, wasmBytes, fuelBudget, DefaultMemoryLimitBytes, DefaultTableLimit, logger)
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return inst
}

func TestOnPlayerChatHookCancelsBroadcast(t *testing.T) {
	w := world.New("overworld")
	inst := mustLoadHookFixture(t, w, DefaultFuelBudget)

	result, err := inst.OnPlayerChat("alice", "hi")
	if err != nil {
		t.Fatalf("OnPlayerChat: %v", err)
	}
	if result != Cancel {
		t.Fatalf("expected the guest's on_player_chat to cancel the broadcast, got %v", result)
	}
}

func TestTickFuelExhaustionAbortsCallButLeavesInstanceCallable(t *testing.T) {
	w := world.New("overworld")
	const tinyBudget = 64
	inst := mustLoadHookFixture(t, w, tinyBudget)

	if err := inst.Tick(); err == nil {
		t.Fatal("expected tick to abort on fuel exhaustion with a tiny per-tick budget")
	} else if !strings.Contains(err.Error(), "tick") {
		t.Fatalf("expected the aborted hook's name in the error, got: %v", err)
	}

	// Refuel resets the reservoir to a fresh tinyBudget; the instance must
	// still be usable afterward for a hook cheap enough to fit in it.
	inst.Refuel()
	result, err := inst.OnPlayerChat("alice", "hi")
	if err != nil {
		t.Fatalf("OnPlayerChat after refuel: %v", err)
	}
	if result != Cancel {
		t.Fatalf("expected on_player_chat to still cancel after refuel, got %v", result)
	}
}

func TestSpawnEntityHostFuncPreservesFloatCoordinates(t *testing.T) {
	w := world.New("overworld")
	inst := mustLoadHookFixture(t, w, DefaultFuelBudget)

	results, present, err := inst.callOptional("spawn_with_float")
	if err != nil {
		t.Fatalf("spawn_with_float: %v", err)
	}
	if !present {
		t.Fatal("expected spawn_with_float export to be present")
	}
	id, ok := results[0].(int32)
	if !ok {
		t.Fatalf("expected int32 result, got %T", results[0])
	}

	snap, ok := w.Entities.Get(world.EntityID(id))
	if !ok {
		t.Fatalf("expected a spawned entity with id %d", id)
	}
	want := world.Vector3{X: 1.5, Y: 2.25, Z: 3.75}
	if snap.Position != want {
		t.Fatalf("expected spawned position %+v, got %+v (coordinates must not be truncated to integers)", want, snap.Position)
	}
}
