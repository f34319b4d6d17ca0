// Package sandbox implements the resource-limited WASM scripting host: one
// sandbox instance per world, loaded from a module blob, exposing a small
// set of host capability functions to guest code and metering guest
// execution with a per-tick fuel budget.
package sandbox

import (
	"fmt"
	"sync"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"github.com/sirupsen/logrus"

	"github.com/plunkit-dev/plunkit/internal/world"
)

// PluginMetadata describes a loaded guest module, surfaced through the
// HTTP management API's plugin listing.
type PluginMetadata struct {
	Name         string
	Version      string
	Author       string
	Description  string
	Dependencies []string
}

// HookResult is the boolean a cancellable hook returns: true means
// "cancel" — the core does not apply the corresponding change.
type HookResult bool

const (
	Cancel   HookResult = true
	Continue HookResult = false
)

// hostCtx is the state visible to a module's imported host functions
// during one call.
type hostCtx struct {
	world *world.World
	log   *logrus.Entry
}

func (h *hostCtx) readString(caller *wasmtime.Caller, ptr, ln int32) (string, bool) {
	ext := caller.GetExport("memory")
	if ext == nil || ext.Memory() == nil {
		return "", false
	}
	data := ext.Memory().UnsafeData(caller)
	if ptr < 0 || ln < 0 || int(ptr)+int(ln) > len(data) {
		return "", false
	}
	out := make([]byte, ln)
	copy(out, data[ptr:ptr+ln])
	return string(out), true
}

// Instance is one sandbox instance: a compiled module, its resource
// limiter, and its per-tick fuel meter. Hook invocations are serialized
// with a mutex so guest state is never re-entered concurrently.
type Instance struct {
	mu       sync.Mutex
	meta     PluginMetadata
	store    *wasmtime.Store
	instance *wasmtime.Instance
	mem      *wasmtime.Memory
	fuel     *FuelMeter
	ctx      *hostCtx
}

// Load compiles moduleBytes and instantiates it against w, wiring the host
// capability functions and arming the store's fuel consumption and
// resource limiter per the sandbox host component's invariants: execution
// is metered, and memory/table growth above the configured limits fails
// without tearing the instance down.
func Load(w *world.World, meta PluginMetadata, moduleBytes []byte, fuelBudget uint64, memoryLimit, tableLimit uint32, logger *logrus.Entry) (*Instance, error) {
	cfg := wasmtime.NewConfig()
	cfg.SetConsumeFuel(true)
	engine := wasmtime.NewEngineWithConfig(cfg)
	store := wasmtime.NewStore(engine)

	limiter := wasmtime.NewStoreLimitsBuilder().
		MemorySize(int64(memoryLimit)).
		TableElements(int64(tableLimit)).
		Instances(1).
		Tables(1).
		Memories(1).
		Build()
	store.Limiter(limiter)

	module, err := wasmtime.NewModule(engine, moduleBytes)
	if err != nil {
		return nil, fmt.Errorf("sandbox: compile failed: %w", err)
	}

	ctx := &hostCtx{world: w, log: logger}
	linker := wasmtime.NewLinker(engine)
	if err := defineHostFuncs(store, linker, ctx); err != nil {
		return nil, fmt.Errorf("sandbox: defining host functions: %w", err)
	}

	inst, err := linker.Instantiate(store, module)
	if err != nil {
		return nil, fmt.Errorf("sandbox: instantiate failed: %w", err)
	}

	memExt := inst.GetExport(store, "memory")
	if memExt == nil || memExt.Memory() == nil {
		return nil, fmt.Errorf("sandbox: module has no exported memory")
	}

	return &Instance{
		meta:     meta,
		store:    store,
		instance: inst,
		mem:      memExt.Memory(),
		fuel:     NewFuelMeter(store, fuelBudget),
		ctx:      ctx,
	}, nil
}

// Metadata returns the plugin metadata this instance was loaded with.
func (inst *Instance) Metadata() PluginMetadata { return inst.meta }

// Refuel restores the instance's fuel budget; called once per tick before
// any hooks run.
func (inst *Instance) Refuel() {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.fuel.Refuel()
}

// FuelUsed reports fuel consumed so far in the current tick.
func (inst *Instance) FuelUsed() uint64 {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.fuel.Used()
}

func (inst *Instance) writeBytes(ptr int32, data []byte) bool {
	mem := inst.mem.UnsafeData(inst.store)
	if ptr < 0 || int(ptr)+len(data) > len(mem) {
		return false
	}
	copy(mem[ptr:], data)
	return true
}

// callOptional invokes a guest export by name if present, with integer
// args, and returns its raw results. Missing exports are not an error —
// event hooks are optional. Fuel exhaustion or a guest trap aborts only
// this call; the instance remains callable afterward.
func (inst *Instance) callOptional(name string, args ...interface{}) ([]interface{}, bool, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	ext := inst.instance.GetExport(inst.store, name)
	if ext == nil || ext.Func() == nil {
		return nil, false, nil
	}
	res, err := ext.Func().Call(inst.store, args...)
	if err != nil {
		return nil, true, fmt.Errorf("sandbox: hook %s aborted: %w", name, err)
	}
	if res == nil {
		return nil, true, nil
	}
	if results, ok := res.([]interface{}); ok {
		return results, true, nil
	}
	return []interface{}{res}, true, nil
}

// Tick invokes the guest's optional tick() export.
func (inst *Instance) Tick() error {
	_, _, err := inst.callOptional("tick")
	return err
}

// OnPlayerJoin invokes the guest's optional on_player_join(id) export.
func (inst *Instance) OnPlayerJoin(entityID int32) error {
	_, _, err := inst.callOptional("on_player_join", entityID)
	return err
}

// OnBlockBreak invokes the guest's optional on_block_break(x,y,z,player)
// export. The bool result means "cancel".
func (inst *Instance) OnBlockBreak(x, y, z, playerID int32) (HookResult, error) {
	return inst.boolHook("on_block_break", x, y, z, playerID)
}

// OnBlockPlace invokes the guest's optional
// on_block_place(x,y,z,block_id,player) export.
func (inst *Instance) OnBlockPlace(x, y, z, blockID, playerID int32) (HookResult, error) {
	return inst.boolHook("on_block_place", x, y, z, blockID, playerID)
}

func (inst *Instance) boolHook(name string, args ...interface{}) (HookResult, error) {
	results, present, err := inst.callOptional(name, args...)
	if err != nil {
		return Continue, err
	}
	if !present || len(results) == 0 {
		return Continue, nil
	}
	switch v := results[0].(type) {
	case int32:
		return HookResult(v != 0), nil
	case bool:
		return HookResult(v), nil
	default:
		return Continue, nil
	}
}

// OnPlayerChat writes player and message into guest scratch memory at a
// fixed offset, then invokes the guest's optional
// on_player_chat(playerPtr,playerLen,msgPtr,msgLen) export. The bool
// result means "cancel".
const chatScratchOffset = 0

func (inst *Instance) OnPlayerChat(player, message string) (HookResult, error) {
	inst.mu.Lock()
	playerBytes := []byte(player)
	msgBytes := []byte(message)
	msgOffset := int32(chatScratchOffset + len(playerBytes))
	if !inst.writeBytes(chatScratchOffset, playerBytes) || !inst.writeBytes(msgOffset, msgBytes) {
		inst.mu.Unlock()
		return Continue, fmt.Errorf("sandbox: guest memory too small for chat scratch")
	}
	inst.mu.Unlock()

	results, present, err := inst.callOptional("on_player_chat",
		int32(chatScratchOffset), int32(len(playerBytes)), msgOffset, int32(len(msgBytes)))
	if err != nil {
		return Continue, err
	}
	if !present || len(results) == 0 {
		return Continue, nil
	}
	switch v := results[0].(type) {
	case int32:
		return HookResult(v != 0), nil
	case bool:
		return HookResult(v), nil
	default:
		return Continue, nil
	}
}
