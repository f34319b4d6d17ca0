package sandbox

import (
	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/plunkit-dev/plunkit/internal/world"
)

// defineHostFuncs wires the sandbox's host capability functions into linker
// under the "env" namespace: log, get_block, set_block, spawn_entity.
// String-bearing calls declare a *wasmtime.Caller first parameter, which
// wasmtime injects automatically, giving the function body access to the
// calling instance's exported "memory" without capturing it up front.
// Unlike the cooperative fuel/growth checks a non-metering runtime would
// need, wasmtime enforces the fuel budget and the memory/table limits
// itself (see Load's consume-fuel config and ResourceLimiter), so no
// corresponding host_consume_fuel or host_request_*_grow imports exist.
func defineHostFuncs(store *wasmtime.Store, linker *wasmtime.Linker, h *hostCtx) error {
	if err := linker.DefineFunc(store, "env", "log", func(caller *wasmtime.Caller, ptr, ln int32) {
		msg, ok := h.readString(caller, ptr, ln)
		if !ok {
			return
		}
		h.log.Info(msg)
	}); err != nil {
		return err
	}

	if err := linker.DefineFunc(store, "env", "get_block", func(x, y, z int32) int32 {
		return int32(h.world.GetBlock(x, y, z))
	}); err != nil {
		return err
	}

	if err := linker.DefineFunc(store, "env", "set_block", func(x, y, z, id int32) {
		h.world.SetBlock(x, y, z, uint16(id))
	}); err != nil {
		return err
	}

	if err := linker.DefineFunc(store, "env", "spawn_entity", func(caller *wasmtime.Caller, typePtr, typeLen int32, x, y, z float64) int32 {
		kind, ok := h.readString(caller, typePtr, typeLen)
		if !ok {
			return -1
		}
		id := h.world.Entities.SpawnEntity(kind, world.Vector3{X: x, Y: y, Z: z})
		return int32(id)
	}); err != nil {
		return err
	}

	return nil
}
