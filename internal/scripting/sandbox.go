// Package scripting runs the Lua hooks that content authors attach to abilities.
// It has no dependency on game packages; game state reaches scripts only through
// the callbacks injected into Host.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit bounds the opcodes a single hook call may execute.
const DefaultInstructionLimit = 100_000

// budgetContext cancels itself once Done has been polled limit times. The Lua VM
// polls Done once per opcode, so this is an exact per-call instruction budget.
type budgetContext struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
}

func (b *budgetContext) Done() <-chan struct{} {
	if b.left.Add(-1) < 0 {
		b.cancel()
	}
	return b.Context.Done()
}

func newBudget(limit int) *budgetContext {
	ctx, cancel := context.WithCancel(context.Background())
	b := &budgetContext{Context: ctx, cancel: cancel}
	b.left.Store(int64(limit))
	return b
}

// NewSandboxedState returns a VM with only the base, table, string and math
// libraries and without the globals that reach the filesystem or the loader.
//
// Postcondition: the caller owns the state and must Close it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
