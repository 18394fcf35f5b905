package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Hook name prefixes for ability scripts. The ability ID is appended.
const (
	CanActivatePrefix = "can_activate_"
	OnActivatePrefix  = "on_activate_"
)

// Callbacks expose game state to scripts. A nil callback makes the matching
// engine.* function return nil.
type Callbacks struct {
	Attribute func(characterID, name string) (float64, bool)
	Roll      func(expr string) (int, error)
}

// Host owns one sandboxed VM holding every loaded ability script.
//
// Host is safe for concurrent use; calls are serialized on the VM.
type Host struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	cb     Callbacks
	logger *zap.Logger
}

// NewHost returns a Host with the engine.* module registered and no scripts loaded.
//
// Precondition: logger is non-nil; limit <= 0 selects DefaultInstructionLimit.
func NewHost(cb Callbacks, limit int, logger *zap.Logger) *Host {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	h := &Host{L: NewSandboxedState(), limit: limit, cb: cb, logger: logger.Named("scripting")}
	h.registerEngine()
	return h
}

// LoadDirectory executes every *.lua file in dir in lexical order.
func (h *Host) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, path := range files {
		if err := h.withBudget(func() error { return h.L.DoFile(path) }); err != nil {
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	h.logger.Debug("scripts loaded", zap.String("dir", dir), zap.Int("files", len(files)))
	return nil
}

// LoadString executes src, typically inline script content.
func (h *Host) LoadString(src string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.withBudget(func() error { return h.L.DoString(src) }); err != nil {
		return fmt.Errorf("scripting: loading inline script: %w", err)
	}
	return nil
}

// Call invokes the global function hook with string arguments.
//
// Postcondition: defined is false when no such function exists. Runtime errors
// (including an exhausted instruction budget) are logged at Warn and reported
// as an undefined result.
func (h *Host) Call(hook string, args ...string) (ret lua.LValue, defined bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn := h.L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, false
	}
	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = lua.LString(a)
	}
	err := h.withBudget(func() error {
		return h.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...)
	})
	if err != nil {
		h.logger.Warn("script hook failed", zap.String("hook", hook), zap.Error(err))
		return lua.LNil, false
	}
	ret = h.L.Get(-1)
	h.L.Pop(1)
	return ret, true
}

// CanActivate runs can_activate_<abilityID>(characterID).
//
// Postcondition: true when the hook is absent or returns a truthy value.
func (h *Host) CanActivate(abilityID, characterID string) bool {
	ret, defined := h.Call(CanActivatePrefix+abilityID, characterID)
	if !defined {
		return true
	}
	return lua.LVAsBool(ret)
}

// OnActivate runs on_activate_<abilityID>(characterID, targetID) if defined.
func (h *Host) OnActivate(abilityID, characterID, targetID string) {
	h.Call(OnActivatePrefix+abilityID, characterID, targetID)
}

// Close releases the VM.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.L.Close()
}

func (h *Host) withBudget(run func() error) error {
	b := newBudget(h.limit)
	h.L.SetContext(b)
	defer func() {
		h.L.RemoveContext()
		b.cancel()
	}()
	return run()
}

func (h *Host) registerEngine() {
	engine := h.L.NewTable()
	h.L.SetFuncs(engine, map[string]lua.LGFunction{
		"attribute": h.luaAttribute,
		"roll":      h.luaRoll,
		"log":       h.luaLog,
	})
	h.L.SetGlobal("engine", engine)
}

// engine.attribute(character_id, name) -> number | nil
func (h *Host) luaAttribute(L *lua.LState) int {
	if h.cb.Attribute == nil {
		L.Push(lua.LNil)
		return 1
	}
	v, ok := h.cb.Attribute(L.CheckString(1), L.CheckString(2))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(v))
	return 1
}

// engine.roll(expr) -> number | nil
func (h *Host) luaRoll(L *lua.LState) int {
	expr := L.CheckString(1)
	if h.cb.Roll == nil {
		L.Push(lua.LNil)
		return 1
	}
	total, err := h.cb.Roll(expr)
	if err != nil {
		L.RaiseError("engine.roll(%q): %s", expr, err.Error())
		return 0
	}
	L.Push(lua.LNumber(total))
	return 1
}

// engine.log(msg)
func (h *Host) luaLog(L *lua.LState) int {
	h.logger.Info("script", zap.String("message", L.CheckString(1)))
	return 0
}
