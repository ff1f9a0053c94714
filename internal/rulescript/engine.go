// Package rulescript is a single gopher-lua VM exposing hooks for
// user-authored Lua predicates: lockon admission rules, anti-desync
// back-correction formulas, and skill-chain overrides. Rule files live
// in one flat directory and are loaded at construction; internal/reload
// watches that directory and reconstructs the Engine wholesale on
// change, since a Lua VM has no notion of unloading a single function.
//
// Grounded on internal/scripting/engine.go: same single-VM,
// load-a-directory-of-.lua-files, pack-a-context-table-and-call-by-name
// shape, with the teacher's damage-formula call sites replaced by this
// module's rule predicates. Single-goroutine access only, matching the
// teacher's own doc comment on this pattern.
package rulescript

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM loaded from one rules directory.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
	dir string
}

// NewEngine creates a Lua engine and loads every .lua file in rulesDir.
// A missing directory is not an error — it simply means no rule
// predicates are defined yet, and every Eval* call falls back to its
// documented default.
func NewEngine(rulesDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log, dir: rulesDir}
	if err := e.loadDir(rulesDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("rulescript: load rules: %w", err)
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		if e.log != nil {
			e.log.Debug("loaded lua rule", zap.String("file", path))
		}
	}
	return nil
}

// Destroy closes the underlying VM, implementing internal/reload's
// Destroyable interface.
func (e *Engine) Destroy() { e.vm.Close() }

func (e *Engine) warn(fn string, err error) {
	if e.log != nil {
		e.log.Error("lua rule error", zap.String("fn", fn), zap.Error(err))
	}
}

// LockonContext is handed to a user-authored lockon_admit(ctx) predicate,
// letting rule authors override or extend §4.10's built-in admission
// predicates.
type LockonContext struct {
	Kind       string
	Relation   string
	PvPFlagged bool
	IsSelf     bool
}

// EvalLockonAdmit calls lockon_admit if defined. ok reports whether the
// function exists and ran without error; callers should fall back to the
// built-in predicate table when ok is false.
func (e *Engine) EvalLockonAdmit(ctx LockonContext) (admit bool, ok bool) {
	fn := e.vm.GetGlobal("lockon_admit")
	if fn == lua.LNil {
		return false, false
	}
	t := e.vm.NewTable()
	t.RawSetString("kind", lua.LString(ctx.Kind))
	t.RawSetString("relation", lua.LString(ctx.Relation))
	t.RawSetString("pvp_flagged", lua.LBool(ctx.PvPFlagged))
	t.RawSetString("is_self", lua.LBool(ctx.IsSelf))

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, t); err != nil {
		e.warn("lockon_admit", err)
		return false, false
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return result == lua.LTrue, true
}

// DesyncBackCorrection calls desync_back_correction(dist) if defined,
// returning dist unchanged otherwise — the default §4.9 back-correction
// is a plain constant, this hook lets it become a curve.
func (e *Engine) DesyncBackCorrection(dist float64) float64 {
	fn := e.vm.GetGlobal("desync_back_correction")
	if fn == lua.LNil {
		return dist
	}
	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LNumber(dist)); err != nil {
		e.warn("desync_back_correction", err)
		return dist
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return float64(lua.LVAsNumber(result))
}

// ChainOverrideContext is handed to a user-authored chain_override(ctx)
// predicate that may redirect §4.7's chain-continuation decision.
type ChainOverrideContext struct {
	FromSkill   int32
	ToSkill     int32
	CurrentType string
	Press       bool
}

// EvalChainOverride calls chain_override if defined. overridden reports
// whether the function exists and ran without error; when false, the
// built-in chain table's decision stands unchanged.
func (e *Engine) EvalChainOverride(ctx ChainOverrideContext) (permit bool, overridden bool) {
	fn := e.vm.GetGlobal("chain_override")
	if fn == lua.LNil {
		return false, false
	}
	t := e.vm.NewTable()
	t.RawSetString("from_skill", lua.LNumber(ctx.FromSkill))
	t.RawSetString("to_skill", lua.LNumber(ctx.ToSkill))
	t.RawSetString("current_type", lua.LString(ctx.CurrentType))
	t.RawSetString("press", lua.LBool(ctx.Press))

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, t); err != nil {
		e.warn("chain_override", err)
		return false, false
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return result == lua.LTrue, true
}
