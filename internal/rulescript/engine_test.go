package rulescript

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write rule: %v", err)
	}
}

func TestNewEngineLoadsMissingDirectoryWithoutError(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "does-not-exist"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Destroy()
}

func TestEvalLockonAdmitReturnsFalseWhenUndefined(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Destroy()

	admit, ok := e.EvalLockonAdmit(LockonContext{Kind: "enemy"})
	if ok {
		t.Fatal("expected ok=false when lockon_admit is undefined")
	}
	if admit {
		t.Fatal("expected admit=false fallback")
	}
}

func TestEvalLockonAdmitCallsUserRule(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "lockon.lua", `
function lockon_admit(ctx)
  return ctx.relation == "enemy" and not ctx.is_self
end
`)
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Destroy()

	admit, ok := e.EvalLockonAdmit(LockonContext{Relation: "enemy", IsSelf: false})
	if !ok {
		t.Fatal("expected ok=true")
	}
	if !admit {
		t.Fatal("expected admit=true for enemy target")
	}

	admit, ok = e.EvalLockonAdmit(LockonContext{Relation: "party", IsSelf: false})
	if !ok || admit {
		t.Fatalf("expected admit=false for party target, got admit=%v ok=%v", admit, ok)
	}
}

func TestDesyncBackCorrectionFallsBackWhenUndefined(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Destroy()

	got := e.DesyncBackCorrection(12.5)
	if got != 12.5 {
		t.Fatalf("expected passthrough 12.5, got %v", got)
	}
}

func TestDesyncBackCorrectionAppliesUserCurve(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "desync.lua", `
function desync_back_correction(dist)
  return dist * 0.5
end
`)
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Destroy()

	got := e.DesyncBackCorrection(10)
	if got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
}

func TestEvalChainOverrideReturnsNotOverriddenWhenUndefined(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Destroy()

	permit, overridden := e.EvalChainOverride(ChainOverrideContext{FromSkill: 1, ToSkill: 2})
	if overridden {
		t.Fatal("expected overridden=false when chain_override is undefined")
	}
	if permit {
		t.Fatal("expected permit=false fallback")
	}
}

func TestEvalChainOverrideCallsUserRule(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "chain.lua", `
function chain_override(ctx)
  return ctx.from_skill == 100 and ctx.to_skill == 200 and ctx.press
end
`)
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Destroy()

	permit, overridden := e.EvalChainOverride(ChainOverrideContext{FromSkill: 100, ToSkill: 200, Press: true})
	if !overridden {
		t.Fatal("expected overridden=true")
	}
	if !permit {
		t.Fatal("expected permit=true")
	}
}

func TestNewEngineErrorsOnSyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "broken.lua", `this is not lua`)

	if _, err := NewEngine(dir, zap.NewNop()); err == nil {
		t.Fatal("expected an error for an invalid Lua file")
	}
}
