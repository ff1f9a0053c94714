package reload

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/merusira/rival/internal/scheduler"

	"go.uber.org/zap"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type recordingModule struct {
	destroyed  bool
	loadedWith any
	state      string
}

func (m *recordingModule) Destroy()          { m.destroyed = true }
func (m *recordingModule) Loaded(prev any)   { m.loadedWith = prev }
func (m *recordingModule) State() any        { return m.state }

func touch(t *testing.T, path string, content string, modTime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestPollReloadsOnNewerMtimeAndHandsOffState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rule.lua")
	base := time.Unix(1000, 0)
	touch(t, path, "v1", base)

	clk := &fakeClock{now: base}
	sched := scheduler.New(clk, zap.NewNop())
	h := New(sched, clk, zap.NewNop(), 1500*time.Millisecond, 100*time.Millisecond, []string{"excluded"})

	calls := 0
	factory := func() (Module, error) {
		calls++
		return &recordingModule{state: "seeded"}, nil
	}
	if err := h.Register("rule", path, factory); err != nil {
		t.Fatalf("Register: %v", err)
	}

	first := h.Get("rule").(*recordingModule)

	later := base.Add(2 * time.Second)
	touch(t, path, "v2", later)
	h.Poll(later)

	if !first.destroyed {
		t.Fatal("expected the previous instance to be destroyed on reload")
	}
	second := h.Get("rule").(*recordingModule)
	if second == first {
		t.Fatal("expected a new instance after reload")
	}
	if second.loadedWith != "seeded" {
		t.Fatalf("expected new instance to receive previous state, got %v", second.loadedWith)
	}
	if calls != 2 {
		t.Fatalf("expected factory called twice (initial + reload), got %d", calls)
	}
}

func TestPollSkipsWithinDebounceWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rule.lua")
	base := time.Unix(1000, 0)
	touch(t, path, "v1", base)

	clk := &fakeClock{now: base}
	sched := scheduler.New(clk, zap.NewNop())
	h := New(sched, clk, zap.NewNop(), 1500*time.Millisecond, 100*time.Millisecond, nil)

	calls := 0
	factory := func() (Module, error) { calls++; return &recordingModule{}, nil }
	h.Register("rule", path, factory)

	soon := base.Add(500 * time.Millisecond)
	touch(t, path, "v2", soon)
	h.Poll(soon)

	if calls != 1 {
		t.Fatalf("expected reload to be skipped inside the debounce window, got %d calls", calls)
	}
}

func TestPollSkipsExcludedDirectories(t *testing.T) {
	dir := t.TempDir()
	excludedDir := filepath.Join(dir, "excluded")
	os.MkdirAll(excludedDir, 0o755)
	path := filepath.Join(excludedDir, "rule.lua")
	base := time.Unix(1000, 0)
	touch(t, path, "v1", base)

	clk := &fakeClock{now: base}
	sched := scheduler.New(clk, zap.NewNop())
	h := New(sched, clk, zap.NewNop(), 1500*time.Millisecond, 100*time.Millisecond, []string{"excluded"})

	calls := 0
	factory := func() (Module, error) { calls++; return &recordingModule{}, nil }
	h.Register("rule", path, factory)

	later := base.Add(2 * time.Second)
	touch(t, path, "v2", later)
	h.Poll(later)

	if calls != 1 {
		t.Fatalf("expected excluded-directory file to never trigger a reload, got %d calls", calls)
	}
}

func TestReloadRetriesOnceAfterFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rule.lua")
	base := time.Unix(1000, 0)
	touch(t, path, "v1", base)

	clk := &fakeClock{now: base}
	sched := scheduler.New(clk, zap.NewNop())
	h := New(sched, clk, zap.NewNop(), 1500*time.Millisecond, 100*time.Millisecond, nil)

	attempt := 0
	factory := func() (Module, error) {
		attempt++
		if attempt == 2 {
			return nil, errors.New("parse error")
		}
		return &recordingModule{}, nil
	}
	h.Register("rule", path, factory)

	later := base.Add(2 * time.Second)
	touch(t, path, "v2", later)
	h.Poll(later)

	retryAt := later.Add(100 * time.Millisecond)
	sched.Drive(retryAt)

	if attempt != 3 {
		t.Fatalf("expected initial + failed reload + one retry = 3 factory calls, got %d", attempt)
	}
}

func TestForceReloadIgnoresDebounceAndUnchangedMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rule.lua")
	base := time.Unix(1000, 0)
	touch(t, path, "v1", base)

	clk := &fakeClock{now: base}
	sched := scheduler.New(clk, zap.NewNop())
	h := New(sched, clk, zap.NewNop(), 1500*time.Millisecond, 100*time.Millisecond, nil)

	calls := 0
	factory := func() (Module, error) { calls++; return &recordingModule{}, nil }
	h.Register("rule", path, factory)

	soon := base.Add(10 * time.Millisecond)
	h.ForceReload(soon)

	if calls != 2 {
		t.Fatalf("expected initial + forced reload = 2 factory calls even within the debounce window, got %d", calls)
	}
}
