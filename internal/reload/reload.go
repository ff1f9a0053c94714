// Package reload is the module hot-reload host of §6: it watches a
// registered module's backing file for changes, and on a change outside
// an excluded directory, debounces (≥1500 ms since the module's last
// reload), destroys the previous instance, re-instantiates it, and hands
// the new instance the previous instance's state if it wants it. A
// failed reload retries once after a short delay.
//
// There is no directory-watch dependency anywhere in the example corpus
// (no fsnotify or equivalent), and §5 mandates a single-threaded
// cooperative loop with no background goroutines — so Host polls file
// mtimes on an externally-driven tick rather than reaching for an
// inotify-backed library that would need its own goroutine. Grounded on
// internal/scheduler's externally-driven Clock/Drive discipline, applied
// here to mtime polling instead of timer firing.
package reload

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/merusira/rival/internal/scheduler"

	"go.uber.org/zap"
)

// Module is any hot-reloadable instance a Factory produces.
type Module any

// Destroyable modules get their destructor called before being replaced.
type Destroyable interface{ Destroy() }

// Loadable modules can receive their predecessor's handed-off state.
type Loadable interface{ Loaded(prevState any) }

// Stateful modules can hand off state to their successor via State().
type Stateful interface{ State() any }

// Factory constructs a fresh module instance, e.g. by re-reading and
// re-parsing the module's backing file.
type Factory func() (Module, error)

type entry struct {
	path        string
	factory     Factory
	module      Module
	lastModTime time.Time
	lastReload  time.Time
}

// Host is the §6 hot-reload engine.
type Host struct {
	sched      *scheduler.Scheduler
	clock      scheduler.Clock
	log        *zap.Logger
	debounce   time.Duration
	retryDelay time.Duration

	excludeDirs map[string]bool
	entries     map[string]*entry
}

func New(sched *scheduler.Scheduler, clock scheduler.Clock, log *zap.Logger, debounce, retryDelay time.Duration, excludeDirs []string) *Host {
	if clock == nil {
		clock = scheduler.SystemClock{}
	}
	excl := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		excl[d] = true
	}
	return &Host{sched: sched, clock: clock, log: log, debounce: debounce, retryDelay: retryDelay, excludeDirs: excl, entries: make(map[string]*entry)}
}

// IsExcluded reports whether path has any path component matching an
// excluded directory name.
func (h *Host) IsExcluded(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if h.excludeDirs[part] {
			return true
		}
	}
	return false
}

// Register constructs a module from factory and begins watching path for
// changes. Registering the same name twice replaces the prior entry
// without invoking Destroy — callers that need a clean swap should
// Unregister first.
func (h *Host) Register(name, path string, factory Factory) error {
	mod, err := factory()
	if err != nil {
		return err
	}
	modTime := time.Time{}
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}
	h.entries[name] = &entry{path: path, factory: factory, module: mod, lastModTime: modTime}
	return nil
}

// Unregister destroys and drops a registered module.
func (h *Host) Unregister(name string) {
	if e, ok := h.entries[name]; ok {
		if d, ok := e.module.(Destroyable); ok {
			d.Destroy()
		}
		delete(h.entries, name)
	}
}

// Get returns a registered module's current instance, or nil.
func (h *Host) Get(name string) Module {
	if e, ok := h.entries[name]; ok {
		return e.module
	}
	return nil
}

// ForceReload reloads every registered module immediately, ignoring the
// debounce window and the backing file's mtime — the `rival reload` chat
// command's entry point, for requesting a reload that doesn't depend on
// whether a file changed.
func (h *Host) ForceReload(now time.Time) {
	for name, e := range h.entries {
		if h.IsExcluded(e.path) {
			continue
		}
		h.reload(name, e, now)
		if info, err := os.Stat(e.path); err == nil {
			e.lastModTime = info.ModTime()
		}
	}
}

// Poll checks every registered module's backing file for a newer mtime
// and reloads it, subject to the exclusion list and the debounce window.
// It is driven externally (e.g. on every scheduler.Drive tick), per §5's
// cooperative-loop discipline.
func (h *Host) Poll(now time.Time) {
	for name, e := range h.entries {
		if h.IsExcluded(e.path) {
			continue
		}
		info, err := os.Stat(e.path)
		if err != nil {
			continue
		}
		if !info.ModTime().After(e.lastModTime) {
			continue
		}
		e.lastModTime = info.ModTime()
		if now.Sub(e.lastReload) < h.debounce {
			continue
		}
		h.reload(name, e, now)
	}
}

func (h *Host) reload(name string, e *entry, now time.Time) {
	e.lastReload = now

	var prevState any
	if s, ok := e.module.(Stateful); ok {
		prevState = s.State()
	}
	if d, ok := e.module.(Destroyable); ok {
		d.Destroy()
	}

	next, err := e.factory()
	if err != nil {
		if h.log != nil {
			h.log.Warn("module reload failed, retrying once", zap.String("module", name), zap.Error(err))
		}
		h.sched.After(h.retryDelay, func() { h.retryOnce(name, e, prevState) })
		return
	}
	e.module = next
	if l, ok := next.(Loadable); ok {
		l.Loaded(prevState)
	}
}

func (h *Host) retryOnce(name string, e *entry, prevState any) {
	next, err := e.factory()
	if err != nil {
		if h.log != nil {
			h.log.Error("module reload retry failed, keeping previous instance", zap.String("module", name), zap.Error(err))
		}
		return
	}
	e.module = next
	if l, ok := next.(Loadable); ok {
		l.Loaded(prevState)
	}
}
