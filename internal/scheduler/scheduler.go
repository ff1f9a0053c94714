// Package scheduler implements the cancellable-timer handle abstraction
// required by §5: scheduled actions return a handle with
// {cleared, goal_time, timer_handle, on_timeout}; clear() is idempotent;
// timers fire in strict goal-time order with insertion-order tiebreaks;
// delays beyond 2^31-1 ms are clamped and logged once.
//
// Grounded on the teacher's internal/core/system.Runner: that type
// enforces a single-threaded, stably-ordered execution sequence over a
// slice of registered systems sorted by phase. Scheduler generalizes the
// same "stable sort, single owner, no parallelism" discipline to
// one-shot timers sorted by goal time instead of systems sorted by phase.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MaxDelayMs is 2^31-1, the clamp ceiling mandated by §5's overflow
// protection rule.
const MaxDelayMs int64 = 1<<31 - 1

// Clock abstracts wall-clock time so tests can control it deterministically,
// matching the teacher's practice of passing time.Duration into Update
// rather than reading the clock inside systems.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Handle is returned by Scheduler.After. Clear detaches the timer; a
// timer firing after Clear is a no-op, and double-Clear is itself a no-op.
type Handle struct {
	s        *Scheduler
	id       uint64
	cleared  bool
	goalTime time.Time
	seq      uint64
	fn       func()
}

// Clear marks the handle cleared. Idempotent.
func (h *Handle) Clear() {
	if h == nil || h.cleared {
		return
	}
	h.cleared = true
	h.s.remove(h.id)
}

// Cleared reports whether Clear has been called.
func (h *Handle) Cleared() bool { return h.cleared }

// GoalTime returns the time the handle's callback is scheduled to fire.
func (h *Handle) GoalTime() time.Time { return h.goalTime }

type timerItem struct {
	id       uint64
	goalTime time.Time
	seq      uint64
	handle   *Handle
	index    int
}

type timerHeap []*timerItem

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].goalTime.Equal(h[j].goalTime) {
		return h[i].seq < h[j].seq
	}
	return h[i].goalTime.Before(h[j].goalTime)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	item := x.(*timerItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Scheduler is a single-threaded cooperative timer wheel: all scheduling,
// cancellation, and firing happens from calls made on the owning event
// loop goroutine. It holds no internal goroutines of its own; Drive must
// be pumped externally (by the host's I/O loop in production, or directly
// by tests).
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	log     *zap.Logger
	items   timerHeap
	byID    map[uint64]*timerItem
	nextID  uint64
	nextSeq uint64
}

func New(clock Clock, log *zap.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		clock: clock,
		log:   log,
		byID:  make(map[uint64]*timerItem),
	}
}

// After schedules fn to run after delay, clamping delay to MaxDelayMs and
// logging once per clamped occurrence (§5 overflow protection). Returns a
// Handle whose Clear detaches the timer before it fires.
func (s *Scheduler) After(delay time.Duration, fn func()) *Handle {
	ms := delay.Milliseconds()
	if ms > MaxDelayMs {
		s.log.Warn("scheduler: delay clamped to max", zap.Int64("requested_ms", ms), zap.Int64("clamped_ms", MaxDelayMs))
		ms = MaxDelayMs
	}
	if ms < 0 {
		ms = 0
	}
	return s.at(s.clock.Now().Add(time.Duration(ms)*time.Millisecond), fn)
}

func (s *Scheduler) at(goal time.Time, fn func()) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.nextSeq++
	id := s.nextID
	h := &Handle{s: s, id: id, goalTime: goal, seq: s.nextSeq, fn: fn}
	item := &timerItem{id: id, goalTime: goal, seq: h.seq, handle: h}
	heap.Push(&s.items, item)
	s.byID[id] = item
	return h
}

func (s *Scheduler) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	if item.index >= 0 {
		heap.Remove(&s.items, item.index)
	}
}

// Pending returns the number of timers still scheduled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Drive fires every timer whose goal time is <= now, in strict goal-time
// order with insertion-order tiebreaks, and returns the number fired. It
// is safe for a fired callback to schedule new timers; those fire within
// the same Drive call only if their goal time is also <= now, in goal-time
// order with the rest, since each iteration re-reads the heap root.
func (s *Scheduler) Drive(now time.Time) int {
	fired := 0
	for {
		s.mu.Lock()
		if len(s.items) == 0 {
			s.mu.Unlock()
			return fired
		}
		top := s.items[0]
		if top.goalTime.After(now) {
			s.mu.Unlock()
			return fired
		}
		heap.Pop(&s.items)
		delete(s.byID, top.id)
		s.mu.Unlock()

		if !top.handle.cleared {
			top.handle.cleared = true
			top.handle.fn()
			fired++
		}
	}
}

// NextGoal returns the earliest pending goal time, and false if nothing is
// scheduled — used by hosts driven by an external poll loop to size their
// sleep/select timeout.
func (s *Scheduler) NextGoal() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return time.Time{}, false
	}
	return s.items[0].goalTime, true
}
