package scheduler

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestDriveOrdersByGoalTimeThenInsertion(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	s := New(clk, zap.NewNop())

	var order []int
	s.After(10*time.Millisecond, func() { order = append(order, 1) })
	s.After(10*time.Millisecond, func() { order = append(order, 2) }) // same goal time, later insertion
	s.After(5*time.Millisecond, func() { order = append(order, 0) })

	clk.now = clk.now.Add(10 * time.Millisecond)
	fired := s.Drive(clk.now)

	if fired != 3 {
		t.Fatalf("expected 3 fired, got %d", fired)
	}
	want := []int{0, 1, 2}
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("order[%d] = %d, want %d (full: %v)", i, order[i], v, order)
		}
	}
}

func TestClearIsIdempotentAndPreventsFire(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	s := New(clk, zap.NewNop())

	fired := false
	h := s.After(5*time.Millisecond, func() { fired = true })
	h.Clear()
	h.Clear() // must not panic or double-remove

	clk.now = clk.now.Add(time.Second)
	s.Drive(clk.now)

	if fired {
		t.Fatal("cleared timer fired")
	}
}

func TestDelayClampedToMax(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	s := New(clk, zap.NewNop())

	h := s.After(time.Duration(MaxDelayMs+1000)*time.Millisecond, func() {})
	wantGoal := clk.now.Add(time.Duration(MaxDelayMs) * time.Millisecond)
	if !h.GoalTime().Equal(wantGoal) {
		t.Fatalf("goal time = %v, want %v (clamped)", h.GoalTime(), wantGoal)
	}
}

func TestDrivePartialFiresOnlyDueTimers(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	s := New(clk, zap.NewNop())

	s.After(5*time.Millisecond, func() {})
	s.After(50*time.Millisecond, func() {})

	clk.now = clk.now.Add(10 * time.Millisecond)
	fired := s.Drive(clk.now)
	if fired != 1 {
		t.Fatalf("expected 1 fired, got %d", fired)
	}
	if s.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", s.Pending())
	}
}

func TestCallbackSchedulingNewTimerDoesNotDeadlock(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	s := New(clk, zap.NewNop())

	var chained bool
	s.After(1*time.Millisecond, func() {
		s.After(1*time.Millisecond, func() { chained = true })
	})

	clk.now = clk.now.Add(time.Millisecond)
	s.Drive(clk.now)
	if chained {
		t.Fatal("chained timer should not fire within the same now")
	}
	clk.now = clk.now.Add(time.Millisecond)
	s.Drive(clk.now)
	if !chained {
		t.Fatal("chained timer should fire once its own goal time passes")
	}
}
