// Package scheduler runs named periodic tasks cooperatively.
//
// There is no background goroutine: the owner calls Tick from its run loop and
// due callbacks run synchronously, one after another. A task that was overdue
// by several intervals fires once.
package scheduler

import (
	"time"

	"sensornode-go/x/timex"
)

type task struct {
	name    string
	every   time.Duration
	last    time.Time
	fn      func()
	enabled bool
	pending bool // fire on the next Tick regardless of the interval
}

// Scheduler holds the task table. Not safe for concurrent use.
type Scheduler struct {
	tasks []*task
	clock timex.Clock
}

func New(clock timex.Clock) *Scheduler {
	return &Scheduler{clock: clock.Or()}
}

// Add inserts or replaces a task. The first fire is one interval from now.
func (s *Scheduler) Add(name string, every time.Duration, fn func()) {
	if t := s.find(name); t != nil {
		t.every, t.fn, t.last, t.enabled = every, fn, s.clock(), true
		return
	}
	s.tasks = append(s.tasks, &task{
		name:    name,
		every:   every,
		last:    s.clock(),
		fn:      fn,
		enabled: true,
	})
}

// SetInterval changes a task's period. It takes effect at the next elapsed
// check, measured from the last fire.
func (s *Scheduler) SetInterval(name string, every time.Duration) bool {
	t := s.find(name)
	if t == nil {
		return false
	}
	t.every = every
	return true
}

// Interval reports a task's current period.
func (s *Scheduler) Interval(name string) (time.Duration, bool) {
	t := s.find(name)
	if t == nil {
		return 0, false
	}
	return t.every, true
}

// SetEnabled gates a task without forgetting its schedule.
func (s *Scheduler) SetEnabled(name string, on bool) bool {
	t := s.find(name)
	if t == nil {
		return false
	}
	t.enabled = on
	return true
}

// Trigger makes a task due on the next Tick.
func (s *Scheduler) Trigger(name string) bool {
	t := s.find(name)
	if t == nil {
		return false
	}
	t.pending = true
	return true
}

// Tick fires every enabled task whose interval has elapsed, in insertion
// order, and returns how many ran.
func (s *Scheduler) Tick() int {
	fired := 0
	for _, t := range s.tasks {
		if !t.enabled || t.fn == nil {
			continue
		}
		now := s.clock()
		if !t.pending && (t.every <= 0 || now.Sub(t.last) < t.every) {
			continue
		}
		t.pending = false
		t.last = now
		t.fn()
		fired++
	}
	return fired
}

func (s *Scheduler) find(name string) *task {
	for _, t := range s.tasks {
		if t.name == name {
			return t
		}
	}
	return nil
}
