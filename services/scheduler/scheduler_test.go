package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func TestFiresAfterInterval(t *testing.T) {
	clk := newClock()
	s := New(clk.Now)
	n := 0
	s.Add("poll", 10*time.Second, func() { n++ })

	assert.Equal(t, 0, s.Tick())
	clk.Advance(9 * time.Second)
	assert.Equal(t, 0, s.Tick())
	clk.Advance(time.Second)
	assert.Equal(t, 1, s.Tick())
	assert.Equal(t, 0, s.Tick(), "no second fire in the same instant")
	assert.Equal(t, 1, n)
}

func TestNoCatchUp(t *testing.T) {
	clk := newClock()
	s := New(clk.Now)
	n := 0
	s.Add("poll", time.Second, func() { n++ })
	clk.Advance(10 * time.Second)
	s.Tick()
	s.Tick()
	assert.Equal(t, 1, n)
}

func TestIndependentTasksAndRetarget(t *testing.T) {
	clk := newClock()
	s := New(clk.Now)
	var order []string
	s.Add("poll", 2*time.Second, func() { order = append(order, "poll") })
	s.Add("aux", 5*time.Second, func() { order = append(order, "aux") })

	clk.Advance(2 * time.Second)
	s.Tick()
	assert.True(t, s.SetInterval("poll", 10*time.Second))
	d, ok := s.Interval("poll")
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, d)

	clk.Advance(3 * time.Second) // t=5
	s.Tick()
	clk.Advance(6 * time.Second) // t=11, poll last fired at 2
	s.Tick()
	clk.Advance(1 * time.Second) // t=12
	s.Tick()
	assert.Equal(t, []string{"poll", "aux", "aux", "poll"}, order)
	assert.False(t, s.SetInterval("missing", time.Second))
}

func TestTriggerAndEnable(t *testing.T) {
	clk := newClock()
	s := New(clk.Now)
	n := 0
	s.Add("poll", time.Hour, func() { n++ })
	assert.True(t, s.Trigger("poll"))
	assert.Equal(t, 1, s.Tick())
	assert.Equal(t, 0, s.Tick())

	s.SetEnabled("poll", false)
	clk.Advance(2 * time.Hour)
	s.Trigger("poll")
	assert.Equal(t, 0, s.Tick())
	s.SetEnabled("poll", true)
	assert.Equal(t, 1, s.Tick())
	assert.Equal(t, 2, n)
}

func TestCallbackRunsToCompletionBeforeNext(t *testing.T) {
	clk := newClock()
	s := New(clk.Now)
	var trace []string
	s.Add("a", time.Second, func() {
		trace = append(trace, "a-start")
		// Retargeting from inside a callback applies to the next check only.
		s.SetInterval("b", time.Hour)
		trace = append(trace, "a-end")
	})
	s.Add("b", time.Second, func() { trace = append(trace, "b") })
	clk.Advance(time.Second)
	s.Tick()
	assert.Equal(t, []string{"a-start", "a-end"}, trace)
}
