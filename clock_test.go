package gatesched

import (
	"sort"
	"sync"
	"time"
)

// fakeTimer is a timer under a fakeClock's manual control.
type fakeTimer struct {
	c        *fakeClock
	at       time.Time
	f        func()
	fired    bool
	stopped  bool
	sequence int
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock is an injectable clock driven entirely by Advance, so tests
// never sleep on the wall clock to exercise timeout behavior.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	counter int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f, sequence: c.counter}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the fake clock forward by d, firing (in timer-deadline
// order, ties broken by registration order) every timer due at or before
// the new time. Firing happens with the clock's mutex released, so a
// fired callback may itself register new timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.now = target
	due := make([]*fakeTimer, 0)
	remaining := c.timers[:0:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(target) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].sequence < due[j].sequence
		}
		return due[i].at.Before(due[j].at)
	})

	for _, t := range due {
		c.mu.Lock()
		t.fired = true
		c.mu.Unlock()
		t.f()
	}
}
