package gatesched

import "sync"

// Signal communicates cancellation to a Scheduler: a per-task or
// controller-wide Signal whose Aborted() becomes true causes queued
// (not yet running) tasks to be discarded at dispatch time. There is no
// push notification; the Scheduler only ever polls Aborted(), at the
// moment it considers admitting the next waiter.
type Signal struct {
	mu      sync.RWMutex
	aborted bool
	reason  any
}

// Aborted reports whether the signal has been aborted. A nil *Signal is
// the default "never aborted" controller-wide signal.
func (s *Signal) Aborted() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aborted
}

// Reason returns the abort reason, or nil if not aborted.
func (s *Signal) Reason() any {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

func (s *Signal) abort(reason any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return
	}
	s.aborted = true
	s.reason = reason
}

// AbortController creates and owns a Signal, allowing cancellation of
// whatever Scheduler submissions were given its Signal().
type AbortController struct {
	signal *Signal
}

// NewAbortController creates a controller with a fresh, unaborted Signal.
func NewAbortController() *AbortController {
	return &AbortController{signal: &Signal{}}
}

// Signal returns the controller's Signal, suitable for Scheduler's
// controller-wide or per-task signal option.
func (c *AbortController) Signal() *Signal { return c.signal }

// Abort marks the controller's signal as aborted with the given reason.
// Subsequent calls are no-ops; the original reason is retained.
func (c *AbortController) Abort(reason any) {
	if reason == nil {
		reason = "aborted"
	}
	c.signal.abort(reason)
}
