package gatesched

import "time"

// clock abstracts time.Now/time.AfterFunc so tests can inject a fake
// timeline instead of sleeping on the wall clock. An interface rather
// than package-level vars, since Gate/Scheduler instances run concurrently
// within a single test binary and a shared var would leak one test's fake
// timeline into another's.
type clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) timer
}

// timer is the subset of *time.Timer a Gate/Scheduler needs: cancellation.
type timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

var defaultClock clock = realClock{}
