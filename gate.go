package gatesched

import (
	"sync"
)

// ReleaseToken is a one-shot, idempotent handle returned by a successful
// acquisition. Invoking it more than once is a no-op.
type ReleaseToken func()

// AcquiredPermit is the payload of a lock-acquired event, and is carried
// as the Permit field of a lock-released event's payload. It carries no exported mutable state; it exists purely as an identity for
// event listeners and release-timeout handlers.
type AcquiredPermit struct {
	id uint64
}

// ID returns a value unique among permits concurrently held by the same
// Gate, for correlating lock-acquired and lock-released events.
func (p *AcquiredPermit) ID() uint64 { return p.id }

type waitingPermit struct {
	id     uint64
	future *Future[ReleaseToken]
}

// Gate is a counting lock: up to Concurrency permits may be held at once,
// with excess acquirers queued per QueueType. It is the admission
// primitive Scheduler is built on, and is equally usable standalone as a
// mutex (Concurrency 1) or semaphore (Concurrency N).
//
// All Gate state transitions are serialized behind a single mutex, the
// same cooperative single-critical-section model an event loop uses for
// its own state; event emission happens after the mutex is released, so
// listeners may safely call back into the Gate (e.g. Acquire again from
// within a lock-released handler) without deadlocking.
type Gate struct {
	mu       sync.Mutex
	cfg      gateConfig
	events   *EventTarget
	logger   Logger
	clock    clock
	acquired map[uint64]*AcquiredPermit
	waiting  *waitQueue[*waitingPermit]
	timers   map[uint64]timer
	nextID   uint64
}

// NewGate constructs a Gate. Invalid option values are sanitized to
// defaults rather than causing an error or panic: a Gate must never
// refuse to start due to a configuration mistake.
func NewGate(opts ...GateOption) *Gate {
	return &Gate{
		cfg:      resolveGateConfig(opts),
		events:   NewEventTarget(),
		logger:   NewNoopLogger(),
		clock:    defaultClock,
		acquired: make(map[uint64]*AcquiredPermit),
		waiting:  newWaitQueue[*waitingPermit](),
		nextID:   1,
	}
}

// SetLogger installs a structured logger for this Gate's lifecycle events.
func (g *Gate) SetLogger(l Logger) {
	if l == nil {
		l = NewNoopLogger()
	}
	g.mu.Lock()
	g.logger = l
	g.mu.Unlock()
}

// On registers an event listener. See the EventX constants for the Gate
// event taxonomy.
func (g *Gate) On(eventType string, listener ListenerFunc) ListenerID {
	return g.events.On(eventType, listener)
}

// Off removes a previously registered listener.
func (g *Gate) Off(eventType string, id ListenerID) bool {
	return g.events.Off(eventType, id)
}

// IsAvailable reports whether at least one permit is currently free.
func (g *Gate) IsAvailable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isAvailableLocked()
}

func (g *Gate) isAvailableLocked() bool {
	return len(g.acquired) < g.cfg.concurrency
}

// Acquire registers a waiter and triggers dispatch, returning a Future
// that completes once the waiter is promoted to an AcquiredPermit. Acquire
// never fails and cannot be canceled once registered — a caller that stops
// waiting via ctx still eventually gets promoted and must release the
// permit it's handed, or it will hold a slot forever.
func (g *Gate) Acquire() *Future[ReleaseToken] {
	future := newFuture[ReleaseToken]()

	g.mu.Lock()
	g.nextID++
	wp := &waitingPermit{id: g.nextID, future: future}
	g.waiting.pushBack(wp)
	g.mu.Unlock()

	g.dispatchNext()
	return future
}

// TryAcquire attempts an immediate, non-queuing acquisition. It succeeds
// only if a permit is free AND the waiting queue is empty — it refuses to
// barge ahead of already-queued waiters even though a free slot exists.
// On success it returns the release token and true; otherwise (nil, false).
func (g *Gate) TryAcquire() (ReleaseToken, bool) {
	g.mu.Lock()
	if !g.isAvailableLocked() || g.waiting.Len() != 0 {
		g.mu.Unlock()
		return nil, false
	}
	permit := g.admitLocked()
	g.mu.Unlock()

	g.events.emit(NewEvent(EventLockAcquired, permit))
	return g.makeReleaseToken(permit), true
}

// ReleaseAcquired forces every currently acquired permit to release,
// snapshotting the acquired set first to avoid iterator invalidation as
// releases mutate it. Waiters are not discarded; they are promoted as
// slots free up.
func (g *Gate) ReleaseAcquired() {
	g.mu.Lock()
	permits := make([]*AcquiredPermit, 0, len(g.acquired))
	for _, p := range g.acquired {
		permits = append(permits, p)
	}
	g.mu.Unlock()

	for _, p := range permits {
		g.release(p, false)
	}
}

func (g *Gate) admitLocked() *AcquiredPermit {
	g.nextID++
	permit := &AcquiredPermit{id: g.nextID}
	g.acquired[permit.id] = permit

	if g.cfg.releaseTimeout > 0 {
		if g.timers == nil {
			g.timers = make(map[uint64]timer)
		}
		g.timers[permit.id] = g.clock.AfterFunc(g.cfg.releaseTimeout, func() {
			g.handleReleaseTimeout(permit)
		})
	}
	return permit
}

func (g *Gate) handleReleaseTimeout(permit *AcquiredPermit) {
	g.mu.Lock()
	_, stillAcquired := g.acquired[permit.id]
	g.mu.Unlock()
	if !stillAcquired {
		return // already released via the normal path; timer fire is stale
	}

	if g.cfg.releaseTimeoutHandler != nil {
		if err := guardHandler(func() error { return g.cfg.releaseTimeoutHandler(permit) }); err != nil {
			logWarn(g.logger, "gate", "release timeout handler failed", err, map[string]any{"permit": permit.id})
			g.events.emit(NewEvent(EventError, &ErrorEventDetail{Code: ErrReleaseTimeoutHandlerFailure, Error: err}))
		}
	}

	g.release(permit, true)
}

// release is the single path by which an AcquiredPermit returns to the
// pool, whether invoked via its ReleaseToken, via a release-timeout fire,
// or via ReleaseAcquired. It is idempotent.
func (g *Gate) release(permit *AcquiredPermit, timeoutReached bool) {
	g.mu.Lock()
	if _, ok := g.acquired[permit.id]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.acquired, permit.id)
	if t, ok := g.timers[permit.id]; ok {
		t.Stop()
		delete(g.timers, permit.id)
	}
	g.mu.Unlock()

	g.events.emit(NewEvent(EventLockReleased, lockReleasedDetail{Permit: permit, TimeoutReached: timeoutReached}))
	g.dispatchNext()
}

// lockReleasedDetail is the Detail payload of a lock-released Event.
type lockReleasedDetail struct {
	Permit         *AcquiredPermit
	TimeoutReached bool
}

func (g *Gate) makeReleaseToken(permit *AcquiredPermit) ReleaseToken {
	return func() { g.release(permit, false) }
}

// ChangeConcurrentLimit adjusts the number of permits live. Invalid values
// (non-positive) are ignored, leaving the current limit unchanged. Raising
// the limit immediately dispatches newly-admissible waiters; lowering it
// never evicts an already-acquired permit.
func (g *Gate) ChangeConcurrentLimit(n int) {
	g.mu.Lock()
	g.cfg.concurrency = sanitizeNewLimit(g.cfg.concurrency, n)
	g.mu.Unlock()
	g.dispatchNext()
}

// dispatchNext admits as many waiters as available permits allow, per
// QueueType. It loops rather than recursing so a long run of
// releases/admits can't grow the call stack.
func (g *Gate) dispatchNext() {
	for {
		g.mu.Lock()
		if !g.isAvailableLocked() || g.waiting.Len() == 0 {
			g.mu.Unlock()
			return
		}
		wp, _ := g.waiting.pop(g.cfg.queueType)
		permit := g.admitLocked()
		logger := g.logger
		g.mu.Unlock()

		logDebug(logger, "gate", "permit admitted", map[string]any{"permit": permit.id, "waiter": wp.id})
		wp.future.resolve(Settled[ReleaseToken]{Fulfilled: true, Value: g.makeReleaseToken(permit)})
		g.events.emit(NewEvent(EventLockAcquired, permit))
	}
}
