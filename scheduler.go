package gatesched

import (
	"context"
	"fmt"
	"sync"
)

// entryState tracks a TaskEntry's position in the Scheduler's lifecycle:
// waiting -> running -> {finished | expired -> finished}, plus the
// waiting -> discarded shortcut.
type entryState int

const (
	entryWaiting entryState = iota
	entryRunning
	entryExpired
)

// TaskEntry is the identity and bookkeeping record for one submission to a
// Scheduler. It is the payload of every Scheduler event and every handler
// invocation. Its unexported fields are dispatch-internal; only ID, Args
// and the two reason fields are meaningful to callers.
type TaskEntry struct {
	ID            uint64
	Args          []any
	DiscardReason DiscardReason
	ReleaseReason ReleaseBeforeFinishReason

	opts         resolvedTaskOptions
	state        entryState
	handle       handle
	waitingTimer timer
	releaseTimer timer

	// invoke runs the type-erased task body and feeds its outcome back into
	// the Scheduler's bookkeeping plus the caller's typed Future. Set by the
	// generic Run/RunWithOptions that created this entry.
	invoke func(s *Scheduler, e *TaskEntry)
	// onDiscard resolves the caller's typed Future with a DiscardedError.
	onDiscard func()
}

// TaskFunc is a unit of work submitted to a Scheduler: a function plus an
// ordered argument list. args are the values passed at submission time,
// forwarded verbatim.
type TaskFunc[T any] func(args ...any) (T, error)

// Job bundles a task, its arguments, and its per-submission option
// overrides, for batch submission via RunMany.
type Job[T any] struct {
	Task    TaskFunc[T]
	Args    []any
	Options TaskOptions
}

// Scheduler runs tasks with bounded concurrency, an optional waiting
// timeout, an optional running-slot release timeout, and per-task abort
// support. Unlike Gate, which only ever hands its caller a bare
// ReleaseToken, Scheduler owns the invocation of the task itself, so it can
// observe success/failure and emit the full task-* event taxonomy.
//
// Serialization follows Gate: every state transition happens under a
// single mutex, and events/handlers are invoked with the mutex released.
type Scheduler struct {
	mu      sync.Mutex
	cfg     schedulerConfig
	events  *EventTarget
	logger  Logger
	clock   clock
	waiting *waitQueue[*TaskEntry]
	running map[uint64]*TaskEntry
	expired map[uint64]*TaskEntry
	nextID  uint64
}

// NewScheduler constructs a Scheduler. As with NewGate, invalid option
// values are sanitized rather than rejected.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	return &Scheduler{
		cfg:     resolveSchedulerConfig(opts),
		events:  NewEventTarget(),
		logger:  NewNoopLogger(),
		clock:   defaultClock,
		waiting: newWaitQueue[*TaskEntry](),
		running: make(map[uint64]*TaskEntry),
		expired: make(map[uint64]*TaskEntry),
		nextID:  1,
	}
}

// SetLogger installs a structured logger for this Scheduler's lifecycle.
func (s *Scheduler) SetLogger(l Logger) {
	if l == nil {
		l = NewNoopLogger()
	}
	s.mu.Lock()
	s.logger = l
	s.mu.Unlock()
}

// On registers an event listener. See the EventTask* constants.
func (s *Scheduler) On(eventType string, listener ListenerFunc) ListenerID {
	return s.events.On(eventType, listener)
}

// Off removes a previously registered listener.
func (s *Scheduler) Off(eventType string, id ListenerID) bool {
	return s.events.Off(eventType, id)
}

// IsAvailable reports whether a running slot is currently free.
func (s *Scheduler) IsAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAvailableLocked()
}

func (s *Scheduler) isAvailableLocked() bool {
	return len(s.running) < s.cfg.concurrency
}

// WaitingTasks reports the number of tasks currently queued.
func (s *Scheduler) WaitingTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting.Len()
}

// RunningTasks reports the number of tasks currently holding a running slot
// (excluding expired-but-still-executing tasks, which have already given
// their slot back).
func (s *Scheduler) RunningTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// ExpiredTasks reports the number of tasks whose release timeout fired (or
// were force-released) but whose function has not yet returned.
func (s *Scheduler) ExpiredTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expired)
}

// ChangeConcurrentLimit adjusts the number of concurrently running tasks.
// Invalid values are ignored, as with Gate.
func (s *Scheduler) ChangeConcurrentLimit(n int) {
	s.mu.Lock()
	s.cfg.concurrency = sanitizeNewLimit(s.cfg.concurrency, n)
	s.mu.Unlock()
	s.dispatchNext()
}

// Run submits task for execution using the Scheduler's default options.
func Run[T any](s *Scheduler, task TaskFunc[T], args ...any) *Future[T] {
	return RunWithOptions(s, task, TaskOptions{}, args...)
}

// RunWithOptions submits task with per-submission option overrides.
func RunWithOptions[T any](s *Scheduler, task TaskFunc[T], opts TaskOptions, args ...any) *Future[T] {
	future := newFuture[T]()
	entry := s.newEntry(args, opts)
	entry.invoke = func(sch *Scheduler, e *TaskEntry) {
		value, err := runGuarded(task, e.Args)
		sch.completeTask(e, err, func() {
			if err != nil {
				future.resolve(Settled[T]{Reason: err})
			} else {
				future.resolve(Settled[T]{Fulfilled: true, Value: value})
			}
		})
	}
	entry.onDiscard = func() {
		future.resolve(Settled[T]{Reason: &DiscardedError{Reason: entry.DiscardReason}})
	}
	s.submit(entry)
	return future
}

// TryRun attempts a non-queuing reservation, mirroring Gate.TryAcquire: it
// reports whether a slot is immediately available (no waiters ahead), and
// if so returns a thunk that actually submits the task. The check and the
// act are deliberately split — a caller that decides not to invoke run()
// simply never submits, and nothing is reserved in the meantime.
func TryRun[T any](s *Scheduler, task TaskFunc[T], args ...any) (run func() *Future[T], available bool) {
	s.mu.Lock()
	ok := s.isAvailableLocked() && s.waiting.Len() == 0
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return func() *Future[T] { return Run(s, task, args...) }, true
}

// RunMany submits every job concurrently (in submission order) and returns
// a Future that settles once all of them have. The result slice preserves
// job order regardless of completion order.
func RunMany[T any](s *Scheduler, jobs []Job[T]) *Future[[]Settled[T]] {
	aggregate := newFuture[[]Settled[T]]()
	futures := make([]*Future[T], len(jobs))
	for i, job := range jobs {
		futures[i] = RunWithOptions(s, job.Task, job.Options, job.Args...)
	}
	go func() {
		results := make([]Settled[T], len(futures))
		for i, f := range futures {
			results[i], _ = f.Wait(context.Background())
		}
		aggregate.resolve(Settled[[]Settled[T]]{Fulfilled: true, Value: results})
	}()
	return aggregate
}

// RunForEachArgs submits task once per element of argsArray, all sharing
// opts, via RunMany.
func RunForEachArgs[T any](s *Scheduler, argsArray [][]any, task TaskFunc[T], opts TaskOptions) *Future[[]Settled[T]] {
	jobs := make([]Job[T], len(argsArray))
	for i, args := range argsArray {
		jobs[i] = Job[T]{Task: task, Args: args, Options: opts}
	}
	return RunMany(s, jobs)
}

// RunForEach submits fn once per element of entities, via RunMany.
func RunForEach[E any, T any](s *Scheduler, entities []E, fn func(entity E) (T, error), opts TaskOptions) *Future[[]Settled[T]] {
	jobs := make([]Job[T], len(entities))
	for i, e := range entities {
		entity := e
		jobs[i] = Job[T]{Task: func(args ...any) (T, error) { return fn(entity) }, Options: opts}
	}
	return RunMany(s, jobs)
}

// runGuarded invokes task, converting a panic into an error the same way
// guardHandler does for handlers, so a misbehaving task can never crash
// the Scheduler's goroutine.
func runGuarded[T any](task TaskFunc[T], args []any) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rErr, ok := r.(error); ok {
				err = rErr
			} else {
				err = WrapError("task panicked", fmt.Errorf("%v", r))
			}
		}
	}()
	return task(args...)
}

func (s *Scheduler) newEntry(args []any, opts TaskOptions) *TaskEntry {
	s.mu.Lock()
	s.nextID++
	entry := &TaskEntry{
		ID:   s.nextID,
		Args: args,
		opts: s.cfg.resolve(opts),
	}
	s.mu.Unlock()
	return entry
}

func (s *Scheduler) submit(entry *TaskEntry) {
	s.mu.Lock()
	entry.state = entryWaiting
	entry.handle = s.waiting.pushBack(entry)
	s.mu.Unlock()

	if entry.opts.waitingTimeout > 0 {
		entry.waitingTimer = s.clock.AfterFunc(entry.opts.waitingTimeout, func() {
			s.handleWaitingTimeout(entry)
		})
	}

	s.dispatchNext()
}

func (s *Scheduler) handleWaitingTimeout(entry *TaskEntry) {
	s.mu.Lock()
	if entry.handle == nil {
		// already popped by dispatchNext (promoted or discarded by abort);
		// the timer fire raced and lost.
		s.mu.Unlock()
		return
	}
	s.waiting.remove(entry.handle)
	entry.handle = nil
	entry.DiscardReason = DiscardTimeoutReached
	s.mu.Unlock()

	s.discard(entry)
}

// discard finalizes a waiting task that will never run: emits
// task-discarded, invokes the applicable waiting-timeout handler (only
// when the reason is a genuine timeout, never for a forced flush or an
// abort), and resolves the caller's Future.
func (s *Scheduler) discard(entry *TaskEntry) {
	s.events.emit(NewEvent(EventTaskDiscarded, entry))

	if entry.DiscardReason == DiscardTimeoutReached && entry.opts.waitingTimeoutHandler != nil {
		if err := guardHandler(func() error { return entry.opts.waitingTimeoutHandler(entry) }); err != nil {
			logWarn(s.logger, "scheduler", "waiting timeout handler failed", err, map[string]any{"task": entry.ID})
			s.events.emit(NewEvent(EventError, &ErrorEventDetail{Code: ErrWaitingTimeoutHandlerFailure, Error: err}))
		}
	}

	entry.onDiscard()
}

// ReleaseRunningTasks forces every currently running task's admission slot
// to free immediately, without waiting for the task's function to return.
// The function keeps executing; its eventual completion still fires
// task-finished exactly once, per the expired-then-finished transition in
// completeTask.
func (s *Scheduler) ReleaseRunningTasks() {
	s.mu.Lock()
	entries := make([]*TaskEntry, 0, len(s.running))
	for _, e := range s.running {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		s.releaseRunningEntry(e, ReleaseForced)
	}
}

// FlushPendingTasks discards every currently waiting task. No
// waiting-timeout handler is invoked for a forced flush, mirroring the
// release-side distinction between a forced release and a timer fire.
func (s *Scheduler) FlushPendingTasks() {
	s.mu.Lock()
	entries := s.waiting.drain()
	s.mu.Unlock()

	for _, e := range entries {
		if e.waitingTimer != nil {
			e.waitingTimer.Stop()
			e.waitingTimer = nil
		}
		e.handle = nil
		e.DiscardReason = DiscardForced
		s.discard(e)
	}
}

// releaseRunningEntry moves entry from running to expired: it frees the
// admission slot and emits task-released-before-finished, but does not
// touch the task's function, which keeps running to completion.
func (s *Scheduler) releaseRunningEntry(entry *TaskEntry, reason ReleaseBeforeFinishReason) {
	s.mu.Lock()
	if _, ok := s.running[entry.ID]; !ok {
		s.mu.Unlock()
		return // already completed or already released
	}
	delete(s.running, entry.ID)
	if entry.releaseTimer != nil {
		entry.releaseTimer.Stop()
		entry.releaseTimer = nil
	}
	entry.state = entryExpired
	entry.ReleaseReason = reason
	s.expired[entry.ID] = entry
	s.mu.Unlock()

	s.events.emit(NewEvent(EventTaskReleasedBeforeFinish, entry))
	s.dispatchNext()
}

// handleReleaseTimeout fires when a running task's release timeout
// elapses. The slot is freed first, then the handler runs — in that
// order, deliberately, so RunningTasks() already reflects the free slot by
// the time the handler observes it.
func (s *Scheduler) handleReleaseTimeout(entry *TaskEntry) {
	s.releaseRunningEntry(entry, ReleaseTimeoutReached)

	if entry.opts.releaseTimeoutHandler != nil {
		if err := guardHandler(func() error { return entry.opts.releaseTimeoutHandler(entry) }); err != nil {
			logWarn(s.logger, "scheduler", "release timeout handler failed", err, map[string]any{"task": entry.ID})
			s.events.emit(NewEvent(EventError, &ErrorEventDetail{Code: ErrReleaseTimeoutHandlerFailure, Error: err}))
		}
	}
}

// completeTask is invoked once a task's function has returned (or
// panicked), whether or not its slot had already been released by a
// release timeout. It performs the shared bookkeeping — freeing the slot
// if it hadn't been freed already, emitting task-failure/task-finished,
// and running the error handler — then calls resolveFuture to settle the
// caller's typed Future with the type-specific outcome.
func (s *Scheduler) completeTask(entry *TaskEntry, err error, resolveFuture func()) {
	s.mu.Lock()
	_, wasExpired := s.expired[entry.ID]
	if wasExpired {
		delete(s.expired, entry.ID)
	} else {
		delete(s.running, entry.ID)
		if entry.releaseTimer != nil {
			entry.releaseTimer.Stop()
			entry.releaseTimer = nil
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.events.emit(NewEvent(EventTaskFailure, taskFailureDetail{Entry: entry, Err: err}))
		if entry.opts.errorHandler != nil {
			if herr := guardHandler(func() error { return entry.opts.errorHandler(entry, err) }); herr != nil {
				logWarn(s.logger, "scheduler", "error handler failed", herr, map[string]any{"task": entry.ID})
				s.events.emit(NewEvent(EventError, &ErrorEventDetail{Code: ErrErrorHandlerFailure, Error: herr}))
			}
		}
	}

	s.events.emit(NewEvent(EventTaskFinished, entry))
	resolveFuture()

	if !wasExpired {
		s.dispatchNext()
	}
}

// taskFailureDetail is the Detail payload of a task-failure Event.
type taskFailureDetail struct {
	Entry *TaskEntry
	Err   error
}

// dispatchNext admits as many waiting tasks as free running slots allow,
// per QueueType. Iterative, not recursive, so skipping a long run of
// aborted waiters can't grow the call stack. A waiter whose Signal is
// already aborted is discarded and the loop moves on to the next one
// without consuming a slot.
func (s *Scheduler) dispatchNext() {
	for {
		s.mu.Lock()
		if !s.isAvailableLocked() || s.waiting.Len() == 0 {
			s.mu.Unlock()
			return
		}
		entry, _ := s.waiting.pop(s.cfg.queueType)
		entry.handle = nil
		if entry.waitingTimer != nil {
			entry.waitingTimer.Stop()
			entry.waitingTimer = nil
		}

		if entry.opts.signal.Aborted() {
			entry.DiscardReason = DiscardAbortSignal
			s.mu.Unlock()
			s.discard(entry)
			continue
		}

		entry.state = entryRunning
		s.running[entry.ID] = entry
		if entry.opts.releaseTimeout > 0 {
			entry.releaseTimer = s.clock.AfterFunc(entry.opts.releaseTimeout, func() {
				s.handleReleaseTimeout(entry)
			})
		}
		logger := s.logger
		s.mu.Unlock()

		logDebug(logger, "scheduler", "task admitted", map[string]any{"task": entry.ID})
		s.events.emit(NewEvent(EventTaskStarted, entry))
		go entry.invoke(s, entry)
	}
}
