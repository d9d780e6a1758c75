package gatesched

import "time"

// schedulerConfig is the Scheduler's resolved, sanitized configuration —
// a superset of gateConfig, with timeout/handler/signal fields Gate has
// no use for.
type schedulerConfig struct {
	concurrency           int
	queueType             QueueType
	waitingTimeout        time.Duration
	waitingTimeoutHandler func(entry *TaskEntry) error
	releaseTimeout        time.Duration
	releaseTimeoutHandler func(entry *TaskEntry) error
	errorHandler          func(entry *TaskEntry, err error) error
	signal                *Signal
}

func defaultSchedulerConfig() schedulerConfig {
	return schedulerConfig{
		concurrency: 1,
		queueType:   FIFO,
	}
}

// SchedulerOption configures a Scheduler at construction.
type SchedulerOption interface {
	applyScheduler(*schedulerConfig)
}

type schedulerOptionFunc func(*schedulerConfig)

func (f schedulerOptionFunc) applyScheduler(cfg *schedulerConfig) { f(cfg) }

// WithSchedulerConcurrency sets the number of concurrently running tasks.
// Sanitized identically to Gate's WithConcurrency.
func WithSchedulerConcurrency(n int) SchedulerOption {
	return schedulerOptionFunc(func(cfg *schedulerConfig) {
		cfg.concurrency = sanitizeConcurrency(float64(n))
	})
}

// WithSchedulerQueueType sets the waiting-queue discipline.
func WithSchedulerQueueType(qt QueueType) SchedulerOption {
	return schedulerOptionFunc(func(cfg *schedulerConfig) {
		if qt != FIFO && qt != LIFO {
			qt = FIFO
		}
		cfg.queueType = qt
	})
}

// WithWaitingTimeout sets the default duration a task may wait in queue
// before being discarded. Zero (the default) disables waiting timeouts.
func WithWaitingTimeout(d time.Duration) SchedulerOption {
	return schedulerOptionFunc(func(cfg *schedulerConfig) {
		if d < 0 {
			d = 0
		}
		cfg.waitingTimeout = d
	})
}

// WithWaitingTimeoutHandler sets the default handler invoked when a task is
// discarded due to a waiting timeout.
func WithWaitingTimeoutHandler(fn func(entry *TaskEntry) error) SchedulerOption {
	return schedulerOptionFunc(func(cfg *schedulerConfig) { cfg.waitingTimeoutHandler = fn })
}

// WithSchedulerReleaseTimeout sets the default duration after which a
// running task's admission slot is released even though the task's
// function has not returned. It never cancels the function itself.
func WithSchedulerReleaseTimeout(d time.Duration) SchedulerOption {
	return schedulerOptionFunc(func(cfg *schedulerConfig) {
		if d < 0 {
			d = 0
		}
		cfg.releaseTimeout = d
	})
}

// WithSchedulerReleaseTimeoutHandler sets the default handler invoked when
// a running task's release timeout fires.
func WithSchedulerReleaseTimeoutHandler(fn func(entry *TaskEntry) error) SchedulerOption {
	return schedulerOptionFunc(func(cfg *schedulerConfig) { cfg.releaseTimeoutHandler = fn })
}

// WithErrorHandler sets the default handler invoked when a task's function
// returns an error (or panics).
func WithErrorHandler(fn func(entry *TaskEntry, err error) error) SchedulerOption {
	return schedulerOptionFunc(func(cfg *schedulerConfig) { cfg.errorHandler = fn })
}

// WithSignal sets the controller-wide abort signal. A nil signal (the
// default) never aborts.
func WithSignal(sig *Signal) SchedulerOption {
	return schedulerOptionFunc(func(cfg *schedulerConfig) { cfg.signal = sig })
}

func resolveSchedulerConfig(opts []SchedulerOption) schedulerConfig {
	cfg := defaultSchedulerConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyScheduler(&cfg)
	}
	return cfg
}

// TaskOptions carries per-submission overrides. Any zero-value field falls
// back to the Scheduler's configured default for that task only; the
// struct is copied at submission time, so mutating it afterward has no
// effect.
type TaskOptions struct {
	// WaitingTimeout overrides the scheduler default if non-nil.
	WaitingTimeout *time.Duration
	// WaitingTimeoutHandler overrides the scheduler default if non-nil.
	WaitingTimeoutHandler func(entry *TaskEntry) error
	// ReleaseTimeout overrides the scheduler default if non-nil.
	ReleaseTimeout *time.Duration
	// ReleaseTimeoutHandler overrides the scheduler default if non-nil.
	ReleaseTimeoutHandler func(entry *TaskEntry) error
	// ErrorHandler overrides the scheduler default if non-nil.
	ErrorHandler func(entry *TaskEntry, err error) error
	// Signal overrides the scheduler's controller-wide signal for this task
	// only, if non-nil.
	Signal *Signal
}

// resolvedTaskOptions is the snapshot actually consulted during dispatch,
// merging TaskOptions over schedulerConfig per-field: a non-nil override
// wins, otherwise the scheduler-wide default applies.
type resolvedTaskOptions struct {
	waitingTimeout        time.Duration
	waitingTimeoutHandler func(entry *TaskEntry) error
	releaseTimeout        time.Duration
	releaseTimeoutHandler func(entry *TaskEntry) error
	errorHandler          func(entry *TaskEntry, err error) error
	signal                *Signal
}

func (cfg schedulerConfig) resolve(opts TaskOptions) resolvedTaskOptions {
	r := resolvedTaskOptions{
		waitingTimeout:        cfg.waitingTimeout,
		waitingTimeoutHandler: cfg.waitingTimeoutHandler,
		releaseTimeout:        cfg.releaseTimeout,
		releaseTimeoutHandler: cfg.releaseTimeoutHandler,
		errorHandler:          cfg.errorHandler,
		signal:                cfg.signal,
	}
	if opts.WaitingTimeout != nil {
		r.waitingTimeout = *opts.WaitingTimeout
	}
	if opts.WaitingTimeoutHandler != nil {
		r.waitingTimeoutHandler = opts.WaitingTimeoutHandler
	}
	if opts.ReleaseTimeout != nil {
		r.releaseTimeout = *opts.ReleaseTimeout
	}
	if opts.ReleaseTimeoutHandler != nil {
		r.releaseTimeoutHandler = opts.ReleaseTimeoutHandler
	}
	if opts.ErrorHandler != nil {
		r.errorHandler = opts.ErrorHandler
	}
	if opts.Signal != nil {
		r.signal = opts.Signal
	}
	return r
}
