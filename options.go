package gatesched

import "time"

// QueueType selects which end of the waiting queue dispatchNext pops from.
type QueueType string

const (
	FIFO QueueType = "FIFO"
	LIFO QueueType = "LIFO"
)

// gateConfig is a Gate's sanitized, resolved configuration (the
// Scheduler's own superset is schedulerConfig).
type gateConfig struct {
	concurrency           int
	queueType             QueueType
	releaseTimeout        time.Duration
	releaseTimeoutHandler func(permit *AcquiredPermit) error
}

func defaultGateConfig() gateConfig {
	return gateConfig{
		concurrency: 1,
		queueType:   FIFO,
	}
}

// GateOption configures a Gate at construction (a Scheduler takes
// SchedulerOption values instead).
type GateOption interface {
	applyGate(*gateConfig)
}

type gateOptionFunc func(*gateConfig)

func (f gateOptionFunc) applyGate(cfg *gateConfig) { f(cfg) }

// WithConcurrency sets the number of concurrent permits. Invalid values
// (non-positive, or values that round to non-positive) fall back to 1 at
// construction; this never panics.
func WithConcurrency(n int) GateOption {
	return gateOptionFunc(func(cfg *gateConfig) {
		cfg.concurrency = sanitizeConcurrency(float64(n))
	})
}

// WithConcurrencyFloat sanitizes a non-integer concurrency value by
// rounding to the nearest integer, ties going up (0.9 -> 1; 99.5 -> 100).
// NaN, +/-Inf, and values <= 0 fall back to 1.
func WithConcurrencyFloat(n float64) GateOption {
	return gateOptionFunc(func(cfg *gateConfig) {
		cfg.concurrency = sanitizeConcurrency(n)
	})
}

// WithQueueType sets the queue discipline. Any value other than FIFO/LIFO
// falls back to FIFO.
func WithQueueType(qt QueueType) GateOption {
	return gateOptionFunc(func(cfg *gateConfig) {
		if qt != FIFO && qt != LIFO {
			qt = FIFO
		}
		cfg.queueType = qt
	})
}

// WithReleaseTimeout sets a timeout after which an acquired permit is
// force-released even if the holder never calls its release token. A
// non-positive duration disables the timeout (the default).
func WithReleaseTimeout(d time.Duration) GateOption {
	return gateOptionFunc(func(cfg *gateConfig) {
		if d < 0 {
			d = 0
		}
		cfg.releaseTimeout = d
	})
}

// WithReleaseTimeoutHandler sets the handler invoked when a release timeout
// fires, before the permit is force-released.
func WithReleaseTimeoutHandler(fn func(permit *AcquiredPermit) error) GateOption {
	return gateOptionFunc(func(cfg *gateConfig) {
		cfg.releaseTimeoutHandler = fn
	})
}

func resolveGateConfig(opts []GateOption) gateConfig {
	cfg := defaultGateConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyGate(&cfg)
	}
	return cfg
}

// sanitizeConcurrency: NaN/+-Inf/<=0 -> 1; otherwise round to nearest
// integer, ties going up.
func sanitizeConcurrency(n float64) int {
	if n != n /* NaN */ || n <= 0 || isInf(n) {
		return 1
	}
	rounded := int(n + 0.5)
	if rounded < 1 {
		return 1
	}
	return rounded
}

func isInf(n float64) bool {
	return n > maxFiniteFloat || n < -maxFiniteFloat
}

const maxFiniteFloat = 1.7976931348623157e+308

// sanitizeNewLimit implements ChangeConcurrentLimit's sanitization:
// values below 1 are ignored entirely, leaving the current limit
// untouched.
func sanitizeNewLimit(current, proposed int) int {
	if proposed < 1 {
		return current
	}
	return proposed
}
