// Package gatesched provides an in-process asynchronous task scheduler and
// the counting lock ("gate") it is built on.
//
// # Architecture
//
// A [Gate] mediates acquisition of up to C concurrent permits, queuing
// waiters under a configurable discipline (FIFO or LIFO). A [Scheduler]
// wraps a Gate: callers submit task functions, the Scheduler admits them up
// to the concurrency limit, and enforces waiting and running timeouts,
// forced release, and abort-signal driven discards. A [MultiStep]
// coordinator composes N independent Gates for multi-stage pipelines,
// leaving stage ordering entirely to the caller's task function.
//
// # Concurrency model
//
// Every [Gate] and [Scheduler] serializes its internal state behind a
// single mutex, with events and handlers always invoked after the mutex
// is released — the direct analogue of a single-threaded event loop's
// cooperative scheduling.
//
// # Events
//
// Lifecycle transitions are observable via [EventTarget]: Gate emits
// lock-acquired, lock-released, and error; Scheduler emits task-started,
// task-finished, task-failure, task-released-before-finished,
// task-discarded, and error. Event names are the stable strings documented
// on each type.
package gatesched
