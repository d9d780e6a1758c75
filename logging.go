package gatesched

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel represents the severity of a log entry.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// LogEntry is a single structured log record emitted by a Gate or
// Scheduler, carrying only the fields this package actually populates.
type LogEntry struct {
	Level     LogLevel
	Category  string // "gate", "scheduler"
	Message   string
	Context   map[string]any
	Err       error
	Timestamp time.Time
}

// Logger is the structured logging interface implemented by gatesched's
// built-in loggers, and satisfiable by adapters to any external logging
// framework (e.g. zerolog, slog, logrus) — wiring one in is left entirely
// to the embedder.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

type noopLogger struct{}

func (noopLogger) Log(LogEntry)            {}
func (noopLogger) IsEnabled(LogLevel) bool { return false }

// NewNoopLogger returns a Logger that discards everything. This is the
// default logger for every Gate/Scheduler/MultiStep.
func NewNoopLogger() Logger { return noopLogger{} }

// StdLogger is a minimal Logger writing line-oriented text to os.Stderr. It exists so the package has a usable built-in
// logger without forcing a third-party logging framework dependency on
// embedders who don't already have one; see DESIGN.md for why this is
// hand-rolled rather than wired to logiface.
type StdLogger struct {
	mu    sync.Mutex
	out   *os.File
	level atomic.Int32
}

// NewStdLogger creates a StdLogger writing to os.Stderr at the given
// minimum level.
func NewStdLogger(level LogLevel) *StdLogger {
	l := &StdLogger{out: os.Stderr}
	l.level.Store(int32(level))
	return l
}

func (l *StdLogger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

func (l *StdLogger) IsEnabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

func (l *StdLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.out, "%s %s [%s] %s",
		entry.Timestamp.Format("15:04:05.000"),
		entry.Level,
		entry.Category,
		entry.Message,
	)
	for k, v := range entry.Context {
		fmt.Fprintf(l.out, " %s=%v", k, v)
	}
	if entry.Err != nil {
		fmt.Fprintf(l.out, " err=%v", entry.Err)
	}
	fmt.Fprintln(l.out)
}

func logDebug(logger Logger, category, message string, ctx map[string]any) {
	if logger == nil || !logger.IsEnabled(LevelDebug) {
		return
	}
	logger.Log(LogEntry{Level: LevelDebug, Category: category, Message: message, Context: ctx})
}

func logWarn(logger Logger, category, message string, err error, ctx map[string]any) {
	if logger == nil || !logger.IsEnabled(LevelWarn) {
		return
	}
	logger.Log(LogEntry{Level: LevelWarn, Category: category, Message: message, Err: err, Context: ctx})
}
