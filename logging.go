// logging.go - structured logging for the cooperator runtime.

package coop

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// defaultLogger returns a structured logger writing JSON to stderr at
// Info level.
func defaultLogger() *logiface.Logger[*stumpy.Event] {
	return logiface.New[*stumpy.Event](
		logiface.WithLevel(logiface.LevelInfo),
		stumpy.L.WithStumpy(),
	)
}

// logLifecycle logs a cooperator lifecycle transition (start,
// termination) at Info level with structured fields.
func logLifecycle(l *logiface.Logger[*stumpy.Event], event string, fields map[string]any) {
	b := l.Info()
	if b == nil {
		return
	}
	b = b.Str("event", event)
	for k, v := range fields {
		b = b.Any(k, v)
	}
	b.Log(event)
}

// logPanic logs a recovered context panic at Error level.
func logPanic(l *logiface.Logger[*stumpy.Event], contextID uint64, err error) {
	b := l.Err()
	if b == nil {
		return
	}
	b.Err(err).Uint64("context_id", contextID).Log("context panicked")
}

// logIOError logs an async I/O completion error at warning level.
func logIOError(l *logiface.Logger[*stumpy.Event], op string, err error) {
	b := l.Warning()
	if b == nil {
		return
	}
	b.Str("op", op).Err(err).Log("io completion error")
}
