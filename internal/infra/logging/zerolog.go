// Package logging adapts zerolog to the core service logger interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger behind the key/value logging surface the
// core service emits to.
type Logger struct {
	zl zerolog.Logger
}

// New constructs a console logger tagged with the application name.
func New(app string) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return &Logger{zl: zerolog.New(output).With().Timestamp().Str("app", app).Logger()}
}

// NewJSON constructs a structured JSON logger writing to w.
func NewJSON(app string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{zl: zerolog.New(w).With().Timestamp().Str("app", app).Logger()}
}

// Zerolog returns the wrapped logger for callers needing the full API.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

func (l *Logger) Debug(msg string, keyvals ...any) { emit(l.zl.Debug(), msg, keyvals) }

func (l *Logger) Info(msg string, keyvals ...any) { emit(l.zl.Info(), msg, keyvals) }

func (l *Logger) Warn(msg string, keyvals ...any) { emit(l.zl.Warn(), msg, keyvals) }

func (l *Logger) Error(msg string, keyvals ...any) { emit(l.zl.Error(), msg, keyvals) }

// emit folds alternating key/value pairs into the event. A trailing key
// without a value is logged with an empty value rather than dropped.
func emit(ev *zerolog.Event, msg string, keyvals []any) {
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		var value any
		if i+1 < len(keyvals) {
			value = keyvals[i+1]
		}
		ev = ev.Interface(key, value)
	}
	ev.Msg(msg)
}
