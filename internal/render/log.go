package render

import (
	"context"
	"log/slog"

	"github.com/andpalmier/nestprog/pkg/progress"
)

// Log writes each signal as a structured log record.
type Log struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLog creates a Log observer writing at the given level.
// A nil logger means slog.Default().
func NewLog(logger *slog.Logger, level slog.Level) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		logger: logger.With("component", "progress"),
		level:  level,
	}
}

var _ progress.Observer = (*Log)(nil)

// Observe logs the signal.
func (l *Log) Observe(s progress.Signal) bool {
	l.logger.Log(context.Background(), l.level, "progress",
		"label", s.Label,
		"progress", s.Progress,
		"total", s.Total,
		"percent", Percent(s.Total, s.Progress),
	)
	return true
}

// Tee returns an Observer that forwards each signal to every observer.
// All observers are called; the result is false if any of them
// returned false.
func Tee(observers ...progress.Observer) progress.Observer {
	return progress.ObserverFunc(func(s progress.Signal) bool {
		ok := true
		for _, o := range observers {
			if o == nil {
				continue
			}
			if !o.Observe(s) {
				ok = false
			}
		}
		return ok
	})
}
