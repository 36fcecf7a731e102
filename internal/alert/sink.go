// Package alert delivers SLO violation notifications to configured
// destinations.
package alert

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quantpipe/pipeline-monitor/internal/models"
)

// Sink receives the warning and critical statuses of one evaluation pass.
type Sink interface {
	Deliver(ctx context.Context, violations []models.SLOStatus) error
}

// LogSink writes one warning line per violation. It never fails.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging through the supplied logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver logs every violation.
func (s *LogSink) Deliver(_ context.Context, violations []models.SLOStatus) error {
	for _, v := range violations {
		s.logger.Warn("slo violation",
			slog.String("slo", v.Name),
			slog.String("status", string(v.Status)),
			slog.Float64("current", v.Current),
			slog.Float64("target", v.Target),
			slog.Float64("compliance", v.Compliance),
		)
	}
	return nil
}

// Multi fans violations out to every sink and joins their errors.
type Multi []Sink

// Deliver forwards the batch to each sink. A failing sink does not stop
// the others.
func (m Multi) Deliver(ctx context.Context, violations []models.SLOStatus) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Deliver(ctx, violations); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
