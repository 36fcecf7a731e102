// Package store persists measurements and violation history for offline
// analysis. Persistence is best effort: the monitor keeps running when a
// store call fails.
package store

import (
	"context"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/models"
)

// Store is the persistence boundary used by the monitor.
type Store interface {
	SaveLatencyBatch(ctx context.Context, batch []models.LatencyMeasurement) error
	SaveThroughputBatch(ctx context.Context, batch []models.ThroughputMeasurement) error
	SaveViolations(ctx context.Context, violations []models.ViolationRecord) error
	// ViolationsSince returns persisted violations newer than since,
	// newest first, capped at limit.
	ViolationsSince(ctx context.Context, since time.Time, limit int) ([]models.ViolationRecord, error)
	// Cleanup removes rows older than the cutoff.
	Cleanup(ctx context.Context, olderThan time.Time) error
	Close()
}

// NoopStore discards writes and returns empty history. Used when no
// database is configured.
type NoopStore struct{}

var _ Store = NoopStore{}

func (NoopStore) SaveLatencyBatch(context.Context, []models.LatencyMeasurement) error { return nil }

func (NoopStore) SaveThroughputBatch(context.Context, []models.ThroughputMeasurement) error {
	return nil
}

func (NoopStore) SaveViolations(context.Context, []models.ViolationRecord) error { return nil }

func (NoopStore) ViolationsSince(context.Context, time.Time, int) ([]models.ViolationRecord, error) {
	return nil, nil
}

func (NoopStore) Cleanup(context.Context, time.Time) error { return nil }

func (NoopStore) Close() {}
