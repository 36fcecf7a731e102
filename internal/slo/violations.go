package slo

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantpipe/pipeline-monitor/internal/models"
)

const defaultViolationCapacity = 1000

// ViolationTracker keeps a bounded, time-ordered history of SLO
// violations. Safe for concurrent use.
type ViolationTracker struct {
	mu      sync.Mutex
	records []models.ViolationRecord
	cap     int
	now     func() time.Time
}

// TrackerOption adjusts tracker construction.
type TrackerOption func(*ViolationTracker)

// WithClock substitutes the time source. Used by tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *ViolationTracker) {
		t.now = now
	}
}

// NewViolationTracker returns a tracker bounded to capacity records. A
// non-positive capacity falls back to the default of 1000.
func NewViolationTracker(capacity int, opts ...TrackerOption) *ViolationTracker {
	if capacity <= 0 {
		capacity = defaultViolationCapacity
	}
	t := &ViolationTracker{cap: capacity, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends a violation for the given definition and evaluation
// outcome, evicting the oldest record when the history is full.
func (t *ViolationTracker) Record(def models.SLODefinition, status models.SLOStatus) models.ViolationRecord {
	rec := models.ViolationRecord{
		ID:         uuid.NewString(),
		Timestamp:  t.now(),
		SLOName:    def.Name,
		Status:     status.Status,
		Current:    status.Current,
		Target:     status.Target,
		Compliance: status.Compliance,
	}

	t.mu.Lock()
	t.records = append(t.records, rec)
	if len(t.records) > t.cap {
		t.records = append(t.records[:0:0], t.records[len(t.records)-t.cap:]...)
	}
	t.mu.Unlock()
	return rec
}

// CountInLast24h reports how many violations the named SLO accumulated in
// the trailing 24 hours.
func (t *ViolationTracker) CountInLast24h(name string) int {
	cutoff := t.now().Add(-24 * time.Hour)

	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, rec := range t.records {
		if rec.SLOName == name && !rec.Timestamp.Before(cutoff) {
			count++
		}
	}
	return count
}

// LastViolation returns the timestamp of the newest violation for the
// named SLO, or nil if none is on record.
func (t *ViolationTracker) LastViolation(name string) *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.records) - 1; i >= 0; i-- {
		if t.records[i].SLOName == name {
			ts := t.records[i].Timestamp
			return &ts
		}
	}
	return nil
}

// Recent returns up to limit violations, newest first. A non-positive
// limit returns the full history.
func (t *ViolationTracker) Recent(limit int) []models.ViolationRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.ViolationRecord, 0, n)
	for i := len(t.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, t.records[i])
	}
	return out
}
