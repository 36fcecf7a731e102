// Package collector gathers latency and throughput measurements for
// pipeline stages into bounded in-memory buffers.
package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/metrics"
	"github.com/quantpipe/pipeline-monitor/internal/models"
)

const (
	defaultLatencyCapacity    = 10000
	defaultThroughputCapacity = 1000
)

// Collector owns the per-stage measurement buffers and the set of traces
// currently in flight. All methods are safe for concurrent use.
type Collector struct {
	mu         sync.Mutex
	latency    map[models.PipelineStage]*ring[models.LatencyMeasurement]
	throughput map[models.PipelineStage]*ring[models.ThroughputMeasurement]
	active     map[string]models.ActiveTrace

	latencyCap    int
	throughputCap int
	now           func() time.Time
}

// Option adjusts collector construction.
type Option func(*Collector)

// WithClock substitutes the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// WithCapacities overrides the per-stage buffer capacities.
func WithCapacities(latency, throughput int) Option {
	return func(c *Collector) {
		if latency > 0 {
			c.latencyCap = latency
		}
		if throughput > 0 {
			c.throughputCap = throughput
		}
	}
}

// NewCollector returns a collector with empty buffers for every stage.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		latency:       make(map[models.PipelineStage]*ring[models.LatencyMeasurement]),
		throughput:    make(map[models.PipelineStage]*ring[models.ThroughputMeasurement]),
		active:        make(map[string]models.ActiveTrace),
		latencyCap:    defaultLatencyCapacity,
		throughputCap: defaultThroughputCapacity,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, stage := range models.Stages() {
		c.latency[stage] = newRing[models.LatencyMeasurement](c.latencyCap)
		c.throughput[stage] = newRing[models.ThroughputMeasurement](c.throughputCap)
	}
	return c
}

// Trace is one in-flight stage execution. End records exactly one latency
// measurement; further calls are no-ops.
type Trace struct {
	c        *Collector
	stage    models.PipelineStage
	id       string
	start    time.Time
	metadata map[string]string
	ended    bool
}

// ID returns the trace identifier.
func (t *Trace) ID() string { return t.id }

// StartTrace registers a stage execution and returns its trace. An empty
// traceID is replaced with "<stage>_<microsecond timestamp>".
func (c *Collector) StartTrace(stage models.PipelineStage, traceID string, metadata map[string]string) *Trace {
	start := c.now()
	if traceID == "" {
		traceID = fmt.Sprintf("%s_%d", stage, start.UnixMicro())
	}
	t := &Trace{c: c, stage: stage, id: traceID, start: start, metadata: metadata}

	c.mu.Lock()
	c.active[traceID] = models.ActiveTrace{
		TraceID:   traceID,
		Stage:     stage,
		StartTime: start,
		Metadata:  metadata,
	}
	c.mu.Unlock()
	return t
}

// End finishes the trace and records its measurement. A nil err marks the
// execution successful. Only the first call has any effect.
func (t *Trace) End(err error) {
	end := t.c.now()

	t.c.mu.Lock()
	if t.ended {
		t.c.mu.Unlock()
		return
	}
	t.ended = true

	m := models.LatencyMeasurement{
		Stage:      t.stage,
		StartTime:  t.start,
		EndTime:    end,
		DurationMS: end.Sub(t.start).Seconds() * 1000,
		Success:    err == nil,
		Metadata:   t.metadata,
	}
	if err != nil {
		m.ErrorMessage = err.Error()
	}
	t.c.latency[t.stage].append(m)
	delete(t.c.active, t.id)
	t.c.mu.Unlock()

	metrics.ObserveMeasurement(string(t.stage), metrics.KindLatency)
}

// Track runs fn inside a trace scope. The returned error is fn's error,
// unchanged. A panic in fn is recorded as a failed measurement and then
// re-raised.
func (c *Collector) Track(ctx context.Context, stage models.PipelineStage, fn func(context.Context) error) (err error) {
	trace := c.StartTrace(stage, "", nil)
	defer func() {
		if r := recover(); r != nil {
			trace.End(fmt.Errorf("panic: %v", r))
			panic(r)
		}
		trace.End(err)
	}()
	err = fn(ctx)
	return err
}

// RecordThroughput reports that a stage processed itemsProcessed items over
// windowSeconds, errorCount of which failed. Negative counts and
// non-positive windows are rejected, never clamped.
func (c *Collector) RecordThroughput(stage models.PipelineStage, itemsProcessed, windowSeconds, errorCount int) error {
	if itemsProcessed < 0 {
		return fmt.Errorf("items processed must not be negative, got %d", itemsProcessed)
	}
	if windowSeconds <= 0 {
		return fmt.Errorf("window seconds must be positive, got %d", windowSeconds)
	}
	if errorCount < 0 {
		return fmt.Errorf("error count must not be negative, got %d", errorCount)
	}

	m := models.ThroughputMeasurement{
		Stage:          stage,
		Timestamp:      c.now(),
		ItemsProcessed: itemsProcessed,
		WindowSeconds:  windowSeconds,
		RatePerSecond:  float64(itemsProcessed) / float64(windowSeconds),
		Errors:         errorCount,
	}

	c.mu.Lock()
	c.throughput[stage].append(m)
	c.mu.Unlock()

	metrics.ObserveMeasurement(string(stage), metrics.KindThroughput)
	return nil
}

// RecentLatency returns up to n of the newest latency measurements for a
// stage, oldest first.
func (c *Collector) RecentLatency(stage models.PipelineStage, n int) []models.LatencyMeasurement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency[stage].tail(n)
}

// RecentThroughput returns up to n of the newest throughput measurements
// for a stage, oldest first.
func (c *Collector) RecentThroughput(stage models.PipelineStage, n int) []models.ThroughputMeasurement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.throughput[stage].tail(n)
}

// ActiveTraces returns the in-flight traces ordered by start time.
func (c *Collector) ActiveTraces() []models.ActiveTrace {
	c.mu.Lock()
	out := make([]models.ActiveTrace, 0, len(c.active))
	for _, t := range c.active {
		out = append(out, t)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].TraceID < out[j].TraceID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}
