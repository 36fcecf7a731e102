// Package monitor drives the periodic evaluation cycle: collected
// statistics are checked against SLOs, snapshots persisted, and
// violations forwarded to the alert sinks.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/alert"
	"github.com/quantpipe/pipeline-monitor/internal/cache"
	"github.com/quantpipe/pipeline-monitor/internal/collector"
	"github.com/quantpipe/pipeline-monitor/internal/metrics"
	"github.com/quantpipe/pipeline-monitor/internal/models"
	"github.com/quantpipe/pipeline-monitor/internal/slo"
	"github.com/quantpipe/pipeline-monitor/internal/store"
)

const (
	defaultInterval    = 30 * time.Second
	defaultStopTimeout = 5 * time.Second

	// Per-stage persistence batch sizes for one tick.
	latencyBatchSize    = 100
	throughputBatchSize = 50

	// Window used for the per-stage statistics in health summaries.
	stageWindow = time.Hour

	cleanupInterval = time.Hour
	healthCacheKey  = "pipemon:health:latest"
)

// Monitor owns the background evaluation loop.
type Monitor struct {
	logger    *slog.Logger
	collector *collector.Collector
	evaluator *slo.Evaluator
	store     store.Store
	alerts    alert.Sink
	cache     cache.Provider

	interval    time.Duration
	stopTimeout time.Duration
	retention   time.Duration
	now         func() time.Time

	mu          sync.Mutex
	running     bool
	stop        chan struct{}
	done        chan struct{}
	lastCleanup time.Time

	// onTick, when set, is called at the end of every cycle. Tests use it
	// to observe loop progress.
	onTick func()
}

// Option adjusts monitor construction.
type Option func(*Monitor)

// WithInterval sets the evaluation interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the loop to exit.
func WithStopTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.stopTimeout = d
		}
	}
}

// WithRetention enables hourly cleanup of persisted rows older than d.
func WithRetention(d time.Duration) Option {
	return func(m *Monitor) {
		m.retention = d
	}
}

// WithClock substitutes the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New wires the monitor's collaborators. Nil store, sink and cache fall
// back to no-op implementations.
func New(logger *slog.Logger, coll *collector.Collector, eval *slo.Evaluator, st store.Store, sink alert.Sink, provider cache.Provider, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if st == nil {
		st = store.NoopStore{}
	}
	if sink == nil {
		sink = alert.Multi{}
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}

	m := &Monitor{
		logger:      logger,
		collector:   coll,
		evaluator:   eval,
		store:       st,
		alerts:      sink,
		cache:       provider,
		interval:    defaultInterval,
		stopTimeout: defaultStopTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the background loop. Calling Start on a running monitor
// is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stop, m.done)
	m.logger.Info("pipeline monitoring started", slog.Duration("interval", m.interval))
}

// Stop signals the loop to exit and waits for it, bounded by the stop
// timeout. Calling Stop on a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(m.stopTimeout):
		m.logger.Warn("monitoring loop did not stop in time", slog.Duration("timeout", m.stopTimeout))
	}
	m.logger.Info("pipeline monitoring stopped")
}

// Running reports whether the background loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick performs one full cycle: evaluate, persist, alert, publish.
func (m *Monitor) tick() {
	start := m.now()
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	statuses, violations := m.evaluator.Run(m.collector)
	m.persist(ctx, violations)

	if due := filterViolations(statuses); len(due) > 0 {
		if err := m.alerts.Deliver(ctx, due); err != nil {
			metrics.ObserveAlertDelivery(metrics.DeliveryFailed)
			m.logger.Error("alert delivery failed", slog.Any("error", err))
		} else {
			metrics.ObserveAlertDelivery(metrics.DeliveryDelivered)
		}
	}

	m.publishHealth(ctx, statuses)
	m.maybeCleanup(ctx)

	metrics.ObserveTick(m.now().Sub(start))
	if m.onTick != nil {
		m.onTick()
	}
}

// persist mirrors recent buffer contents and this tick's violations to the
// store. Failures are logged and skipped; the next tick retries with fresh
// data.
func (m *Monitor) persist(ctx context.Context, violations []models.ViolationRecord) {
	for _, stage := range models.Stages() {
		if batch := m.collector.RecentLatency(stage, latencyBatchSize); len(batch) > 0 {
			if err := m.store.SaveLatencyBatch(ctx, batch); err != nil {
				metrics.ObservePersistenceFailure()
				m.logger.Warn("latency persistence failed",
					slog.String("stage", string(stage)),
					slog.Any("error", err),
				)
			}
		}
		if batch := m.collector.RecentThroughput(stage, throughputBatchSize); len(batch) > 0 {
			if err := m.store.SaveThroughputBatch(ctx, batch); err != nil {
				metrics.ObservePersistenceFailure()
				m.logger.Warn("throughput persistence failed",
					slog.String("stage", string(stage)),
					slog.Any("error", err),
				)
			}
		}
	}

	if len(violations) > 0 {
		if err := m.store.SaveViolations(ctx, violations); err != nil {
			metrics.ObservePersistenceFailure()
			m.logger.Warn("violation persistence failed", slog.Any("error", err))
		}
	}
}

func (m *Monitor) publishHealth(ctx context.Context, statuses []models.SLOStatus) {
	summary := m.summarize(statuses)
	payload, err := json.Marshal(summary)
	if err != nil {
		m.logger.Warn("health snapshot marshal failed", slog.Any("error", err))
		return
	}
	if err := m.cache.Set(ctx, healthCacheKey, payload, 2*m.interval); err != nil {
		m.logger.Warn("health snapshot publish failed", slog.Any("error", err))
	}
}

func (m *Monitor) maybeCleanup(ctx context.Context) {
	if m.retention <= 0 {
		return
	}
	now := m.now()

	m.mu.Lock()
	due := now.Sub(m.lastCleanup) >= cleanupInterval
	if due {
		m.lastCleanup = now
	}
	m.mu.Unlock()
	if !due {
		return
	}

	if err := m.store.Cleanup(ctx, now.Add(-m.retention)); err != nil {
		metrics.ObservePersistenceFailure()
		m.logger.Warn("retention cleanup failed", slog.Any("error", err))
	}
}

// HealthSummary builds a full pipeline snapshot on demand without
// recording violations.
func (m *Monitor) HealthSummary() models.HealthSummary {
	return m.summarize(m.evaluator.Current(m.collector))
}

// CurrentStatuses evaluates all SLOs read-only.
func (m *Monitor) CurrentStatuses() []models.SLOStatus {
	return m.evaluator.Current(m.collector)
}

func (m *Monitor) summarize(statuses []models.SLOStatus) models.HealthSummary {
	summary := models.HealthSummary{
		Timestamp:        m.now(),
		MonitoringActive: m.Running(),
		SLODetails:       statuses,
		StagePerformance: make(map[string]models.StagePerformance, len(models.Stages())),
	}

	for _, status := range statuses {
		summary.SLOSummary.Total++
		switch status.Status {
		case models.StatusHealthy:
			summary.SLOSummary.Healthy++
		case models.StatusWarning:
			summary.SLOSummary.Warning++
		case models.StatusCritical:
			summary.SLOSummary.Critical++
		default:
			summary.SLOSummary.Unknown++
		}
	}

	if summary.SLOSummary.Total > 0 {
		summary.OverallHealthPct = float64(summary.SLOSummary.Healthy) / float64(summary.SLOSummary.Total) * 100
	} else {
		summary.OverallHealthPct = 100
	}

	for _, stage := range models.Stages() {
		summary.StagePerformance[string(stage)] = models.StagePerformance{
			Latency:    m.collector.LatencyStats(stage, stageWindow),
			Throughput: m.collector.ThroughputStats(stage, stageWindow),
		}
	}
	return summary
}

func filterViolations(statuses []models.SLOStatus) []models.SLOStatus {
	var out []models.SLOStatus
	for _, s := range statuses {
		if s.Status == models.StatusWarning || s.Status == models.StatusCritical {
			out = append(out, s)
		}
	}
	return out
}
