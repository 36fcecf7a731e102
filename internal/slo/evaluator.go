package slo

import (
	"log/slog"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/metrics"
	"github.com/quantpipe/pipeline-monitor/internal/models"
)

// StatsSource supplies the windowed statistics SLOs are evaluated against.
type StatsSource interface {
	LatencyStats(stage models.PipelineStage, window time.Duration) models.LatencyStats
	ThroughputStats(stage models.PipelineStage, window time.Duration) models.ThroughputStats
}

// Evaluator classifies every registered SLO against current statistics.
type Evaluator struct {
	registry *Registry
	tracker  *ViolationTracker
	logger   *slog.Logger
}

// NewEvaluator wires a registry and violation tracker together.
func NewEvaluator(registry *Registry, tracker *ViolationTracker, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{registry: registry, tracker: tracker, logger: logger}
}

// Run evaluates every SLO and records warning and critical outcomes with
// the violation tracker. It returns all statuses plus the violations
// recorded during this pass.
func (e *Evaluator) Run(src StatsSource) ([]models.SLOStatus, []models.ViolationRecord) {
	defs := e.registry.Definitions()
	statuses := make([]models.SLOStatus, 0, len(defs))
	var recorded []models.ViolationRecord

	for _, def := range defs {
		status := e.evaluate(def, src)
		statuses = append(statuses, status)

		if status.Status == models.StatusWarning || status.Status == models.StatusCritical {
			rec := e.tracker.Record(def, status)
			recorded = append(recorded, rec)
			metrics.ObserveViolation(def.Name, string(status.Status))
		}
	}
	return statuses, recorded
}

// Current evaluates every SLO without recording violations. Used for
// read-only health queries.
func (e *Evaluator) Current(src StatsSource) []models.SLOStatus {
	defs := e.registry.Definitions()
	statuses := make([]models.SLOStatus, 0, len(defs))
	for _, def := range defs {
		statuses = append(statuses, e.evaluate(def, src))
	}
	return statuses
}

// evaluate classifies one SLO. The 24h violation count reflects history
// before this pass records anything.
func (e *Evaluator) evaluate(def models.SLODefinition, src StatsSource) models.SLOStatus {
	status := models.SLOStatus{
		Name:              def.Name,
		Target:            def.Target,
		LastViolation:     e.tracker.LastViolation(def.Name),
		ViolationCount24h: e.tracker.CountInLast24h(def.Name),
	}

	var current float64
	var hasData bool
	switch def.Metric {
	case models.MetricLatency:
		stats := src.LatencyStats(def.Stage, def.Window)
		current, hasData = stats.P95MS, stats.Count > 0
	case models.MetricThroughput:
		stats := src.ThroughputStats(def.Stage, def.Window)
		current, hasData = stats.MeanThroughput, stats.Count > 0
	}

	if !hasData {
		status.Status = models.StatusUnknown
		metrics.ObserveEvaluation(string(models.StatusUnknown))
		e.logger.Debug("no measurements for slo",
			slog.String("slo", def.Name),
			slog.String("stage", string(def.Stage)),
		)
		return status
	}

	status.Current = current
	status.Status = classify(def, current)
	status.Compliance = compliance(def, current)
	metrics.ObserveEvaluation(string(status.Status))
	return status
}

func classify(def models.SLODefinition, current float64) models.StatusLevel {
	if def.Metric == models.MetricLatency {
		// Lower is better.
		switch {
		case current <= def.Target:
			return models.StatusHealthy
		case current <= def.Warning:
			return models.StatusWarning
		default:
			return models.StatusCritical
		}
	}
	// Higher is better.
	switch {
	case current >= def.Target:
		return models.StatusHealthy
	case current >= def.Warning:
		return models.StatusWarning
	default:
		return models.StatusCritical
	}
}

// compliance is capped at 100. A non-positive latency reading or
// throughput target counts as fully compliant.
func compliance(def models.SLODefinition, current float64) float64 {
	if def.Metric == models.MetricLatency {
		if current <= 0 {
			return 100
		}
		return min(100, def.Target/current*100)
	}
	if def.Target <= 0 {
		return 100
	}
	return min(100, current/def.Target*100)
}
