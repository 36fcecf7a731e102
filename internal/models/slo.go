package models

import (
	"fmt"
	"time"
)

// MetricKind selects which statistic an SLO is evaluated against.
type MetricKind string

const (
	// MetricLatency compares the stage's p95 latency against the target.
	// Lower is better.
	MetricLatency MetricKind = "latency"
	// MetricThroughput compares the stage's mean throughput against the
	// target. Higher is better.
	MetricThroughput MetricKind = "throughput"
)

// ParseMetricKind maps a raw string onto a known MetricKind.
func ParseMetricKind(s string) (MetricKind, error) {
	switch MetricKind(s) {
	case MetricLatency:
		return MetricLatency, nil
	case MetricThroughput:
		return MetricThroughput, nil
	}
	return "", fmt.Errorf("unknown metric kind %q", s)
}

// StatusLevel is the health classification of a single SLO.
type StatusLevel string

const (
	StatusHealthy  StatusLevel = "healthy"
	StatusWarning  StatusLevel = "warning"
	StatusCritical StatusLevel = "critical"
	// StatusUnknown means no measurements were available in the SLO's
	// window, for either metric kind.
	StatusUnknown StatusLevel = "unknown"
)

// SLODefinition declares a performance objective for one pipeline stage.
type SLODefinition struct {
	Name     string        `json:"name"`
	Stage    PipelineStage `json:"stage"`
	Metric   MetricKind    `json:"metric_type"`
	Target   float64       `json:"target_value"`
	Warning  float64       `json:"warning_threshold"`
	Critical float64       `json:"critical_threshold"`
	// Window bounds how far back measurements are considered.
	Window      time.Duration `json:"measurement_window"`
	Description string        `json:"description,omitempty"`
}

// Validate checks internal consistency: thresholds must be ordered the
// right way round for the metric kind, and the window must be positive.
func (d SLODefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("slo name must not be empty")
	}
	if _, err := ParseStage(string(d.Stage)); err != nil {
		return fmt.Errorf("slo %s: %w", d.Name, err)
	}
	if d.Window <= 0 {
		return fmt.Errorf("slo %s: measurement window must be positive, got %s", d.Name, d.Window)
	}
	switch d.Metric {
	case MetricLatency:
		if !(d.Target <= d.Warning && d.Warning <= d.Critical) {
			return fmt.Errorf("slo %s: latency thresholds must satisfy target <= warning <= critical", d.Name)
		}
	case MetricThroughput:
		if !(d.Target >= d.Warning && d.Warning >= d.Critical) {
			return fmt.Errorf("slo %s: throughput thresholds must satisfy target >= warning >= critical", d.Name)
		}
	default:
		return fmt.Errorf("slo %s: unknown metric kind %q", d.Name, d.Metric)
	}
	return nil
}

// SLOStatus is the outcome of evaluating one SLO.
type SLOStatus struct {
	Name              string      `json:"slo_name"`
	Status            StatusLevel `json:"status"`
	Current           float64     `json:"current_value"`
	Target            float64     `json:"target_value"`
	Compliance        float64     `json:"compliance_percentage"`
	LastViolation     *time.Time  `json:"last_violation,omitempty"`
	ViolationCount24h int         `json:"violation_count_24h"`
}

// ViolationRecord is one warning or critical evaluation outcome, kept by
// the violation tracker and persisted for history queries.
type ViolationRecord struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	SLOName    string      `json:"slo_name"`
	Status     StatusLevel `json:"status"`
	Current    float64     `json:"current_value"`
	Target     float64     `json:"target_value"`
	Compliance float64     `json:"compliance_percentage"`
}
