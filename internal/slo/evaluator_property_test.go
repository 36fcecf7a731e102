package slo

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/quantpipe/pipeline-monitor/internal/models"
)

// Compliance is always inside [0, 100] for any positive thresholds and any
// non-negative reading, for both metric kinds.
func TestComplianceBoundsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		target := rapid.Float64Range(0.001, 1e6).Draw(rt, "target")
		current := rapid.Float64Range(0, 1e6).Draw(rt, "current")

		latency := models.SLODefinition{
			Name:     "lat",
			Stage:    models.StageSignalGeneration,
			Metric:   models.MetricLatency,
			Target:   target,
			Warning:  target * 2,
			Critical: target * 4,
			Window:   time.Minute,
		}
		throughput := models.SLODefinition{
			Name:     "thr",
			Stage:    models.StageDataProcessing,
			Metric:   models.MetricThroughput,
			Target:   target,
			Warning:  target / 2,
			Critical: target / 4,
			Window:   time.Minute,
		}

		for _, def := range []models.SLODefinition{latency, throughput} {
			got := compliance(def, current)
			if got < 0 || got > 100 {
				rt.Fatalf("%s compliance %v outside [0, 100] for current %v target %v", def.Metric, got, current, target)
			}
		}
	})
}

// Classification and compliance agree: a healthy latency SLO is always
// fully compliant, and a healthy throughput SLO never reports less than
// full compliance.
func TestHealthyMeansCompliantProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		target := rapid.Float64Range(1, 1e5).Draw(rt, "target")
		current := rapid.Float64Range(0, 1e6).Draw(rt, "current")

		latency := models.SLODefinition{
			Name:     "lat",
			Stage:    models.StageSignalGeneration,
			Metric:   models.MetricLatency,
			Target:   target,
			Warning:  target * 2,
			Critical: target * 4,
			Window:   time.Minute,
		}
		if classify(latency, current) == models.StatusHealthy {
			if got := compliance(latency, current); got != 100 {
				rt.Fatalf("healthy latency slo with compliance %v", got)
			}
		}

		throughput := models.SLODefinition{
			Name:     "thr",
			Stage:    models.StageDataProcessing,
			Metric:   models.MetricThroughput,
			Target:   target,
			Warning:  target / 2,
			Critical: target / 4,
			Window:   time.Minute,
		}
		if classify(throughput, current) == models.StatusHealthy {
			if got := compliance(throughput, current); got != 100 {
				rt.Fatalf("healthy throughput slo with compliance %v", got)
			}
		}
	})
}
