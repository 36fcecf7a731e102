package slo

import (
	"testing"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/models"
)

type stubStats struct {
	latency    map[models.PipelineStage]models.LatencyStats
	throughput map[models.PipelineStage]models.ThroughputStats
}

func (s *stubStats) LatencyStats(stage models.PipelineStage, _ time.Duration) models.LatencyStats {
	return s.latency[stage]
}

func (s *stubStats) ThroughputStats(stage models.PipelineStage, _ time.Duration) models.ThroughputStats {
	return s.throughput[stage]
}

func latencySource(stage models.PipelineStage, p95 float64) *stubStats {
	return &stubStats{
		latency: map[models.PipelineStage]models.LatencyStats{
			stage: {Count: 20, P95MS: p95},
		},
	}
}

func throughputSource(stage models.PipelineStage, mean float64) *stubStats {
	return &stubStats{
		throughput: map[models.PipelineStage]models.ThroughputStats{
			stage: {Count: 10, MeanThroughput: mean},
		},
	}
}

func newEvaluator(t *testing.T, defs ...models.SLODefinition) (*Evaluator, *ViolationTracker) {
	t.Helper()
	reg, err := NewRegistry(defs)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	tracker := NewViolationTracker(100)
	return NewEvaluator(reg, tracker, nil), tracker
}

func TestEvaluatorLatencyClassification(t *testing.T) {
	def := validLatencyDef("signal_latency")

	cases := []struct {
		p95  float64
		want models.StatusLevel
	}{
		{800, models.StatusHealthy},
		{1000, models.StatusHealthy},
		{1200, models.StatusWarning},
		{1500, models.StatusWarning},
		// Classification compares against the warning bound only, so
		// anything past it is critical even below the critical threshold.
		{2000, models.StatusCritical},
		{4000, models.StatusCritical},
	}
	for _, tc := range cases {
		eval, _ := newEvaluator(t, def)
		statuses := eval.Current(latencySource(def.Stage, tc.p95))
		if len(statuses) != 1 {
			t.Fatalf("expected 1 status, got %d", len(statuses))
		}
		if statuses[0].Status != tc.want {
			t.Fatalf("p95 %v: expected %s, got %s", tc.p95, tc.want, statuses[0].Status)
		}
		if statuses[0].Current != tc.p95 {
			t.Fatalf("expected current %v, got %v", tc.p95, statuses[0].Current)
		}
	}
}

func TestEvaluatorThroughputClassification(t *testing.T) {
	def := models.SLODefinition{
		Name:     "data_processing_throughput",
		Stage:    models.StageDataProcessing,
		Metric:   models.MetricThroughput,
		Target:   100,
		Warning:  50,
		Critical: 20,
		Window:   5 * time.Minute,
	}

	cases := []struct {
		mean float64
		want models.StatusLevel
	}{
		{120, models.StatusHealthy},
		{100, models.StatusHealthy},
		{60, models.StatusWarning},
		{50, models.StatusWarning},
		{40, models.StatusCritical},
		{10, models.StatusCritical},
	}
	for _, tc := range cases {
		eval, _ := newEvaluator(t, def)
		statuses := eval.Current(throughputSource(def.Stage, tc.mean))
		if statuses[0].Status != tc.want {
			t.Fatalf("mean %v: expected %s, got %s", tc.mean, tc.want, statuses[0].Status)
		}
	}
}

func TestEvaluatorUnknownWithoutData(t *testing.T) {
	latency := validLatencyDef("signal_latency")
	throughput := models.SLODefinition{
		Name:     "data_processing_throughput",
		Stage:    models.StageDataProcessing,
		Metric:   models.MetricThroughput,
		Target:   100,
		Warning:  50,
		Critical: 20,
		Window:   5 * time.Minute,
	}

	eval, tracker := newEvaluator(t, latency, throughput)
	statuses, recorded := eval.Run(&stubStats{})

	if len(recorded) != 0 {
		t.Fatalf("no-data evaluation must not record violations, got %d", len(recorded))
	}
	for _, status := range statuses {
		if status.Status != models.StatusUnknown {
			t.Fatalf("%s: expected unknown, got %s", status.Name, status.Status)
		}
		if status.Current != 0 || status.Compliance != 0 {
			t.Fatalf("%s: expected zero current and compliance, got %v/%v", status.Name, status.Current, status.Compliance)
		}
	}
	if len(tracker.Recent(0)) != 0 {
		t.Fatal("tracker must stay empty")
	}
}

func TestEvaluatorCompliance(t *testing.T) {
	latency := validLatencyDef("signal_latency")
	throughput := models.SLODefinition{
		Name:     "data_processing_throughput",
		Stage:    models.StageDataProcessing,
		Metric:   models.MetricThroughput,
		Target:   100,
		Warning:  50,
		Critical: 20,
		Window:   5 * time.Minute,
	}

	eval, _ := newEvaluator(t, latency)
	statuses := eval.Current(latencySource(latency.Stage, 2000))
	if statuses[0].Compliance != 50 {
		t.Fatalf("expected latency compliance 50, got %v", statuses[0].Compliance)
	}
	statuses = eval.Current(latencySource(latency.Stage, 500))
	if statuses[0].Compliance != 100 {
		t.Fatalf("expected compliance capped at 100, got %v", statuses[0].Compliance)
	}

	eval, _ = newEvaluator(t, throughput)
	statuses = eval.Current(throughputSource(throughput.Stage, 50))
	if statuses[0].Compliance != 50 {
		t.Fatalf("expected throughput compliance 50, got %v", statuses[0].Compliance)
	}
	statuses = eval.Current(throughputSource(throughput.Stage, 250))
	if statuses[0].Compliance != 100 {
		t.Fatalf("expected compliance capped at 100, got %v", statuses[0].Compliance)
	}
}

func TestRunRecordsViolations(t *testing.T) {
	def := validLatencyDef("signal_latency")
	eval, tracker := newEvaluator(t, def)
	src := latencySource(def.Stage, 4000)

	statuses, recorded := eval.Run(src)
	if len(recorded) != 1 {
		t.Fatalf("expected 1 recorded violation, got %d", len(recorded))
	}
	if recorded[0].SLOName != def.Name || recorded[0].Status != models.StatusCritical {
		t.Fatalf("unexpected violation record %+v", recorded[0])
	}
	if recorded[0].ID == "" {
		t.Fatal("violation record must carry an id")
	}
	// The returned count reflects history before this pass.
	if statuses[0].ViolationCount24h != 0 {
		t.Fatalf("expected pre-pass count 0, got %d", statuses[0].ViolationCount24h)
	}

	statuses, _ = eval.Run(src)
	if statuses[0].ViolationCount24h != 1 {
		t.Fatalf("expected count 1 on second pass, got %d", statuses[0].ViolationCount24h)
	}
	if statuses[0].LastViolation == nil {
		t.Fatal("expected last violation timestamp on second pass")
	}
	if got := len(tracker.Recent(0)); got != 2 {
		t.Fatalf("expected 2 tracked violations, got %d", got)
	}
}

func TestRunSkipsHealthy(t *testing.T) {
	def := validLatencyDef("signal_latency")
	eval, tracker := newEvaluator(t, def)

	_, recorded := eval.Run(latencySource(def.Stage, 800))
	if len(recorded) != 0 {
		t.Fatalf("healthy evaluation must not record, got %d", len(recorded))
	}
	if len(tracker.Recent(0)) != 0 {
		t.Fatal("tracker must stay empty for healthy SLO")
	}
}

func TestCurrentHasNoSideEffects(t *testing.T) {
	def := validLatencyDef("signal_latency")
	eval, tracker := newEvaluator(t, def)

	for i := 0; i < 3; i++ {
		statuses := eval.Current(latencySource(def.Stage, 4000))
		if statuses[0].Status != models.StatusCritical {
			t.Fatalf("expected critical, got %s", statuses[0].Status)
		}
	}
	if len(tracker.Recent(0)) != 0 {
		t.Fatal("Current must not record violations")
	}
}
