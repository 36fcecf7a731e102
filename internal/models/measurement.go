package models

import "time"

// LatencyMeasurement is one completed execution of a pipeline stage,
// produced by a trace. Measurements are immutable once recorded.
type LatencyMeasurement struct {
	Stage        PipelineStage     `json:"stage"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	DurationMS   float64           `json:"duration_ms"`
	Success      bool              `json:"success"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ThroughputMeasurement reports how many items a stage processed over an
// explicit time window.
type ThroughputMeasurement struct {
	Stage          PipelineStage `json:"stage"`
	Timestamp      time.Time     `json:"timestamp"`
	ItemsProcessed int           `json:"items_processed"`
	WindowSeconds  int           `json:"window_seconds"`
	RatePerSecond  float64       `json:"throughput_per_second"`
	Errors         int           `json:"errors"`
}

// ActiveTrace describes a stage execution that has started but not yet
// finished. Exposed for introspection only.
type ActiveTrace struct {
	TraceID   string            `json:"trace_id"`
	Stage     PipelineStage     `json:"stage"`
	StartTime time.Time         `json:"start_time"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// LatencyStats summarises successful latency measurements inside a time
// window. SuccessRate is the in-window success count divided by the total
// number of buffered measurements for the stage, successful or not.
type LatencyStats struct {
	Count       int     `json:"count"`
	MeanMS      float64 `json:"mean_ms"`
	MedianMS    float64 `json:"median_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	MinMS       float64 `json:"min_ms"`
	MaxMS       float64 `json:"max_ms"`
	SuccessRate float64 `json:"success_rate"`
}

// ThroughputStats summarises throughput measurements inside a time window.
type ThroughputStats struct {
	Count          int     `json:"count"`
	MeanThroughput float64 `json:"mean_throughput"`
	MaxThroughput  float64 `json:"max_throughput"`
	TotalItems     int     `json:"total_items"`
	TotalErrors    int     `json:"total_errors"`
	ErrorRate      float64 `json:"error_rate"`
}
