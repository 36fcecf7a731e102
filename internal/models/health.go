package models

import "time"

// SLOSummary counts SLOs per status level.
type SLOSummary struct {
	Total    int `json:"total"`
	Healthy  int `json:"healthy"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
	Unknown  int `json:"unknown"`
}

// StagePerformance bundles the recent latency and throughput statistics of
// one stage. Zero-count stats mean no data in the window.
type StagePerformance struct {
	Latency    LatencyStats    `json:"latency"`
	Throughput ThroughputStats `json:"throughput"`
}

// HealthSummary is the full pipeline health snapshot returned by the
// monitor and published to the cache.
type HealthSummary struct {
	Timestamp        time.Time                   `json:"timestamp"`
	MonitoringActive bool                        `json:"monitoring_active"`
	OverallHealthPct float64                     `json:"overall_health_percentage"`
	SLOSummary       SLOSummary                  `json:"slo_summary"`
	SLODetails       []SLOStatus                 `json:"slo_details"`
	StagePerformance map[string]StagePerformance `json:"stage_performance"`
}
