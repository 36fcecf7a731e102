package collector

import (
	"sort"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/models"
)

// LatencyStats summarises the successful measurements recorded for stage
// inside the trailing window. The success rate divides in-window successes
// by everything currently buffered for the stage, failures included.
func (c *Collector) LatencyStats(stage models.PipelineStage, window time.Duration) models.LatencyStats {
	cutoff := c.now().Add(-window)

	c.mu.Lock()
	buffered := c.latency[stage].snapshot()
	c.mu.Unlock()

	durations := make([]float64, 0, len(buffered))
	for _, m := range buffered {
		if m.Success && !m.StartTime.Before(cutoff) {
			durations = append(durations, m.DurationMS)
		}
	}
	if len(durations) == 0 {
		return models.LatencyStats{}
	}

	sort.Float64s(durations)
	return models.LatencyStats{
		Count:       len(durations),
		MeanMS:      mean(durations),
		MedianMS:    median(durations),
		P95MS:       percentile(durations, 95),
		P99MS:       percentile(durations, 99),
		MinMS:       durations[0],
		MaxMS:       durations[len(durations)-1],
		SuccessRate: float64(len(durations)) / float64(len(buffered)),
	}
}

// ThroughputStats summarises the throughput reports recorded for stage
// inside the trailing window.
func (c *Collector) ThroughputStats(stage models.PipelineStage, window time.Duration) models.ThroughputStats {
	cutoff := c.now().Add(-window)

	c.mu.Lock()
	buffered := c.throughput[stage].snapshot()
	c.mu.Unlock()

	var (
		rates       []float64
		totalItems  int
		totalErrors int
	)
	for _, m := range buffered {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		rates = append(rates, m.RatePerSecond)
		totalItems += m.ItemsProcessed
		totalErrors += m.Errors
	}
	if len(rates) == 0 {
		return models.ThroughputStats{}
	}

	maxRate := rates[0]
	for _, r := range rates[1:] {
		if r > maxRate {
			maxRate = r
		}
	}
	errorRate := 0.0
	if totalItems > 0 {
		errorRate = float64(totalErrors) / float64(totalItems)
	}
	return models.ThroughputStats{
		Count:          len(rates),
		MeanThroughput: mean(rates),
		MaxThroughput:  maxRate,
		TotalItems:     totalItems,
		TotalErrors:    totalErrors,
		ErrorRate:      errorRate,
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median averages the two middle values for even-length input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile picks the nearest-rank element at index n*p/100, clamped to
// the last element. Input must be sorted.
func percentile(sorted []float64, p int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := n * p / 100
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}
