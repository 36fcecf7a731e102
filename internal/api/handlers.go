// Package api exposes the pipeline monitor over HTTP: health summaries,
// per-stage statistics, SLO state, violation history, and live traces.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/models"
	"github.com/quantpipe/pipeline-monitor/internal/utils"
)

const (
	defaultStatsWindow   = time.Hour
	defaultViolationRows = 100
)

// HealthService provides evaluated monitor state.
type HealthService interface {
	HealthSummary() models.HealthSummary
	CurrentStatuses() []models.SLOStatus
}

// StatsService provides windowed stage statistics and live traces.
type StatsService interface {
	LatencyStats(stage models.PipelineStage, window time.Duration) models.LatencyStats
	ThroughputStats(stage models.PipelineStage, window time.Duration) models.ThroughputStats
	ActiveTraces() []models.ActiveTrace
}

// ViolationSource reads the in-memory violation history.
type ViolationSource interface {
	Recent(limit int) []models.ViolationRecord
}

// ViolationHistory reads persisted violations. May be absent when the
// monitor runs without a database.
type ViolationHistory interface {
	ViolationsSince(ctx context.Context, since time.Time, limit int) ([]models.ViolationRecord, error)
}

// Router exposes the monitoring endpoints.
type Router struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	health  HealthService
	stats   StatsService
	tracker ViolationSource
	history ViolationHistory
}

// NewRouter creates and registers handlers. history may be nil.
func NewRouter(logger *slog.Logger, health HealthService, stats StatsService, tracker ViolationSource, history ViolationHistory) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		health:  health,
		stats:   stats,
		tracker: tracker,
		history: history,
	}
	r.routes()
	return r
}

// ServeHTTP satisfies http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) routes() {
	r.mux.HandleFunc("/healthz", r.handleHealthz)
	r.mux.HandleFunc("/api/v1/health", r.handleHealth)
	r.mux.HandleFunc("/api/v1/stages", r.handleStages)
	r.mux.HandleFunc("/api/v1/stages/", r.handleStageDetail)
	r.mux.HandleFunc("/api/v1/slos", r.handleSLOs)
	r.mux.HandleFunc("/api/v1/violations", r.handleViolations)
	r.mux.HandleFunc("/api/v1/traces/active", r.handleActiveTraces)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.writeJSON(w, http.StatusOK, r.health.HealthSummary())
}

func (r *Router) handleStages(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	window, err := parseWindow(req)
	if err != nil {
		r.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload := make(map[string]models.StagePerformance, len(models.Stages()))
	for _, stage := range models.Stages() {
		payload[string(stage)] = models.StagePerformance{
			Latency:    r.stats.LatencyStats(stage, window),
			Throughput: r.stats.ThroughputStats(stage, window),
		}
	}
	r.writeJSON(w, http.StatusOK, payload)
}

func (r *Router) handleStageDetail(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/v1/stages/"), "/")
	if name == "" {
		r.writeError(w, http.StatusBadRequest, "stage name required")
		return
	}
	stage, err := models.ParseStage(name)
	if err != nil {
		r.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	window, err := parseWindow(req)
	if err != nil {
		r.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	traces := make([]models.ActiveTrace, 0)
	for _, trace := range r.stats.ActiveTraces() {
		if trace.Stage == stage {
			traces = append(traces, trace)
		}
	}

	r.writeJSON(w, http.StatusOK, map[string]any{
		"stage":         string(stage),
		"latency":       r.stats.LatencyStats(stage, window),
		"throughput":    r.stats.ThroughputStats(stage, window),
		"active_traces": traces,
	})
}

func (r *Router) handleSLOs(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.writeJSON(w, http.StatusOK, r.health.CurrentStatuses())
}

// handleViolations serves the in-memory history by default. A since query
// parameter switches to the persisted history, which survives restarts.
func (r *Router) handleViolations(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, err := parseLimit(req)
	if err != nil {
		r.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sinceRaw := req.URL.Query().Get("since")
	if sinceRaw == "" {
		r.writeJSON(w, http.StatusOK, r.tracker.Recent(limit))
		return
	}

	since, err := utils.ParseRFC3339(sinceRaw)
	if err != nil {
		r.writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
		return
	}
	if r.history == nil {
		r.writeError(w, http.StatusServiceUnavailable, "violation history is not configured")
		return
	}

	records, err := r.history.ViolationsSince(req.Context(), since, limit)
	if err != nil {
		r.logger.Error("query violation history", slog.Any("error", err))
		r.writeError(w, http.StatusInternalServerError, "query violation history")
		return
	}
	if records == nil {
		records = []models.ViolationRecord{}
	}
	r.writeJSON(w, http.StatusOK, records)
}

func (r *Router) handleActiveTraces(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.writeJSON(w, http.StatusOK, r.stats.ActiveTraces())
}

func parseWindow(req *http.Request) (time.Duration, error) {
	raw := req.URL.Query().Get("window")
	if raw == "" {
		return defaultStatsWindow, nil
	}
	window, err := time.ParseDuration(raw)
	if err != nil || window <= 0 {
		return 0, fmt.Errorf("invalid window %q", raw)
	}
	return window, nil
}

func parseLimit(req *http.Request) (int, error) {
	raw := req.URL.Query().Get("limit")
	if raw == "" {
		return defaultViolationRows, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Error("encode response", slog.Any("error", err))
	}
}

func (r *Router) writeError(w http.ResponseWriter, status int, msg string) {
	r.writeJSON(w, status, map[string]string{"error": msg})
}
