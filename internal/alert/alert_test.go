package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/models"
)

type recorderSink struct {
	calls [][]models.SLOStatus
	err   error
}

func (r *recorderSink) Deliver(_ context.Context, violations []models.SLOStatus) error {
	r.calls = append(r.calls, violations)
	return r.err
}

type stubCache struct {
	mu   sync.Mutex
	data map[string]time.Time
	now  time.Time
	err  error
}

func newStubCache() *stubCache {
	return &stubCache{
		data: make(map[string]time.Time),
		now:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func (s *stubCache) Set(context.Context, string, []byte, time.Duration) error {
	return s.err
}

func (s *stubCache) SetNX(_ context.Context, key string, _ []byte, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if expiry, ok := s.data[key]; ok && s.now.Before(expiry) {
		return false, nil
	}
	s.data[key] = s.now.Add(ttl)
	return true, nil
}

func (s *stubCache) Close() error { return nil }

func (s *stubCache) advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

func criticalStatus(name string) models.SLOStatus {
	return models.SLOStatus{
		Name:       name,
		Status:     models.StatusCritical,
		Current:    4200.5,
		Target:     1000,
		Compliance: 23.8,
	}
}

func TestWebhookDeliverPayload(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotBody        []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, time.Second)
	err := sink.Deliver(context.Background(), []models.SLOStatus{criticalStatus("signal_generation_latency")})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}

	var payload struct {
		Text      string `json:"text"`
		Timestamp string `json:"timestamp"`
		AlertType string `json:"alert_type"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.AlertType != "slo_violation" {
		t.Fatalf("unexpected alert type %q", payload.AlertType)
	}
	if _, err := time.Parse(time.RFC3339, payload.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %v", err)
	}
	for _, want := range []string{"SLO Violations Detected", "signal_generation_latency", "Status: CRITICAL", "Current: 4200.50", "Target: 1000.00", "Compliance: 23.8%"} {
		if !strings.Contains(payload.Text, want) {
			t.Fatalf("alert text missing %q:\n%s", want, payload.Text)
		}
	}
}

func TestWebhookNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "channel unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, time.Second)
	err := sink.Deliver(context.Background(), []models.SLOStatus{criticalStatus("order_execution_latency")})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "channel unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestWebhookSkipsEmptyBatch(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, time.Second)
	if err := sink.Deliver(context.Background(), nil); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if requests != 0 {
		t.Fatalf("expected no request for empty batch, got %d", requests)
	}

	unset := NewWebhookSink("", time.Second)
	if err := unset.Deliver(context.Background(), []models.SLOStatus{criticalStatus("signal_generation_latency")}); err != nil {
		t.Fatalf("deliver without url: %v", err)
	}
}

func TestCooldownGateSuppressesRepeat(t *testing.T) {
	next := &recorderSink{}
	cache := newStubCache()
	gate := NewCooldownGate(next, cache, 5*time.Minute, nil)

	batch := []models.SLOStatus{criticalStatus("signal_generation_latency")}
	if err := gate.Deliver(context.Background(), batch); err != nil {
		t.Fatalf("first deliver: %v", err)
	}
	if len(next.calls) != 1 {
		t.Fatalf("expected first alert delivered, got %d calls", len(next.calls))
	}

	cache.advance(time.Minute)
	if err := gate.Deliver(context.Background(), batch); err != nil {
		t.Fatalf("second deliver: %v", err)
	}
	if len(next.calls) != 1 {
		t.Fatalf("expected repeat alert suppressed, got %d calls", len(next.calls))
	}

	cache.advance(10 * time.Minute)
	if err := gate.Deliver(context.Background(), batch); err != nil {
		t.Fatalf("third deliver: %v", err)
	}
	if len(next.calls) != 2 {
		t.Fatalf("expected alert after cooldown expiry, got %d calls", len(next.calls))
	}
}

func TestCooldownGatePerSLO(t *testing.T) {
	next := &recorderSink{}
	cache := newStubCache()
	gate := NewCooldownGate(next, cache, 5*time.Minute, nil)

	if err := gate.Deliver(context.Background(), []models.SLOStatus{criticalStatus("slo_a")}); err != nil {
		t.Fatalf("deliver a: %v", err)
	}
	if err := gate.Deliver(context.Background(), []models.SLOStatus{
		criticalStatus("slo_a"),
		criticalStatus("slo_b"),
	}); err != nil {
		t.Fatalf("deliver a+b: %v", err)
	}

	if len(next.calls) != 2 {
		t.Fatalf("expected 2 forwarded batches, got %d", len(next.calls))
	}
	second := next.calls[1]
	if len(second) != 1 || second[0].Name != "slo_b" {
		t.Fatalf("expected only slo_b forwarded, got %v", second)
	}
}

func TestCooldownGateFailsOpen(t *testing.T) {
	next := &recorderSink{}
	cache := newStubCache()
	cache.err = errors.New("connection refused")
	gate := NewCooldownGate(next, cache, 5*time.Minute, nil)

	if err := gate.Deliver(context.Background(), []models.SLOStatus{criticalStatus("slo_a")}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(next.calls) != 1 {
		t.Fatal("cache failure must not suppress alerts")
	}
}

func TestCooldownGateDisabled(t *testing.T) {
	next := &recorderSink{}
	cache := newStubCache()
	gate := NewCooldownGate(next, cache, 0, nil)

	batch := []models.SLOStatus{criticalStatus("slo_a")}
	for i := 0; i < 3; i++ {
		if err := gate.Deliver(context.Background(), batch); err != nil {
			t.Fatalf("deliver %d: %v", i, err)
		}
	}
	if len(next.calls) != 3 {
		t.Fatalf("expected passthrough with zero cooldown, got %d calls", len(next.calls))
	}
	if len(cache.data) != 0 {
		t.Fatal("disabled gate must not touch the cache")
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recorderSink{}
	failing := &recorderSink{err: errors.New("webhook down")}
	multi := Multi{ok, failing}

	batch := []models.SLOStatus{criticalStatus("slo_a")}
	err := multi.Deliver(context.Background(), batch)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.calls) != 1 || len(failing.calls) != 1 {
		t.Fatal("every sink must receive the batch")
	}
}
