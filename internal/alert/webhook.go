package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/models"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookSink posts a formatted alert message to an HTTP endpoint.
type WebhookSink struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

// NewWebhookSink returns a sink posting to url. A non-positive timeout
// falls back to 10 seconds.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookSink{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

type webhookPayload struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	AlertType string `json:"alert_type"`
}

// Deliver posts the violation batch as a single alert. An empty batch or
// an unset URL is a no-op.
func (s *WebhookSink) Deliver(ctx context.Context, violations []models.SLOStatus) error {
	if s.url == "" || len(violations) == 0 {
		return nil
	}

	now := s.now()
	payload := webhookPayload{
		Text:      formatAlert(now, violations),
		Timestamp: now.Format(time.RFC3339),
		AlertType: "slo_violation",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook alert failed: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return nil
}

func formatAlert(now time.Time, violations []models.SLOStatus) string {
	var b strings.Builder
	b.WriteString("SLO Violations Detected\n")
	fmt.Fprintf(&b, "Time: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Violations: %d\n\n", len(violations))

	for _, v := range violations {
		fmt.Fprintf(&b, "- %s:\n", v.Name)
		fmt.Fprintf(&b, "  Status: %s\n", strings.ToUpper(string(v.Status)))
		fmt.Fprintf(&b, "  Current: %.2f\n", v.Current)
		fmt.Fprintf(&b, "  Target: %.2f\n", v.Target)
		fmt.Fprintf(&b, "  Compliance: %.1f%%\n\n", v.Compliance)
	}
	return strings.TrimRight(b.String(), "\n")
}
