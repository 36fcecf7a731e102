package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/cache"
	"github.com/quantpipe/pipeline-monitor/internal/metrics"
	"github.com/quantpipe/pipeline-monitor/internal/models"
)

const cooldownKeyPrefix = "pipemon:alert:cooldown:"

// CooldownGate drops violations for SLOs that already alerted inside the
// cooldown period. Each SLO cools down independently; the claim lives in
// the cache so restarts and replicas share it.
type CooldownGate struct {
	next     Sink
	cache    cache.Provider
	cooldown time.Duration
	logger   *slog.Logger
}

// NewCooldownGate wraps next with a cooldown of the given length. A
// non-positive cooldown disables gating.
func NewCooldownGate(next Sink, provider cache.Provider, cooldown time.Duration, logger *slog.Logger) *CooldownGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &CooldownGate{next: next, cache: provider, cooldown: cooldown, logger: logger}
}

// Deliver forwards only the violations that won their cooldown slot.
// Cache errors fail open so an unavailable cache cannot silence alerts.
func (g *CooldownGate) Deliver(ctx context.Context, violations []models.SLOStatus) error {
	if g.cooldown <= 0 {
		return g.next.Deliver(ctx, violations)
	}

	due := make([]models.SLOStatus, 0, len(violations))
	for _, v := range violations {
		won, err := g.cache.SetNX(ctx, cooldownKeyPrefix+v.Name, []byte(v.Status), g.cooldown)
		if err != nil {
			g.logger.Warn("cooldown check failed",
				slog.String("slo", v.Name),
				slog.Any("error", err),
			)
			due = append(due, v)
			continue
		}
		if !won {
			metrics.ObserveAlertDelivery(metrics.DeliverySuppressed)
			continue
		}
		due = append(due, v)
	}

	if len(due) == 0 {
		return nil
	}
	return g.next.Deliver(ctx, due)
}
