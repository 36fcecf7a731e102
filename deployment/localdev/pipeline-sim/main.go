// pipeline-sim runs the monitor in-process and drives synthetic trading
// pipeline traffic through it. Useful for exercising the API and alerting
// without a live pipeline: latencies jitter around each stage profile and
// a few percent of passes fail.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/alert"
	"github.com/quantpipe/pipeline-monitor/internal/api"
	"github.com/quantpipe/pipeline-monitor/internal/collector"
	"github.com/quantpipe/pipeline-monitor/internal/config"
	"github.com/quantpipe/pipeline-monitor/internal/models"
	"github.com/quantpipe/pipeline-monitor/internal/monitor"
	"github.com/quantpipe/pipeline-monitor/internal/slo"
	"github.com/quantpipe/pipeline-monitor/internal/utils"
)

type stageProfile struct {
	stage   models.PipelineStage
	minWait time.Duration
	maxWait time.Duration
	errRate float64
}

var profiles = []stageProfile{
	{models.StageDataIngestion, 10 * time.Millisecond, 30 * time.Millisecond, 0.01},
	{models.StageDataProcessing, 20 * time.Millisecond, 60 * time.Millisecond, 0.02},
	{models.StageFeatureExtraction, 10 * time.Millisecond, 40 * time.Millisecond, 0.02},
	{models.StageSignalGeneration, 30 * time.Millisecond, 120 * time.Millisecond, 0.04},
	{models.StageRiskValidation, 5 * time.Millisecond, 20 * time.Millisecond, 0.01},
	{models.StageOrderExecution, 40 * time.Millisecond, 200 * time.Millisecond, 0.05},
}

func main() {
	logger := utils.NewLogger("info", "text")

	coll := collector.NewCollector()
	registry, err := slo.NewRegistry(simSLOs())
	if err != nil {
		logger.Error("invalid slo definitions", slog.Any("error", err))
		os.Exit(1)
	}
	tracker := slo.NewViolationTracker(0)
	evaluator := slo.NewEvaluator(registry, tracker, logger)
	mon := monitor.New(logger, coll, evaluator, nil, alert.Multi{alert.NewLogSink(logger)}, nil,
		monitor.WithInterval(10*time.Second),
	)

	router := api.NewRouter(logger, mon, coll, tracker, nil)
	server, err := api.NewServer(config.ServerConfig{Address: ":8081"}, router)
	if err != nil {
		logger.Error("failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("pipeline-sim api listening", slog.String("address", server.Address()))
		if err := server.Start(); err != nil {
			logger.Error("api server exited", slog.Any("error", err))
			stop()
		}
	}()

	mon.Start()
	go driveLatency(ctx, coll)
	go driveThroughput(ctx, coll, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	mon.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}

// driveLatency simulates one pipeline pass every two seconds.
func driveLatency(ctx context.Context, coll *collector.Collector) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range profiles {
				_ = coll.Track(ctx, p.stage, func(context.Context) error {
					wait := p.minWait + time.Duration(rand.Int63n(int64(p.maxWait-p.minWait)))
					time.Sleep(wait)
					if rand.Float64() < p.errRate {
						return fmt.Errorf("%s pass failed", p.stage)
					}
					return nil
				})
			}
		}
	}
}

// driveThroughput reports a batch count for the processing stage every
// five seconds, roughly 70 to 130 items per second.
func driveThroughput(ctx context.Context, coll *collector.Collector, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			items := 350 + rand.Intn(300)
			errs := rand.Intn(8)
			if err := coll.RecordThroughput(models.StageDataProcessing, items, 5, errs); err != nil {
				logger.Warn("record throughput", slog.Any("error", err))
			}
		}
	}
}

// simSLOs uses tighter thresholds than production defaults so evaluations
// move between bands while the simulator runs.
func simSLOs() []models.SLODefinition {
	return []models.SLODefinition{
		{
			Name:        "signal_generation_latency",
			Stage:       models.StageSignalGeneration,
			Metric:      models.MetricLatency,
			Target:      80,
			Warning:     120,
			Critical:    200,
			Window:      5 * time.Minute,
			Description: "Signal generation p95 under 80ms",
		},
		{
			Name:        "order_execution_latency",
			Stage:       models.StageOrderExecution,
			Metric:      models.MetricLatency,
			Target:      150,
			Warning:     250,
			Critical:    400,
			Window:      5 * time.Minute,
			Description: "Order execution p95 under 150ms",
		},
		{
			Name:        "data_processing_throughput",
			Stage:       models.StageDataProcessing,
			Metric:      models.MetricThroughput,
			Target:      90,
			Warning:     60,
			Critical:    30,
			Window:      5 * time.Minute,
			Description: "Data processing above 90 items/second",
		},
	}
}
