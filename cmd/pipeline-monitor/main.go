package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantpipe/pipeline-monitor/internal/alert"
	"github.com/quantpipe/pipeline-monitor/internal/api"
	"github.com/quantpipe/pipeline-monitor/internal/cache"
	"github.com/quantpipe/pipeline-monitor/internal/collector"
	"github.com/quantpipe/pipeline-monitor/internal/config"
	"github.com/quantpipe/pipeline-monitor/internal/metrics"
	"github.com/quantpipe/pipeline-monitor/internal/monitor"
	"github.com/quantpipe/pipeline-monitor/internal/slo"
	"github.com/quantpipe/pipeline-monitor/internal/store"
	"github.com/quantpipe/pipeline-monitor/internal/store/postgres"
	"github.com/quantpipe/pipeline-monitor/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("starting pipeline-monitor", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var cacheCloser cache.Provider
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			cacheCloser = provider
		}
	}
	if cacheCloser != nil {
		defer cacheCloser.Close()
	}

	var measurementStore store.Store = store.NoopStore{}
	var violationHistory api.ViolationHistory
	if cfg.Database.DSN != "" {
		storeCtx, cancelStore := context.WithTimeout(context.Background(), 30*time.Second)
		pgStore, err := postgres.New(storeCtx, cfg.Database.DSN, logger)
		cancelStore()
		if err != nil {
			logger.Warn("postgres store unavailable, measurements stay in memory", slog.Any("error", err))
		} else {
			measurementStore = pgStore
			violationHistory = pgStore
			defer pgStore.Close()
		}
	}

	registry, err := slo.NewRegistry(cfg.SLODefinitions())
	if err != nil {
		logger.Error("invalid slo configuration", slog.Any("error", err))
		os.Exit(1)
	}
	tracker := slo.NewViolationTracker(0)
	evaluator := slo.NewEvaluator(registry, tracker, logger)
	coll := collector.NewCollector()

	sinks := alert.Multi{alert.NewLogSink(logger)}
	if cfg.Alerting.Enabled && cfg.Alerting.WebhookURL != "" {
		var webhook alert.Sink = alert.NewWebhookSink(cfg.Alerting.WebhookURL, cfg.Alerting.Timeout())
		if cooldown := cfg.Monitor.AlertCooldown(); cooldown > 0 {
			webhook = alert.NewCooldownGate(webhook, cacheProvider, cooldown, logger)
		}
		sinks = append(sinks, webhook)
		logger.Info("webhook alerting enabled", slog.String("url", cfg.Alerting.WebhookURL))
	}

	mon := monitor.New(logger, coll, evaluator, measurementStore, sinks, cacheProvider,
		monitor.WithInterval(cfg.Monitor.CheckInterval()),
		monitor.WithRetention(cfg.Database.Retention()),
	)

	router := api.NewRouter(logger, mon, coll, tracker, violationHistory)
	server, err := api.NewServer(cfg.Server, router)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("api server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("api server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	mon.Start()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	mon.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("pipeline-monitor stopped")
}
