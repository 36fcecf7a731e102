package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantpipe/pipeline-monitor/internal/models"
)

// Config captures the settings required to boot the pipeline monitor.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Monitor  MonitorConfig  `yaml:"monitoring"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Alerting AlertingConfig `yaml:"alerting"`
	Logging  LoggingConfig  `yaml:"logging"`
	SLOs     []SLOConfig    `yaml:"slos"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// MonitorConfig controls the background evaluation loop.
type MonitorConfig struct {
	CheckIntervalSeconds int `yaml:"checkIntervalSeconds"`
	AlertCooldownMinutes int `yaml:"alertCooldownMinutes"`
}

// CheckInterval returns the evaluation loop period.
func (m MonitorConfig) CheckInterval() time.Duration {
	return time.Duration(m.CheckIntervalSeconds) * time.Second
}

// AlertCooldown returns the per-SLO alert suppression window.
func (m MonitorConfig) AlertCooldown() time.Duration {
	return time.Duration(m.AlertCooldownMinutes) * time.Minute
}

// DatabaseConfig configures the PostgreSQL measurement store. An empty DSN
// disables persistence.
type DatabaseConfig struct {
	DSN           string `yaml:"dsn"`
	RetentionDays int    `yaml:"retentionDays"`
}

// Retention returns how long persisted rows are kept before cleanup.
func (d DatabaseConfig) Retention() time.Duration {
	return time.Duration(d.RetentionDays) * 24 * time.Hour
}

// CacheConfig controls Redis-backed publishing of health snapshots and
// alert cooldown state.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// AlertingConfig controls webhook delivery of SLO violations.
type AlertingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	WebhookURL     string `yaml:"webhookURL"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// Timeout returns the webhook request timeout.
func (a AlertingConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SLOConfig is one service level objective entry. Thresholds are
// milliseconds for latency objectives and items per second for throughput
// objectives.
type SLOConfig struct {
	Name                     string  `yaml:"name"`
	Stage                    string  `yaml:"stage"`
	MetricType               string  `yaml:"metricType"`
	TargetValue              float64 `yaml:"targetValue"`
	WarningThreshold         float64 `yaml:"warningThreshold"`
	CriticalThreshold        float64 `yaml:"criticalThreshold"`
	MeasurementWindowMinutes int     `yaml:"measurementWindowMinutes"`
	Description              string  `yaml:"description"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PIPEMON_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// SLODefinitions converts the configured SLO entries into domain
// definitions. Validation happens when the entries are registered.
func (c *Config) SLODefinitions() []models.SLODefinition {
	defs := make([]models.SLODefinition, 0, len(c.SLOs))
	for _, s := range c.SLOs {
		defs = append(defs, models.SLODefinition{
			Name:        s.Name,
			Stage:       models.PipelineStage(s.Stage),
			Metric:      models.MetricKind(s.MetricType),
			Target:      s.TargetValue,
			Warning:     s.WarningThreshold,
			Critical:    s.CriticalThreshold,
			Window:      time.Duration(s.MeasurementWindowMinutes) * time.Minute,
			Description: s.Description,
		})
	}
	return defs
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Monitor: MonitorConfig{
			CheckIntervalSeconds: 30,
			AlertCooldownMinutes: 5,
		},
		Database: DatabaseConfig{
			RetentionDays: 7,
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Alerting: AlertingConfig{
			Enabled:        false,
			TimeoutSeconds: 10,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		SLOs:    defaultSLOs(),
	}
}

// defaultSLOs covers the three objectives the trading pipeline ships with.
// A config file that sets its own slos list replaces them wholesale.
func defaultSLOs() []SLOConfig {
	return []SLOConfig{
		{
			Name:                     "signal_generation_latency",
			Stage:                    "signal_generation",
			MetricType:               "latency",
			TargetValue:              1000,
			WarningThreshold:         1500,
			CriticalThreshold:        3000,
			MeasurementWindowMinutes: 15,
			Description:              "Signal generation should complete within 1 second",
		},
		{
			Name:                     "order_execution_latency",
			Stage:                    "order_execution",
			MetricType:               "latency",
			TargetValue:              2000,
			WarningThreshold:         5000,
			CriticalThreshold:        10000,
			MeasurementWindowMinutes: 15,
			Description:              "Order execution should complete within 2 seconds",
		},
		{
			Name:                     "data_processing_throughput",
			Stage:                    "data_processing",
			MetricType:               "throughput",
			TargetValue:              100,
			WarningThreshold:         50,
			CriticalThreshold:        20,
			MeasurementWindowMinutes: 5,
			Description:              "Data processing should handle 100 items/second",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PIPEMON_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("PIPEMON_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("PIPEMON_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.GracefulTimeout = d
		}
	}
	if v := os.Getenv("PIPEMON_CHECK_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.CheckIntervalSeconds = secs
		}
	}
	if v := os.Getenv("PIPEMON_ALERT_COOLDOWN_MINUTES"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.AlertCooldownMinutes = mins
		}
	}
	if v := os.Getenv("PIPEMON_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("PIPEMON_DATABASE_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Database.RetentionDays = days
		}
	}
	if v := os.Getenv("PIPEMON_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("PIPEMON_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("PIPEMON_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("PIPEMON_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("PIPEMON_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("PIPEMON_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("PIPEMON_CACHE_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DialTimeout = d
		}
	}
	if v := os.Getenv("PIPEMON_CACHE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReadTimeout = d
		}
	}
	if v := os.Getenv("PIPEMON_CACHE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.WriteTimeout = d
		}
	}
	if v := os.Getenv("PIPEMON_CACHE_MAX_RETRIES"); v != "" {
		if retry, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxRetries = retry
		}
	}
	if v := os.Getenv("PIPEMON_ALERT_ENABLED"); v != "" {
		cfg.Alerting.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("PIPEMON_ALERT_WEBHOOK_URL"); v != "" {
		cfg.Alerting.WebhookURL = v
	}
	if v := os.Getenv("PIPEMON_ALERT_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Alerting.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("PIPEMON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PIPEMON_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
