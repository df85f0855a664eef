package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aegisops/aegis/internal/utils"
)

// Operating modes for the remediation path.
const (
	ModeAutonomous = "autonomous"
	ModeSuggest    = "suggest"
)

// Config captures the settings required to boot the control loop.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Policy   PolicyConfig   `yaml:"policy"`
	Healer   HealerConfig   `yaml:"healer"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// ServerConfig controls the gRPC, HTTP and metrics listeners.
type ServerConfig struct {
	GRPCAddress     string        `yaml:"grpcAddress"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// PolicyConfig tunes the decision policy.
type PolicyConfig struct {
	TriggerThreshold  float64       `yaml:"triggerThreshold"`
	RateLimitWindow   time.Duration `yaml:"rateLimitWindow"`
	MaxRecentHealings int           `yaml:"maxRecentHealings"`
	PeakStartHour     int           `yaml:"peakStartHour"`
	PeakEndHour       int           `yaml:"peakEndHour"`
	Timezone          string        `yaml:"timezone"`
	HistoryCapacity   int           `yaml:"historyCapacity"`
	Mode              string        `yaml:"mode"`
	MaxSuggestions    int           `yaml:"maxSuggestions"`
	ManualHealRate    float64       `yaml:"manualHealRate"`
	ManualHealBurst   int           `yaml:"manualHealBurst"`
}

// HealerConfig bounds remediation execution.
type HealerConfig struct {
	ActionTimeout    time.Duration `yaml:"actionTimeout"`
	MaxConcurrent    int           `yaml:"maxConcurrent"`
	SimulateDelays   bool          `yaml:"simulateDelays"`
	ThrottleTTL      time.Duration `yaml:"throttleTTL"`
	WarmCacheTTL     time.Duration `yaml:"warmCacheTTL"`
	LogAppendTimeout time.Duration `yaml:"logAppendTimeout"`
}

// MonitorConfig controls the periodic health sampler.
type MonitorConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Interval   time.Duration    `yaml:"interval"`
	Window     time.Duration    `yaml:"window"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
}

// ThresholdsConfig holds the static alert thresholds.
type ThresholdsConfig struct {
	CPU            float64 `yaml:"cpu"`
	Memory         float64 `yaml:"memory"`
	ErrorRate      float64 `yaml:"errorRate"`
	ResponseTimeMs float64 `yaml:"responseTimeMs"`
}

// IngestConfig controls batch evaluation.
type IngestConfig struct {
	Concurrency int `yaml:"concurrency"`
	MaxBatch    int `yaml:"maxBatch"`
}

// StorageConfig bounds the in-memory telemetry store and persistent log.
// MemoryCapacity is per kind and must cover a full monitor window.
type StorageConfig struct {
	MemoryCapacity int `yaml:"memoryCapacity"`
}

// CacheConfig configures the Redis-backed cache and rate limiter.
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
}

// PostgresConfig configures the telemetry store and persistent log.
type PostgresConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	MaxConns int32         `yaml:"maxConns"`
	Timeout  time.Duration `yaml:"timeout"`
}

// KafkaConfig configures event ingestion and log publishing.
type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers"`
	EventsTopic string   `yaml:"eventsTopic"`
	LogTopic    string   `yaml:"logTopic"`
	Group       string   `yaml:"group"`
}

// Load initialises Config from a YAML file, an optional .env file and
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("AEGIS_CONFIG")
	}

	cfg := Default()

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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			GRPCAddress:     ":50061",
			HTTPAddress:     ":8001",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Policy: PolicyConfig{
			TriggerThreshold:  0.8,
			RateLimitWindow:   5 * time.Minute,
			MaxRecentHealings: 3,
			PeakStartHour:     9,
			PeakEndHour:       17,
			HistoryCapacity:   1000,
			Mode:              ModeAutonomous,
			MaxSuggestions:    100,
			ManualHealRate:    1,
			ManualHealBurst:   5,
		},
		Healer: HealerConfig{
			ActionTimeout:    10 * time.Second,
			MaxConcurrent:    8,
			SimulateDelays:   true,
			ThrottleTTL:      60 * time.Second,
			WarmCacheTTL:     10 * time.Minute,
			LogAppendTimeout: 2 * time.Second,
		},
		Monitor: MonitorConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
			Window:   5 * time.Minute,
			Thresholds: ThresholdsConfig{
				CPU:            0.80,
				Memory:         0.85,
				ErrorRate:      0.05,
				ResponseTimeMs: 5000,
			},
		},
		Ingest:  IngestConfig{Concurrency: 8, MaxBatch: 1000},
		Storage: StorageConfig{MemoryCapacity: 10000},
		Cache: CacheConfig{
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Postgres: PostgresConfig{MaxConns: 10, Timeout: 5 * time.Second},
		Kafka: KafkaConfig{
			EventsTopic: "aegis.events",
			LogTopic:    "aegis.healing-log",
			Group:       "aegis",
		},
	}
}

// Validate rejects configurations the loop cannot run with.
func (c *Config) Validate() error {
	p := c.Policy
	switch {
	case p.TriggerThreshold <= 0 || p.TriggerThreshold > 1:
		return utils.NewAppError("config.validate", "policy.triggerThreshold must be in (0,1]", nil)
	case p.RateLimitWindow <= 0:
		return utils.NewAppError("config.validate", "policy.rateLimitWindow must be positive", nil)
	case p.MaxRecentHealings < 0:
		return utils.NewAppError("config.validate", "policy.maxRecentHealings must not be negative", nil)
	case p.PeakStartHour < 0 || p.PeakStartHour > 23 || p.PeakEndHour < 0 || p.PeakEndHour > 23:
		return utils.NewAppError("config.validate", "policy peak hours must be within 0-23", nil)
	case p.HistoryCapacity <= 0:
		return utils.NewAppError("config.validate", "policy.historyCapacity must be positive", nil)
	case p.Mode != ModeAutonomous && p.Mode != ModeSuggest:
		return utils.NewAppError("config.validate", fmt.Sprintf("unknown policy.mode %q", p.Mode), nil)
	}
	if _, err := utils.LoadLocation(p.Timezone); err != nil {
		return utils.NewAppError("config.validate", "policy.timezone", err)
	}
	if c.Healer.ActionTimeout <= 0 {
		return utils.NewAppError("config.validate", "healer.actionTimeout must be positive", nil)
	}
	if c.Healer.MaxConcurrent <= 0 {
		return utils.NewAppError("config.validate", "healer.maxConcurrent must be positive", nil)
	}
	if c.Monitor.Enabled && (c.Monitor.Interval <= 0 || c.Monitor.Window <= 0) {
		return utils.NewAppError("config.validate", "monitor interval and window must be positive", nil)
	}
	if c.Storage.MemoryCapacity <= 0 {
		return utils.NewAppError("config.validate", "storage.memoryCapacity must be positive", nil)
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return utils.NewAppError("config.validate", "cache.addr is required when cache is enabled", nil)
	}
	if c.Postgres.Enabled && c.Postgres.URL == "" {
		return utils.NewAppError("config.validate", "postgres.url is required when postgres is enabled", nil)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return utils.NewAppError("config.validate", "kafka.brokers is required when kafka is enabled", nil)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AEGIS_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("AEGIS_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("AEGIS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("AEGIS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AEGIS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("AEGIS_TRIGGER_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Policy.TriggerThreshold = f
		}
	}
	if v := os.Getenv("AEGIS_MODE"); v != "" {
		cfg.Policy.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("AEGIS_TIMEZONE"); v != "" {
		cfg.Policy.Timezone = v
	}
	if v := os.Getenv("AEGIS_ACTION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Healer.ActionTimeout = d
		}
	}
	if v := os.Getenv("AEGIS_SIMULATE_DELAYS"); v != "" {
		cfg.Healer.SimulateDelays = parseBool(v)
	}
	if v := os.Getenv("AEGIS_MONITOR_ENABLED"); v != "" {
		cfg.Monitor.Enabled = parseBool(v)
	}
	if v := os.Getenv("AEGIS_MONITOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.Interval = d
		}
	}
	if v := os.Getenv("AEGIS_MEMORY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MemoryCapacity = n
		}
	}
	if v := os.Getenv("AEGIS_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("AEGIS_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("AEGIS_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("AEGIS_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("AEGIS_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
		cfg.Postgres.Enabled = true
	}
	if v := os.Getenv("AEGIS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("AEGIS_KAFKA_EVENTS_TOPIC"); v != "" {
		cfg.Kafka.EventsTopic = v
	}
	if v := os.Getenv("AEGIS_KAFKA_LOG_TOPIC"); v != "" {
		cfg.Kafka.LogTopic = v
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
