package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/aegisops/aegis/internal/cache"
	"github.com/aegisops/aegis/internal/config"
	"github.com/aegisops/aegis/internal/engine"
	"github.com/aegisops/aegis/internal/healer"
	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/monitor"
	"github.com/aegisops/aegis/internal/repo"
	"github.com/aegisops/aegis/internal/scoring"
	"github.com/aegisops/aegis/internal/services"
	"github.com/aegisops/aegis/internal/utils"
)

// loop holds the assembled control loop and the resources it owns.
type loop struct {
	service *services.ControlService
	memory  *repo.MemoryStore
	closers []func()
}

func (l *loop) close() {
	for i := len(l.closers) - 1; i >= 0; i-- {
		l.closers[i]()
	}
}

// loopOptions adjusts wiring for non-server runs.
type loopOptions struct {
	// inMemoryCache replaces the noop cache when Redis is not configured.
	inMemoryCache bool
}

// buildLoop wires storage, cache, healer, engine, pipeline and monitor from
// cfg. Optional backends that fail to connect fall back to their in-memory
// or noop equivalents; a registry missing executors fails startup.
func buildLoop(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts loopOptions) (*loop, error) {
	l := &loop{}
	var components []string

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if opts.inMemoryCache {
		cacheProvider = cache.NewMemoryProvider()
	}
	if cfg.Cache.Enabled {
		provider, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			components = append(components, "redis_cache")
			l.closers = append(l.closers, func() { _ = provider.Close() })
		}
	}

	l.memory = repo.NewMemoryStore(cfg.Storage.MemoryCapacity)
	var (
		telemetry repo.TelemetryStore = l.memory
		logs                          = []repo.PersistentLog{l.memory}
		database  healer.Reconnector
	)
	if cfg.Postgres.Enabled {
		store, err := repo.NewPostgresStore(ctx, repo.PostgresConfig{
			URL:      cfg.Postgres.URL,
			MaxConns: cfg.Postgres.MaxConns,
			Timeout:  cfg.Postgres.Timeout,
		})
		if err != nil {
			logger.Warn("postgres unavailable, using in-memory store", slog.Any("error", err))
		} else {
			telemetry = store
			logs = append(logs, store)
			database = store
			components = append(components, "postgres")
			l.closers = append(l.closers, store.Close)
		}
	} else {
		components = append(components, "memory_store")
	}

	if cfg.Kafka.Enabled {
		client, err := repo.NewKafkaClient(cfg.Kafka.Brokers, kgo.DefaultProduceTopic(cfg.Kafka.LogTopic))
		if err != nil {
			logger.Warn("kafka log unavailable", slog.Any("error", err))
		} else {
			logs = append(logs, repo.NewKafkaLog(client, cfg.Kafka.LogTopic))
			components = append(components, "kafka_log")
			l.closers = append(l.closers, client.Close)
		}
	}
	persistent := repo.NewMultiLog(logs...)

	registry, err := healer.NewRegistry(healer.DefaultExecutors(healer.Dependencies{
		Logger:         utils.Component(logger, "actions"),
		Cache:          cacheProvider,
		Database:       database,
		SimulateDelays: cfg.Healer.SimulateDelays,
		ThrottleTTL:    cfg.Healer.ThrottleTTL,
		WarmCacheTTL:   cfg.Healer.WarmCacheTTL,
	}))
	if err != nil {
		l.close()
		return nil, err
	}
	h := healer.New(utils.Component(logger, "healer"), registry, persistent, healer.Config{
		ActionTimeout:    cfg.Healer.ActionTimeout,
		MaxConcurrent:    cfg.Healer.MaxConcurrent,
		LogAppendTimeout: cfg.Healer.LogAppendTimeout,
	})

	location, err := utils.LoadLocation(cfg.Policy.Timezone)
	if err != nil {
		l.close()
		return nil, err
	}
	gate := engine.NewPolicyGate(engine.PolicyConfig{
		RateLimitWindow:   cfg.Policy.RateLimitWindow,
		MaxRecentHealings: cfg.Policy.MaxRecentHealings,
		PeakStartHour:     cfg.Policy.PeakStartHour,
		PeakEndHour:       cfg.Policy.PeakEndHour,
		Location:          location,
	})
	decisions := engine.NewDecisionEngine(utils.Component(logger, "engine"), engine.NewClassifier(), gate,
		engine.NewHistory(cfg.Policy.HistoryCapacity), h, engine.EngineConfig{
			TriggerThreshold: cfg.Policy.TriggerThreshold,
			Mode:             cfg.Policy.Mode,
			MaxSuggestions:   cfg.Policy.MaxSuggestions,
		})
	scorer := scoring.NewTracked(scoring.NewHeuristicScorer(256))
	pipeline := engine.NewPipeline(utils.Component(logger, "pipeline"), telemetry, scorer, decisions, cfg.Ingest.Concurrency)

	var (
		svc *services.ControlService
		mon *monitor.Monitor
	)
	if cfg.Monitor.Enabled {
		mon = monitor.New(utils.Component(logger, "monitor"), telemetry, persistent, func(ctx context.Context, events []models.Event) {
			svc.SubmitSynthetic(ctx, events)
		}, monitor.Config{
			Interval: cfg.Monitor.Interval,
			Window:   cfg.Monitor.Window,
			Thresholds: monitor.Thresholds{
				CPU:            cfg.Monitor.Thresholds.CPU,
				Memory:         cfg.Monitor.Thresholds.Memory,
				ErrorRate:      cfg.Monitor.Thresholds.ErrorRate,
				ResponseTimeMs: cfg.Monitor.Thresholds.ResponseTimeMs,
			},
		})
		components = append(components, "monitor")
	}

	svc, err = services.NewControlService(services.Options{
		Logger:          utils.Component(logger, "service"),
		Pipeline:        pipeline,
		Healer:          h,
		Scorer:          scorer,
		Monitor:         mon,
		Log:             persistent,
		MaxBatch:        cfg.Ingest.MaxBatch,
		ManualHealRate:  cfg.Policy.ManualHealRate,
		ManualHealBurst: cfg.Policy.ManualHealBurst,
		Components:      components,
	})
	if err != nil {
		l.close()
		return nil, fmt.Errorf("control service: %w", err)
	}
	l.service = svc
	return l, nil
}
