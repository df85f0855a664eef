package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/aegisops/aegis/internal/api"
	"github.com/aegisops/aegis/internal/config"
	"github.com/aegisops/aegis/internal/httpapi"
	"github.com/aegisops/aegis/internal/ingest"
	"github.com/aegisops/aegis/internal/metrics"
	"github.com/aegisops/aegis/internal/repo"
	"github.com/aegisops/aegis/internal/services"
	"github.com/aegisops/aegis/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control loop with its gRPC, HTTP and metrics listeners",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config) error {
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting aegis",
		slog.String("grpc_address", cfg.Server.GRPCAddress),
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.String("mode", cfg.Policy.Mode),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := buildLoop(ctx, cfg, logger, loopOptions{})
	if err != nil {
		return err
	}
	defer l.close()

	svc := l.service
	if err := svc.Start(ctx); err != nil {
		return err
	}

	grpcServer, err := api.NewServer(utils.Component(logger, "grpc"), cfg.Server, services.NewControlLoopService(utils.Component(logger, "grpc"), svc))
	if err != nil {
		return err
	}
	go func() {
		if serveErr := grpcServer.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	var httpServer *httpapi.Server
	if cfg.Server.HTTPAddress != "" {
		httpServer, err = httpapi.NewServer(cfg.Server.HTTPAddress, httpapi.NewRouter(utils.Component(logger, "http"), svc))
		if err != nil {
			return err
		}
		go func() {
			logger.Info("http server listening", slog.String("address", httpServer.Address()))
			if serveErr := httpServer.Start(); serveErr != nil {
				logger.Error("http server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

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

	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled && cfg.Kafka.EventsTopic != "" {
		client, err := repo.NewKafkaClient(cfg.Kafka.Brokers,
			kgo.ConsumeTopics(cfg.Kafka.EventsTopic),
			kgo.ConsumerGroup(cfg.Kafka.Group),
		)
		if err != nil {
			logger.Warn("kafka consumer unavailable", slog.Any("error", err))
			close(consumerDone)
		} else {
			consumer := ingest.NewConsumer(utils.Component(logger, "kafka_consumer"), client, svc)
			go func() {
				defer close(consumerDone)
				defer client.Close()
				if err := consumer.Run(ctx); err != nil {
					logger.Error("kafka consumer exited", slog.Any("error", err))
				}
			}()
		}
	} else {
		close(consumerDone)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
	}
	<-consumerDone

	if err := svc.Stop(shutdownCtx); err != nil {
		logger.Warn("control service shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("aegis stopped")
	return nil
}
