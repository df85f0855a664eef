package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aegisops/aegis/internal/engine"
	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/services"
)

// Controller is the subset of the control service exposed over HTTP.
type Controller interface {
	IngestTelemetry(ctx context.Context, events []models.Event) (int, error)
	IngestWeb3(ctx context.Context, events []models.Web3Event) (int, error)
	IngestLogs(ctx context.Context, entries []models.LogEntry) (int, error)
	Heal(ctx context.Context, category string, event models.Event) (engine.Result, error)
	Pause()
	Resume()
	SetMode(mode string) error
	SetTriggerThreshold(v float64) error
	SetTelemetryEnabled(enabled bool)
	ApproveSuggestion(ctx context.Context, id string) (engine.Result, error)
	RejectSuggestion(id string) error
	PendingSuggestions(limit int) []models.Suggestion
	RecentDecisions(limit int) []models.Decision
	Stats() models.Stats
	Health() services.Health
}

// NewRouter builds the gin engine serving ingestion and control endpoints.
func NewRouter(logger *slog.Logger, control Controller) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	h := &handlers{logger: logger, control: control}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/", h.index)

	v1 := r.Group("/aegis/v1")
	{
		v1.GET("/health", h.health)
		v1.GET("/stats", h.stats)

		ingest := v1.Group("/ingest")
		{
			ingest.POST("/telemetry", h.ingestTelemetry)
			ingest.POST("/web3", h.ingestWeb3)
			ingest.POST("/log", h.ingestLogs)
		}
	}

	admin := r.Group("/api/aegis")
	{
		admin.GET("/status", h.status)
		admin.GET("/suggestions/pending", h.pendingSuggestions)
		admin.GET("/decisions/recent", h.recentDecisions)

		control := admin.Group("/control")
		{
			control.PUT("/set_mode", h.setMode)
			control.POST("/pause", h.pause)
			control.POST("/resume", h.resume)
			control.POST("/trigger_action", h.triggerAction)
			control.POST("/approve_action/:id", h.approve)
			control.POST("/reject_action/:id", h.reject)
		}

		cfg := admin.Group("/config")
		{
			cfg.PUT("/anomaly_threshold", h.setThreshold)
			cfg.PUT("/telemetry", h.setTelemetry)
		}
	}

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
