package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aegisops/aegis/internal/api"
)

const defaultListLimit = 20

type handlers struct {
	logger  *slog.Logger
	control Controller
}

func (h *handlers) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "aegis",
		"status":  "running",
		"endpoints": []string{
			"/aegis/v1/health",
			"/aegis/v1/stats",
			"/aegis/v1/ingest/telemetry",
			"/aegis/v1/ingest/web3",
			"/aegis/v1/ingest/log",
			"/api/aegis/status",
		},
	})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, h.control.Health())
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.control.Stats())
}

type telemetryBatch struct {
	Events []api.TelemetryEvent `json:"events" binding:"required"`
}

type web3Batch struct {
	Events []api.Web3Event `json:"events" binding:"required"`
}

type logBatch struct {
	Logs []api.LogEvent `json:"logs" binding:"required"`
}

func (h *handlers) ingestTelemetry(c *gin.Context) {
	var req telemetryBatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.control.IngestTelemetry(c.Request.Context(), api.TelemetryEvents(req.Events))
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewAccepted(n))
}

func (h *handlers) ingestWeb3(c *gin.Context) {
	var req web3Batch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.control.IngestWeb3(c.Request.Context(), api.Web3Events(req.Events))
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewAccepted(n))
}

func (h *handlers) ingestLogs(c *gin.Context) {
	var req logBatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.control.IngestLogs(c.Request.Context(), api.LogEntries(req.Logs))
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewAccepted(n))
}

func (h *handlers) status(c *gin.Context) {
	success(c, "", gin.H{
		"health": h.control.Health(),
		"stats":  h.control.Stats(),
	})
}

func (h *handlers) pendingSuggestions(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	success(c, "", h.control.PendingSuggestions(limit))
}

func (h *handlers) recentDecisions(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	success(c, "", h.control.RecentDecisions(limit))
}

func (h *handlers) setMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.control.SetMode(req.Mode); err != nil {
		badRequest(c, err)
		return
	}
	success(c, fmt.Sprintf("mode set to %s", req.Mode), nil)
}

func (h *handlers) pause(c *gin.Context) {
	h.control.Pause()
	success(c, "remediation paused", nil)
}

func (h *handlers) resume(c *gin.Context) {
	h.control.Resume()
	success(c, "remediation resumed", nil)
}

func (h *handlers) triggerAction(c *gin.Context) {
	var req api.HealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.control.Heal(c.Request.Context(), req.Category, req.Event.ToModel())
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, fmt.Sprintf("evaluated %s", req.Category), result)
}

func (h *handlers) approve(c *gin.Context) {
	result, err := h.control.ApproveSuggestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, "suggestion approved", result)
}

func (h *handlers) reject(c *gin.Context) {
	if err := h.control.RejectSuggestion(c.Param("id")); err != nil {
		failWith(c, err)
		return
	}
	success(c, "suggestion rejected", nil)
}

func (h *handlers) setThreshold(c *gin.Context) {
	var req struct {
		Level *float64 `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.control.SetTriggerThreshold(*req.Level); err != nil {
		badRequest(c, err)
		return
	}
	success(c, fmt.Sprintf("anomaly threshold set to %v", *req.Level), nil)
}

func (h *handlers) setTelemetry(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.control.SetTelemetryEnabled(*req.Enabled)
	success(c, fmt.Sprintf("telemetry enabled: %t", *req.Enabled), nil)
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.DefaultQuery("limit", strconv.Itoa(defaultListLimit))
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}
