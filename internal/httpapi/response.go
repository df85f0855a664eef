package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aegisops/aegis/internal/engine"
	"github.com/aegisops/aegis/internal/services"
)

// StandardResponse is the envelope returned by the control endpoints.
type StandardResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, StandardResponse{
		Status:    "success",
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

func fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, StandardResponse{
		Status:    "error",
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}

func badRequest(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, err.Error())
}

// failWith maps control service errors onto HTTP status codes.
func failWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrBatchTooLarge), errors.Is(err, services.ErrUnknownCategory):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrTelemetryDisabled), errors.Is(err, services.ErrStopped):
		fail(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, services.ErrManualHealLimited):
		fail(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, engine.ErrSuggestionNotFound):
		fail(c, http.StatusNotFound, err.Error())
	default:
		fail(c, http.StatusInternalServerError, err.Error())
	}
}
