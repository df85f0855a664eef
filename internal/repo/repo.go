package repo

import (
	"context"
	"time"

	"github.com/aegisops/aegis/internal/models"
)

// TelemetryStore keeps ingested events for windowed aggregation.
type TelemetryStore interface {
	Store(ctx context.Context, events []models.Event) error
	Recent(ctx context.Context, window time.Duration) ([]models.Event, error)
}

// PersistentLog records healing attempts and alerts.
type PersistentLog interface {
	AppendAttempt(ctx context.Context, attempt models.HealingAttempt) error
	AppendAlert(ctx context.Context, alert models.Alert) error
}
