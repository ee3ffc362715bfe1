// FilePath: server/worker/internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

// AlertRepository defines the interface for alert persistence. The worker
// only creates alerts; reads exist for the ops surface and tests.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	Get(ctx context.Context, id string) (*models.Alert, error)
	ListByHome(ctx context.Context, homeID string, offset, limit int) ([]*models.Alert, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// DeviceRepository defines the read-only view of registered devices
type DeviceRepository interface {
	Get(ctx context.Context, id string) (*models.Device, error)
	ListByHome(ctx context.Context, homeID string) ([]*models.Device, error)
}

// ModelConfigRepository defines reads over per-home detection configuration
type ModelConfigRepository interface {
	GetByHomeAndKey(ctx context.Context, homeID, modelKey string) (*models.ModelConfig, error)
	ListByHome(ctx context.Context, homeID string) ([]*models.ModelConfig, error)
}

// ContactRepository defines reads over a home's emergency contacts
type ContactRepository interface {
	ListByHome(ctx context.Context, homeID string) ([]*models.Contact, error)
}

// EventRepository defines the interface over the document store's events
// collection: the upload lifecycle plus the analytics reads consumed by
// dashboards.
type EventRepository interface {
	FindByStorageKey(ctx context.Context, key string) (*models.Event, error)
	Insert(ctx context.Context, event *models.Event) (string, error)
	Update(ctx context.Context, id string, update models.EventUpdate) error
	CountRecent(ctx context.Context, homeID string, window time.Duration) (int64, error)
	CountByHomeRecent(ctx context.Context, window time.Duration) ([]models.HomeEventCount, error)
	AggregateByHour(ctx context.Context, homeID string, window time.Duration) ([]models.HourlyEventCount, error)
	DeviceUptimeSummary(ctx context.Context, homeID string) ([]models.DeviceUptime, error)
	DeleteStalePending(ctx context.Context, before time.Time) (int64, error)
}
