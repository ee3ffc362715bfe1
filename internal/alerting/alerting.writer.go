// FilePath: server/worker/internal/alerting/alerting.writer.go
package alerting

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
	"github.com/vigilhome/vigil_v3/server/worker/internal/repository"
)

// notifyTimeout bounds a single notification attempt. Notification runs
// detached from the job loop, so this only caps resource usage.
const notifyTimeout = 30 * time.Second

// Notifier delivers an alert to the home's emergency contacts.
type Notifier interface {
	Notify(ctx context.Context, alert *models.Alert, device *models.Device) error
}

// Publisher fans an alert out to live subscribers.
type Publisher interface {
	PublishAlert(ctx context.Context, alert *models.Alert) error
}

// Writer persists admitted detections as alerts and triggers the
// side effects that follow: live fan-out for every alert, contact
// notification for high severity. Side effects are best effort; only
// the database write can fail a job.
type Writer struct {
	alerts   repository.AlertRepository
	notifier Notifier
	bus      Publisher
}

func NewWriter(alerts repository.AlertRepository, notifier Notifier, bus Publisher) *Writer {
	return &Writer{alerts: alerts, notifier: notifier, bus: bus}
}

// Create persists a new open alert for an admitted detection and kicks
// off its side effects. The returned alert carries the generated ID.
func (w *Writer) Create(ctx context.Context, result *models.ClassificationResult, device *models.Device) (*models.Alert, error) {
	alert := &models.Alert{
		ID:        nuts.NID("al", 12),
		HomeID:    device.HomeID,
		RoomID:    device.RoomID,
		DeviceID:  &device.ID,
		Type:      result.Type,
		Severity:  result.Severity,
		Status:    models.AlertStatusOpen,
		Score:     result.Score,
		CreatedAt: time.Now().UTC(),
	}

	if err := w.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}
	nuts.L.Infof("[AlertWriter] Created alert %s (%s/%s, score %.2f) for home %s", alert.ID, alert.Type, alert.Severity, alert.Score, alert.HomeID)

	if w.bus != nil {
		if err := w.bus.PublishAlert(ctx, alert); err != nil {
			nuts.L.Errorf("[AlertWriter] Failed to publish alert %s: %v", alert.ID, err)
		}
	}

	if alert.Severity == models.SeverityHigh && w.notifier != nil {
		go w.notify(alert, device)
	}

	return alert, nil
}

// notify runs detached from the job that created the alert. A failed or
// slow notification never blocks or fails queue processing.
func (w *Writer) notify(alert *models.Alert, device *models.Device) {
	defer func() {
		if r := recover(); r != nil {
			nuts.L.Errorf("[AlertWriter] Panic in notification for alert %s: %v", alert.ID, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := w.notifier.Notify(ctx, alert, device); err != nil {
		nuts.L.Errorf("[AlertWriter] Notification failed for alert %s: %v", alert.ID, err)
	}
}
