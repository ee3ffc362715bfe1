// FilePath: server/worker/internal/worker/worker.go
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/alerting"
	"github.com/vigilhome/vigil_v3/server/worker/internal/audio"
	"github.com/vigilhome/vigil_v3/server/worker/internal/config"
	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
	"github.com/vigilhome/vigil_v3/server/worker/internal/monitoring"
	"github.com/vigilhome/vigil_v3/server/worker/internal/queue"
	"github.com/vigilhome/vigil_v3/server/worker/internal/repository"
	"github.com/vigilhome/vigil_v3/server/worker/internal/storage"
)

// messageQueue is the slice of the queue client the loop needs.
type messageQueue interface {
	Receive(ctx context.Context) ([]types.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// predictor is the classifier host seen from the loop.
type predictor interface {
	Predict(ctx context.Context, samples []int16) (*models.ClassificationResult, error)
	SampleRate() int
}

// admitter is the decision gate seen from the loop.
type admitter interface {
	Admit(ctx context.Context, homeID, label string, score float64) alerting.Decision
}

// alertCreator is the alert writer seen from the loop.
type alertCreator interface {
	Create(ctx context.Context, result *models.ClassificationResult, device *models.Device) (*models.Alert, error)
}

// Stats is a snapshot of loop counters for the ops surface.
type Stats struct {
	Received   int64      `json:"received"`
	Malformed  int64      `json:"malformed"`
	Processed  int64      `json:"processed"`
	Suppressed int64      `json:"suppressed"`
	Alerts     int64      `json:"alerts"`
	Failures   int64      `json:"failures"`
	LastJobAt  *time.Time `json:"last_job_at,omitempty"`
}

// Worker is the job loop: it drains the classification queue, runs each
// clip through the classifier subprocess, records the outcome on the
// event document, and turns admitted detections into alerts. Jobs are
// strictly sequential; redelivery after the visibility timeout is the
// only retry path.
type Worker struct {
	queue      messageQueue
	store      storage.ObjectStore
	events     repository.EventRepository
	devices    repository.DeviceRepository
	classifier predictor
	gate       admitter
	writer     alertCreator
	monitor    *monitoring.Service
	backoff    time.Duration

	mu    sync.Mutex
	stats Stats
}

func New(
	q messageQueue,
	store storage.ObjectStore,
	events repository.EventRepository,
	devices repository.DeviceRepository,
	classifier predictor,
	gate admitter,
	writer alertCreator,
	monitor *monitoring.Service,
	cfg config.WorkerConfig,
) *Worker {
	return &Worker{
		queue:      q,
		store:      store,
		events:     events,
		devices:    devices,
		classifier: classifier,
		gate:       gate,
		writer:     writer,
		monitor:    monitor,
		backoff:    cfg.ErrorBackoff,
	}
}

// Run polls the queue until ctx is canceled. Receive errors back off for
// a fixed interval; everything per-job is contained by processMessage.
func (w *Worker) Run(ctx context.Context) {
	nuts.L.Infof("[Worker] Job loop started")
	for {
		if ctx.Err() != nil {
			nuts.L.Infof("[Worker] Job loop stopped")
			return
		}

		messages, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			nuts.L.Errorf("[Worker] Queue receive failed: %v; backing off %s", err, w.backoff)
			w.monitor.RecordEvent("queue_receive_error", nil)
			select {
			case <-ctx.Done():
			case <-time.After(w.backoff):
			}
			continue
		}

		for _, msg := range messages {
			w.processMessage(ctx, msg)
		}
	}
}

// Stats returns a copy of the loop counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// processMessage runs the per-job state machine. Every exit path either
// deletes the message (handled: success, suppression, or poison) or
// leaves it for redelivery (transient failure). A panic counts as a
// transient failure.
func (w *Worker) processMessage(ctx context.Context, msg types.Message) {
	defer func() {
		if r := recover(); r != nil {
			nuts.L.Errorf("[Worker] Panic while processing job: %v", r)
			w.count(func(s *Stats) { s.Failures++ })
			w.monitor.RecordEvent("job_panic", nil)
		}
	}()

	now := time.Now().UTC()
	w.count(func(s *Stats) { s.Received++; s.LastJobAt = &now })

	job, err := queue.ParseJob(msg)
	if err != nil {
		nuts.L.Warnf("[Worker] Discarding malformed job: %v", err)
		w.deleteMessage(ctx, msg)
		w.count(func(s *Stats) { s.Malformed++ })
		w.monitor.RecordEvent("job_malformed", nil)
		return
	}

	event, err := w.events.FindByStorageKey(ctx, job.StorageKey)
	if err != nil {
		if errors.IsNotFound(err) {
			nuts.L.Warnf("[Worker] No event record for storage key %s; leaving job for redelivery", job.StorageKey)
		} else {
			nuts.L.Errorf("[Worker] Event lookup failed for %s: %v", job.StorageKey, err)
		}
		w.fail("event_lookup_failed")
		return
	}

	data, err := w.store.Download(ctx, job.StorageKey)
	if err != nil {
		nuts.L.Errorf("[Worker] Download failed for %s: %v", job.StorageKey, err)
		w.fail("download_failed")
		return
	}

	clip, err := audio.DecodeWAV(data)
	if err != nil {
		// Undecodable audio never becomes decodable; treat like a
		// malformed job instead of poisoning the queue.
		nuts.L.Warnf("[Worker] Discarding job with undecodable audio %s: %v", job.StorageKey, err)
		w.markUndecodable(ctx, event.ID)
		w.deleteMessage(ctx, msg)
		w.count(func(s *Stats) { s.Malformed++ })
		w.monitor.RecordEvent("job_audio_invalid", nil)
		return
	}
	clip = audio.Resample(clip, w.classifier.SampleRate())

	result, err := w.classifier.Predict(ctx, clip.Samples)
	if err != nil {
		nuts.L.Errorf("[Worker] Classification failed for %s: %v", job.StorageKey, err)
		if errors.IsTimeout(err) {
			w.fail("classify_timeout")
		} else {
			w.fail("classify_failed")
		}
		return
	}

	durationMS := clip.DurationMS()
	decision := result.Type
	status := models.EventStatusProcessed
	update := models.EventUpdate{
		DurationMS: &durationMS,
		Scores:     result.Scores,
		Decision:   &decision,
		Status:     &status,
	}
	if err := w.events.Update(ctx, event.ID, update); err != nil {
		nuts.L.Errorf("[Worker] Event update failed for %s: %v", event.ID, err)
		w.fail("event_update_failed")
		return
	}

	device, err := w.devices.Get(ctx, job.DeviceID)
	if err != nil {
		if errors.IsNotFound(err) {
			nuts.L.Warnf("[Worker] Device %s not found; leaving job for redelivery", job.DeviceID)
		} else {
			nuts.L.Errorf("[Worker] Device lookup failed for %s: %v", job.DeviceID, err)
		}
		w.fail("device_lookup_failed")
		return
	}

	verdict := w.gate.Admit(ctx, job.HomeID, result.Type, result.Score)
	if !verdict.Admitted {
		nuts.L.Infof("[Worker] Suppressed %s (score %.2f < threshold %.2f, %s) for home %s",
			result.Type, result.Score, verdict.Threshold, verdict.Reason, job.HomeID)
		w.deleteMessage(ctx, msg)
		w.count(func(s *Stats) { s.Processed++; s.Suppressed++ })
		w.monitor.RecordEvent("job_suppressed", map[string]string{"reason": verdict.Reason})
		return
	}

	alert, err := w.writer.Create(ctx, result, device)
	if err != nil {
		nuts.L.Errorf("[Worker] Alert write failed for %s: %v", job.StorageKey, err)
		w.fail("alert_write_failed")
		return
	}

	w.deleteMessage(ctx, msg)
	w.count(func(s *Stats) { s.Processed++; s.Alerts++ })
	w.monitor.RecordEvent("job_alerted", map[string]string{"severity": alert.Severity})
	nuts.L.Infof("[Worker] Job %s done: alert %s", job.StorageKey, alert.ID)
}

// markUndecodable records the terminal outcome on the event document.
// Best effort; the job is discarded either way.
func (w *Worker) markUndecodable(ctx context.Context, eventID string) {
	decision := "invalid_audio"
	status := models.EventStatusProcessed
	err := w.events.Update(ctx, eventID, models.EventUpdate{Decision: &decision, Status: &status})
	if err != nil {
		nuts.L.Errorf("[Worker] Failed to mark event %s invalid: %v", eventID, err)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, msg types.Message) {
	if msg.ReceiptHandle == nil {
		return
	}
	if err := w.queue.Delete(ctx, *msg.ReceiptHandle); err != nil {
		// Redelivery of an already handled job is accepted at-least-once
		// behavior; nothing to roll back here.
		nuts.L.Errorf("[Worker] Failed to delete queue message: %v", err)
	}
}

func (w *Worker) fail(event string) {
	w.count(func(s *Stats) { s.Failures++ })
	w.monitor.RecordEvent(event, nil)
}

func (w *Worker) count(fn func(s *Stats)) {
	w.mu.Lock()
	fn(&w.stats)
	w.mu.Unlock()
}
