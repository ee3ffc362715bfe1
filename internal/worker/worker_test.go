package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/vigilhome/vigil_v3/server/worker/internal/alerting"
	"github.com/vigilhome/vigil_v3/server/worker/internal/audio"
	"github.com/vigilhome/vigil_v3/server/worker/internal/config"
	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
	"github.com/vigilhome/vigil_v3/server/worker/internal/monitoring"
)

const (
	testHomeID   = "6f1c1b31-0000-4000-8000-000000000001"
	testDeviceID = "6f1c1b31-0000-4000-8000-000000000002"
	testKey      = "homes/home1/clip1.wav"
)

type fakeQueue struct {
	mu       sync.Mutex
	batches  [][]types.Message
	deleted  []string
	recvErrs []error
}

func (f *fakeQueue) Receive(ctx context.Context) ([]types.Message, error) {
	f.mu.Lock()
	if len(f.recvErrs) > 0 {
		err := f.recvErrs[0]
		f.recvErrs = f.recvErrs[1:]
		f.mu.Unlock()
		return nil, err
	}
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeQueue) Delete(ctx context.Context, receiptHandle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

func (f *fakeQueue) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeStore struct {
	objects   map[string][]byte
	err       error
	downloads int
}

func (f *fakeStore) Download(ctx context.Context, key string) ([]byte, error) {
	f.downloads++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.NewStorageError("object not found", nil)
	}
	return data, nil
}

func (f *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}

type recordedUpdate struct {
	id     string
	update models.EventUpdate
}

type fakeEventRepo struct {
	events  map[string]*models.Event // by storage key
	updates []recordedUpdate
	findErr error
	updErr  error
}

func (f *fakeEventRepo) FindByStorageKey(ctx context.Context, key string) (*models.Event, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	ev, ok := f.events[key]
	if !ok {
		return nil, errors.NewNotFoundError("event not found", nil)
	}
	return ev, nil
}

func (f *fakeEventRepo) Insert(ctx context.Context, event *models.Event) (string, error) {
	return "", nil
}

func (f *fakeEventRepo) Update(ctx context.Context, id string, update models.EventUpdate) error {
	if f.updErr != nil {
		return f.updErr
	}
	f.updates = append(f.updates, recordedUpdate{id: id, update: update})
	return nil
}

func (f *fakeEventRepo) CountRecent(ctx context.Context, homeID string, window time.Duration) (int64, error) {
	return 0, nil
}
func (f *fakeEventRepo) CountByHomeRecent(ctx context.Context, window time.Duration) ([]models.HomeEventCount, error) {
	return nil, nil
}
func (f *fakeEventRepo) AggregateByHour(ctx context.Context, homeID string, window time.Duration) ([]models.HourlyEventCount, error) {
	return nil, nil
}
func (f *fakeEventRepo) DeviceUptimeSummary(ctx context.Context, homeID string) ([]models.DeviceUptime, error) {
	return nil, nil
}
func (f *fakeEventRepo) DeleteStalePending(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeDeviceRepo struct {
	devices map[string]*models.Device
	err     error
}

func (f *fakeDeviceRepo) Get(ctx context.Context, id string) (*models.Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	dev, ok := f.devices[id]
	if !ok {
		return nil, errors.NewNotFoundError("device not found", nil)
	}
	return dev, nil
}

func (f *fakeDeviceRepo) ListByHome(ctx context.Context, homeID string) ([]*models.Device, error) {
	return nil, nil
}

type fakePredictor struct {
	result *models.ClassificationResult
	err    error
	calls  int
}

func (f *fakePredictor) Predict(ctx context.Context, samples []int16) (*models.ClassificationResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakePredictor) SampleRate() int { return 16000 }

type stubGate struct {
	decision alerting.Decision
}

func (s *stubGate) Admit(ctx context.Context, homeID, label string, score float64) alerting.Decision {
	return s.decision
}

type stubWriter struct {
	created []*models.Alert
	err     error
}

func (s *stubWriter) Create(ctx context.Context, result *models.ClassificationResult, device *models.Device) (*models.Alert, error) {
	if s.err != nil {
		return nil, s.err
	}
	alert := &models.Alert{
		ID:       fmt.Sprintf("al_%d", len(s.created)+1),
		HomeID:   device.HomeID,
		Type:     result.Type,
		Severity: result.Severity,
		Status:   models.AlertStatusOpen,
		Score:    result.Score,
	}
	s.created = append(s.created, alert)
	return alert, nil
}

// fixture is a fully wired worker over fakes, defaulting to the happy
// path: valid job, known event and device, high-score fall detection,
// admitting gate.
type fixture struct {
	queue   *fakeQueue
	store   *fakeStore
	events  *fakeEventRepo
	devices *fakeDeviceRepo
	pred    *fakePredictor
	gate    *stubGate
	writer  *stubWriter
	worker  *Worker
}

func newFixture() *fixture {
	room := "bedroom"
	clip := &audio.Clip{Samples: make([]int16, 16000), SampleRate: 16000}

	f := &fixture{
		queue: &fakeQueue{},
		store: &fakeStore{objects: map[string][]byte{testKey: audio.EncodeWAV(clip)}},
		events: &fakeEventRepo{events: map[string]*models.Event{
			testKey: {ID: "ev1", HomeID: testHomeID, DeviceID: testDeviceID, StorageKey: testKey, Status: models.EventStatusUploaded},
		}},
		devices: &fakeDeviceRepo{devices: map[string]*models.Device{
			testDeviceID: {ID: testDeviceID, HomeID: testHomeID, RoomID: &room, Name: "Bedroom Sensor"},
		}},
		pred: &fakePredictor{result: &models.ClassificationResult{
			Type:     "Fall / Impact",
			Severity: models.SeverityHigh,
			Score:    0.9,
			Scores:   map[string]float64{"Fall / Impact": 0.9, "Footsteps": 0.1},
		}},
		gate:   &stubGate{decision: alerting.Decision{Admitted: true, Threshold: 0.5, Reason: "admitted"}},
		writer: &stubWriter{},
	}

	f.worker = New(f.queue, f.store, f.events, f.devices, f.pred, f.gate, f.writer, monitoring.NewService(monitoring.Config{}), config.WorkerConfig{ErrorBackoff: time.Millisecond})
	return f
}

func jobMessage(bodyFields map[string]string) types.Message {
	raw, _ := json.Marshal(bodyFields)
	return types.Message{Body: aws.String(string(raw)), ReceiptHandle: aws.String("rh-1")}
}

func validMessage() types.Message {
	return jobMessage(map[string]string{
		"s3_key":    testKey,
		"home_id":   testHomeID,
		"device_id": testDeviceID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func TestProcessAdmittedJobCreatesAlertAndDeletes(t *testing.T) {
	f := newFixture()
	f.worker.processMessage(context.Background(), validMessage())

	if len(f.writer.created) != 1 {
		t.Fatalf("created %d alerts, want 1", len(f.writer.created))
	}
	alert := f.writer.created[0]
	if alert.Type != "Fall / Impact" || alert.Severity != models.SeverityHigh || alert.Score != 0.9 {
		t.Errorf("unexpected alert: %+v", alert)
	}
	if alert.Status != models.AlertStatusOpen {
		t.Errorf("Status = %q, want open", alert.Status)
	}

	if len(f.events.updates) != 1 {
		t.Fatalf("got %d event updates, want 1", len(f.events.updates))
	}
	upd := f.events.updates[0].update
	if upd.Status == nil || *upd.Status != models.EventStatusProcessed {
		t.Error("event not marked processed")
	}
	if upd.Decision == nil || *upd.Decision != "Fall / Impact" {
		t.Error("decision not recorded on event")
	}
	if len(upd.Scores) == 0 {
		t.Error("scores not recorded on event")
	}

	if len(f.queue.deletedHandles()) != 1 {
		t.Error("handled message was not deleted")
	}

	stats := f.worker.Stats()
	if stats.Processed != 1 || stats.Alerts != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestProcessSuppressedJobDeletesWithoutAlert(t *testing.T) {
	f := newFixture()
	f.gate.decision = alerting.Decision{Admitted: false, Threshold: 0.5, Reason: "below_threshold"}

	f.worker.processMessage(context.Background(), validMessage())

	if len(f.writer.created) != 0 {
		t.Error("suppressed detection must not create an alert")
	}
	if len(f.events.updates) != 1 {
		t.Error("event must still be marked processed on suppression")
	}
	if len(f.queue.deletedHandles()) != 1 {
		t.Error("suppression is a success; message must be deleted")
	}
	if f.worker.Stats().Suppressed != 1 {
		t.Error("suppression not counted")
	}
}

func TestProcessDisabledTypeSuppressed(t *testing.T) {
	f := newFixture()
	f.gate.decision = alerting.Decision{Admitted: false, Threshold: 0.5, Reason: "disabled"}

	f.worker.processMessage(context.Background(), validMessage())

	if len(f.writer.created) != 0 {
		t.Error("disabled type must not alert")
	}
	if len(f.queue.deletedHandles()) != 1 {
		t.Error("message must be deleted")
	}
}

func TestProcessClassifierTimeoutLeavesMessage(t *testing.T) {
	f := newFixture()
	f.pred.err = errors.NewTimeoutError("classifier did not respond within deadline", nil)

	f.worker.processMessage(context.Background(), validMessage())

	if len(f.events.updates) != 0 {
		t.Error("timed-out job must not update the event")
	}
	if len(f.writer.created) != 0 {
		t.Error("timed-out job must not alert")
	}
	if len(f.queue.deletedHandles()) != 0 {
		t.Error("timed-out job must stay queued for redelivery")
	}
	if f.worker.Stats().Failures != 1 {
		t.Error("timeout not counted as failure")
	}
}

func TestProcessMalformedJobDiscarded(t *testing.T) {
	f := newFixture()
	msg := types.Message{Body: aws.String(`{"s3_key": "x"}`), ReceiptHandle: aws.String("rh-mal")}

	f.worker.processMessage(context.Background(), msg)

	if got := f.queue.deletedHandles(); len(got) != 1 || got[0] != "rh-mal" {
		t.Errorf("malformed message not deleted: %v", got)
	}
	if f.store.downloads != 0 {
		t.Error("malformed job must not touch object storage")
	}
	if len(f.events.updates) != 0 || len(f.writer.created) != 0 {
		t.Error("malformed job must have zero downstream effects")
	}
	if f.worker.Stats().Malformed != 1 {
		t.Error("malformed not counted")
	}
}

func TestProcessMissingEventLeavesMessage(t *testing.T) {
	f := newFixture()
	f.events.events = map[string]*models.Event{}

	f.worker.processMessage(context.Background(), validMessage())

	if len(f.queue.deletedHandles()) != 0 {
		t.Error("job with no event record must stay queued")
	}
	if f.store.downloads != 0 {
		t.Error("job with no event record must not download")
	}
}

func TestProcessDownloadFailureLeavesMessage(t *testing.T) {
	f := newFixture()
	f.store.err = errors.NewStorageError("connection reset", nil)

	f.worker.processMessage(context.Background(), validMessage())

	if len(f.queue.deletedHandles()) != 0 {
		t.Error("failed download must stay queued for redelivery")
	}
	if f.pred.calls != 0 {
		t.Error("failed download must not reach the classifier")
	}
}

func TestProcessMissingDeviceLeavesMessage(t *testing.T) {
	f := newFixture()
	f.devices.devices = map[string]*models.Device{}

	f.worker.processMessage(context.Background(), validMessage())

	if len(f.events.updates) != 1 {
		t.Error("event update precedes device lookup and must have happened")
	}
	if len(f.writer.created) != 0 {
		t.Error("missing device must not alert")
	}
	if len(f.queue.deletedHandles()) != 0 {
		t.Error("missing device is treated as transient; message stays queued")
	}
}

func TestProcessAlertWriteFailureLeavesMessage(t *testing.T) {
	f := newFixture()
	f.writer.err = errors.NewDatabaseError("insert failed", nil)

	f.worker.processMessage(context.Background(), validMessage())

	if len(f.queue.deletedHandles()) != 0 {
		t.Error("failed alert write must stay queued for redelivery")
	}
}

func TestProcessUndecodableAudioDiscarded(t *testing.T) {
	f := newFixture()
	f.store.objects[testKey] = []byte("definitely not a wav file")

	f.worker.processMessage(context.Background(), validMessage())

	if len(f.queue.deletedHandles()) != 1 {
		t.Error("undecodable audio must be discarded, not retried forever")
	}
	if f.pred.calls != 0 {
		t.Error("undecodable audio must not reach the classifier")
	}
	if len(f.events.updates) != 1 {
		t.Fatal("event must record the invalid outcome")
	}
	upd := f.events.updates[0].update
	if upd.Decision == nil || *upd.Decision != "invalid_audio" {
		t.Errorf("decision = %v, want invalid_audio", upd.Decision)
	}
}

func TestProcessRedeliveryRepeatsSameUpdate(t *testing.T) {
	f := newFixture()
	f.worker.processMessage(context.Background(), validMessage())
	f.worker.processMessage(context.Background(), validMessage())

	if len(f.events.updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(f.events.updates))
	}
	first, second := f.events.updates[0].update, f.events.updates[1].update
	if *first.Decision != *second.Decision || *first.Status != *second.Status {
		t.Error("redelivered job produced a different event state")
	}
	// Duplicate alerts on redelivery are accepted at-least-once behavior.
	if len(f.writer.created) != 2 {
		t.Errorf("got %d alerts, want 2", len(f.writer.created))
	}
}

func TestRunStopsOnCancelAndSurvivesReceiveErrors(t *testing.T) {
	f := newFixture()
	f.queue.recvErrs = []error{errors.NewQueueError("throttled", nil)}
	f.queue.batches = [][]types.Message{{validMessage()}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(f.queue.deletedHandles()) == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never processed the batch after a receive error")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if f.worker.Stats().Alerts != 1 {
		t.Errorf("stats = %+v, want one alert", f.worker.Stats())
	}
}
