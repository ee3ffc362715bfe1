package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/vigilhome/vigil_v3/server/worker/internal/config"
	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
	"github.com/vigilhome/vigil_v3/server/worker/internal/monitoring"
)

type fakeEventRepo struct {
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakeEventRepo) DeleteStalePending(ctx context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	return f.deleted, f.err
}

func (f *fakeEventRepo) FindByStorageKey(ctx context.Context, key string) (*models.Event, error) {
	return nil, errors.NewNotFoundError("event not found", nil)
}
func (f *fakeEventRepo) Insert(ctx context.Context, event *models.Event) (string, error) {
	return "", nil
}
func (f *fakeEventRepo) Update(ctx context.Context, id string, update models.EventUpdate) error {
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

func janitorConfig() config.WorkerConfig {
	return config.WorkerConfig{JanitorInterval: time.Hour, PendingMaxAge: 24 * time.Hour}
}

func TestSweepUsesMaxAgeCutoff(t *testing.T) {
	repo := &fakeEventRepo{deleted: 3}
	j := NewJanitor(repo, monitoring.NewService(monitoring.Config{}), janitorConfig())

	before := time.Now().UTC().Add(-24 * time.Hour)
	j.Sweep(context.Background())
	after := time.Now().UTC().Add(-24 * time.Hour)

	if len(repo.cutoffs) != 1 {
		t.Fatalf("got %d sweeps, want 1", len(repo.cutoffs))
	}
	cutoff := repo.cutoffs[0]
	if cutoff.Before(before) || cutoff.After(after) {
		t.Errorf("cutoff %v not within 24h window (%v .. %v)", cutoff, before, after)
	}
}

func TestSweepEmitsReapedEvent(t *testing.T) {
	repo := &fakeEventRepo{deleted: 5}
	j := NewJanitor(repo, monitoring.NewService(monitoring.Config{}), janitorConfig())

	reaped := make(chan int64, 1)
	j.OnReaped(func(count int64) { reaped <- count })

	j.Sweep(context.Background())

	select {
	case count := <-reaped:
		if count != 5 {
			t.Errorf("reaped count = %d, want 5", count)
		}
	case <-time.After(time.Second):
		t.Fatal("no reaped signal")
	}
}

func TestSweepErrorDoesNotPanic(t *testing.T) {
	repo := &fakeEventRepo{err: errors.NewDatabaseError("mongo down", nil)}
	j := NewJanitor(repo, monitoring.NewService(monitoring.Config{}), janitorConfig())
	j.Sweep(context.Background())
}
