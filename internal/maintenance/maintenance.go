// FilePath: server/worker/internal/maintenance/maintenance.go
package maintenance

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/config"
	"github.com/vigilhome/vigil_v3/server/worker/internal/monitoring"
	"github.com/vigilhome/vigil_v3/server/worker/internal/repository"
)

// Janitor removes event documents stuck in pending: upload URLs that
// were issued but never completed. Without it, abandoned uploads
// accumulate in the events collection forever.
type Janitor struct {
	events   repository.EventRepository
	monitor  *monitoring.Service
	interval time.Duration
	maxAge   time.Duration
	emitter  *nuts.EventEmitter
}

func NewJanitor(events repository.EventRepository, monitor *monitoring.Service, cfg config.WorkerConfig) *Janitor {
	return &Janitor{
		events:   events,
		monitor:  monitor,
		interval: cfg.JanitorInterval,
		maxAge:   cfg.PendingMaxAge,
		emitter:  nuts.NewEventEmitter(),
	}
}

// OnReaped registers a callback for completed sweeps that removed at
// least one event.
func (j *Janitor) OnReaped(handler func(count int64)) {
	j.emitter.On("events.reaped", "janitor_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if count, ok := args[0].(int64); ok {
				handler(count)
			}
		}
	})
}

// Run sweeps on the configured interval until ctx is canceled. The first
// sweep happens immediately on start.
func (j *Janitor) Run(ctx context.Context) {
	nuts.L.Infof("[Janitor] Started: reaping pending events older than %s every %s", j.maxAge, j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			nuts.L.Infof("[Janitor] Stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep deletes one batch of stale pending events.
func (j *Janitor) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.maxAge)

	deleted, err := j.events.DeleteStalePending(ctx, cutoff)
	if err != nil {
		nuts.L.Errorf("[Janitor] Sweep failed: %v", err)
		j.monitor.RecordEvent("janitor_sweep_error", nil)
		return
	}

	if deleted > 0 {
		nuts.L.Infof("[Janitor] Reaped %d stale pending events (older than %s)", deleted, cutoff.Format(time.RFC3339))
		j.emitter.Emit("events.reaped", deleted)
	}
	j.monitor.RecordEvent("janitor_sweep", nil)
}
