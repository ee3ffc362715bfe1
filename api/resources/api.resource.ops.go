// FilePath: server/worker/api/resources/api.resource.ops.go
package resources

import (
	"context"
	"net/http"
	"time"

	"github.com/vigilhome/vigil_v3/server/worker/internal/monitoring"
	"github.com/vigilhome/vigil_v3/server/worker/internal/worker"
)

// HealthCheckFunc pings one dependency.
type HealthCheckFunc func(ctx context.Context) error

// OpsHandlers serves the worker's own operational state: dependency
// health, pipeline counters, and job loop statistics.
type OpsHandlers struct {
	monitor *monitoring.Service
	stats   func() worker.Stats
	checks  map[string]HealthCheckFunc
	version string
}

func NewOpsHandlers(monitor *monitoring.Service, stats func() worker.Stats, checks map[string]HealthCheckFunc, version string) *OpsHandlers {
	return &OpsHandlers{
		monitor: monitor,
		stats:   stats,
		checks:  checks,
		version: version,
	}
}

// @Summary Health check
// @Description Ping all backing services; 503 if any dependency is down
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *OpsHandlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			healthy = false
		} else {
			deps[name] = "ok"
		}
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	respondWithJSON(w, status, map[string]interface{}{
		"status":       state,
		"version":      h.version,
		"uptime":       h.monitor.Uptime().String(),
		"dependencies": deps,
	})
}

// @Summary Pipeline counters
// @Description All monitored event counters since process start
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /metrics [get]
func (h *OpsHandlers) Metrics(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"uptime":   h.monitor.Uptime().String(),
		"counters": h.monitor.Counters(),
	})
}

// @Summary Job loop statistics
// @Description Received/processed/suppressed/alerted counts of the job loop
// @Tags ops
// @Produce json
// @Success 200 {object} worker.Stats
// @Router /stats [get]
func (h *OpsHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.stats())
}
