// FilePath: server/worker/api/resources/resources.go
package resources

import (
	"encoding/json"
	"net/http"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Analytics *AnalyticsHandlers
	ops       *OpsHandlers
}

// NewResources creates a new Resources instance
func NewResources(analytics *AnalyticsHandlers, ops *OpsHandlers) *Resources {
	return &Resources{
		Analytics: analytics,
		ops:       ops,
	}
}

func (r *Resources) HealthCheck(w http.ResponseWriter, req *http.Request) {
	r.ops.HealthCheck(w, req)
}

func (r *Resources) Metrics(w http.ResponseWriter, req *http.Request) {
	r.ops.Metrics(w, req)
}

func (r *Resources) Stats(w http.ResponseWriter, req *http.Request) {
	r.ops.Stats(w, req)
}

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
