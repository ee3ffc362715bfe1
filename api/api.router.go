// FilePath: server/worker/api/api.router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vigilhome/vigil_v3/server/worker/api/middleware"
	"github.com/vigilhome/vigil_v3/server/worker/api/resources"
)

// Router is the ops HTTP surface of the worker: health, metrics, loop
// stats, and the event analytics reads. There is no mutating API here;
// alert and configuration management live in the main API service.
type Router struct {
	router    *mux.Router
	resources *resources.Resources
}

func NewRouter(res *resources.Resources) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		resources: res,
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.router.Use(middleware.RequestID)

	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/metrics", r.resources.Metrics).Methods(http.MethodGet)
	api.HandleFunc("/stats", r.resources.Stats).Methods(http.MethodGet)

	// Analytics reads over the event store
	analytics := api.PathPrefix("/analytics").Subrouter()
	analytics.HandleFunc("/events", r.resources.Analytics.EventCounts).Methods(http.MethodGet)
	analytics.HandleFunc("/events/hourly", r.resources.Analytics.HourlyEvents).Methods(http.MethodGet)
	analytics.HandleFunc("/uptime", r.resources.Analytics.DeviceUptime).Methods(http.MethodGet)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
