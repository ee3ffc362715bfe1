// FilePath: server/worker/api/resources/api.resource.analytics.go
package resources

import (
	"net/http"
	"time"

	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
	"github.com/vigilhome/vigil_v3/server/worker/internal/repository"
)

const (
	defaultWindowHours = 24
	maxWindowHours     = 24 * 30
)

var queryDecoder = schema.NewDecoder()

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
}

// AnalyticsHandlers encapsulates the event-analytics HTTP handlers
type AnalyticsHandlers struct {
	events repository.EventRepository
}

func NewAnalyticsHandlers(events repository.EventRepository) *AnalyticsHandlers {
	return &AnalyticsHandlers{events: events}
}

func decodeAnalyticsQuery(r *http.Request) (*models.AnalyticsQuery, *errors.APIError) {
	var query models.AnalyticsQuery
	if err := queryDecoder.Decode(&query, r.URL.Query()); err != nil {
		return nil, errors.NewValidationError("invalid query parameters", err)
	}
	if query.Hours < 0 || query.Hours > maxWindowHours {
		return nil, errors.NewValidationError("hours out of range", nil)
	}
	if query.Hours == 0 {
		query.Hours = defaultWindowHours
	}
	return &query, nil
}

// @Summary Event counts
// @Description Count processed events over a trailing window, for one home or grouped by home
// @Tags analytics
// @Produce json
// @Param home_id query string false "Restrict to one home"
// @Param hours query int false "Trailing window in hours (default 24)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.APIError
// @Router /analytics/events [get]
func (h *AnalyticsHandlers) EventCounts(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	query, apiErr := decodeAnalyticsQuery(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	window := time.Duration(query.Hours) * time.Hour

	if query.HomeID != "" {
		count, err := h.events.CountRecent(r.Context(), query.HomeID, window)
		if err != nil {
			respondWithError(w, errors.NewDatabaseError("failed to count events", err).WithRequestID(requestID))
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"home_id": query.HomeID,
			"hours":   query.Hours,
			"count":   count,
		})
		return
	}

	counts, err := h.events.CountByHomeRecent(r.Context(), window)
	if err != nil {
		respondWithError(w, errors.NewDatabaseError("failed to count events", err).WithRequestID(requestID))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"hours": query.Hours,
		"homes": counts,
	})
}

// @Summary Hourly event histogram
// @Description Bucket one home's events by hour over a trailing window
// @Tags analytics
// @Produce json
// @Param home_id query string true "Home ID"
// @Param hours query int false "Trailing window in hours (default 24)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.APIError
// @Router /analytics/events/hourly [get]
func (h *AnalyticsHandlers) HourlyEvents(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	query, apiErr := decodeAnalyticsQuery(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	if query.HomeID == "" {
		respondWithError(w, errors.NewValidationError("home_id is required", nil).WithRequestID(requestID))
		return
	}

	buckets, err := h.events.AggregateByHour(r.Context(), query.HomeID, time.Duration(query.Hours)*time.Hour)
	if err != nil {
		respondWithError(w, errors.NewDatabaseError("failed to aggregate events", err).WithRequestID(requestID))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"home_id": query.HomeID,
		"hours":   query.Hours,
		"buckets": buckets,
	})
}

// @Summary Device uptime estimates
// @Description Approximate per-device availability from event frequency over the trailing week
// @Tags analytics
// @Produce json
// @Param home_id query string true "Home ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.APIError
// @Router /analytics/uptime [get]
func (h *AnalyticsHandlers) DeviceUptime(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	query, apiErr := decodeAnalyticsQuery(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	if query.HomeID == "" {
		respondWithError(w, errors.NewValidationError("home_id is required", nil).WithRequestID(requestID))
		return
	}

	devices, err := h.events.DeviceUptimeSummary(r.Context(), query.HomeID)
	if err != nil {
		respondWithError(w, errors.NewDatabaseError("failed to summarize uptime", err).WithRequestID(requestID))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"home_id": query.HomeID,
		"devices": devices,
	})
}
