// FilePath: server/worker/internal/models/models.event.go
package models

import "time"

// Event upload lifecycle states.
const (
	EventStatusPending   = "pending"
	EventStatusUploaded  = "uploaded"
	EventStatusProcessed = "processed"
)

// Event tracks one uploaded audio clip through its lifecycle in the
// document store, keyed uniquely by the storage object key. It is created
// as pending when an upload URL is issued, becomes uploaded once the
// client confirms completion, and processed after classification.
type Event struct {
	ID         string             `json:"id" bson:"_id,omitempty"`
	Timestamp  time.Time          `json:"timestamp" bson:"timestamp"`
	HomeID     string             `json:"home_id" bson:"home_id"`
	DeviceID   string             `json:"device_id" bson:"device_id"`
	StorageKey string             `json:"s3_key" bson:"s3_key"`
	DurationMS *int64             `json:"duration_ms,omitempty" bson:"duration_ms,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty" bson:"scores,omitempty"`
	Decision   *string            `json:"decision,omitempty" bson:"decision,omitempty"`
	Status     string             `json:"status" bson:"status"`
}

// EventUpdate carries a partial update for an event document. Only
// non-nil fields are written, so repeated applications of the same update
// are idempotent.
type EventUpdate struct {
	DurationMS *int64
	Scores     map[string]float64
	Decision   *string
	Status     *string
}

// HomeEventCount is an aggregation row: events per home over a window.
type HomeEventCount struct {
	HomeID string `json:"home_id" bson:"home_id"`
	Count  int64  `json:"count" bson:"count"`
}

// HourlyEventCount is an aggregation row: events bucketed by hour.
type HourlyEventCount struct {
	Year  int   `json:"year" bson:"year"`
	Month int   `json:"month" bson:"month"`
	Day   int   `json:"day" bson:"day"`
	Hour  int   `json:"hour" bson:"hour"`
	Count int64 `json:"count" bson:"count"`
}

// DeviceUptime approximates a device's availability from its event
// frequency over the trailing week.
type DeviceUptime struct {
	DeviceID      string    `json:"device_id" bson:"device_id"`
	EventCount    int64     `json:"event_count" bson:"event_count"`
	LastEvent     time.Time `json:"last_event" bson:"last_event"`
	UptimePercent float64   `json:"uptime_percent" bson:"uptime_percent"`
}
