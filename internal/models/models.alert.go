// FilePath: server/worker/internal/models/models.alert.go
package models

import "time"

// Alert severity levels as produced by the classifier contract.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Alert lifecycle states. The worker only ever creates alerts in
// StatusOpen; ack/escalate/close transitions belong to the alert
// management API.
const (
	AlertStatusOpen      = "open"
	AlertStatusAcked     = "acked"
	AlertStatusEscalated = "escalated"
	AlertStatusClosed    = "closed"
)

// Alert is a persisted, actionable record of an admitted detection.
type Alert struct {
	ID          string     `json:"id" db:"id"`
	HomeID      string     `json:"home_id" db:"home_id"`
	RoomID      *string    `json:"room_id,omitempty" db:"room_id"`
	DeviceID    *string    `json:"device_id,omitempty" db:"device_id"`
	Type        string     `json:"type" db:"type"`
	Severity    string     `json:"severity" db:"severity"`
	Status      string     `json:"status" db:"status"`
	Score       float64    `json:"score" db:"score"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	AckedAt     *time.Time `json:"acked_at,omitempty" db:"acked_at"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty" db:"escalated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// ModelConfig is the per-home, per-detection-type decision configuration
// row. Threshold is nullable; a missing value is interpreted as the gate's
// default threshold. Params carries an opaque JSON payload owned by the
// configuration API.
type ModelConfig struct {
	ID        string   `json:"id" db:"id"`
	HomeID    string   `json:"home_id" db:"home_id"`
	ModelKey  string   `json:"model_key" db:"model_key"`
	Enabled   bool     `json:"enabled" db:"enabled"`
	Threshold *float64 `json:"threshold" db:"threshold"`
	Params    []byte   `json:"params_json,omitempty" db:"params_json"`
}

// Contact is an emergency contact for a home, notified on high-severity
// alerts in descending priority order.
type Contact struct {
	ID       string `json:"id" db:"id"`
	HomeID   string `json:"home_id" db:"home_id"`
	Name     string `json:"name" db:"name"`
	Channel  string `json:"channel" db:"channel"`
	Value    string `json:"value" db:"value"`
	Priority int    `json:"priority" db:"priority"`
}
