// FilePath: server/worker/internal/models/models.job.go
package models

import "time"

// Job is a queued reference to one uploaded audio clip awaiting
// classification. It has no persistent identity beyond the queue's own
// delivery token (the receipt handle); on success it is deleted from the
// queue, on failure the queue redelivers it after the visibility timeout.
type Job struct {
	StorageKey    string    `json:"s3_key"`
	HomeID        string    `json:"home_id"`
	DeviceID      string    `json:"device_id"`
	EnqueuedAt    time.Time `json:"timestamp"`
	ReceiptHandle string    `json:"-"`
}

// Device is the worker's read-only view of a registered edge device. The
// room assignment is inherited by alerts raised for the device.
type Device struct {
	ID     string  `json:"id" db:"id"`
	HomeID string  `json:"home_id" db:"home_id"`
	RoomID *string `json:"room_id" db:"room_id"`
	Name   string  `json:"name" db:"name"`
	Type   string  `json:"type" db:"type"`
	Status string  `json:"status" db:"status"`
}
