package messagequeue

import "time"

// Change actions carried by change payloads.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	// ActionEvicted marks an operator-triggered cache eviction with no
	// change to the stored record.
	ActionEvicted = "evicted"
)

// ProfileChangedPayload is the schema for profiles.changed messages.
type ProfileChangedPayload struct {
	EventID    string    `json:"event_id"`
	BankID     int64     `json:"bank_id"`
	UserID     int64     `json:"user_id"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PhotoChangedPayload is the schema for profiles.photo messages.
type PhotoChangedPayload struct {
	EventID    string    `json:"event_id"`
	BankID     int64     `json:"bank_id"`
	UserID     int64     `json:"user_id"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}
