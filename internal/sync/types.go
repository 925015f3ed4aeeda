package sync

import (
	"encoding/json"
	"time"
)

// EventType classifies an ingested marketplace event.
type EventType string

const (
	EventUserUpdated        EventType = "user.updated"
	EventListingUpdated     EventType = "listing.updated"
	EventTransactionUpdated EventType = "transaction.updated"
)

// Event is one row in the ingestion dedup ledger. An event id produces a
// side-effecting write at most once; replays are skipped.
type Event struct {
	EventID    string    `json:"event_id"`
	EventType  EventType `json:"event_type"`
	ReceivedAt time.Time `json:"received_at"`
}

// UserSnapshot is the latest known state of a marketplace user, stored as
// the raw payload the marketplace sent. Last write wins.
type UserSnapshot struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	EventID   string          `json:"event_id"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ListingSnapshot is the latest known state of a marketplace listing.
type ListingSnapshot struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TransactionSnapshot is the latest known state of a marketplace transaction.
type TransactionSnapshot struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}
