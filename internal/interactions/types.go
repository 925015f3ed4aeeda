package interactions

import (
	"encoding/json"
	"time"
)

// Task identifies which generation pipeline produced an interaction.
type Task string

const (
	TaskChat           Task = "user-chat"
	TaskListingSuggest Task = "listing-suggest"
)

// Interaction pairs a generation request with its validated output.
// Rows are append-only: once recorded they are never mutated or deleted.
type Interaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	Actor     string          `json:"actor"`
	Task      Task            `json:"task"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
	CreatedAt time.Time       `json:"created_at"`
}

// QueryFilter controls which interactions to return.
type QueryFilter struct {
	Task   Task
	UserID string
	Limit  int
	Offset int
}
