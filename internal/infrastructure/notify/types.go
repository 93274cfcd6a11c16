package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventTaskCreated  = "task_created"
	EventTaskAnswered = "task_answered"
)

// Item is one pending push delivery. Items survive restarts in the queue
// file and are dropped after MaxRetry failed attempts; delivery is
// best-effort by contract.
type Item struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"task_id"`
	Event     string          `json:"event"`
	Target    string          `json:"target"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
