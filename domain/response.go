package domain

import "time"

// TaskResponse is one user's complete answer session to a task. Accepting a
// response consumes exactly one answer slot and pays the responder the
// task's cost.
type TaskResponse struct {
	ID        string               `json:"id"`
	TaskID    string               `json:"task_id"`
	UserID    string               `json:"user_id"`
	Answers   []TaskActionResponse `json:"answers,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// TaskActionResponse is the literal answer to a single task action. UserID
// is denormalized from the parent response for per-user history queries.
type TaskActionResponse struct {
	ID         string `json:"id"`
	ResponseID string `json:"response_id"`
	ActionID   string `json:"action_id"`
	UserID     string `json:"user_id"`
	Value      string `json:"value"`
}
