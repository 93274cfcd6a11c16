package domain

import "time"

// Location is the geographic scope a task is pinned to. Owned 1:1 by its task
// and removed with it.
type Location struct {
	ID     string  `json:"id"`
	TaskID string  `json:"task_id"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Radius float64 `json:"radius"`
}

// TaskAction is one prompt inside a task. Actions are ordered and cascade
// with their task.
type TaskAction struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
}

// Task is a funded unit of work with a bounded number of answer slots.
// AnswersLeft is decremented exactly once per accepted response and never
// goes below zero; a task with AnswersLeft == 0 still exists and is readable
// but rejects new responses.
type Task struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Name        string         `json:"name"`
	Cost        int64          `json:"cost"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	RefreshRate int            `json:"refresh_rate"`
	AnswersLeft int            `json:"answers_left"`
	Location    *Location      `json:"location,omitempty"`
	Actions     []TaskAction   `json:"actions,omitempty"`
	Responses   []TaskResponse `json:"responses,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Exhausted reports whether the task has no answer slots left.
func (t *Task) Exhausted() bool {
	return t != nil && t.AnswersLeft == 0
}

// Validate checks the fields a task must carry before it is persisted.
func (t *Task) Validate() error {
	if t == nil {
		return ErrInvalidPayload
	}
	if t.Name == "" {
		return NewError(ErrCodeInvalid, "task name is required")
	}
	if t.OwnerID == "" {
		return NewError(ErrCodeInvalid, "task owner is required")
	}
	if t.Cost <= 0 {
		return NewError(ErrCodeInvalid, "cost must be a positive amount")
	}
	if t.AnswersLeft < 1 {
		return NewError(ErrCodeInvalid, "task must be funded for at least one answer")
	}
	if loc := t.Location; loc != nil {
		if loc.Lat < -90 || loc.Lat > 90 {
			return NewError(ErrCodeInvalid, "latitude out of range")
		}
		if loc.Lng < -180 || loc.Lng > 180 {
			return NewError(ErrCodeInvalid, "longitude out of range")
		}
		if loc.Radius < 0 {
			return NewError(ErrCodeInvalid, "radius must not be negative")
		}
	}
	return nil
}
