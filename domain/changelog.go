package domain

// ChangeStatus classifies a task lifecycle transition.
type ChangeStatus string

const (
	ChangeCreated ChangeStatus = "CREATED"
	ChangeUpdated ChangeStatus = "UPDATED"
	ChangeDeleted ChangeStatus = "DELETED"
)

// Valid reports whether the status is one of the known transitions.
func (s ChangeStatus) Valid() bool {
	switch s {
	case ChangeCreated, ChangeUpdated, ChangeDeleted:
		return true
	}
	return false
}

// ChangeLogEntry is an immutable fact record of a task lifecycle transition.
// Entries are append-only, never compacted, and reference the task by id
// only, so they outlive task deletion and let offline clients observe it.
//
// CreatedAt is a server-assigned Unix-millisecond timestamp; together with
// the monotone ID it gives the log a total order. Millisecond precision is
// deliberate: the same value travels to clients as their sync cursor, and a
// finer persisted precision would make cursor comparisons lossy.
type ChangeLogEntry struct {
	ID        int64        `json:"id"`
	TaskID    string       `json:"task_id"`
	Status    ChangeStatus `json:"status"`
	CreatedAt int64        `json:"created_at"`
}
