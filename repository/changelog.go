package repository

import (
	"context"

	"github.com/taskmarket/backend/domain"
)

type ChangeLogRepository interface {
	// Append inserts an immutable entry. The caller may pre-assign
	// CreatedAt; a zero value is stamped with the current time.
	Append(ctx context.Context, entry *domain.ChangeLogEntry) (*domain.ChangeLogEntry, error)
	// EntriesSince returns entries created strictly after the given
	// Unix-millisecond timestamp, in (created_at, id) ascending order.
	EntriesSince(ctx context.Context, sinceMillis int64) ([]domain.ChangeLogEntry, error)
}

// SyncCursorCache caches the newest change-log timestamp so the sync hot
// path can answer "nothing new" without touching the primary store.
//
// The cached value must always be an upper bound on the log: writers call
// Advance before the matching log entry is written, and Invalidate when an
// advance fails, so a value that is present never runs behind the log. A
// value that runs ahead (the append failed after the advance) only costs
// readers one extra change-log query; a miss always falls back to the log.
type SyncCursorCache interface {
	// Latest returns the cached newest change timestamp in Unix
	// milliseconds, or 0 when unknown.
	Latest(ctx context.Context) (int64, error)
	// Advance raises the cached timestamp to millis. Advancing is
	// monotonic: a concurrent writer with a newer value wins regardless
	// of arrival order.
	Advance(ctx context.Context, millis int64) error
	// Invalidate clears the cached value so readers hit the log.
	Invalidate(ctx context.Context) error
}
