package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskmarket/backend/domain"
	"github.com/taskmarket/backend/repository"
)

// Change is one task transition as seen by a syncing client.
type Change struct {
	TaskID string              `json:"task_id"`
	Status domain.ChangeStatus `json:"status"`
}

// Result is the answer to a "what changed since T" query. LastUpdated is
// the cursor for the next poll: the timestamp of the last returned entry,
// or the input unchanged when nothing changed.
type Result struct {
	LastUpdated int64    `json:"last_updated"`
	Changes     []Change `json:"changes"`
}

// UseCase answers incremental sync queries against the change log. It is
// read-only and safe to poll repeatedly.
type UseCase struct {
	changeLog repository.ChangeLogRepository
	cursor    repository.SyncCursorCache
	logger    *zap.Logger
}

func New(changeLog repository.ChangeLogRepository, cursor repository.SyncCursorCache, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		changeLog: changeLog,
		cursor:    cursor,
		logger:    logger,
	}
}

// Sync returns the transitions recorded strictly after the given
// Unix-millisecond cursor, oldest first. When the cached newest-change
// timestamp shows the caller is already up to date, the change log is not
// queried at all. The short-circuit is safe because writers advance the
// cache before appending, so a present value never runs behind the log;
// a cache error or miss always falls back to the log.
func (uc *UseCase) Sync(ctx context.Context, since int64) (*Result, error) {
	if since < 0 {
		since = 0
	}

	if uc.cursor != nil {
		latest, err := uc.cursor.Latest(ctx)
		switch {
		case err != nil:
			uc.logger.Debug("sync cursor cache unavailable", zap.Error(err))
		case latest > 0 && latest <= since:
			return &Result{LastUpdated: since, Changes: []Change{}}, nil
		}
	}

	entries, err := uc.changeLog.EntriesSince(ctx, since)
	if err != nil {
		return nil, err
	}

	result := &Result{
		LastUpdated: since,
		Changes:     make([]Change, 0, len(entries)),
	}
	for _, entry := range entries {
		result.Changes = append(result.Changes, Change{
			TaskID: entry.TaskID,
			Status: entry.Status,
		})
		result.LastUpdated = entry.CreatedAt
	}
	return result, nil
}
