package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/taskmarket/backend/domain"
	"github.com/taskmarket/backend/usecase/task"
)

type fakeChangeLog struct {
	entries []domain.ChangeLogEntry
	queries int
}

func (f *fakeChangeLog) Append(_ context.Context, entry *domain.ChangeLogEntry) (*domain.ChangeLogEntry, error) {
	stored := *entry
	stored.ID = int64(len(f.entries) + 1)
	if stored.CreatedAt == 0 {
		stored.CreatedAt = int64(len(f.entries)+1) * 100
	}
	f.entries = append(f.entries, stored)
	return &stored, nil
}

func (f *fakeChangeLog) EntriesSince(_ context.Context, sinceMillis int64) ([]domain.ChangeLogEntry, error) {
	f.queries++
	var result []domain.ChangeLogEntry
	for _, entry := range f.entries {
		if entry.CreatedAt > sinceMillis {
			result = append(result, entry)
		}
	}
	return result, nil
}

type fakeCursor struct {
	latest     int64
	err        error
	advanceErr error
}

func (f *fakeCursor) Latest(context.Context) (int64, error) { return f.latest, f.err }
func (f *fakeCursor) Advance(_ context.Context, millis int64) error {
	if f.advanceErr != nil {
		return f.advanceErr
	}
	if millis > f.latest {
		f.latest = millis
	}
	return nil
}
func (f *fakeCursor) Invalidate(context.Context) error {
	f.latest = 0
	return nil
}

func seedLog(statuses ...domain.ChangeStatus) *fakeChangeLog {
	log := &fakeChangeLog{}
	for i, status := range statuses {
		_, _ = log.Append(context.Background(), &domain.ChangeLogEntry{TaskID: taskID(i), Status: status})
	}
	return log
}

func taskID(i int) string {
	return []string{"t1", "t2", "t3", "t4"}[i%4]
}

func TestSync_FreshSystem(t *testing.T) {
	log := seedLog(domain.ChangeCreated)
	uc := New(log, nil, nil)

	result, err := uc.Sync(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.Changes) != 1 || result.Changes[0].Status != domain.ChangeCreated {
		t.Fatalf("expected one CREATED change, got %+v", result.Changes)
	}
	if result.LastUpdated != 100 {
		t.Fatalf("last updated = %d, want 100", result.LastUpdated)
	}

	// polling again with the returned cursor yields nothing new
	again, err := uc.Sync(context.Background(), result.LastUpdated)
	if err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}
	if len(again.Changes) != 0 {
		t.Fatalf("expected no changes, got %+v", again.Changes)
	}
	if again.LastUpdated != result.LastUpdated {
		t.Fatalf("cursor moved from %d to %d without changes", result.LastUpdated, again.LastUpdated)
	}
}

func TestSync_StrictlyNewerAndOrdered(t *testing.T) {
	log := seedLog(domain.ChangeCreated, domain.ChangeUpdated, domain.ChangeDeleted)
	uc := New(log, nil, nil)

	result, err := uc.Sync(context.Background(), 100)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.Changes) != 2 {
		t.Fatalf("expected 2 changes strictly after 100, got %d", len(result.Changes))
	}
	if result.Changes[0].Status != domain.ChangeUpdated || result.Changes[1].Status != domain.ChangeDeleted {
		t.Fatalf("changes out of order: %+v", result.Changes)
	}
	if result.LastUpdated != 300 {
		t.Fatalf("last updated = %d, want 300", result.LastUpdated)
	}
}

func TestSync_DeletionVisibleAfterTaskGone(t *testing.T) {
	log := seedLog(domain.ChangeCreated)
	uc := New(log, nil, nil)

	before, err := uc.Sync(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// the task row is gone but its deletion is still a change-log fact
	if _, err := log.Append(context.Background(), &domain.ChangeLogEntry{TaskID: "t1", Status: domain.ChangeDeleted}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	after, err := uc.Sync(context.Background(), before.LastUpdated)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(after.Changes) != 1 || after.Changes[0].Status != domain.ChangeDeleted {
		t.Fatalf("expected the DELETED entry, got %+v", after.Changes)
	}
	if after.Changes[0].TaskID != "t1" {
		t.Fatalf("deleted task id = %s, want t1", after.Changes[0].TaskID)
	}
}

func TestSync_CursorCacheShortCircuits(t *testing.T) {
	log := seedLog(domain.ChangeCreated)
	uc := New(log, &fakeCursor{latest: 100}, nil)

	result, err := uc.Sync(context.Background(), 100)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.Changes) != 0 || result.LastUpdated != 100 {
		t.Fatalf("expected an empty up-to-date result, got %+v", result)
	}
	if log.queries != 0 {
		t.Fatalf("change log queried %d times, cache should have answered", log.queries)
	}
}

func TestSync_CursorCacheErrorFallsBack(t *testing.T) {
	log := seedLog(domain.ChangeCreated)
	uc := New(log, &fakeCursor{err: errors.New("redis down")}, nil)

	result, err := uc.Sync(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("cache errors must fall back to the log, got %+v", result.Changes)
	}
	if log.queries != 1 {
		t.Fatalf("expected one log query, got %d", log.queries)
	}
}

type stubTasks struct{}

func (stubTasks) Create(_ context.Context, t *domain.Task) (*domain.Task, error) {
	t.ID = "t9"
	return t, nil
}
func (stubTasks) FindByIDs(context.Context, []string) ([]domain.Task, error) {
	return []domain.Task{}, nil
}
func (stubTasks) FindForResponse(context.Context, string) (*domain.Task, error) {
	return nil, domain.ErrTaskNotFound
}
func (stubTasks) Delete(context.Context, string) (bool, error) { return false, nil }

// A write whose cursor-cache update is lost must still become visible to a
// caught-up client: the writer clears the cache, so the next poll falls
// back to the change log instead of short-circuiting on the stale value.
func TestSync_ChangeVisibleAfterLostCursorUpdate(t *testing.T) {
	log := seedLog(domain.ChangeCreated) // one entry at ts=100
	cursor := &fakeCursor{latest: 100}
	uc := New(log, cursor, nil)

	// the client is fully caught up and the cache answers for the log
	caughtUp, err := uc.Sync(context.Background(), 100)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(caughtUp.Changes) != 0 || log.queries != 0 {
		t.Fatalf("expected a cache-answered empty result, got %+v after %d queries", caughtUp.Changes, log.queries)
	}

	// the next write cannot reach the cache
	cursor.advanceErr = errors.New("redis down")
	writer := task.New(stubTasks{}, nil, log, cursor, nil, nil)
	if _, err := writer.Create(context.Background(), &domain.Task{
		OwnerID: "owner", Name: "survey", Cost: 5, AnswersLeft: 1,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, err := uc.Sync(context.Background(), 100)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.Changes) != 1 || result.Changes[0].TaskID != "t9" {
		t.Fatalf("the committed change is hidden from sync: %+v", result.Changes)
	}
	if result.LastUpdated <= 100 {
		t.Fatalf("cursor did not advance past the new entry: %d", result.LastUpdated)
	}
}

func TestSync_NegativeCursorTreatedAsZero(t *testing.T) {
	log := seedLog(domain.ChangeCreated)
	uc := New(log, nil, nil)

	result, err := uc.Sync(context.Background(), -7)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("expected all entries, got %+v", result.Changes)
	}
}
