package task

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/taskmarket/backend/domain"
	"github.com/taskmarket/backend/repository"
)

// fakeStore implements the coordinator's repository ports in memory with
// the same atomicity contract the Postgres layer provides: the slot
// decrement, the transfer, and the response insert happen under one lock.
type fakeStore struct {
	mu        sync.Mutex
	tasks     map[string]*domain.Task
	balances  map[string]int64
	responses []*domain.TaskResponse
	entries   []domain.ChangeLogEntry
	appendErr error
	clock     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:    make(map[string]*domain.Task),
		balances: make(map[string]int64),
	}
}

func (s *fakeStore) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	copied := *task
	s.tasks[task.ID] = &copied
	return task, nil
}

func (s *fakeStore) FindByIDs(_ context.Context, ids []string) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []domain.Task{}
	for _, id := range ids {
		if task, ok := s.tasks[id]; ok {
			result = append(result, *task)
		}
	}
	return result, nil
}

func (s *fakeStore) FindForResponse(_ context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

func (s *fakeStore) Submit(_ context.Context, task *domain.Task, response *domain.TaskResponse) (*repository.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tasks[task.ID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if stored.AnswersLeft == 0 {
		return nil, domain.ErrTaskExhausted
	}
	stored.AnswersLeft--
	s.balances[stored.OwnerID] -= stored.Cost
	s.balances[response.UserID] += stored.Cost

	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	response.TaskID = task.ID
	s.responses = append(s.responses, response)

	return &repository.SubmitResult{
		Response:         response,
		ResponderBalance: s.balances[response.UserID],
		OwnerBalance:     s.balances[stored.OwnerID],
	}, nil
}

func (s *fakeStore) ListByTask(_ context.Context, taskID string) ([]domain.TaskResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []domain.TaskResponse{}
	for _, resp := range s.responses {
		if resp.TaskID == taskID {
			result = append(result, *resp)
		}
	}
	return result, nil
}

func (s *fakeStore) Append(_ context.Context, entry *domain.ChangeLogEntry) (*domain.ChangeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	stored := *entry
	stored.ID = int64(len(s.entries) + 1)
	if stored.CreatedAt == 0 {
		s.clock++
		stored.CreatedAt = s.clock
	}
	s.entries = append(s.entries, stored)
	return &stored, nil
}

func (s *fakeStore) EntriesSince(_ context.Context, sinceMillis int64) ([]domain.ChangeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.ChangeLogEntry
	for _, entry := range s.entries {
		if entry.CreatedAt > sinceMillis {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *fakeStore) seedTask(owner string, cost int64, answers int) *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &domain.Task{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		Name:        "survey",
		Cost:        cost,
		AnswersLeft: answers,
	}
	s.tasks[task.ID] = task
	return task
}

func (s *fakeStore) statuses() []domain.ChangeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChangeStatus
	for _, entry := range s.entries {
		out = append(out, entry.Status)
	}
	return out
}

// fakeCursor implements the sync cursor cache with the same monotonic
// advance and clear-on-invalidate contract as the Redis implementation.
type fakeCursor struct {
	mu         sync.Mutex
	latest     int64
	advanceErr error
	cleared    bool
}

func (c *fakeCursor) Latest(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, nil
}

func (c *fakeCursor) Advance(_ context.Context, millis int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.advanceErr != nil {
		return c.advanceErr
	}
	if millis > c.latest {
		c.latest = millis
	}
	return nil
}

func (c *fakeCursor) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = 0
	c.cleared = true
	return nil
}

func newUseCase(store *fakeStore) *UseCase {
	return New(store, store, store, nil, nil, nil)
}

func TestCreate_Validation(t *testing.T) {
	store := newFakeStore()
	uc := newUseCase(store)

	cases := []struct {
		name string
		task *domain.Task
	}{
		{"zero cost", &domain.Task{OwnerID: "u1", Name: "a", Cost: 0, AnswersLeft: 1}},
		{"negative cost", &domain.Task{OwnerID: "u1", Name: "a", Cost: -5, AnswersLeft: 1}},
		{"no answers", &domain.Task{OwnerID: "u1", Name: "a", Cost: 5, AnswersLeft: 0}},
		{"missing name", &domain.Task{OwnerID: "u1", Cost: 5, AnswersLeft: 1}},
		{"bad latitude", &domain.Task{OwnerID: "u1", Name: "a", Cost: 5, AnswersLeft: 1, Location: &domain.Location{Lat: 123, Lng: 0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := uc.Create(context.Background(), tc.task); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(store.entries) != 0 {
		t.Fatalf("rejected creates must not touch the change log, got %d entries", len(store.entries))
	}
}

func TestCreate_AppendsChangeLog(t *testing.T) {
	store := newFakeStore()
	uc := newUseCase(store)

	created, err := uc.Create(context.Background(), &domain.Task{
		OwnerID: "owner", Name: "survey", Cost: 5, AnswersLeft: 2,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an assigned task id")
	}
	statuses := store.statuses()
	if len(statuses) != 1 || statuses[0] != domain.ChangeCreated {
		t.Fatalf("expected one CREATED entry, got %v", statuses)
	}
}

func TestCreate_SurvivesChangeLogFailure(t *testing.T) {
	store := newFakeStore()
	store.appendErr = domain.NewError(domain.ErrCodeInternal, "log unavailable")
	uc := newUseCase(store)

	created, err := uc.Create(context.Background(), &domain.Task{
		OwnerID: "owner", Name: "survey", Cost: 5, AnswersLeft: 1,
	})
	if err != nil {
		t.Fatalf("create must not fail on a change log anomaly: %v", err)
	}
	if _, ok := store.tasks[created.ID]; !ok {
		t.Fatal("task should be persisted despite the append failure")
	}
}

func TestCreate_AdvancesCursorAheadOfLog(t *testing.T) {
	store := newFakeStore()
	cursor := &fakeCursor{}
	uc := New(store, store, store, cursor, nil, nil)

	if _, err := uc.Create(context.Background(), &domain.Task{
		OwnerID: "owner", Name: "survey", Cost: 5, AnswersLeft: 1,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(store.entries))
	}
	if cursor.latest < store.entries[0].CreatedAt {
		t.Fatalf("cursor = %d runs behind the log entry at %d; a behind cache can hide committed changes",
			cursor.latest, store.entries[0].CreatedAt)
	}

	// even when the append itself fails, the cursor has already moved:
	// an ahead cache only costs readers an extra change-log query
	store.appendErr = domain.NewError(domain.ErrCodeInternal, "log unavailable")
	before := cursor.latest
	if _, err := uc.Create(context.Background(), &domain.Task{
		OwnerID: "owner", Name: "survey", Cost: 5, AnswersLeft: 1,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if cursor.latest < before {
		t.Fatalf("cursor moved backwards from %d to %d", before, cursor.latest)
	}
}

func TestCreate_FailedCursorAdvanceClearsCache(t *testing.T) {
	store := newFakeStore()
	cursor := &fakeCursor{latest: 100, advanceErr: domain.NewError(domain.ErrCodeInternal, "redis down")}
	uc := New(store, store, store, cursor, nil, nil)

	if _, err := uc.Create(context.Background(), &domain.Task{
		OwnerID: "owner", Name: "survey", Cost: 5, AnswersLeft: 1,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("the log append must still happen, got %d entries", len(store.entries))
	}
	if !cursor.cleared || cursor.latest != 0 {
		t.Fatalf("a failed advance must clear the cache, got latest=%d cleared=%v",
			cursor.latest, cursor.cleared)
	}
}

func TestRespond_PaysAndDecrements(t *testing.T) {
	store := newFakeStore()
	uc := newUseCase(store)
	task := store.seedTask("owner", 5, 2)

	result, err := uc.Respond(context.Background(), task.ID, "responder", []domain.TaskActionResponse{
		{ActionID: "a1", Value: "yes"},
	})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if result.Balance != 5 {
		t.Fatalf("responder balance = %d, want 5", result.Balance)
	}
	if store.balances["owner"] != -5 {
		t.Fatalf("owner balance = %d, want -5", store.balances["owner"])
	}
	if store.tasks[task.ID].AnswersLeft != 1 {
		t.Fatalf("answers left = %d, want 1", store.tasks[task.ID].AnswersLeft)
	}
	statuses := store.statuses()
	if len(statuses) != 1 || statuses[0] != domain.ChangeUpdated {
		t.Fatalf("expected one UPDATED entry, got %v", statuses)
	}
}

func TestRespond_ExhaustedTask(t *testing.T) {
	store := newFakeStore()
	uc := newUseCase(store)
	task := store.seedTask("owner", 5, 0)

	_, err := uc.Respond(context.Background(), task.ID, "responder", nil)
	if !domain.IsDomainError(err, domain.ErrCodeExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if len(store.responses) != 0 || len(store.entries) != 0 {
		t.Fatal("a rejected response must leave no side effects")
	}
	if store.balances["owner"] != 0 || store.balances["responder"] != 0 {
		t.Fatal("a rejected response must not move funds")
	}
}

func TestRespond_UnknownTask(t *testing.T) {
	store := newFakeStore()
	uc := newUseCase(store)

	_, err := uc.Respond(context.Background(), "missing", "responder", nil)
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRespond_LastSlotSingleWinner(t *testing.T) {
	store := newFakeStore()
	uc := newUseCase(store)
	task := store.seedTask("owner", 5, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int, responder string) {
			defer wg.Done()
			_, errs[i] = uc.Respond(context.Background(), task.ID, responder, nil)
		}(i, []string{"alice", "bob"}[i])
	}
	wg.Wait()

	var won, exhausted int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case domain.IsDomainError(err, domain.ErrCodeExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || exhausted != 1 {
		t.Fatalf("wins = %d, exhausted = %d; want exactly one of each", won, exhausted)
	}
	if left := store.tasks[task.ID].AnswersLeft; left != 0 {
		t.Fatalf("answers left = %d, want 0", left)
	}
	if len(store.responses) != 1 {
		t.Fatalf("responses = %d, want exactly 1", len(store.responses))
	}
	if store.balances["owner"] != -5 {
		t.Fatalf("owner paid %d, want exactly one transfer of 5", -store.balances["owner"])
	}
	if store.balances["alice"]+store.balances["bob"] != 5 {
		t.Fatalf("exactly one responder should have been credited, balances: alice=%d bob=%d",
			store.balances["alice"], store.balances["bob"])
	}
}

func TestRespond_TwoSlotsTwoResponders(t *testing.T) {
	store := newFakeStore()
	uc := newUseCase(store)
	task := store.seedTask("owner", 5, 2)

	for _, responder := range []string{"alice", "bob"} {
		result, err := uc.Respond(context.Background(), task.ID, responder, nil)
		if err != nil {
			t.Fatalf("Respond(%s) failed: %v", responder, err)
		}
		if result.Balance != 5 {
			t.Fatalf("%s balance = %d, want 5", responder, result.Balance)
		}
	}

	if left := store.tasks[task.ID].AnswersLeft; left != 0 {
		t.Fatalf("answers left = %d, want 0", left)
	}
	if store.balances["owner"] != -10 {
		t.Fatalf("owner balance = %d, want -10", store.balances["owner"])
	}
	if store.balances["alice"] != 5 || store.balances["bob"] != 5 {
		t.Fatalf("responder balances = %d/%d, want 5/5", store.balances["alice"], store.balances["bob"])
	}
}

func TestDelete_Idempotent(t *testing.T) {
	store := newFakeStore()
	uc := newUseCase(store)
	task := store.seedTask("owner", 5, 1)

	if err := uc.Delete(context.Background(), task.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// second delete of the same id still succeeds
	if err := uc.Delete(context.Background(), task.ID); err != nil {
		t.Fatalf("repeated Delete failed: %v", err)
	}

	statuses := store.statuses()
	if len(statuses) != 1 || statuses[0] != domain.ChangeDeleted {
		t.Fatalf("expected exactly one DELETED entry, got %v", statuses)
	}

	tasks, err := uc.Fetch(context.Background(), []string{task.ID})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("deleted task should not be fetchable, got %d", len(tasks))
	}
}

func TestFetch_EmptyRequest(t *testing.T) {
	store := newFakeStore()
	uc := newUseCase(store)

	tasks, err := uc.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("empty request should yield an empty list, got %v", tasks)
	}
}
