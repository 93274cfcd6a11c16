package notify

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "notify.db"), "notifications")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestQueue_EnqueueAndBatch(t *testing.T) {
	q := openTestQueue(t)

	for _, target := range []string{"http://a", "http://b", "http://c"} {
		if err := q.Enqueue(Item{Event: EventTaskCreated, Target: target, Payload: []byte(`{}`)}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	size, err := q.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 3 {
		t.Fatalf("size = %d, want 3", size)
	}

	items, err := q.GetBatch(2)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("batch = %d items, want 2", len(items))
	}
}

func TestQueue_PriorityOrdering(t *testing.T) {
	q := openTestQueue(t)

	if err := q.Enqueue(Item{Event: EventTaskCreated, Target: "http://low", Priority: 3}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(Item{Event: EventTaskAnswered, Target: "http://urgent", Priority: 1}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	items, err := q.GetBatch(10)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("batch = %d items, want 2", len(items))
	}
	if items[0].Target != "http://urgent" {
		t.Fatalf("first item = %s, want the higher-priority one", items[0].Target)
	}
}

func TestQueue_RemoveAndRequeue(t *testing.T) {
	q := openTestQueue(t)

	if err := q.Enqueue(Item{Event: EventTaskCreated, Target: "http://a"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	items, err := q.GetBatch(1)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("batch = %d items, want 1", len(items))
	}

	item := items[0]
	item.Retries++
	if err := q.Remove(item); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := q.Requeue(item); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	items, err = q.GetBatch(1)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("requeued item missing, batch = %d", len(items))
	}
	if items[0].Retries != 1 {
		t.Fatalf("retries = %d, want 1", items[0].Retries)
	}
}

func TestQueue_Cleanup(t *testing.T) {
	q := openTestQueue(t)

	old := Item{Event: EventTaskCreated, Target: "http://old", Timestamp: time.Now().Add(-48 * time.Hour)}
	fresh := Item{Event: EventTaskCreated, Target: "http://fresh"}
	if err := q.Enqueue(old); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(fresh); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := q.Cleanup(time.Now().Add(-24 * time.Hour)); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	items, err := q.GetBatch(10)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if len(items) != 1 || items[0].Target != "http://fresh" {
		t.Fatalf("expected only the fresh item to survive, got %+v", items)
	}
}
