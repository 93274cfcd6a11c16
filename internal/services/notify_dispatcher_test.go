package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taskmarket/backend/internal/infrastructure/notify"
)

func testDispatcher(t *testing.T, maxRetries int) (*NotifyDispatcher, *notify.Queue) {
	t.Helper()
	queue, err := notify.Open(filepath.Join(t.TempDir(), "notify.db"), "notifications")
	if err != nil {
		t.Fatalf("queue open failed: %v", err)
	}
	t.Cleanup(func() { queue.Close() })

	d := NewNotifyDispatcher(queue, nil, DispatcherConfig{
		Interval:       time.Minute,
		BatchSize:      10,
		MaxRetries:     maxRetries,
		Parallelism:    2,
		DeliverTimeout: 2 * time.Second,
	})
	return d, queue
}

func TestDrain_DeliversAndPurges(t *testing.T) {
	var delivered atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d, queue := testDispatcher(t, 3)
	for i := 0; i < 3; i++ {
		if err := d.Enqueue(notify.Item{Event: notify.EventTaskCreated, Target: server.URL, Payload: []byte(`{}`)}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	if got := delivered.Load(); got != 3 {
		t.Fatalf("delivered = %d, want 3", got)
	}
	size, err := queue.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 0 {
		t.Fatalf("queue size = %d after drain, want 0", size)
	}
}

func TestDrain_RequeuesFailedDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d, queue := testDispatcher(t, 3)
	if err := d.Enqueue(notify.Item{Event: notify.EventTaskAnswered, Target: server.URL, Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	items, err := queue.GetBatch(10)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the item back in the queue, got %d", len(items))
	}
	if items[0].Retries != 1 {
		t.Fatalf("retries = %d, want 1", items[0].Retries)
	}
}

func TestDrain_DropsAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d, queue := testDispatcher(t, 2)
	if err := d.Enqueue(notify.Item{Event: notify.EventTaskAnswered, Target: server.URL, Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := d.Drain(context.Background()); err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
	}

	size, err := queue.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 0 {
		t.Fatalf("queue size = %d, item should have been dropped", size)
	}
}
