package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taskmarket/backend/internal/infrastructure/notify"
)

// DispatcherConfig controls how the notification queue is drained.
type DispatcherConfig struct {
	Interval       time.Duration
	BatchSize      int
	MaxRetries     int
	Parallelism    int
	DeliverTimeout time.Duration
	Retention      time.Duration
}

// NotifyDispatcher drains the durable notification queue in the background
// and POSTs payloads to each target. Deliveries are best-effort: a failed
// item is requeued a bounded number of times and then dropped with a log
// line, never surfaced to the operation that enqueued it.
type NotifyDispatcher struct {
	queue  *notify.Queue
	client *fasthttp.Client
	logger *zap.Logger
	cron   *cron.Cron
	cfg    DispatcherConfig
}

func NewNotifyDispatcher(queue *notify.Queue, logger *zap.Logger, cfg DispatcherConfig) *NotifyDispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 5 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &NotifyDispatcher{
		queue:  queue,
		client: &fasthttp.Client{},
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = d.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := d.Drain(ctx); err != nil {
			d.logger.Error("notification drain failed", zap.Error(err))
		}
	})
	_, _ = d.cron.AddFunc("@hourly", func() {
		if err := d.queue.Cleanup(time.Now().Add(-cfg.Retention)); err != nil {
			d.logger.Warn("notification queue cleanup failed", zap.Error(err))
		}
	})

	return d
}

// Start launches the cron scheduler.
func (d *NotifyDispatcher) Start() {
	if d == nil || d.cron == nil {
		return
	}
	d.cron.Start()
	d.logger.Info("notify dispatcher started")
}

// Stop gracefully stops the scheduler.
func (d *NotifyDispatcher) Stop(ctx context.Context) {
	if d == nil || d.cron == nil {
		return
	}
	stopCtx := d.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	d.logger.Info("notify dispatcher stopped")
}

// Enqueue persists a pending delivery for the next drain cycle. The caller
// never waits on the actual HTTP delivery.
func (d *NotifyDispatcher) Enqueue(item notify.Item) error {
	if d == nil || d.queue == nil {
		return fmt.Errorf("notify dispatcher not configured")
	}
	return d.queue.Enqueue(item)
}

// Size returns the number of pending deliveries.
func (d *NotifyDispatcher) Size() int {
	if d == nil || d.queue == nil {
		return 0
	}
	size, err := d.queue.Size()
	if err != nil {
		return 0
	}
	return size
}

// Drain delivers queued notifications with bounded parallelism.
func (d *NotifyDispatcher) Drain(ctx context.Context) error {
	if d == nil || d.queue == nil {
		return nil
	}

	items, err := d.queue.GetBatch(d.cfg.BatchSize)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Parallelism)

	for _, item := range items {
		item := item
		g.Go(func() error {
			d.process(gctx, item)
			return nil
		})
	}
	return g.Wait()
}

func (d *NotifyDispatcher) process(ctx context.Context, item notify.Item) {
	if err := ctx.Err(); err != nil {
		return
	}

	if err := d.deliver(item); err != nil {
		d.logger.Warn("notification delivery failed",
			zap.String("item_id", item.ID),
			zap.String("event", item.Event),
			zap.Error(err))

		if err := d.queue.Remove(item); err != nil {
			d.logger.Warn("failed to remove notification item", zap.Error(err))
			return
		}
		item.Retries++
		if item.Retries >= d.cfg.MaxRetries {
			d.logger.Warn("dropping notification (max retries reached)", zap.String("item_id", item.ID))
			return
		}
		if err := d.queue.Requeue(item); err != nil {
			d.logger.Error("failed to requeue notification item", zap.Error(err))
		}
		return
	}

	if err := d.queue.Remove(item); err != nil {
		d.logger.Warn("failed to purge delivered notification", zap.Error(err))
	}
}

func (d *NotifyDispatcher) deliver(item notify.Item) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(item.Target)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(item.Payload)

	if err := d.client.DoTimeout(req, resp, d.cfg.DeliverTimeout); err != nil {
		return err
	}
	if code := resp.StatusCode(); code >= fasthttp.StatusMultipleChoices {
		return fmt.Errorf("target responded with status %d", code)
	}
	return nil
}
