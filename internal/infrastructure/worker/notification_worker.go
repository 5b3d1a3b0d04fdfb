package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// NotificationWorkerConfig holds configuration for the notification worker
type NotificationWorkerConfig struct {
	QueueSize       int
	Concurrency     int
	DeliveryTimeout time.Duration
}

// DefaultNotificationWorkerConfig returns default configuration
func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		QueueSize:       256,
		Concurrency:     2,
		DeliveryTimeout: 10 * time.Second,
	}
}

// NotificationWorker delivers workflow events to a Notifier from a bounded queue.
// Enqueue never blocks; when the queue is full the event is dropped and counted.
type NotificationWorker struct {
	config   NotificationWorkerConfig
	notifier port.Notifier
	logger   *zap.Logger

	queue chan *event.Event
	wg    sync.WaitGroup

	mu        sync.RWMutex
	ctx       context.Context
	isRunning bool
	closed    bool

	enqueued  atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(config NotificationWorkerConfig, notifier port.Notifier, logger *zap.Logger) *NotificationWorker {
	defaults := DefaultNotificationWorkerConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = defaults.DeliveryTimeout
	}

	return &NotificationWorker{
		config:   config,
		notifier: notifier,
		logger:   logger,
		queue:    make(chan *event.Event, config.QueueSize),
	}
}

// Name returns the worker name for identification
func (w *NotificationWorker) Name() string {
	return "NotificationWorker"
}

// Start launches the delivery goroutines
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("notification worker already stopped")
	}
	if w.isRunning {
		return fmt.Errorf("notification worker already running")
	}

	// Deliveries outlive cancellation of ctx so Stop can drain the queue
	w.ctx = context.WithoutCancel(ctx)
	w.isRunning = true

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.run()
	}

	w.logger.Info("NotificationWorker started",
		zap.Int("concurrency", w.config.Concurrency),
		zap.Int("queue_size", w.config.QueueSize),
		zap.Duration("delivery_timeout", w.config.DeliveryTimeout))
	return nil
}

// Stop closes the queue and waits for queued events to be delivered
func (w *NotificationWorker) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.isRunning = false
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()

	w.logger.Info("NotificationWorker stopped",
		zap.Int64("delivered", w.delivered.Load()),
		zap.Int64("failed", w.failed.Load()),
		zap.Int64("dropped", w.dropped.Load()))
	return nil
}

// Enqueue implements port.NotificationQueue
func (w *NotificationWorker) Enqueue(evt *event.Event) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.dropped.Add(1)
		return false
	}

	select {
	case w.queue <- evt:
		w.enqueued.Add(1)
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Status returns runtime counters
func (w *NotificationWorker) Status() map[string]interface{} {
	w.mu.RLock()
	running := w.isRunning
	w.mu.RUnlock()

	return map[string]interface{}{
		"running":   running,
		"queued":    len(w.queue),
		"enqueued":  w.enqueued.Load(),
		"delivered": w.delivered.Load(),
		"failed":    w.failed.Load(),
		"dropped":   w.dropped.Load(),
	}
}

func (w *NotificationWorker) run() {
	defer w.wg.Done()

	for evt := range w.queue {
		if err := w.deliver(evt); err != nil {
			w.failed.Add(1)
			w.logger.Error("Notification delivery failed",
				zap.String("event_id", evt.ID),
				zap.String("event_type", evt.Type.String()),
				zap.String("domain", evt.Domain.String()),
				zap.String("request_id", evt.RequestID),
				zap.Error(err))
			continue
		}
		w.delivered.Add(1)
	}
}

func (w *NotificationWorker) deliver(evt *event.Event) (err error) {
	w.mu.RLock()
	parent := w.ctx
	w.mu.RUnlock()

	ctx, cancel := context.WithTimeout(parent, w.config.DeliveryTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panicked: %v", r)
		}
	}()

	switch evt.Type {
	case event.TypeRequestApproved:
		return w.notifier.NotifyApproval(ctx, evt)
	case event.TypeRequestRejected:
		return w.notifier.NotifyRejection(ctx, evt)
	case event.TypeRequestCancelled:
		return w.notifier.NotifyCancellation(ctx, evt)
	default:
		w.logger.Debug("No notification for event type", zap.String("event_type", evt.Type.String()))
		return nil
	}
}

// Verify interface compliance
var (
	_ Worker                 = (*NotificationWorker)(nil)
	_ port.NotificationQueue = (*NotificationWorker)(nil)
)
