package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/service"
)

// DefaultQueueSize bounds events waiting for delivery.
const DefaultQueueSize = 256

// ErrQueueFull is returned when an event is dropped because the queue is full.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned by Publish after Stop.
var ErrStopped = errors.New("notification worker stopped")

// NotificationWorker delivers events to the wrapped dispatcher from a
// background goroutine so request handlers never wait on notifications.
// It implements events.Dispatcher.
type NotificationWorker struct {
	inner  events.Dispatcher
	logger *zap.Logger
	queue  chan queued

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

type queued struct {
	ctx   context.Context
	event events.Event
}

// StartNotificationWorker registers notification handlers on inner and starts
// draining the queue.
func StartNotificationWorker(notificationService *service.NotificationService, inner events.Dispatcher, logger *zap.Logger, queueSize int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}

	w := &NotificationWorker{
		inner:  inner,
		logger: logger,
		queue:  make(chan queued, queueSize),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *NotificationWorker) run() {
	defer close(w.done)
	for item := range w.queue {
		if err := w.inner.Publish(item.ctx, item.event); err != nil {
			w.logger.Warn("notification delivery failed",
				zap.String("event_id", item.event.ID),
				zap.String("event_type", string(item.event.Type)),
				zap.Error(err))
		}
	}
}

// Publish enqueues the event. The request context is detached so delivery
// outlives the request.
func (w *NotificationWorker) Publish(ctx context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		w.logger.Warn("notification queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return ErrQueueFull
	}
}

// Subscribe registers a handler on the wrapped dispatcher.
func (w *NotificationWorker) Subscribe(eventType events.EventType, handler events.EventHandler) {
	w.inner.Subscribe(eventType, handler)
}

// Stop stops accepting events and waits until queued ones are delivered or
// ctx is done.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
