package service

import (
	"context"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// NotificationHandlerName is the dispatcher subscription name of the notification hand-off
const NotificationHandlerName = "notification-service"

// NotificationService bridges dispatched workflow events to the background delivery queue
type NotificationService interface {
	// Register subscribes the service to every workflow event type
	Register(d dispatcher.Dispatcher)
	// Handle enqueues the event for delivery. It never blocks and never fails the caller.
	Handle(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	queue  port.NotificationQueue
	logger Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(queue port.NotificationQueue, logger Logger) NotificationService {
	return &notificationServiceImpl{
		queue:  queue,
		logger: logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeAll(NotificationHandlerName, s.Handle)
}

func (s *notificationServiceImpl) Handle(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return nil
	}

	// Submissions are recorded but nobody is notified about them
	if evt.Type == event.TypeRequestSubmitted {
		return nil
	}

	if !s.queue.Enqueue(evt) {
		s.logger.Error("Notification dropped, queue full",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"domain", evt.Domain,
			"request_id", evt.RequestID,
		)
		return nil
	}

	s.logger.Info("Notification queued",
		"event_id", evt.ID,
		"event_type", evt.Type,
		"request_id", evt.RequestID,
	)
	return nil
}
