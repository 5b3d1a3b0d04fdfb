package redisstream

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// DefaultStream is the stream workflow notifications are appended to
const DefaultStream = "approval:events"

// Notifier appends workflow notifications to a stream for downstream consumers
type Notifier struct {
	publisher port.StreamPublisher
	stream    string
}

// NewNotifier creates a stream notifier
func NewNotifier(publisher port.StreamPublisher, stream string) *Notifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &Notifier{publisher: publisher, stream: stream}
}

func (n *Notifier) NotifyApproval(ctx context.Context, evt *event.Event) error {
	return n.publish(ctx, evt)
}

func (n *Notifier) NotifyRejection(ctx context.Context, evt *event.Event) error {
	return n.publish(ctx, evt)
}

func (n *Notifier) NotifyCancellation(ctx context.Context, evt *event.Event) error {
	return n.publish(ctx, evt)
}

func (n *Notifier) publish(ctx context.Context, evt *event.Event) error {
	if _, err := n.publisher.Publish(ctx, n.stream, evt.Fields()); err != nil {
		return fmt.Errorf("publish %s for request %s: %w", evt.Type, evt.RequestID, err)
	}
	return nil
}

// Verify interface compliance
var _ port.Notifier = (*Notifier)(nil)
