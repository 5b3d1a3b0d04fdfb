package port

import (
	"context"

	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// PermissionAuthority answers whether a role holds a named permission
type PermissionAuthority interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// Notifier delivers workflow events to people or systems outside the service.
// Calls are best effort; errors are logged by the caller and never retried inline.
type Notifier interface {
	NotifyApproval(ctx context.Context, evt *event.Event) error
	NotifyRejection(ctx context.Context, evt *event.Event) error
	NotifyCancellation(ctx context.Context, evt *event.Event) error
}

// StreamPublisher appends key/value records to a named stream
type StreamPublisher interface {
	Publish(ctx context.Context, stream string, values map[string]any) (string, error)
}

// MessageSender sends a text message to a chat recipient
type MessageSender interface {
	SendMessage(ctx context.Context, receiveID string, content string) error
}

// NotificationQueue accepts events for background delivery without blocking.
// Enqueue reports false when the event was dropped.
type NotificationQueue interface {
	Enqueue(evt *event.Event) bool
}
