package dispatcher

import (
	"context"

	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// Handler processes workflow events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// WorkflowTypes lists the event types emitted by workflow transitions
var WorkflowTypes = []event.Type{
	event.TypeRequestSubmitted,
	event.TypeRequestApproved,
	event.TypeRequestRejected,
	event.TypeRequestCancelled,
}
