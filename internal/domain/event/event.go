package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Event describes one committed transition. It is handed to the dispatcher and never persisted.
type Event struct {
	ID             string          `json:"id"`
	Type           Type            `json:"type"`
	Domain         workflow.Domain `json:"domain"`
	RequestID      string          `json:"request_id"`
	PreviousStatus workflow.Status `json:"previous_status"`
	NewStatus      workflow.Status `json:"new_status"`
	ActorName      string          `json:"actor_name"`
	ActorRole      string          `json:"actor_role"`
	Action         workflow.Action `json:"action"`
	Comments       string          `json:"comments,omitempty"`
	RequestorRef   string          `json:"requestor_ref"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewTransitionEvent builds the event for a ledger step written against req
func NewTransitionEvent(req *entity.Request, step *entity.ApprovalStep) *Event {
	evt := &Event{
		ID:             uuid.NewString(),
		Type:           TypeForAction(step.Action),
		Domain:         req.Domain,
		RequestID:      req.ID,
		PreviousStatus: step.PreviousStatus,
		NewStatus:      step.ResultStatus,
		ActorName:      step.ActorName,
		ActorRole:      step.ActorRole,
		Action:         step.Action,
		RequestorRef:   req.RequestorRef,
		Timestamp:      step.Timestamp,
	}
	if step.Comments != nil {
		evt.Comments = *step.Comments
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	return evt
}

// Fields flattens the event into key/value pairs for structured logging and stream payloads
func (e *Event) Fields() map[string]any {
	return map[string]any{
		"event_id":        e.ID,
		"type":            e.Type.String(),
		"domain":          e.Domain.String(),
		"request_id":      e.RequestID,
		"previous_status": e.PreviousStatus.String(),
		"new_status":      e.NewStatus.String(),
		"actor_name":      e.ActorName,
		"actor_role":      e.ActorRole,
		"action":          e.Action.String(),
		"comments":        e.Comments,
		"requestor_ref":   e.RequestorRef,
		"timestamp":       e.Timestamp.Format(time.RFC3339Nano),
	}
}
