package event

import "github.com/garyjia/approval-workflow/internal/domain/workflow"

// Type identifies the type of workflow event
type Type string

const (
	TypeRequestSubmitted Type = "request.submitted"
	TypeRequestApproved  Type = "request.approved"
	TypeRequestRejected  Type = "request.rejected"
	TypeRequestCancelled Type = "request.cancelled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSubmitted,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestCancelled:
		return true
	default:
		return false
	}
}

// TypeForAction maps a workflow action to the event type it emits
func TypeForAction(action workflow.Action) Type {
	switch action {
	case workflow.ActionApprove:
		return TypeRequestApproved
	case workflow.ActionReject:
		return TypeRequestRejected
	case workflow.ActionCancel:
		return TypeRequestCancelled
	default:
		return TypeRequestSubmitted
	}
}
