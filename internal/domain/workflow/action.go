package workflow

// Action is a caller-initiated command that may cause a status transition
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"

	// ActionSubmit is recorded in the ledger when a request enters the workflow.
	// It is not accepted by the engine's action endpoint.
	ActionSubmit Action = "submit"
)

// IsValid returns true for the actions accepted by the workflow engine
func (a Action) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionCancel:
		return true
	default:
		return false
	}
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}
