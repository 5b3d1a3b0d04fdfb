package entity

import (
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// ApprovalStep is an immutable ledger row recording one transition of a request
type ApprovalStep struct {
	ID             int64           `json:"id"`
	Domain         workflow.Domain `json:"domain"`
	RequestID      string          `json:"request_id"`
	StepRole       string          `json:"step_role"`
	ActorName      string          `json:"actor_name"`
	ActorRole      string          `json:"actor_role"`
	Action         workflow.Action `json:"action"`
	PreviousStatus workflow.Status `json:"previous_status"`
	ResultStatus   workflow.Status `json:"result_status"`
	Comments       *string         `json:"comments,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
