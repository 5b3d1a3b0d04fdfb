package entity

import (
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Request is one workflow-bearing entity in a domain
type Request struct {
	ID           string          `json:"id"`
	Domain       workflow.Domain `json:"domain"`
	Status       workflow.Status `json:"status"`
	RequestorRef string          `json:"requestor_ref"`
	Attributes   map[string]any  `json:"attributes"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Actor is the already-resolved identity performing an action
type Actor struct {
	Role string `json:"role"`
	Name string `json:"name"`
}
