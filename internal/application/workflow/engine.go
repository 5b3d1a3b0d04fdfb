package workflow

import (
	"context"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// ActionRequest is one caller-initiated command against a request
type ActionRequest struct {
	Domain    domainwf.Domain
	RequestID string
	Action    domainwf.Action
	Actor     entity.Actor
	Comments  string

	// ExpectedStatus is the status the caller acted on. It is required for approve and
	// reject and optional for cancel. A mismatch with the stored status is a conflict.
	ExpectedStatus domainwf.Status
}

// Engine validates and applies workflow actions
type Engine interface {
	// PerformAction applies the action atomically and returns the updated request.
	// Errors are *domainwf.Error values of the matching kind.
	PerformAction(ctx context.Context, req ActionRequest) (*entity.Request, error)

	// PermittedActions returns the actions legal for the request's current status.
	// When actor.Role is not empty, actions the actor may not perform are left out.
	PermittedActions(ctx context.Context, domain domainwf.Domain, requestID string, actor entity.Actor) ([]domainwf.Action, error)

	// Routing returns the routing table the engine evaluates
	Routing() *domainwf.RoutingTable
}
