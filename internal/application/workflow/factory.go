package workflow

import (
	"fmt"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// BuildStateMachine creates a state machine positioned at the request's current status
func BuildStateMachine(table *domainwf.RoutingTable, req *entity.Request) (domainwf.StateMachine, error) {
	return table.BuildStateMachine(req.Domain, req.Status, req.Attributes)
}

// PermissionName is the capability an actor needs to perform action at the step owned by stepRole
func PermissionName(domain domainwf.Domain, action domainwf.Action, stepRole string) string {
	return fmt.Sprintf("%s:%s:%s", domain, action, stepRole)
}
