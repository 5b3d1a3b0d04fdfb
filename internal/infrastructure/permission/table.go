package permission

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Table is a static role → permission-pattern authority.
// Patterns are matched against "<domain>:<action>:<stepRole>" with path.Match syntax,
// so "travel:*:LineManager" or "*:cancel:*" are valid grants.
type Table struct {
	mu     sync.RWMutex
	grants map[string][]string
}

// NewTable creates a permission table from role → patterns, rejecting malformed patterns
func NewTable(grants map[string][]string) (*Table, error) {
	t := &Table{grants: make(map[string][]string, len(grants))}
	for role, patterns := range grants {
		if err := t.Grant(role, patterns...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// DefaultGrants gives each approver role the steps it owns and lets requestors cancel
func DefaultGrants() map[string][]string {
	return map[string][]string{
		workflow.RoleRequestor:          {"*:cancel:*"},
		workflow.RoleDepartmentFocal:    {"*:approve:DepartmentFocal", "*:reject:DepartmentFocal"},
		workflow.RoleLineManager:        {"*:approve:LineManager", "*:reject:LineManager"},
		workflow.RoleHOD:                {"*:approve:HOD", "*:reject:HOD"},
		workflow.RoleTransportAdmin:     {"transport:*:TransportAdmin"},
		workflow.RoleVisaAdmin:          {"visa:*:VisaAdmin"},
		workflow.RoleAccommodationAdmin: {"accommodation:*:AccommodationAdmin"},
		workflow.RoleClaimsAdmin:        {"claim:*:ClaimsAdmin"},
	}
}

// Grant adds patterns to a role
func (t *Table) Grant(role string, patterns ...string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return fmt.Errorf("role name is required")
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("invalid permission pattern %q for role %s: %w", p, role, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.grants[role] = append(t.grants[role], patterns...)
	return nil
}

// HasPermission implements port.PermissionAuthority
func (t *Table) HasPermission(_ context.Context, role, permission string) (bool, error) {
	t.mu.RLock()
	patterns := t.grants[role]
	t.mu.RUnlock()

	for _, p := range patterns {
		ok, err := path.Match(p, permission)
		if err != nil {
			return false, fmt.Errorf("failed to match permission pattern %q: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Roles lists the roles holding at least one grant
func (t *Table) Roles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roles := make([]string, 0, len(t.grants))
	for role := range t.grants {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Verify interface compliance
var _ port.PermissionAuthority = (*Table)(nil)
