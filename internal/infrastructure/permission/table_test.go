package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_DefaultGrants(t *testing.T) {
	table, err := NewTable(DefaultGrants())
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{"LineManager", "travel:approve:LineManager", true},
		{"LineManager", "claim:reject:LineManager", true},
		{"LineManager", "travel:approve:HOD", false},
		{"LineManager", "travel:cancel:LineManager", false},
		{"HOD", "visa:approve:HOD", true},
		{"Requestor", "travel:cancel:DepartmentFocal", true},
		{"Requestor", "travel:cancel:Requestor", true},
		{"Requestor", "travel:approve:Requestor", false},
		{"ClaimsAdmin", "claim:approve:ClaimsAdmin", true},
		{"ClaimsAdmin", "visa:approve:VisaAdmin", false},
		{"Intern", "travel:approve:LineManager", false},
	}

	for _, tt := range tests {
		t.Run(tt.role+" "+tt.permission, func(t *testing.T) {
			got, err := table.HasPermission(ctx, tt.role, tt.permission)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTable_Grant(t *testing.T) {
	table, err := NewTable(nil)
	require.NoError(t, err)

	require.NoError(t, table.Grant("Auditor", "travel:*:*"))
	ok, err := table.HasPermission(context.Background(), "Auditor", "travel:reject:HOD")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Error(t, table.Grant("", "travel:*:*"))
	assert.Error(t, table.Grant("Auditor", "travel:[:*"))
	assert.Equal(t, []string{"Auditor"}, table.Roles())
}

func TestNewTable_RejectsMalformedPattern(t *testing.T) {
	_, err := NewTable(map[string][]string{"HOD": {"[unclosed"}})
	assert.Error(t, err)
}
