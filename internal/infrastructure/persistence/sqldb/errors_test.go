package sqldb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, workflow.ErrConflict},
		{"sqlite locked", fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), workflow.ErrConflict},
		{"sqlite duplicate key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, workflow.ErrConflict},
		{"sqlite foreign key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, workflow.ErrPersistence},
		{"sqlite io", sqlite3.Error{Code: sqlite3.ErrIoErr}, workflow.ErrPersistence},
		{"postgres serialization", &pq.Error{Code: "40001"}, workflow.ErrConflict},
		{"postgres deadlock", &pq.Error{Code: "40P01"}, workflow.ErrConflict},
		{"postgres unique", &pq.Error{Code: "23505"}, workflow.ErrConflict},
		{"postgres syntax", &pq.Error{Code: "42601"}, workflow.ErrPersistence},
		{"plain error", errors.New("connection refused"), workflow.ErrPersistence},
		{"workflow error passes through", workflow.NotFound("missing"), workflow.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError("operation failed", tt.err)
			assert.ErrorIs(t, got, tt.want)
		})
	}

	assert.NoError(t, ClassifyError("noop", nil))
}
