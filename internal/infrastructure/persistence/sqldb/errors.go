package sqldb

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Postgres SQLSTATE codes that signal a lost race rather than a broken store
var pqConflictCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"23505": true, // unique_violation
}

// ClassifyError turns a driver error into a workflow CONFLICT when another writer won
// the race, and into PERSISTENCE otherwise. Workflow errors pass through unchanged.
func ClassifyError(message string, err error) error {
	if err == nil {
		return nil
	}
	if workflow.KindOf(err) != "" {
		return err
	}
	if IsConflict(err) {
		return &workflow.Error{Kind: workflow.KindConflictError, Message: message, Err: err}
	}
	return workflow.Persistence(message, err)
}

// IsConflict reports whether err is a lock, serialization or uniqueness failure
func IsConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		case sqlite3.ErrConstraint:
			return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
		}
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqConflictCodes[pqErr.Code]
	}
	return false
}
