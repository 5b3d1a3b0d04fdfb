package port

import (
	"context"
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// RequestRepository defines persistence operations for Request
type RequestRepository interface {
	Create(ctx context.Context, req *entity.Request) error

	// GetByID returns nil, nil when no request matches
	GetByID(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error)

	// GetForUpdate loads the request and, where the dialect supports it, locks the row
	// for the rest of the surrounding transaction. Returns nil, nil when no request matches.
	GetForUpdate(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error)

	// CompareAndSwapStatus moves the request to status and bumps its version only if the
	// stored version still equals expectedVersion, stamping updated_at with at.
	// It reports whether a row was updated.
	CompareAndSwapStatus(ctx context.Context, domain workflow.Domain, id string, expectedVersion int64, status workflow.Status, at time.Time) (bool, error)
}

// LedgerRepository is the append-only approval ledger
type LedgerRepository interface {
	Append(ctx context.Context, step *entity.ApprovalStep) error
	ListByRequest(ctx context.Context, domain workflow.Domain, requestID string) ([]*entity.ApprovalStep, error)
	CountByRequest(ctx context.Context, domain workflow.Domain, requestID string) (int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction executes fn within a transaction.
	// The context passed to fn carries the transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
