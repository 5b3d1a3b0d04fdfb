package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqldb"
)

// LedgerRepository implements port.LedgerRepository. It only ever inserts and reads.
type LedgerRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sqldb.DB, logger *zap.Logger) port.LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one ledger row and sets its ID
func (r *LedgerRepository) Append(ctx context.Context, step *entity.ApprovalStep) error {
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now().UTC()
	}

	query := r.db.Rebind(`
		INSERT INTO approval_steps (
			domain, request_id, step_role, actor_name, actor_role, action,
			previous_status, result_status, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	var comments sql.NullString
	if step.Comments != nil {
		comments = sql.NullString{String: *step.Comments, Valid: true}
	}

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		step.Domain,
		step.RequestID,
		step.StepRole,
		step.ActorName,
		step.ActorRole,
		step.Action,
		step.PreviousStatus,
		step.ResultStatus,
		comments,
		step.Timestamp,
	).Scan(&step.ID)
	if err != nil {
		r.logger.Error("Failed to append approval step",
			zap.String("domain", step.Domain.String()),
			zap.String("request_id", step.RequestID),
			zap.String("action", step.Action.String()),
			zap.Error(err))
		return sqldb.ClassifyError("failed to append approval step", err)
	}

	return nil
}

// ListByRequest returns the ledger of a request ordered by timestamp
func (r *LedgerRepository) ListByRequest(ctx context.Context, domain workflow.Domain, requestID string) ([]*entity.ApprovalStep, error) {
	query := r.db.Rebind(`
		SELECT id, domain, request_id, step_role, actor_name, actor_role, action,
			previous_status, result_status, comments, created_at
		FROM approval_steps
		WHERE domain = ? AND request_id = ?
		ORDER BY created_at ASC, id ASC
	`)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, domain, requestID)
	if err != nil {
		r.logger.Error("Failed to list approval steps",
			zap.String("domain", domain.String()),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, sqldb.ClassifyError("failed to list approval steps", err)
	}
	defer rows.Close()

	steps := make([]*entity.ApprovalStep, 0)
	for rows.Next() {
		var (
			step     entity.ApprovalStep
			comments sql.NullString
		)
		if err := rows.Scan(
			&step.ID,
			&step.Domain,
			&step.RequestID,
			&step.StepRole,
			&step.ActorName,
			&step.ActorRole,
			&step.Action,
			&step.PreviousStatus,
			&step.ResultStatus,
			&comments,
			&step.Timestamp,
		); err != nil {
			return nil, workflow.Persistence("failed to scan approval step", err)
		}
		if comments.Valid {
			c := comments.String
			step.Comments = &c
		}
		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, sqldb.ClassifyError("failed to iterate approval steps", err)
	}
	return steps, nil
}

// CountByRequest returns the number of ledger rows of a request
func (r *LedgerRepository) CountByRequest(ctx context.Context, domain workflow.Domain, requestID string) (int, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM approval_steps WHERE domain = ? AND request_id = ?`)

	var count int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, domain, requestID).Scan(&count); err != nil {
		r.logger.Error("Failed to count approval steps",
			zap.String("domain", domain.String()),
			zap.String("request_id", requestID),
			zap.Error(err))
		return 0, sqldb.ClassifyError(fmt.Sprintf("failed to count approval steps for %s", requestID), err)
	}
	return count, nil
}

// Verify interface compliance
var _ port.LedgerRepository = (*LedgerRepository)(nil)
