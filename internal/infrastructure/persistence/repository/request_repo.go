package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqldb"
)

const requestColumns = `domain, id, status, requestor_ref, attributes, version, created_at, updated_at`

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sqldb.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new request
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	attrs, err := json.Marshal(nonNilAttributes(req.Attributes))
	if err != nil {
		return workflow.Validation("attributes", fmt.Sprintf("attributes are not serializable: %v", err))
	}

	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	if req.Version == 0 {
		req.Version = 1
	}

	query := r.db.Rebind(`
		INSERT INTO requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		req.Domain,
		req.ID,
		req.Status,
		req.RequestorRef,
		string(attrs),
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create request",
			zap.String("domain", req.Domain.String()),
			zap.String("request_id", req.ID),
			zap.Error(err))
		return sqldb.ClassifyError("failed to create request", err)
	}

	return nil
}

// GetByID retrieves a request, returning nil, nil when it does not exist
func (r *RequestRepository) GetByID(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error) {
	return r.get(ctx, domain, id, false)
}

// GetForUpdate retrieves a request and locks its row on postgres. SQLite transactions
// already hold the database write lock from BEGIN.
func (r *RequestRepository) GetForUpdate(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error) {
	return r.get(ctx, domain, id, r.db.IsPostgres() && sqldb.InTransaction(ctx))
}

func (r *RequestRepository) get(ctx context.Context, domain workflow.Domain, id string, lock bool) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE domain = ? AND id = ?`
	if lock {
		query += ` FOR UPDATE`
	}

	var (
		req   entity.Request
		attrs []byte
	)
	err := r.db.Executor(ctx).QueryRowContext(ctx, r.db.Rebind(query), domain, id).Scan(
		&req.Domain,
		&req.ID,
		&req.Status,
		&req.RequestorRef,
		&attrs,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request",
			zap.String("domain", domain.String()),
			zap.String("request_id", id),
			zap.Error(err))
		return nil, sqldb.ClassifyError("failed to get request", err)
	}

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &req.Attributes); err != nil {
			r.logger.Error("Failed to decode request attributes",
				zap.String("domain", domain.String()),
				zap.String("request_id", id),
				zap.Error(err))
			return nil, workflow.Persistence("failed to decode request attributes", err)
		}
	}
	req.Attributes = nonNilAttributes(req.Attributes)

	return &req, nil
}

// CompareAndSwapStatus updates status and bumps version if the stored version matches
func (r *RequestRepository) CompareAndSwapStatus(ctx context.Context, domain workflow.Domain, id string, expectedVersion int64, status workflow.Status, at time.Time) (bool, error) {
	query := r.db.Rebind(`
		UPDATE requests
		SET status = ?, version = version + 1, updated_at = ?
		WHERE domain = ? AND id = ? AND version = ?
	`)

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, at.UTC(), domain, id, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update request status",
			zap.String("domain", domain.String()),
			zap.String("request_id", id),
			zap.String("status", status.String()),
			zap.Int64("expected_version", expectedVersion),
			zap.Error(err))
		return false, sqldb.ClassifyError("failed to update request status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, sqldb.ClassifyError("failed to read affected rows", err)
	}

	return affected == 1, nil
}

func nonNilAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	return attrs
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
