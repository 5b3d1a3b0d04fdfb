package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NewRequest is the input of the submission flow
type NewRequest struct {
	Domain       workflow.Domain
	ID           string // generated when empty
	RequestorRef string
	Attributes   map[string]any
	Draft        bool // keep the request in DRAFT instead of routing it
}

// RequestService creates requests and serves the read side of the workflow
type RequestService interface {
	// Create stores a new request in DRAFT or its first non-skipped pending status
	Create(ctx context.Context, in NewRequest) (*entity.Request, error)
	// Submit routes a DRAFT request owned by requestorRef into its approval chain
	Submit(ctx context.Context, domain workflow.Domain, id, requestorRef string) (*entity.Request, error)
	Get(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error)
	Steps(ctx context.Context, domain workflow.Domain, id string) ([]*entity.ApprovalStep, error)
}

type requestServiceImpl struct {
	requestRepo port.RequestRepository
	ledgerRepo  port.LedgerRepository
	txManager   port.TransactionManager
	table       *workflow.RoutingTable
	dispatcher  dispatcher.Dispatcher
	logger      Logger
}

// NewRequestService creates a new RequestService. The dispatcher may be nil.
func NewRequestService(
	requestRepo port.RequestRepository,
	ledgerRepo port.LedgerRepository,
	txManager port.TransactionManager,
	table *workflow.RoutingTable,
	d dispatcher.Dispatcher,
	logger Logger,
) RequestService {
	return &requestServiceImpl{
		requestRepo: requestRepo,
		ledgerRepo:  ledgerRepo,
		txManager:   txManager,
		table:       table,
		dispatcher:  d,
		logger:      logger,
	}
}

// Create stores a new request without a ledger row. Submit records the move out of DRAFT.
func (s *requestServiceImpl) Create(ctx context.Context, in NewRequest) (*entity.Request, error) {
	if _, ok := s.table.Definition(in.Domain); !ok {
		return nil, workflow.Validation("domain", fmt.Sprintf("unknown domain %q", in.Domain))
	}
	if strings.TrimSpace(in.RequestorRef) == "" {
		return nil, workflow.Validation("requestorRef", "requestor reference is required")
	}

	status := workflow.StatusDraft
	if !in.Draft {
		first, err := s.table.FirstStatus(in.Domain, in.Attributes)
		if err != nil {
			return nil, err
		}
		status = first
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	req := &entity.Request{
		ID:           id,
		Domain:       in.Domain,
		Status:       status,
		RequestorRef: in.RequestorRef,
		Attributes:   in.Attributes,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Attributes == nil {
		req.Attributes = map[string]any{}
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.requestRepo.GetByID(txCtx, in.Domain, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return workflow.Conflict("%s request %s already exists", in.Domain, id)
		}

		return s.requestRepo.Create(txCtx, req)
	})
	if err != nil {
		s.logger.Error("Failed to create request", "error", err, "domain", in.Domain, "request_id", id)
		return nil, asWorkflowError(err)
	}

	s.logger.Info("Request created", "domain", in.Domain, "request_id", id, "status", status)
	if status != workflow.StatusDraft {
		// Routed on creation: the event reports the submission, the ledger starts empty
		s.emit(ctx, req, submissionStep(req, "", now))
	}
	return req, nil
}

// Submit moves a DRAFT request to the first pending status its attributes route to
func (s *requestServiceImpl) Submit(ctx context.Context, domain workflow.Domain, id, requestorRef string) (*entity.Request, error) {
	if _, ok := s.table.Definition(domain); !ok {
		return nil, workflow.Validation("domain", fmt.Sprintf("unknown domain %q", domain))
	}

	var (
		updated *entity.Request
		step    *entity.ApprovalStep
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.requestRepo.GetForUpdate(txCtx, domain, id)
		if err != nil {
			return err
		}
		if current == nil {
			return workflow.NotFound("%s request %s not found", domain, id)
		}
		if current.RequestorRef != requestorRef {
			return workflow.Unauthorized("only the requestor may submit request %s", id)
		}
		if current.Status != workflow.StatusDraft {
			return workflow.InvalidTransition("cannot submit a request in status %s", current.Status)
		}

		next, err := s.table.FirstStatus(domain, current.Attributes)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		swapped, err := s.requestRepo.CompareAndSwapStatus(txCtx, domain, id, current.Version, next, now)
		if err != nil {
			return err
		}
		if !swapped {
			return workflow.Conflict("request %s was modified concurrently", id)
		}

		cp := *current
		cp.Status = next
		cp.Version = current.Version + 1
		cp.UpdatedAt = now
		updated = &cp

		step = submissionStep(updated, current.Status, now)
		return s.ledgerRepo.Append(txCtx, step)
	})
	if err != nil {
		err = asWorkflowError(err)
		if workflow.KindOf(err) == workflow.KindPersistenceError {
			s.logger.Error("Failed to submit request", "error", err, "domain", domain, "request_id", id)
		}
		return nil, err
	}

	s.logger.Info("Request submitted", "domain", domain, "request_id", id, "status", updated.Status)
	s.emit(ctx, updated, step)
	return updated, nil
}

// Get returns a request or a NotFound error
func (s *requestServiceImpl) Get(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error) {
	if _, ok := s.table.Definition(domain); !ok {
		return nil, workflow.Validation("domain", fmt.Sprintf("unknown domain %q", domain))
	}

	req, err := s.requestRepo.GetByID(ctx, domain, id)
	if err != nil {
		s.logger.Error("Failed to get request", "error", err, "domain", domain, "request_id", id)
		return nil, asWorkflowError(err)
	}
	if req == nil {
		return nil, workflow.NotFound("%s request %s not found", domain, id)
	}
	return req, nil
}

// Steps returns the approval ledger of a request, oldest first
func (s *requestServiceImpl) Steps(ctx context.Context, domain workflow.Domain, id string) ([]*entity.ApprovalStep, error) {
	if _, err := s.Get(ctx, domain, id); err != nil {
		return nil, err
	}

	steps, err := s.ledgerRepo.ListByRequest(ctx, domain, id)
	if err != nil {
		s.logger.Error("Failed to list approval steps", "error", err, "domain", domain, "request_id", id)
		return nil, asWorkflowError(err)
	}
	return steps, nil
}

func (s *requestServiceImpl) emit(ctx context.Context, req *entity.Request, step *entity.ApprovalStep) {
	if s.dispatcher == nil || step == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, event.NewTransitionEvent(req, step))
}

func submissionStep(req *entity.Request, previous workflow.Status, at time.Time) *entity.ApprovalStep {
	return &entity.ApprovalStep{
		Domain:         req.Domain,
		RequestID:      req.ID,
		StepRole:       workflow.RoleRequestor,
		ActorName:      req.RequestorRef,
		ActorRole:      workflow.RoleRequestor,
		Action:         workflow.ActionSubmit,
		PreviousStatus: previous,
		ResultStatus:   req.Status,
		Timestamp:      at,
	}
}

func asWorkflowError(err error) error {
	if workflow.KindOf(err) != "" {
		return err
	}
	return workflow.Persistence("store operation failed", err)
}
