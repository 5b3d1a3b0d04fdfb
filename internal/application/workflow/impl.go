package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type engineImpl struct {
	requestRepo port.RequestRepository
	ledgerRepo  port.LedgerRepository
	txManager   port.TransactionManager
	authority   port.PermissionAuthority
	table       *domainwf.RoutingTable
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for ledger timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	requestRepo port.RequestRepository,
	ledgerRepo port.LedgerRepository,
	txManager port.TransactionManager,
	authority port.PermissionAuthority,
	table *domainwf.RoutingTable,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		requestRepo: requestRepo,
		ledgerRepo:  ledgerRepo,
		txManager:   txManager,
		authority:   authority,
		table:       table,
		now:         func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Routing returns the routing table the engine evaluates
func (e *engineImpl) Routing() *domainwf.RoutingTable {
	return e.table
}

// PerformAction validates the action, commits the status change and its ledger row in one
// transaction, then hands the event to the dispatcher without waiting for delivery.
func (e *engineImpl) PerformAction(ctx context.Context, in ActionRequest) (*entity.Request, error) {
	def, err := e.validate(in)
	if err != nil {
		return nil, err
	}

	var (
		updated *entity.Request
		step    *entity.ApprovalStep
	)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.requestRepo.GetForUpdate(txCtx, in.Domain, in.RequestID)
		if err != nil {
			return err
		}
		if current == nil {
			return domainwf.NotFound("%s request %s not found", in.Domain, in.RequestID)
		}

		if in.ExpectedStatus != "" && in.ExpectedStatus != current.Status {
			return domainwf.Conflict("request %s is %s, expected %s", in.RequestID, current.Status, in.ExpectedStatus).
				WithDetails(map[string]any{"expected": in.ExpectedStatus, "actual": current.Status})
		}

		if err := checkStatus(def, current.Status, in.Action); err != nil {
			return err
		}

		stepRole := def.StepRole(current.Status)
		if err := e.authorize(txCtx, in, current, stepRole); err != nil {
			return err
		}

		machine, err := BuildStateMachine(e.table, current)
		if err != nil {
			return err
		}
		if err := machine.Fire(txCtx, in.Action); err != nil {
			if errors.Is(err, domainwf.ErrGuardFailed) {
				return domainwf.InvalidTransition("no route for %s from %s", in.Action, current.Status)
			}
			return err
		}
		next := machine.State()

		now := e.now()
		swapped, err := e.requestRepo.CompareAndSwapStatus(txCtx, in.Domain, in.RequestID, current.Version, next, now)
		if err != nil {
			return err
		}
		if !swapped {
			return domainwf.Conflict("request %s was modified concurrently", in.RequestID)
		}

		step = &entity.ApprovalStep{
			Domain:         in.Domain,
			RequestID:      in.RequestID,
			StepRole:       stepRole,
			ActorName:      in.Actor.Name,
			ActorRole:      in.Actor.Role,
			Action:         in.Action,
			PreviousStatus: current.Status,
			ResultStatus:   next,
			Comments:       optionalComments(in.Comments),
			Timestamp:      now,
		}
		if err := e.ledgerRepo.Append(txCtx, step); err != nil {
			return err
		}

		cp := *current
		cp.Status = next
		cp.Version = current.Version + 1
		cp.UpdatedAt = now
		updated = &cp
		return nil
	})
	if err != nil {
		return nil, e.fail(in, err)
	}

	e.logInfo("Workflow transition committed",
		"domain", in.Domain,
		"request_id", in.RequestID,
		"action", in.Action,
		"actor_role", in.Actor.Role,
		"previous_status", step.PreviousStatus,
		"new_status", step.ResultStatus,
	)

	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, event.NewTransitionEvent(updated, step))
	}

	return updated, nil
}

// PermittedActions returns the actions legal for the request's current status
func (e *engineImpl) PermittedActions(ctx context.Context, domain domainwf.Domain, requestID string, actor entity.Actor) ([]domainwf.Action, error) {
	def, ok := e.table.Definition(domain)
	if !ok {
		return nil, domainwf.Validation("domain", fmt.Sprintf("unknown domain %q", domain))
	}

	req, err := e.requestRepo.GetByID(ctx, domain, requestID)
	if err != nil {
		return nil, asWorkflowError(err)
	}
	if req == nil {
		return nil, domainwf.NotFound("%s request %s not found", domain, requestID)
	}

	machine, err := BuildStateMachine(e.table, req)
	if err != nil {
		return nil, err
	}

	actions := machine.PermittedActions()
	if actor.Role == "" {
		return actions, nil
	}

	stepRole := def.StepRole(req.Status)
	allowed := make([]domainwf.Action, 0, len(actions))
	for _, action := range actions {
		ok, err := e.authority.HasPermission(ctx, actor.Role, PermissionName(domain, action, stepRole))
		if err != nil {
			return nil, domainwf.Persistence("permission lookup failed", err)
		}
		if ok && mayWithdraw(action, actor, req) {
			allowed = append(allowed, action)
		}
	}
	return allowed, nil
}

func (e *engineImpl) validate(in ActionRequest) (*domainwf.Definition, error) {
	def, ok := e.table.Definition(in.Domain)
	if !ok {
		return nil, domainwf.Validation("domain", fmt.Sprintf("unknown domain %q", in.Domain))
	}
	if strings.TrimSpace(in.RequestID) == "" {
		return nil, domainwf.Validation("requestId", "request id is required")
	}
	if !in.Action.IsValid() {
		return nil, domainwf.Validation("action", fmt.Sprintf("unknown action %q, expected approve, reject or cancel", in.Action))
	}
	if strings.TrimSpace(in.Actor.Role) == "" {
		return nil, domainwf.Validation("approverRole", "actor role is required")
	}
	if strings.TrimSpace(in.Actor.Name) == "" {
		return nil, domainwf.Validation("approverName", "actor name is required")
	}
	if in.Action == domainwf.ActionReject && strings.TrimSpace(in.Comments) == "" {
		return nil, domainwf.Validation("comments", "comments are required when rejecting")
	}
	// Approve and reject must name the status the caller acted on
	if in.Action != domainwf.ActionCancel && in.ExpectedStatus == "" {
		return nil, domainwf.Validation("expectedStatus", fmt.Sprintf("expected status is required to %s", in.Action))
	}
	if in.ExpectedStatus != "" && !def.Has(in.ExpectedStatus) {
		return nil, domainwf.Validation("expectedStatus", fmt.Sprintf("status %q does not belong to domain %s", in.ExpectedStatus, in.Domain))
	}
	return def, nil
}

func checkStatus(def *domainwf.Definition, status domainwf.Status, action domainwf.Action) error {
	if !def.Has(status) {
		return domainwf.InvalidTransition("status %s does not belong to domain %s", status, def.Domain)
	}
	switch action {
	case domainwf.ActionApprove, domainwf.ActionReject:
		if !def.IsActionable(status) {
			return domainwf.InvalidTransition("cannot %s a request in status %s", action, status)
		}
	case domainwf.ActionCancel:
		if !def.IsCancellable(status) {
			return domainwf.InvalidTransition("cannot cancel a request in status %s", status)
		}
	}
	return nil
}

func (e *engineImpl) authorize(ctx context.Context, in ActionRequest, req *entity.Request, stepRole string) error {
	permission := PermissionName(in.Domain, in.Action, stepRole)

	ok, err := e.authority.HasPermission(ctx, in.Actor.Role, permission)
	if err != nil {
		return domainwf.Persistence("permission lookup failed", err)
	}
	if !ok {
		return domainwf.Unauthorized("role %s may not %s at step %s", in.Actor.Role, in.Action, stepRole).
			WithDetails(map[string]any{"permission": permission, "role": in.Actor.Role})
	}

	if !mayWithdraw(in.Action, in.Actor, req) {
		return domainwf.Unauthorized("only the requestor may cancel request %s", req.ID)
	}
	return nil
}

// mayWithdraw limits requestors to cancelling their own requests
func mayWithdraw(action domainwf.Action, actor entity.Actor, req *entity.Request) bool {
	if action != domainwf.ActionCancel || actor.Role != domainwf.RoleRequestor {
		return true
	}
	return actor.Name == req.RequestorRef
}

func (e *engineImpl) fail(in ActionRequest, err error) error {
	wfErr := asWorkflowError(err)

	if domainwf.KindOf(wfErr) == domainwf.KindPersistenceError {
		e.logError("Workflow transition failed",
			"domain", in.Domain,
			"request_id", in.RequestID,
			"action", in.Action,
			"actor_role", in.Actor.Role,
			"actor_name", in.Actor.Name,
			"error", err,
		)
	} else {
		e.logInfo("Workflow action refused",
			"domain", in.Domain,
			"request_id", in.RequestID,
			"action", in.Action,
			"actor_role", in.Actor.Role,
			"reason", wfErr.Error(),
		)
	}
	return wfErr
}

// asWorkflowError keeps typed workflow errors and wraps everything else as a persistence failure
func asWorkflowError(err error) error {
	if domainwf.KindOf(err) != "" {
		return err
	}
	return domainwf.Persistence("store operation failed", err)
}

func optionalComments(comments string) *string {
	if strings.TrimSpace(comments) == "" {
		return nil
	}
	return &comments
}

func (e *engineImpl) logInfo(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, keysAndValues...)
	}
}

func (e *engineImpl) logError(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, keysAndValues...)
	}
}
