package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

type requestKey struct {
	domain workflow.Domain
	id     string
}

type mockRequestRepo struct {
	mu        sync.Mutex
	requests  map[requestKey]entity.Request
	createErr error
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[requestKey]entity.Request)}
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.Request) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[requestKey{req.Domain, req.ID}] = *req
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestKey{domain, id}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *mockRequestRepo) GetForUpdate(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error) {
	return m.GetByID(ctx, domain, id)
}

func (m *mockRequestRepo) CompareAndSwapStatus(ctx context.Context, domain workflow.Domain, id string, expectedVersion int64, status workflow.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestKey{domain, id}]
	if !ok || r.Version != expectedVersion {
		return false, nil
	}
	r.Status = status
	r.Version++
	r.UpdatedAt = at
	m.requests[requestKey{domain, id}] = r
	return true, nil
}

type mockLedgerRepo struct {
	mu        sync.Mutex
	steps     []*entity.ApprovalStep
	appendErr error
}

func (m *mockLedgerRepo) Append(ctx context.Context, step *entity.ApprovalStep) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	step.ID = int64(len(m.steps) + 1)
	m.steps = append(m.steps, step)
	return nil
}

func (m *mockLedgerRepo) ListByRequest(ctx context.Context, domain workflow.Domain, requestID string) ([]*entity.ApprovalStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.ApprovalStep, 0)
	for _, s := range m.steps {
		if s.Domain == domain && s.RequestID == requestID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockLedgerRepo) CountByRequest(ctx context.Context, domain workflow.Domain, requestID string) (int, error) {
	steps, err := m.ListByRequest(ctx, domain, requestID)
	return len(steps), err
}

// passthroughTx runs fn directly; rollback is not simulated
type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

type recordingDispatcher struct {
	dispatcher.Dispatcher
	mu     sync.Mutex
	events []*event.Event
}

func (r *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

type serviceFixture struct {
	requests *mockRequestRepo
	ledger   *mockLedgerRepo
	disp     *recordingDispatcher
	svc      RequestService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		requests: newMockRequestRepo(),
		ledger:   &mockLedgerRepo{},
		disp:     &recordingDispatcher{},
	}
	f.svc = NewRequestService(f.requests, f.ledger, passthroughTx{},
		workflow.DefaultRoutingTable(workflow.DefaultOptions{}), f.disp, &mockLogger{})
	return f
}

func TestRequestService_CreateRoutesToFirstPendingStatus(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	req, err := f.svc.Create(ctx, NewRequest{
		Domain:       workflow.DomainAccommodation,
		RequestorRef: "alice",
		Attributes:   map[string]any{"nights": 2},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, workflow.StatusPendingDepartmentFocal, req.Status)
	assert.Equal(t, int64(1), req.Version)

	// the request was never stored in DRAFT, so there is no transition to record
	steps, err := f.svc.Steps(ctx, workflow.DomainAccommodation, req.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)

	require.Len(t, f.disp.events, 1)
	assert.Equal(t, event.TypeRequestSubmitted, f.disp.events[0].Type)
	assert.Empty(t, f.disp.events[0].PreviousStatus)
	assert.Equal(t, workflow.StatusPendingDepartmentFocal, f.disp.events[0].NewStatus)
}

func TestRequestService_CreateDraftThenSubmit(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	req, err := f.svc.Create(ctx, NewRequest{
		Domain:       workflow.DomainTravel,
		ID:           "R1",
		RequestorRef: "alice",
		Draft:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDraft, req.Status)
	assert.Empty(t, f.ledger.steps)
	assert.Empty(t, f.disp.events)

	_, err = f.svc.Submit(ctx, workflow.DomainTravel, "R1", "mallory")
	assert.ErrorIs(t, err, workflow.ErrAuthorization)

	submitted, err := f.svc.Submit(ctx, workflow.DomainTravel, "R1", "alice")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingDepartmentFocal, submitted.Status)
	assert.Equal(t, int64(2), submitted.Version)
	require.Len(t, f.ledger.steps, 1)
	assert.Equal(t, workflow.ActionSubmit, f.ledger.steps[0].Action)
	assert.Equal(t, workflow.StatusDraft, f.ledger.steps[0].PreviousStatus)
	assert.Equal(t, workflow.StatusPendingDepartmentFocal, f.ledger.steps[0].ResultStatus)
	assert.Equal(t, submitted.UpdatedAt, f.ledger.steps[0].Timestamp)

	_, err = f.svc.Submit(ctx, workflow.DomainTravel, "R1", "alice")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.svc.Submit(ctx, workflow.DomainTravel, "R404", "alice")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestRequestService_CreateValidation(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, NewRequest{Domain: "payroll", RequestorRef: "alice"})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = f.svc.Create(ctx, NewRequest{Domain: workflow.DomainVisa, RequestorRef: "  "})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = f.svc.Create(ctx, NewRequest{Domain: workflow.DomainVisa, ID: "V1", RequestorRef: "alice"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, NewRequest{Domain: workflow.DomainVisa, ID: "V1", RequestorRef: "alice"})
	assert.ErrorIs(t, err, workflow.ErrConflict)
}

func TestRequestService_StoreFailureIsPersistenceError(t *testing.T) {
	f := newServiceFixture()
	f.requests.createErr = errors.New("disk full")

	_, err := f.svc.Create(context.Background(), NewRequest{Domain: workflow.DomainClaim, RequestorRef: "alice"})
	assert.ErrorIs(t, err, workflow.ErrPersistence)
	assert.Empty(t, f.disp.events)
}

func TestRequestService_Get(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	_, err := f.svc.Get(ctx, workflow.DomainClaim, "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	_, err = f.svc.Steps(ctx, workflow.DomainClaim, "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	created, err := f.svc.Create(ctx, NewRequest{Domain: workflow.DomainClaim, RequestorRef: "alice"})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, workflow.DomainClaim, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Status, got.Status)
}
