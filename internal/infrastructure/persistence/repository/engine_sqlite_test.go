package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/service"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/permission"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/approval-workflow/pkg/database"
)

type sqliteFixture struct {
	engine   appwf.Engine
	service  service.RequestService
	requests port.RequestRepository
	ledger   port.LedgerRepository
	disp     dispatcher.Dispatcher

	mu     sync.Mutex
	events []*event.Event
}

func newSQLiteFixture(t *testing.T) *sqliteFixture {
	t.Helper()
	return newSQLiteFixtureWithGrants(t, permission.DefaultGrants())
}

func newSQLiteFixtureWithGrants(t *testing.T, grants map[string][]string) *sqliteFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	raw, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "workflow.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	require.NoError(t, database.NewMigrator(raw, logger).RunMigrations())

	db := sqldb.FromDatabase(raw, logger)
	authority, err := permission.NewTable(grants)
	require.NoError(t, err)

	f := &sqliteFixture{
		requests: repository.NewRequestRepository(db, logger),
		ledger:   repository.NewLedgerRepository(db, logger),
		disp:     dispatcher.NewDispatcher(),
	}
	t.Cleanup(func() { _ = f.disp.Close() })

	f.disp.SubscribeAll("recorder", func(ctx context.Context, evt *event.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, evt)
		return nil
	})

	table := workflow.DefaultRoutingTable(workflow.DefaultOptions{})
	f.engine = appwf.NewEngine(f.requests, f.ledger, db, authority, table,
		appwf.WithDispatcher(f.disp),
	)
	f.service = service.NewRequestService(f.requests, f.ledger, db, table, f.disp, nopLogger{})
	return f
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

func (f *sqliteFixture) seed(t *testing.T, domain workflow.Domain, id string, status workflow.Status, attrs map[string]any) {
	t.Helper()
	require.NoError(t, f.requests.Create(context.Background(), &entity.Request{
		ID:           id,
		Domain:       domain,
		Status:       status,
		RequestorRef: "alice",
		Attributes:   attrs,
	}))
}

func TestEngineSQLite_DomesticTravelApproval(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()
	f.seed(t, workflow.DomainTravel, "R1", workflow.StatusPendingLineManager,
		map[string]any{"travelType": "Domestic", "estimatedCost": 500})

	updated, err := f.engine.PerformAction(ctx, appwf.ActionRequest{
		Domain:    workflow.DomainTravel,
		RequestID: "R1",
		Action:         workflow.ActionApprove,
		Actor:          entity.Actor{Role: workflow.RoleLineManager, Name: "bob"},
		ExpectedStatus: workflow.StatusPendingLineManager,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, updated.Status)

	stored, err := f.requests.GetByID(ctx, workflow.DomainTravel, "R1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, stored.Status)
	assert.Equal(t, int64(2), stored.Version)

	steps, err := f.ledger.ListByRequest(ctx, workflow.DomainTravel, "R1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, workflow.StatusPendingLineManager, steps[0].PreviousStatus)
	assert.Equal(t, workflow.StatusApproved, steps[0].ResultStatus)
	assert.Equal(t, "bob", steps[0].ActorName)
	assert.Equal(t, workflow.RoleLineManager, steps[0].StepRole)

	require.NoError(t, f.disp.Close())
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.events, 1)
	assert.Equal(t, event.TypeRequestApproved, f.events[0].Type)
	assert.Equal(t, "alice", f.events[0].RequestorRef)
}

func TestEngineSQLite_RejectedActionLeavesNoWrite(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()
	f.seed(t, workflow.DomainClaim, "C1", workflow.StatusPendingHOD, map[string]any{"totalAmount": 5000})

	_, err := f.engine.PerformAction(ctx, appwf.ActionRequest{
		Domain:    workflow.DomainClaim,
		RequestID: "C1",
		Action:         workflow.ActionApprove,
		Actor:          entity.Actor{Role: workflow.RoleLineManager, Name: "bob"},
		ExpectedStatus: workflow.StatusPendingHOD,
	})
	assert.ErrorIs(t, err, workflow.ErrAuthorization)

	stored, err := f.requests.GetByID(ctx, workflow.DomainClaim, "C1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingHOD, stored.Status)

	count, err := f.ledger.CountByRequest(ctx, workflow.DomainClaim, "C1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEngineSQLite_ConcurrentApprovals(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()
	f.seed(t, workflow.DomainTravel, "R2", workflow.StatusPendingLineManager,
		map[string]any{"travelType": "Overseas"})

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.PerformAction(ctx, appwf.ActionRequest{
				Domain:         workflow.DomainTravel,
				RequestID:      "R2",
				Action:         workflow.ActionApprove,
				Actor:          entity.Actor{Role: workflow.RoleLineManager, Name: "bob"},
				ExpectedStatus: workflow.StatusPendingLineManager,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, workflow.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, conflicts)
	assert.Empty(t, others)

	stored, err := f.requests.GetByID(ctx, workflow.DomainTravel, "R2")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingHOD, stored.Status)

	count, err := f.ledger.CountByRequest(ctx, workflow.DomainTravel, "R2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEngineSQLite_WildcardApproverCannotDoubleAdvance(t *testing.T) {
	f := newSQLiteFixtureWithGrants(t, map[string][]string{"Approver": {"*:approve:*"}})
	ctx := context.Background()
	f.seed(t, workflow.DomainTravel, "R3", workflow.StatusPendingDepartmentFocal,
		map[string]any{"travelType": "Overseas"})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	start := make(chan struct{})

	for _, name := range []string{"dana", "erik"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			<-start
			_, err := f.engine.PerformAction(ctx, appwf.ActionRequest{
				Domain:         workflow.DomainTravel,
				RequestID:      "R3",
				Action:         workflow.ActionApprove,
				Actor:          entity.Actor{Role: "Approver", Name: name},
				ExpectedStatus: workflow.StatusPendingDepartmentFocal,
			})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}(name)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], workflow.ErrConflict)

	stored, err := f.requests.GetByID(ctx, workflow.DomainTravel, "R3")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingLineManager, stored.Status)
	assert.Equal(t, int64(2), stored.Version)

	count, err := f.ledger.CountByRequest(ctx, workflow.DomainTravel, "R3")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// a caller that does not name the status it acted on is refused outright
	_, err = f.engine.PerformAction(ctx, appwf.ActionRequest{
		Domain:    workflow.DomainTravel,
		RequestID: "R3",
		Action:    workflow.ActionApprove,
		Actor:     entity.Actor{Role: "Approver", Name: "dana"},
	})
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestEngineSQLite_CreatedTravelRequestScenario(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, service.NewRequest{
		Domain:       workflow.DomainTravel,
		ID:           "R1",
		RequestorRef: "alice",
		Attributes:   map[string]any{"travelType": "Domestic", "estimatedCost": 200},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingDepartmentFocal, created.Status)

	updated, err := f.engine.PerformAction(ctx, appwf.ActionRequest{
		Domain:         workflow.DomainTravel,
		RequestID:      "R1",
		Action:         workflow.ActionApprove,
		Actor:          entity.Actor{Role: workflow.RoleDepartmentFocal, Name: "dana"},
		ExpectedStatus: workflow.StatusPendingDepartmentFocal,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingLineManager, updated.Status)

	steps, err := f.service.Steps(ctx, workflow.DomainTravel, "R1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, workflow.StatusPendingDepartmentFocal, steps[0].PreviousStatus)
	assert.Equal(t, workflow.StatusPendingLineManager, steps[0].ResultStatus)

	updated, err = f.engine.PerformAction(ctx, appwf.ActionRequest{
		Domain:         workflow.DomainTravel,
		RequestID:      "R1",
		Action:         workflow.ActionApprove,
		Actor:          entity.Actor{Role: workflow.RoleLineManager, Name: "bob"},
		ExpectedStatus: workflow.StatusPendingLineManager,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, updated.Status)

	stored, err := f.requests.GetByID(ctx, workflow.DomainTravel, "R1")
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(updated.UpdatedAt))

	steps, err = f.service.Steps(ctx, workflow.DomainTravel, "R1")
	require.NoError(t, err)
	assert.Len(t, steps, 2)
}
