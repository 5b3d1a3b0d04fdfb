package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-workflow/internal/application/service"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

type mockEngine struct {
	performFunc   func(ctx context.Context, in appwf.ActionRequest) (*entity.Request, error)
	permittedFunc func(ctx context.Context, domain workflow.Domain, id string, actor entity.Actor) ([]workflow.Action, error)
	last          appwf.ActionRequest
	lastActor     entity.Actor
}

func (m *mockEngine) PerformAction(ctx context.Context, in appwf.ActionRequest) (*entity.Request, error) {
	m.last = in
	if m.performFunc != nil {
		return m.performFunc(ctx, in)
	}
	return &entity.Request{ID: in.RequestID, Domain: in.Domain, Status: workflow.StatusApproved, Version: 2}, nil
}

func (m *mockEngine) PermittedActions(ctx context.Context, domain workflow.Domain, id string, actor entity.Actor) ([]workflow.Action, error) {
	m.lastActor = actor
	if m.permittedFunc != nil {
		return m.permittedFunc(ctx, domain, id, actor)
	}
	return []workflow.Action{workflow.ActionApprove, workflow.ActionReject}, nil
}

func (m *mockEngine) Routing() *workflow.RoutingTable {
	return workflow.DefaultRoutingTable(workflow.DefaultOptions{})
}

type mockRequestService struct {
	createFunc func(ctx context.Context, in service.NewRequest) (*entity.Request, error)
	getFunc    func(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error)
}

func (m *mockRequestService) Create(ctx context.Context, in service.NewRequest) (*entity.Request, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, in)
	}
	return &entity.Request{ID: "new-1", Domain: in.Domain, Status: workflow.StatusPendingLineManager, RequestorRef: in.RequestorRef}, nil
}

func (m *mockRequestService) Submit(ctx context.Context, domain workflow.Domain, id, requestorRef string) (*entity.Request, error) {
	return &entity.Request{ID: id, Domain: domain, Status: workflow.StatusPendingLineManager, RequestorRef: requestorRef}, nil
}

func (m *mockRequestService) Get(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, domain, id)
	}
	return &entity.Request{ID: id, Domain: domain, Status: workflow.StatusPendingHOD}, nil
}

func (m *mockRequestService) Steps(ctx context.Context, domain workflow.Domain, id string) ([]*entity.ApprovalStep, error) {
	return []*entity.ApprovalStep{{ID: 1, Domain: domain, RequestID: id, Action: workflow.ActionApprove}}, nil
}

type mockHealth struct {
	err error
}

func (m mockHealth) Health(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"database": "ok"}, m.err
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

func newTestServer(engine *mockEngine, svc *mockRequestService, health HealthReporter) *Server {
	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	return NewServer(cfg, engine, svc, health, nopLogger{})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestPerformAction_Success(t *testing.T) {
	engine := &mockEngine{}
	s := newTestServer(engine, &mockRequestService{}, nil)

	rec, out := doJSON(t, s, http.MethodPost, "/api/travel/R1/action", map[string]string{
		"action":         "approve",
		"approverRole":   "LineManager",
		"approverName":   "bob",
		"expectedStatus": "PENDING_LINE_MANAGER",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "APPROVED", out["status"])
	assert.Equal(t, "travel request R1 approved", out["message"])
	assert.NotNil(t, out["request"])

	assert.Equal(t, workflow.DomainTravel, engine.last.Domain)
	assert.Equal(t, "R1", engine.last.RequestID)
	assert.Equal(t, entity.Actor{Role: "LineManager", Name: "bob"}, engine.last.Actor)
	assert.Equal(t, workflow.StatusPendingLineManager, engine.last.ExpectedStatus)
}

func TestPerformAction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", workflow.NotFound("travel request R1 not found"), http.StatusNotFound},
		{"validation", workflow.Validation("comments", "comments are required when rejecting"), http.StatusBadRequest},
		{"invalid transition", workflow.InvalidTransition("cannot approve a request in status APPROVED"), http.StatusBadRequest},
		{"authorization", workflow.Unauthorized("role HOD may not approve"), http.StatusForbidden},
		{"conflict", workflow.Conflict("request R1 was modified concurrently"), http.StatusConflict},
		{"persistence", workflow.Persistence("store operation failed", errors.New("disk I/O error")), http.StatusInternalServerError},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{performFunc: func(ctx context.Context, in appwf.ActionRequest) (*entity.Request, error) {
				return nil, tt.err
			}}
			s := newTestServer(engine, &mockRequestService{}, nil)

			rec, out := doJSON(t, s, http.MethodPost, "/api/travel/R1/action", map[string]string{
				"action": "approve", "approverRole": "HOD", "approverName": "carol",
			})
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, false, out["success"])
			assert.NotEmpty(t, out["error"])
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", out["error"])
			}
		})
	}
}

func TestPerformAction_ValidationDetails(t *testing.T) {
	engine := &mockEngine{performFunc: func(ctx context.Context, in appwf.ActionRequest) (*entity.Request, error) {
		return nil, workflow.Validation("comments", "comments are required when rejecting")
	}}
	s := newTestServer(engine, &mockRequestService{}, nil)

	_, out := doJSON(t, s, http.MethodPost, "/api/claim/C1/action", map[string]string{
		"action": "reject", "approverRole": "HOD", "approverName": "carol",
	})
	assert.Equal(t, "comments are required when rejecting", out["error"])
	details, ok := out["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "comments", details["field"])
}

func TestPerformAction_BindingErrors(t *testing.T) {
	s := newTestServer(&mockEngine{}, &mockRequestService{}, nil)

	rec, out := doJSON(t, s, http.MethodPost, "/api/travel/R1/action", map[string]string{
		"action": "approve", "approverName": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "approverRole is required", out["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/travel/R1/action", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRequest(t *testing.T) {
	var got service.NewRequest
	svc := &mockRequestService{createFunc: func(ctx context.Context, in service.NewRequest) (*entity.Request, error) {
		got = in
		return &entity.Request{ID: "T-1", Domain: in.Domain, Status: workflow.StatusPendingLineManager}, nil
	}}
	s := newTestServer(&mockEngine{}, svc, nil)

	rec, out := doJSON(t, s, http.MethodPost, "/api/transport", map[string]interface{}{
		"requestorRef": "alice",
		"attributes":   map[string]interface{}{"tripType": "Local"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "PENDING_LINE_MANAGER", out["status"])
	assert.Equal(t, workflow.DomainTransport, got.Domain)
	assert.Equal(t, "Local", got.Attributes["tripType"])

	rec, _ = doJSON(t, s, http.MethodPost, "/api/transport", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadEndpoints(t *testing.T) {
	svc := &mockRequestService{getFunc: func(ctx context.Context, domain workflow.Domain, id string) (*entity.Request, error) {
		if id == "missing" {
			return nil, workflow.NotFound("%s request %s not found", domain, id)
		}
		return &entity.Request{ID: id, Domain: domain, Status: workflow.StatusPendingHOD}, nil
	}}
	engine := &mockEngine{}
	s := newTestServer(engine, svc, nil)

	rec, out := doJSON(t, s, http.MethodGet, "/api/visa/V1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING_HOD", out["data"].(map[string]interface{})["status"])

	rec, _ = doJSON(t, s, http.MethodGet, "/api/visa/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = doJSON(t, s, http.MethodGet, "/api/visa/V1/steps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["data"], 1)

	rec, out = doJSON(t, s, http.MethodGet, "/api/visa/V1/actions?role=HOD", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"approve", "reject"}, out["data"])

	rec, _ = doJSON(t, s, http.MethodGet, "/api/visa/V1/actions?role=Requestor&name=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.Actor{Role: "Requestor", Name: "alice"}, engine.lastActor)

	rec, out = doJSON(t, s, http.MethodPost, "/api/visa/V1/submit", map[string]string{"requestorRef": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "visa request V1 submitted", out["message"])

	rec, out = doJSON(t, s, http.MethodGet, "/routing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["data"], len(workflow.AllDomains()))
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(&mockEngine{}, &mockRequestService{}, mockHealth{})
	rec, out := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", out["data"].(map[string]interface{})["status"])

	s = newTestServer(&mockEngine{}, &mockRequestService{}, mockHealth{err: errors.New("database unreachable")})
	rec, out = doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", out["data"].(map[string]interface{})["status"])
}
