package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/garyjia/approval-workflow/internal/application/service"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine         appwf.Engine
	requestService service.RequestService
	health         HealthReporter
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine appwf.Engine,
	requestService service.RequestService,
	health HealthReporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:         engine,
		requestService: requestService,
		health:         health,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RequestResponse is returned by endpoints that change a request
type RequestResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Status  workflow.Status `json:"status"`
	Request *entity.Request `json:"request"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	Components map[string]interface{} `json:"components,omitempty"`
}

// ActionBody is the body of POST /api/:domain/:id/action
type ActionBody struct {
	Action         string `json:"action" binding:"required"`
	Comments       string `json:"comments"`
	ApproverRole   string `json:"approverRole" binding:"required"`
	ApproverName   string `json:"approverName" binding:"required"`
	ExpectedStatus string `json:"expectedStatus"`
}

// CreateBody is the body of POST /api/:domain
type CreateBody struct {
	ID           string                 `json:"id" binding:"omitempty,max=64"`
	RequestorRef string                 `json:"requestorRef" binding:"required"`
	Attributes   map[string]interface{} `json:"attributes"`
	Draft        bool                   `json:"draft"`
}

// SubmitBody is the body of POST /api/:domain/:id/submit
type SubmitBody struct {
	RequestorRef string `json:"requestorRef" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if h.health != nil {
		components, err := h.health.Health(c.Request.Context())
		response.Components = components
		if err != nil {
			response.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Data:    response,
				Error:   err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// ListRouting handles GET /routing
func (h *Handlers) ListRouting(c *gin.Context) {
	table := h.engine.Routing()
	defs := make([]*workflow.Definition, 0)
	for _, d := range table.Domains() {
		def, _ := table.Definition(d)
		defs = append(defs, def)
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    defs,
	})
}

// PerformAction handles POST /api/:domain/:id/action
func (h *Handlers) PerformAction(c *gin.Context) {
	var body ActionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.bindError(c, err)
		return
	}

	updated, err := h.engine.PerformAction(c.Request.Context(), appwf.ActionRequest{
		Domain:         workflow.Domain(c.Param("domain")),
		RequestID:      c.Param("id"),
		Action:         workflow.Action(body.Action),
		Actor:          entity.Actor{Role: body.ApproverRole, Name: body.ApproverName},
		Comments:       body.Comments,
		ExpectedStatus: workflow.Status(body.ExpectedStatus),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, RequestResponse{
		Success: true,
		Message: actionMessage(workflow.Action(body.Action), updated),
		Status:  updated.Status,
		Request: updated,
	})
}

// CreateRequest handles POST /api/:domain
func (h *Handlers) CreateRequest(c *gin.Context) {
	var body CreateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.bindError(c, err)
		return
	}

	created, err := h.requestService.Create(c.Request.Context(), service.NewRequest{
		Domain:       workflow.Domain(c.Param("domain")),
		ID:           body.ID,
		RequestorRef: body.RequestorRef,
		Attributes:   body.Attributes,
		Draft:        body.Draft,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RequestResponse{
		Success: true,
		Message: fmt.Sprintf("%s request %s created", created.Domain, created.ID),
		Status:  created.Status,
		Request: created,
	})
}

// SubmitRequest handles POST /api/:domain/:id/submit
func (h *Handlers) SubmitRequest(c *gin.Context) {
	var body SubmitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.bindError(c, err)
		return
	}

	updated, err := h.requestService.Submit(c.Request.Context(),
		workflow.Domain(c.Param("domain")), c.Param("id"), body.RequestorRef)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, RequestResponse{
		Success: true,
		Message: fmt.Sprintf("%s request %s submitted", updated.Domain, updated.ID),
		Status:  updated.Status,
		Request: updated,
	})
}

// GetRequest handles GET /api/:domain/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.requestService.Get(c.Request.Context(), workflow.Domain(c.Param("domain")), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    req,
	})
}

// ListSteps handles GET /api/:domain/:id/steps
func (h *Handlers) ListSteps(c *gin.Context) {
	steps, err := h.requestService.Steps(c.Request.Context(), workflow.Domain(c.Param("domain")), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    steps,
	})
}

// PermittedActions handles GET /api/:domain/:id/actions?role=&name=
func (h *Handlers) PermittedActions(c *gin.Context) {
	actor := entity.Actor{Role: c.Query("role"), Name: c.Query("name")}
	actions, err := h.engine.PermittedActions(c.Request.Context(),
		workflow.Domain(c.Param("domain")), c.Param("id"), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    actions,
	})
}

// writeError maps workflow error kinds to status codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := statusForError(err)

	response := Response{
		Success: false,
		Error:   err.Error(),
	}

	var wfErr *workflow.Error
	if errors.As(err, &wfErr) {
		response.Error = wfErr.Message
		response.Details = wfErr.Details
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
		// Store internals stay in the log
		response.Error = "internal error"
		response.Details = nil
	}

	c.JSON(status, response)
}

func statusForError(err error) int {
	switch workflow.KindOf(err) {
	case workflow.KindNotFoundError:
		return http.StatusNotFound
	case workflow.KindValidationError, workflow.KindInvalidTransitionError:
		return http.StatusBadRequest
	case workflow.KindAuthorizationError:
		return http.StatusForbidden
	case workflow.KindConflictError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// bindError reports malformed bodies and missing fields as validation failures
func (h *Handlers) bindError(c *gin.Context, err error) {
	response := Response{
		Success: false,
		Error:   "invalid request body",
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]interface{}, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		response.Details = map[string]interface{}{"fields": fields}
		if len(verrs) == 1 {
			response.Error = fmt.Sprintf("%s is %s", verrs[0].Field(), verrs[0].Tag())
		}
	}

	c.JSON(http.StatusBadRequest, response)
}

func actionMessage(action workflow.Action, req *entity.Request) string {
	switch action {
	case workflow.ActionApprove:
		return fmt.Sprintf("%s request %s approved", req.Domain, req.ID)
	case workflow.ActionReject:
		return fmt.Sprintf("%s request %s rejected", req.Domain, req.ID)
	case workflow.ActionCancel:
		return fmt.Sprintf("%s request %s cancelled", req.Domain, req.ID)
	default:
		return fmt.Sprintf("%s request %s updated", req.Domain, req.ID)
	}
}
