package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/campushub/services/events/internal/api/middleware"
	"example.com/campushub/services/events/internal/models"
	"example.com/campushub/services/events/internal/services"
	"example.com/campushub/services/events/internal/tracing"
	"example.com/campushub/services/events/internal/workflow"
)

// ApprovalHandler handles workflow action requests
type ApprovalHandler struct {
	approvalService *services.ApprovalService
	tracer          tracing.Tracer
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(approvalService *services.ApprovalService, tracer tracing.Tracer) *ApprovalHandler {
	return &ApprovalHandler{
		approvalService: approvalService,
		tracer:          tracer,
	}
}

// ReasonRequest carries the reason or response text for actions requiring it.
type ReasonRequest struct {
	Reason   string `json:"reason"`
	Response string `json:"response"`
}

func (r ReasonRequest) text() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Reason
}

// WorkflowStateResponse returns the updated workflow fields so callers can
// render progress without a second fetch.
type WorkflowStateResponse struct {
	EventID                  uuid.UUID             `json:"event_id"`
	Status                   workflow.Status       `json:"status"`
	FacultyApproval          workflow.ApprovalMark `json:"faculty_leader_approval"`
	DeanApproval             workflow.ApprovalMark `json:"dean_of_faculty_approval"`
	DeanshipApproval         workflow.ApprovalMark `json:"deanship_approval"`
	DeanRevisionMessage      *string               `json:"dean_revision_message,omitempty"`
	DeanRevisionResponse     *string               `json:"dean_revision_response,omitempty"`
	DeanshipRevisionMessage  *string               `json:"deanship_revision_message,omitempty"`
	DeanshipRevisionResponse *string               `json:"deanship_revision_response,omitempty"`
}

func workflowState(event *models.Event) WorkflowStateResponse {
	return WorkflowStateResponse{
		EventID:                  event.ID,
		Status:                   event.Status,
		FacultyApproval:          event.FacultyApproval,
		DeanApproval:             event.DeanApproval,
		DeanshipApproval:         event.DeanshipApproval,
		DeanRevisionMessage:      event.DeanRevisionMessage,
		DeanRevisionResponse:     event.DeanRevisionResponse,
		DeanshipRevisionMessage:  event.DeanshipRevisionMessage,
		DeanshipRevisionResponse: event.DeanshipRevisionResponse,
	}
}

// HandleApprove applies the approve action for the actor's stage.
func (h *ApprovalHandler) HandleApprove(c *gin.Context) {
	h.act(c, workflow.ActionApprove, false)
}

// HandleRequestRevision sends the event back to its creator with a reason.
func (h *ApprovalHandler) HandleRequestRevision(c *gin.Context) {
	h.act(c, workflow.ActionRequestRevision, true)
}

// HandleReject rejects the event with a reason.
func (h *ApprovalHandler) HandleReject(c *gin.Context) {
	h.act(c, workflow.ActionReject, true)
}

// HandleRespond resubmits the event with the creator's revision response.
func (h *ApprovalHandler) HandleRespond(c *gin.Context) {
	h.act(c, workflow.ActionRespond, true)
}

func (h *ApprovalHandler) act(c *gin.Context, action workflow.Action, requireText bool) {
	txn := h.tracer.StartTransaction("api-approval-action")
	defer h.tracer.EndTransaction(txn)
	h.tracer.AddAttribute(txn, "action", string(action))

	actorID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authenticated identity"})
		return
	}

	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, errors.Wrap(workflow.ErrNotFound, "invalid event id"))
		return
	}

	var text string
	if requireText {
		var req ReasonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, errors.Wrap(workflow.ErrValidation, "invalid request body"))
			h.tracer.RecordError(txn, err)
			return
		}
		text = strings.TrimSpace(req.text())
		// Reject blank text before any state is touched.
		if text == "" {
			writeError(c, errors.Wrapf(workflow.ErrValidation, "action %s", action))
			return
		}
	}

	event, err := h.approvalService.Act(c.Request.Context(), actorID, eventID, action, text)
	if err != nil {
		writeError(c, err)
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, workflowState(event))
}

// RegisterRoutes registers the handler's routes
func (h *ApprovalHandler) RegisterRoutes(router gin.IRouter) {
	events := router.Group("/events/:id")
	events.POST("/approve", h.HandleApprove)
	events.POST("/request-revision", h.HandleRequestRevision)
	events.POST("/reject", h.HandleReject)
	events.POST("/respond", h.HandleRespond)
}
