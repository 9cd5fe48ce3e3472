package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/http/middleware"
	"github.com/yungbote/slidebridge-backend/internal/http/response"
)

type WorkflowHandler struct {
	store *workflow.Store
}

func NewWorkflowHandler(store *workflow.Store) *WorkflowHandler {
	return &WorkflowHandler{store: store}
}

// POST /workflows
func (h *WorkflowHandler) CreateWorkflow(c *gin.Context) {
	var spec workflow.WorkflowSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		response.RespondError(c, http.StatusUnprocessableEntity, "invalid_spec", err)
		return
	}
	view, err := h.store.CreateWorkflow(middleware.UserID(c), spec)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /workflows
func (h *WorkflowHandler) ListWorkflows(c *gin.Context) {
	response.RespondOK(c, h.store.ListWorkflows(middleware.UserID(c)))
}

// GET /workflows/:id
func (h *WorkflowHandler) GetWorkflow(c *gin.Context) {
	wfID := strings.TrimSpace(c.Param("id"))
	view, err := h.store.GetWorkflow(middleware.UserID(c), wfID)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, view)
}
