package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/http/middleware"
	"github.com/yungbote/slidebridge-backend/internal/http/response"
)

type UserHandler struct {
	store *workflow.Store
}

func NewUserHandler(store *workflow.Store) *UserHandler {
	return &UserHandler{store: store}
}

// GET /users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	response.RespondOK(c, gin.H{"user_id": middleware.UserID(c)})
}

// GET /users/active
func (h *UserHandler) GetActiveUsers(c *gin.Context) {
	response.RespondOK(c, h.store.ActiveUsers())
}
