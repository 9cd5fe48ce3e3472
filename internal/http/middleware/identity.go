package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidebridge-backend/internal/http/response"
)

// HeaderUserID carries the caller-asserted identity. There is no
// authentication behind it; ownership checks treat it as an opaque key.
const HeaderUserID = "X-User-ID"

const userIDKey = "user_id"

// RequireUser rejects requests without an X-User-ID header and stashes the
// asserted identity on the gin context for handlers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			response.RespondError(c, http.StatusUnprocessableEntity, "missing_user_id",
				fmt.Errorf("header %s is required", HeaderUserID))
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID reads the asserted identity set by RequireUser. Empty outside the
// protected group.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
