package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/platform/apierr"
	"github.com/yungbote/slidebridge-backend/internal/storage/results"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondFault maps domain fault kinds onto transport codes. Anything the
// switch does not recognize is an internal error; runtime faults inside jobs
// never reach this path, they land in the job's error field instead.
func RespondFault(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		RespondError(c, ae.Status, ae.Code, ae)
		return
	}
	switch {
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, results.ErrNoResult):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, workflow.ErrInvalidSpec):
		RespondError(c, http.StatusUnprocessableEntity, "invalid_spec", err)
	case errors.Is(err, workflow.ErrNotCancellable):
		RespondError(c, http.StatusBadRequest, "not_cancellable", err)
	case errors.Is(err, workflow.ErrNotFinished):
		RespondError(c, http.StatusBadRequest, "not_finished", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
