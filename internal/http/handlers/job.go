package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/http/middleware"
	"github.com/yungbote/slidebridge-backend/internal/http/response"
	"github.com/yungbote/slidebridge-backend/internal/platform/apierr"
	"github.com/yungbote/slidebridge-backend/internal/storage/results"
)

type JobHandler struct {
	store   *workflow.Store
	results *results.Store
}

func NewJobHandler(store *workflow.Store, res *results.Store) *JobHandler {
	return &JobHandler{store: store, results: res}
}

// GET /jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.store.GetJob(middleware.UserID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, job.View())
}

// GET /jobs/workflow/:id
func (h *JobHandler) ListWorkflowJobs(c *gin.Context) {
	jobs, err := h.store.ListWorkflowJobs(middleware.UserID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	views := make([]workflow.JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, j.View())
	}
	response.RespondOK(c, views)
}

// POST /jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	job, err := h.store.CancelPending(middleware.UserID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, job.View())
}

/*
GET /jobs/:id/result

SUCCEEDED and FAILED jobs may carry a result; anything earlier is
NotFinished. A FAILED job that died before writing result.json yields 404,
same as a missing job, so the payload either exists in full or not at all.
*/
func (h *JobHandler) GetJobResult(c *gin.Context) {
	job, err := h.store.GetJob(middleware.UserID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	if job.Status != workflow.StatusSucceeded && job.Status != workflow.StatusFailed {
		response.RespondFault(c, workflow.NotFinishedError("Job has not finished"))
		return
	}
	data, err := h.results.LoadResult(job.ID)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job_id": job.ID, "data": data})
}

// GET /jobs/:id/result/mask
func (h *JobHandler) GetJobMask(c *gin.Context) {
	h.serveArtifact(c, results.MaskFile, results.TissueMaskFile)
}

// GET /jobs/:id/result/overlay
func (h *JobHandler) GetJobOverlay(c *gin.Context) {
	h.serveArtifact(c, results.OverlayFile, results.TissueOverlayFile)
}

func (h *JobHandler) serveArtifact(c *gin.Context, cellName, tissueName string) {
	job, err := h.store.GetJob(middleware.UserID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	name := cellName
	if job.Type == workflow.JobTypeTissueMask {
		name = tissueName
	}
	path := h.results.ArtifactPath(job.ID, name)
	if _, err := os.Stat(path); err != nil {
		response.RespondFault(c, apierr.New(http.StatusNotFound, "not_found",
			workflow.NotFoundError("Artifact not found")))
		return
	}
	c.Header("Content-Type", "image/png")
	c.File(path)
}
