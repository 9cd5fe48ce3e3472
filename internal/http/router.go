package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/slidebridge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/slidebridge-backend/internal/http/middleware"
	"github.com/yungbote/slidebridge-backend/internal/platform/logger"
)

type RouterConfig struct {
	ServiceName  string
	AllowOrigins []string
	OutputDir    string
	Log          *logger.Logger

	WorkflowHandler *httpH.WorkflowHandler
	JobHandler      *httpH.JobHandler
	UserHandler     *httpH.UserHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Rendered artifacts, addressed by the URL paths inside result payloads.
	if cfg.OutputDir != "" {
		r.Static("/outputs", cfg.OutputDir)
	}

	// The active-users view is the one identity-free API route.
	if cfg.UserHandler != nil {
		r.GET("/users/active", cfg.UserHandler.GetActiveUsers)
	}

	protected := r.Group("/")
	{
		protected.Use(httpMW.RequireUser())

		if cfg.WorkflowHandler != nil {
			protected.POST("/workflows", cfg.WorkflowHandler.CreateWorkflow)
			protected.GET("/workflows", cfg.WorkflowHandler.ListWorkflows)
			protected.GET("/workflows/:id", cfg.WorkflowHandler.GetWorkflow)
		}

		if cfg.JobHandler != nil {
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
			protected.GET("/jobs/workflow/:id", cfg.JobHandler.ListWorkflowJobs)
			protected.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
			protected.GET("/jobs/:id/result", cfg.JobHandler.GetJobResult)
			protected.GET("/jobs/:id/result/mask", cfg.JobHandler.GetJobMask)
			protected.GET("/jobs/:id/result/overlay", cfg.JobHandler.GetJobOverlay)
		}

		if cfg.UserHandler != nil {
			protected.GET("/users/me", cfg.UserHandler.GetMe)
		}
	}

	return r
}
