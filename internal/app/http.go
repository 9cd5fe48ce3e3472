package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidebridge-backend/internal/http"
	httpH "github.com/yungbote/slidebridge-backend/internal/http/handlers"
	"github.com/yungbote/slidebridge-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Workflow *httpH.WorkflowHandler
	Job      *httpH.JobHandler
	User     *httpH.UserHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(),
		Workflow: httpH.NewWorkflowHandler(services.Store),
		Job:      httpH.NewJobHandler(services.Store, services.Results),
		User:     httpH.NewUserHandler(services.Store),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, services Services) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		ServiceName:     ServiceName,
		AllowOrigins:    cfg.CORSAllowOrigins,
		OutputDir:       services.Results.Root(),
		Log:             log,
		WorkflowHandler: handlers.Workflow,
		JobHandler:      handlers.Job,
		UserHandler:     handlers.User,
		HealthHandler:   handlers.Health,
	})
}
