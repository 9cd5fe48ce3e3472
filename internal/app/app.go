package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidebridge-backend/internal/observability"
	"github.com/yungbote/slidebridge-backend/internal/platform/logger"
)

// ServiceName identifies this process in traces and logs.
const ServiceName = "slidebridge"

type App struct {
	Log      *logger.Logger
	Router   *gin.Engine
	Cfg      Config
	Services Services

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: ServiceName,
		Environment: os.Getenv("DEPLOY_ENV"),
		Version:     os.Getenv("SERVICE_VERSION"),
	})

	services, err := wireServices(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlers := wireHandlers(log, services)
	router := wireRouter(log, cfg, handlers, services)

	return &App{
		Log:          log,
		Router:       router,
		Cfg:          cfg,
		Services:     services,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Services.Scheduler.Start(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
