package app

import (
	"fmt"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/imaging/analyzer"
	"github.com/yungbote/slidebridge-backend/internal/jobs/pipeline/cellseg"
	"github.com/yungbote/slidebridge-backend/internal/jobs/pipeline/tissuemask"
	"github.com/yungbote/slidebridge-backend/internal/jobs/runtime"
	"github.com/yungbote/slidebridge-backend/internal/platform/logger"
	"github.com/yungbote/slidebridge-backend/internal/scheduler"
	"github.com/yungbote/slidebridge-backend/internal/storage/results"
)

type Services struct {
	Store     *workflow.Store
	Results   *results.Store
	Analyzer  *analyzer.Provider
	Registry  *runtime.Registry
	Scheduler *scheduler.Scheduler
}

func wireServices(log *logger.Logger, cfg Config) (Services, error) {
	log.Info("Wiring services...")

	store := workflow.NewStore()

	res, err := results.NewStore(cfg.OutputDir)
	if err != nil {
		return Services{}, fmt.Errorf("init result store: %w", err)
	}

	provider := analyzer.NewProvider(analyzer.DetectorConfig{
		Threshold: cfg.AnalyzerThreshold,
		MinArea:   cfg.AnalyzerMinArea,
	})

	registry := runtime.NewRegistry()
	if err := registry.Register(cellseg.New(provider)); err != nil {
		return Services{}, fmt.Errorf("register cell segmentation pipeline: %w", err)
	}
	if err := registry.Register(tissuemask.New()); err != nil {
		return Services{}, fmt.Errorf("register tissue mask pipeline: %w", err)
	}

	sched := scheduler.New(store, registry, res, log, scheduler.Config{
		MaxWorkers:     cfg.MaxWorkers,
		MaxActiveUsers: cfg.MaxActiveUsers,
		Interval:       cfg.SchedulerInterval,
	})

	return Services{
		Store:     store,
		Results:   res,
		Analyzer:  provider,
		Registry:  registry,
		Scheduler: sched,
	}, nil
}
