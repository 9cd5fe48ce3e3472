// Package scheduler admits PENDING jobs into the worker pool and owns each
// admitted job's lifecycle until terminal release.
package scheduler

import (
	"context"
	"time"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/jobs/runtime"
	"github.com/yungbote/slidebridge-backend/internal/platform/logger"
	"github.com/yungbote/slidebridge-backend/internal/storage/results"
)

const (
	DefaultMaxWorkers     = 4
	DefaultMaxActiveUsers = 3
	DefaultInterval       = 500 * time.Millisecond
)

type Config struct {
	MaxWorkers     int
	MaxActiveUsers int
	Interval       time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxWorkers < 1 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.MaxActiveUsers < 1 {
		c.MaxActiveUsers = DefaultMaxActiveUsers
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

/*
Scheduler runs one cooperative admission loop. Every pass asks the store for
admissible branch heads under the two caps; each admitted job gets its own
lifecycle goroutine so the loop itself never blocks on raster reads or
analyzer calls. Terminal jobs wake the loop early instead of waiting out the
tick, which keeps branch successors prompt without shrinking the interval.
*/
type Scheduler struct {
	store    *workflow.Store
	registry *runtime.Registry
	results  *results.Store
	log      *logger.Logger
	cfg      Config
	wake     chan struct{}
}

func New(store *workflow.Store, registry *runtime.Registry, res *results.Store, baseLog *logger.Logger, cfg Config) *Scheduler {
	return &Scheduler{
		store:    store,
		registry: registry,
		results:  res,
		log:      baseLog.With("component", "Scheduler"),
		cfg:      cfg.withDefaults(),
		wake:     make(chan struct{}, 1),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Starting admission scheduler",
		"max_workers", s.cfg.MaxWorkers,
		"max_active_users", s.cfg.MaxActiveUsers,
		"interval", s.cfg.Interval.String(),
	)
	go s.runLoop(ctx)
}

// Wake nudges the loop to run a pass before the next tick. Non-blocking; a
// pending wakeup absorbs further ones.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler loop stopped")
			return
		case <-ticker.C:
			s.ScheduleOnce(ctx)
		case <-s.wake:
			s.ScheduleOnce(ctx)
		}
	}
}

// ScheduleOnce performs a single admission pass and spawns a lifecycle
// controller for every admitted job. Returns how many jobs were admitted.
func (s *Scheduler) ScheduleOnce(ctx context.Context) int {
	admitted := s.store.AdmitRunnable(s.cfg.MaxWorkers, s.cfg.MaxActiveUsers)
	for _, job := range admitted {
		s.log.Info("Job admitted",
			"job_id", job.ID,
			"job_type", string(job.Type),
			"workflow_id", job.WorkflowID,
			"branch_id", job.BranchID,
			"user_id", job.UserID,
		)
		go s.runJob(ctx, job)
	}
	return len(admitted)
}
