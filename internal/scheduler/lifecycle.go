package scheduler

import (
	"context"
	"fmt"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/jobs/runtime"
)

/*
runJob is the lifecycle controller for one admitted job. It dispatches the
registered pipeline, collapses every failure mode (returned error, panic,
missing pipeline) into FAILED with a human-readable message, and on all paths
stamps the terminal state, persists the final sidecar, and releases the
admission slots before waking the scheduler.

Errors never propagate out of here; a job cannot take the loop down with it.
*/
func (s *Scheduler) runJob(ctx context.Context, job workflow.Job) {
	defer func() {
		s.store.ReleaseJob(job.ID)
		s.Wake()
	}()

	rc := runtime.NewContext(ctx, s.log, job, s.store, s.results)
	runErr := s.dispatch(rc, job)

	if runErr != nil {
		final, ok := s.store.MarkJobFailed(job.ID, runErr.Error())
		if !ok {
			s.log.Warn("Terminal transition refused", "job_id", job.ID)
			return
		}
		s.log.Warn("Job failed", "job_id", job.ID, "error", runErr.Error())
		if err := s.results.SaveProgress(final); err != nil {
			s.log.Warn("final sidecar write failed", "job_id", job.ID, "error", err)
		}
		return
	}

	final, ok := s.store.MarkJobSucceeded(job.ID)
	if !ok {
		s.log.Warn("Terminal transition refused", "job_id", job.ID)
		return
	}
	s.log.Info("Job succeeded", "job_id", job.ID, "tiles_total", final.TilesTotal)
	if err := s.results.SaveProgress(final); err != nil {
		s.log.Warn("final sidecar write failed", "job_id", job.ID, "error", err)
	}
}

// dispatch runs the pipeline for the job's type behind a panic barrier.
func (s *Scheduler) dispatch(rc *runtime.Context, job workflow.Job) (runErr error) {
	p, ok := s.registry.Get(job.Type)
	if !ok {
		return &missingPipelineError{JobType: job.Type}
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Pipeline panic",
				"job_id", job.ID,
				"job_type", string(job.Type),
				"panic", r,
			)
			runErr = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return p.Run(rc)
}

type missingPipelineError struct{ JobType workflow.JobType }

func (e *missingPipelineError) Error() string {
	return "no pipeline registered for job_type=" + string(e.JobType)
}
