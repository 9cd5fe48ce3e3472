package runtime

import (
	"context"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/platform/logger"
	"github.com/yungbote/slidebridge-backend/internal/storage/results"
)

/*
The execution contract between the scheduler and all pipeline code.
runtime.Context is a capability-scoped execution handle for a single job run.
It wraps:
	- the admitted job snapshot,
	- the only sanctioned ways to report tile progress,
	- the result sink for artifacts and the final payload.
*Pipelines never touch the state store directly. They must go through this
object.*
*/
type Context struct {
	Ctx context.Context
	Log *logger.Logger

	job     workflow.Job
	store   *workflow.Store
	results *results.Store
}

// NewContext constructs a runtime.Context for an admitted job execution. The
// job value is the snapshot taken at admission; progress mutators refresh it.
func NewContext(ctx context.Context, log *logger.Logger, job workflow.Job, store *workflow.Store, res *results.Store) *Context {
	return &Context{
		Ctx:     ctx,
		Log:     log.With("job_id", job.ID, "job_type", string(job.Type)),
		job:     job,
		store:   store,
		results: res,
	}
}

// Job returns the most recent snapshot of the running job.
func (c *Context) Job() workflow.Job { return c.job }

// Results exposes the job's artifact sink.
func (c *Context) Results() *results.Store { return c.results }

/*
SetTilesTotal fixes the tile count before the tile loop starts and resets the
progress accounting. The updated sidecar is persisted immediately so pollers
see tiles_total as soon as the plan exists. Sidecar write failures are logged
and swallowed; progress is advisory, the result save is not.
*/
func (c *Context) SetTilesTotal(total int) {
	snap, ok := c.store.SetJobTiles(c.job.ID, total)
	if !ok {
		return
	}
	c.job = snap
	if err := c.results.SaveProgress(snap); err != nil {
		c.Log.Warn("progress sidecar write failed", "error", err)
	}
}

// TileDone advances the tile counter by one and persists the sidecar. This is
// the only progress mutation during a run.
func (c *Context) TileDone() {
	snap, ok := c.store.JobTileDone(c.job.ID)
	if !ok {
		return
	}
	c.job = snap
	if err := c.results.SaveProgress(snap); err != nil {
		c.Log.Warn("progress sidecar write failed", "error", err)
	}
}

// SaveResult hands the aggregated result payload to the result store.
func (c *Context) SaveResult(payload any) error {
	return c.results.SaveResult(c.job, payload)
}
