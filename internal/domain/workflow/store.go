package workflow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

/*
Store owns every process-wide registry: workflows, jobs, per-branch job
orderings, the set of RUNNING job ids, and the set of users with at least one
RUNNING job. One coarse mutex (the scheduler lock) guards all of it.

Callers only ever receive value snapshots; nothing outside this package holds
a pointer into the registries. The lock is held for map bookkeeping only,
never across raster reads, analyzer calls, or disk writes.

State is process-local and lost on restart. Persistence of artifacts is the
result store's job, not this one's.
*/
type Store struct {
	mu          sync.Mutex
	workflows   map[string]*Workflow
	jobs        map[string]*Job
	branches    map[BranchKey][]string
	branchOrder []BranchKey
	running     map[string]struct{}
	activeUsers map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		workflows:   make(map[string]*Workflow),
		jobs:        make(map[string]*Job),
		branches:    make(map[BranchKey][]string),
		running:     make(map[string]struct{}),
		activeUsers: make(map[string]struct{}),
	}
}

// CreateWorkflow validates the spec, mints ids, and inserts every job as
// PENDING in spec order. Branch keys are appended to the scan order exactly
// once, in arrival order; the admission pass iterates them in that order.
func (s *Store) CreateWorkflow(userID string, spec WorkflowSpec) (WorkflowView, error) {
	if err := spec.Validate(); err != nil {
		return WorkflowView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	wf := &Workflow{
		ID:        uuid.NewString(),
		Name:      spec.Name,
		UserID:    userID,
		CreatedAt: now,
	}
	for _, b := range spec.Branches {
		key := BranchKey{WorkflowID: wf.ID, BranchID: b.BranchID}
		for _, js := range b.Jobs {
			j := &Job{
				ID:         uuid.NewString(),
				WorkflowID: wf.ID,
				BranchID:   b.BranchID,
				UserID:     userID,
				Type:       js.JobType,
				Params:     cloneParams(js.Params),
				Status:     StatusPending,
				CreatedAt:  now,
			}
			if _, exists := s.jobs[j.ID]; exists {
				return WorkflowView{}, InvalidSpecError(fmt.Sprintf("job id collision: %s", j.ID))
			}
			s.jobs[j.ID] = j
			s.branches[key] = append(s.branches[key], j.ID)
			wf.JobIDs = append(wf.JobIDs, j.ID)
		}
		s.branchOrder = append(s.branchOrder, key)
	}
	s.workflows[wf.ID] = wf
	return s.viewWorkflowLocked(wf), nil
}

// GetWorkflow returns the workflow view iff it exists and belongs to userID.
func (s *Store) GetWorkflow(userID, wfID string) (WorkflowView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[wfID]
	if !ok || wf.UserID != userID {
		return WorkflowView{}, NotFoundError("Workflow not found")
	}
	return s.viewWorkflowLocked(wf), nil
}

// ListWorkflows returns the caller's workflows in creation order.
func (s *Store) ListWorkflows(userID string) []WorkflowView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WorkflowView, 0)
	for _, wf := range s.workflows {
		if wf.UserID == userID {
			out = append(out, s.viewWorkflowLocked(wf))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out
}

// GetJob returns a job snapshot iff it exists and belongs to userID. Missing
// and cross-user lookups are indistinguishable.
func (s *Store) GetJob(userID, jobID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.UserID != userID {
		return Job{}, NotFoundError("Job not found")
	}
	return cloneJob(j), nil
}

// ListWorkflowJobs returns snapshots of a workflow's jobs in spec order.
func (s *Store) ListWorkflowJobs(userID, wfID string) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[wfID]
	if !ok || wf.UserID != userID {
		return nil, NotFoundError("Workflow not found")
	}
	out := make([]Job, 0, len(wf.JobIDs))
	for _, id := range wf.JobIDs {
		if j, ok := s.jobs[id]; ok {
			out = append(out, cloneJob(j))
		}
	}
	return out, nil
}

// CancelPending transitions PENDING -> CANCELLED and zeroes the tile
// accounting. Any other current status is NotCancellable. CANCELLED is
// terminal; a cancelled predecessor does not block its branch.
func (s *Store) CancelPending(userID, jobID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.UserID != userID {
		return Job{}, NotFoundError("Job not found")
	}
	if j.Status != StatusPending {
		return Job{}, NotCancellableError("Only PENDING jobs can be cancelled")
	}
	j.Status = StatusCancelled
	j.Progress = 0
	j.TilesDone = 0
	j.TilesTotal = 0
	return cloneJob(j), nil
}

/*
AdmitRunnable performs one admission pass under the scheduler lock.

Branches are scanned in arrival order; each contributes at most its head: the
first job in branch order that is not yet terminal. A RUNNING head blocks the
branch, a PENDING head is a candidate, and CANCELLED/FAILED predecessors are
skipped over. A candidate is admitted when it fits under the worker cap and
its user either is already active or fits under the active-user cap. Admitted
jobs flip to RUNNING with started_at set and progress zeroed, and are returned
as snapshots for the caller to execute outside the lock.
*/
func (s *Store) AdmitRunnable(maxWorkers, maxActiveUsers int) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.running) >= maxWorkers {
		return nil
	}
	var admitted []Job
	for _, key := range s.branchOrder {
		if len(s.running) >= maxWorkers {
			break
		}
		id, ok := s.branchHeadLocked(key)
		if !ok {
			continue
		}
		j := s.jobs[id]
		if j.Status != StatusPending {
			continue
		}
		if _, active := s.activeUsers[j.UserID]; !active && len(s.activeUsers) >= maxActiveUsers {
			continue
		}
		now := time.Now().UTC()
		j.Status = StatusRunning
		j.StartedAt = &now
		j.Progress = 0
		s.running[j.ID] = struct{}{}
		s.activeUsers[j.UserID] = struct{}{}
		admitted = append(admitted, cloneJob(j))
	}
	return admitted
}

// branchHeadLocked finds the branch's admissible head, if any. The first
// non-terminal job decides: PENDING yields a candidate, RUNNING blocks the
// branch until it terminates.
func (s *Store) branchHeadLocked(key BranchKey) (string, bool) {
	for _, id := range s.branches[key] {
		j, ok := s.jobs[id]
		if !ok {
			continue
		}
		switch j.Status {
		case StatusPending:
			return id, true
		case StatusRunning:
			return "", false
		}
	}
	return "", false
}

// ReleaseJob removes the job from the running set and drops its user from
// the active set when no other running job shares that user. Safe to call on
// any termination path, any number of times.
func (s *Store) ReleaseJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		delete(s.running, jobID)
		return
	}
	delete(s.running, jobID)
	for id := range s.running {
		if other, ok := s.jobs[id]; ok && other.UserID == j.UserID {
			return
		}
	}
	delete(s.activeUsers, j.UserID)
}

// SetJobTiles fixes the job's tile total at the start of its tiled run.
// Only RUNNING jobs may be touched.
func (s *Store) SetJobTiles(jobID string, total int) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status != StatusRunning {
		return Job{}, false
	}
	if total < 0 {
		total = 0
	}
	j.TilesTotal = total
	j.TilesDone = 0
	j.Progress = 0
	return cloneJob(j), true
}

// JobTileDone advances the tile counter by one and recomputes progress.
// tiles_done never exceeds tiles_total and progress never decreases.
func (s *Store) JobTileDone(jobID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status != StatusRunning {
		return Job{}, false
	}
	if j.TilesDone < j.TilesTotal {
		j.TilesDone++
	}
	if j.TilesTotal > 0 {
		j.Progress = float64(j.TilesDone) / float64(j.TilesTotal)
	}
	return cloneJob(j), true
}

// MarkJobSucceeded transitions RUNNING -> SUCCEEDED with progress forced to
// 1.0 (covering untiled jobs whose tiles_total stays 0) and stamps
// finished_at.
func (s *Store) MarkJobSucceeded(jobID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status != StatusRunning {
		return Job{}, false
	}
	now := time.Now().UTC()
	j.Status = StatusSucceeded
	j.Progress = 1.0
	j.FinishedAt = &now
	return cloneJob(j), true
}

// MarkJobFailed transitions RUNNING -> FAILED, records the message, and
// stamps finished_at. Partial progress is kept as-is.
func (s *Store) MarkJobFailed(jobID, msg string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status != StatusRunning {
		return Job{}, false
	}
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.Error = msg
	j.FinishedAt = &now
	return cloneJob(j), true
}

// ActiveUsers reports the admission-relevant sets. Membership is sorted so
// the view is stable for callers and tests.
func (s *Store) ActiveUsers() ActiveUsersView {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.activeUsers))
	for u := range s.activeUsers {
		users = append(users, u)
	}
	sort.Strings(users)
	jobs := make([]string, 0, len(s.running))
	for id := range s.running {
		jobs = append(jobs, id)
	}
	sort.Strings(jobs)
	return ActiveUsersView{
		ActiveUsers:      users,
		RunningJobs:      jobs,
		CountActiveUsers: len(users),
		CountRunningJobs: len(jobs),
	}
}

// RunningCount reports |RunningSet|.
func (s *Store) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

func (s *Store) viewWorkflowLocked(wf *Workflow) WorkflowView {
	var sum float64
	var n int
	for _, id := range wf.JobIDs {
		if j, ok := s.jobs[id]; ok {
			sum += j.Progress
			n++
		}
	}
	var overall float64
	if n > 0 {
		overall = sum / float64(n)
	}
	return WorkflowView{
		ID:              wf.ID,
		Name:            wf.Name,
		UserID:          wf.UserID,
		CreatedAt:       wf.CreatedAt,
		JobIDs:          append([]string(nil), wf.JobIDs...),
		OverallProgress: overall,
	}
}

func cloneJob(j *Job) Job {
	out := *j
	out.Params = cloneParams(j.Params)
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
