package workflow

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further status transition is legal.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

type JobType string

const (
	JobTypeCellSegmentation JobType = "CELL_SEGMENTATION"
	JobTypeTissueMask       JobType = "TISSUE_MASK"
)

func (t JobType) Valid() bool {
	return t == JobTypeCellSegmentation || t == JobTypeTissueMask
}

// BranchKey addresses one serial ordering inside a workflow.
type BranchKey struct {
	WorkflowID string
	BranchID   string
}

type Workflow struct {
	ID        string
	Name      string
	UserID    string
	CreatedAt time.Time
	JobIDs    []string
}

type Job struct {
	ID         string
	WorkflowID string
	BranchID   string
	UserID     string
	Type       JobType
	Params     map[string]any
	Status     Status
	Progress   float64
	TilesDone  int
	TilesTotal int
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

type WorkflowView struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	UserID          string    `json:"user_id"`
	CreatedAt       time.Time `json:"created_at"`
	JobIDs          []string  `json:"job_ids"`
	OverallProgress float64   `json:"overall_progress"`
}

type JobView struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	BranchID   string         `json:"branch_id"`
	UserID     string         `json:"user_id"`
	JobType    JobType        `json:"job_type"`
	Params     map[string]any `json:"params"`
	Status     Status         `json:"status"`
	Progress   float64        `json:"progress"`
	TilesDone  int            `json:"tiles_done"`
	TilesTotal int            `json:"tiles_total"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

type ActiveUsersView struct {
	ActiveUsers      []string `json:"active_users"`
	RunningJobs      []string `json:"running_jobs"`
	CountActiveUsers int      `json:"count_active_users"`
	CountRunningJobs int      `json:"count_running_jobs"`
}

// View projects a job snapshot into its API shape.
func (j Job) View() JobView {
	return JobView{
		ID:         j.ID,
		WorkflowID: j.WorkflowID,
		BranchID:   j.BranchID,
		UserID:     j.UserID,
		JobType:    j.Type,
		Params:     j.Params,
		Status:     j.Status,
		Progress:   j.Progress,
		TilesDone:  j.TilesDone,
		TilesTotal: j.TilesTotal,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}
