// Package results persists job artifacts under one directory per job.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
)

// ErrPersistenceFailure marks artifact writes that did not reach disk.
var ErrPersistenceFailure = errors.New("persistence failure")

// ErrNoResult marks result reads for jobs that never produced a result.json.
var ErrNoResult = errors.New("no result")

const (
	ProgressFile = "progress.json"
	ResultFile   = "result.json"

	MaskFile          = "mask.png"
	OverlayFile       = "overlay.png"
	TissueMaskFile    = "tissue_mask.png"
	TissueOverlayFile = "tissue_overlay.png"
)

/*
Store is the filesystem sink for everything a job leaves behind: the progress
sidecar, the final result JSON, and the rendered PNG artifacts. Each job owns
outputs/<job_id>/, so concurrent jobs never contend on a path.

Every write lands in a temp file in the target directory and is renamed into
place, so the HTTP result endpoints never observe a partial file.
*/
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		root = "outputs"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output root %s: %v", ErrPersistenceFailure, root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the output directory the store writes under.
func (s *Store) Root() string { return s.root }

// JobDir returns the directory owned by one job, creating it on first use.
func (s *Store) JobDir(jobID string) (string, error) {
	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create job dir %s: %v", ErrPersistenceFailure, dir, err)
	}
	return dir, nil
}

// ArtifactPath resolves an artifact file inside the job's directory.
func (s *Store) ArtifactPath(jobID, name string) string {
	return filepath.Join(s.root, jobID, name)
}

// ArtifactURL is the URL path the artifact is served under by the static
// outputs mount.
func (s *Store) ArtifactURL(jobID, name string) string {
	return "/outputs/" + jobID + "/" + name
}

type progressSidecar struct {
	Status     workflow.Status `json:"status"`
	Progress   float64         `json:"progress"`
	TilesDone  int             `json:"tiles_done"`
	TilesTotal int             `json:"tiles_total"`
	Error      string          `json:"error,omitempty"`
}

// SaveProgress writes the small status sidecar for one job snapshot.
func (s *Store) SaveProgress(job workflow.Job) error {
	return s.writeJSON(job.ID, ProgressFile, progressSidecar{
		Status:     job.Status,
		Progress:   job.Progress,
		TilesDone:  job.TilesDone,
		TilesTotal: job.TilesTotal,
		Error:      job.Error,
	})
}

// SaveResult writes the final result payload for one job.
func (s *Store) SaveResult(job workflow.Job, payload any) error {
	return s.writeJSON(job.ID, ResultFile, payload)
}

// LoadResult reads a job's final result payload. Jobs that never wrote one
// yield ErrNoResult, including FAILED jobs that died before the save.
func (s *Store) LoadResult(jobID string) (json.RawMessage, error) {
	raw, err := os.ReadFile(s.ArtifactPath(jobID, ResultFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: job %s", ErrNoResult, jobID)
		}
		return nil, fmt.Errorf("%w: read result for %s: %v", ErrPersistenceFailure, jobID, err)
	}
	return json.RawMessage(raw), nil
}

// SavePNG encodes an image artifact into the job's directory.
func (s *Store) SavePNG(jobID, name string, img image.Image) error {
	dir, err := s.JobDir(jobID)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: temp file for %s: %v", ErrPersistenceFailure, name, err)
	}
	defer os.Remove(tmp.Name())
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: encode %s: %v", ErrPersistenceFailure, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrPersistenceFailure, name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrPersistenceFailure, name, err)
	}
	return nil
}

func (s *Store) writeJSON(jobID, name string, payload any) error {
	dir, err := s.JobDir(jobID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrPersistenceFailure, name, err)
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: temp file for %s: %v", ErrPersistenceFailure, name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrPersistenceFailure, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrPersistenceFailure, name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrPersistenceFailure, name, err)
	}
	return nil
}
