package results

import (
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "outputs"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestSaveProgressRoundTrip(t *testing.T) {
	s := newTestStore(t)
	job := workflow.Job{
		ID:         "job-1",
		Status:     workflow.StatusRunning,
		Progress:   0.5,
		TilesDone:  2,
		TilesTotal: 4,
	}
	if err := s.SaveProgress(job); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}

	raw, err := os.ReadFile(s.ArtifactPath("job-1", ProgressFile))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var got progressSidecar
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal sidecar: %v", err)
	}
	if got.Status != workflow.StatusRunning || got.Progress != 0.5 || got.TilesDone != 2 || got.TilesTotal != 4 {
		t.Fatalf("sidecar mismatch: %+v", got)
	}
	if got.Error != "" {
		t.Fatalf("sidecar must omit empty error, got %q", got.Error)
	}
}

func TestSaveResultRoundTrip(t *testing.T) {
	s := newTestStore(t)
	job := workflow.Job{ID: "job-2", Status: workflow.StatusSucceeded}
	payload := map[string]any{"type": "tissue_mask", "wsi_path": "slides/a.png"}
	if err := s.SaveResult(job, payload); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	raw, err := s.LoadResult("job-2")
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if got["type"] != "tissue_mask" || got["wsi_path"] != "slides/a.png" {
		t.Fatalf("result mismatch: %+v", got)
	}
}

func TestLoadResultMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.LoadResult("never-ran"); !errors.Is(err, ErrNoResult) {
		t.Fatalf("want ErrNoResult got %v", err)
	}
}

func TestSavePNGWritesArtifact(t *testing.T) {
	s := newTestStore(t)
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	if err := s.SavePNG("job-3", MaskFile, img); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	if _, err := os.Stat(s.ArtifactPath("job-3", MaskFile)); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if got := s.ArtifactURL("job-3", MaskFile); got != "/outputs/job-3/mask.png" {
		t.Fatalf("artifact URL: got %q", got)
	}
}

// Writes go through a temp file and a rename; nothing transient may be left
// behind where the static mount could serve it.
func TestWritesLeaveNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	job := workflow.Job{ID: "job-4", Status: workflow.StatusRunning}
	if err := s.SaveProgress(job); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	if err := s.SaveResult(job, map[string]any{"k": "v"}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := s.SavePNG("job-4", OverlayFile, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(s.Root(), "job-4"))
	if err != nil {
		t.Fatalf("read job dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 3 {
		t.Fatalf("artifact count: want=3 got=%d", len(entries))
	}
}

func TestSaveResultUnmarshalablePayload(t *testing.T) {
	s := newTestStore(t)
	job := workflow.Job{ID: "job-5"}
	if err := s.SaveResult(job, map[string]any{"bad": func() {}}); !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("want ErrPersistenceFailure got %v", err)
	}
	if _, err := s.LoadResult("job-5"); !errors.Is(err, ErrNoResult) {
		t.Fatalf("failed save must not leave a result, got %v", err)
	}
}
