package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// Recognized job parameter defaults. Unknown keys are carried through
// untouched; jobs ignore them.
const (
	DefaultTileSize    = 512
	DefaultOverlap     = 32
	DefaultPixelSizeUM = 0.5
)

type WorkflowSpec struct {
	Name     string       `json:"name" yaml:"name"`
	Branches []BranchSpec `json:"branches" yaml:"branches"`
}

type BranchSpec struct {
	BranchID string    `json:"branch_id" yaml:"branch_id"`
	Jobs     []JobSpec `json:"jobs" yaml:"jobs"`
}

type JobSpec struct {
	JobType JobType        `json:"job_type" yaml:"job_type"`
	Params  map[string]any `json:"params" yaml:"params"`
}

// Validate checks the shape constraints enforced at admission time. Job
// parameter values are not validated here; bad params surface as job
// failures at run time.
func (s WorkflowSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return InvalidSpecError("workflow name is required")
	}
	seen := make(map[string]struct{}, len(s.Branches))
	for i, b := range s.Branches {
		id := strings.TrimSpace(b.BranchID)
		if id == "" {
			return InvalidSpecError(fmt.Sprintf("branch %d: branch_id is required", i))
		}
		if _, dup := seen[id]; dup {
			return InvalidSpecError(fmt.Sprintf("branch_id %q appears more than once", id))
		}
		seen[id] = struct{}{}
		if len(b.Jobs) == 0 {
			return InvalidSpecError(fmt.Sprintf("branch %q contains no jobs", id))
		}
		for k, j := range b.Jobs {
			if !j.JobType.Valid() {
				return InvalidSpecError(fmt.Sprintf("branch %q job %d: unknown job_type %q", id, k, string(j.JobType)))
			}
		}
	}
	return nil
}

type CellSegParams struct {
	WSIPath     string
	TileSize    int
	Overlap     int
	PixelSizeUM float64
	MaxTiles    int // 0 means no cap
}

func DecodeCellSegParams(params map[string]any) (CellSegParams, error) {
	p := CellSegParams{
		WSIPath:     strParam(params, "wsi_path", ""),
		TileSize:    intParam(params, "tile_size", DefaultTileSize),
		Overlap:     intParam(params, "overlap", DefaultOverlap),
		PixelSizeUM: floatParam(params, "pixel_size_um", DefaultPixelSizeUM),
		MaxTiles:    intParam(params, "max_tiles", 0),
	}
	if p.WSIPath == "" {
		return p, fmt.Errorf("wsi_path is required")
	}
	return p, nil
}

type TissueMaskParams struct {
	WSIPath string
}

func DecodeTissueMaskParams(params map[string]any) (TissueMaskParams, error) {
	p := TissueMaskParams{WSIPath: strParam(params, "wsi_path", "")}
	if p.WSIPath == "" {
		return p, fmt.Errorf("wsi_path is required")
	}
	return p, nil
}

// Param values arrive as JSON (float64) or YAML (int) scalars depending on
// the submission path, so numeric reads coerce both.

func strParam(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return strings.TrimSpace(s)
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return def
}
