// Package tissuemask runs the single-pass tissue segmentation pipeline.
package tissuemask

import (
	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/imaging/pyramid"
	"github.com/yungbote/slidebridge-backend/internal/imaging/render"
	"github.com/yungbote/slidebridge-backend/internal/jobs/runtime"
	"github.com/yungbote/slidebridge-backend/internal/storage/results"
)

// FallbackThreshold is used when Otsu cannot split the histogram.
const FallbackThreshold = 0.85

// Result is the payload persisted as result.json.
type Result struct {
	Type             string `json:"type"`
	WSIPath          string `json:"wsi_path"`
	TissueMaskPNG    string `json:"tissue_mask_png"`
	TissueOverlayPNG string `json:"tissue_overlay_png"`
}

type Pipeline struct{}

func New() *Pipeline { return &Pipeline{} }

func (p *Pipeline) Type() workflow.JobType { return workflow.JobTypeTissueMask }

/*
Run reads the coarsest pyramid level whole, thresholds its luminance with
Otsu's method (falling back to a fixed cut on degenerate histograms), and
persists the binary tissue mask plus the tinted overlay. There is no tile
loop, so tiles_total stays 0 and the lifecycle controller pins progress to
1.0 on success.
*/
func (p *Pipeline) Run(rc *runtime.Context) error {
	params, err := workflow.DecodeTissueMaskParams(rc.Job().Params)
	if err != nil {
		return err
	}

	img, err := pyramid.Open(params.WSIPath)
	if err != nil {
		return err
	}
	defer img.Close()

	coarse := img.LevelCount() - 1
	lw, lh, err := img.LevelDimensions(coarse)
	if err != nil {
		return err
	}
	base, err := img.ReadRegion(coarse, 0, 0, lw, lh)
	if err != nil {
		return err
	}

	gray := render.Grayscale(base)
	t, ok := render.OtsuThreshold(gray)
	if !ok {
		t = FallbackThreshold
	}
	mask := render.TissueMask(gray, lw, lh, t)
	overlay := render.Overlay(base, mask)

	jobID := rc.Job().ID
	if err := rc.Results().SavePNG(jobID, results.TissueMaskFile, mask); err != nil {
		return err
	}
	if err := rc.Results().SavePNG(jobID, results.TissueOverlayFile, overlay); err != nil {
		return err
	}

	return rc.SaveResult(Result{
		Type:             "tissue_mask",
		WSIPath:          params.WSIPath,
		TissueMaskPNG:    rc.Results().ArtifactURL(jobID, results.TissueMaskFile),
		TissueOverlayPNG: rc.Results().ArtifactURL(jobID, results.TissueOverlayFile),
	})
}
