// Package cellseg runs the tiled cell-segmentation pipeline over one slide.
package cellseg

import (
	"fmt"
	"sort"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/imaging/analyzer"
	"github.com/yungbote/slidebridge-backend/internal/imaging/pyramid"
	"github.com/yungbote/slidebridge-backend/internal/imaging/render"
	"github.com/yungbote/slidebridge-backend/internal/imaging/tiles"
	"github.com/yungbote/slidebridge-backend/internal/jobs/runtime"
	"github.com/yungbote/slidebridge-backend/internal/storage/results"
)

// Cell is one detection in the final result payload. The bbox is global
// full-resolution [x_min, y_min, x_max, y_max], half-open on the high side.
// Detections from overlapping tiles are not deduplicated here; downstream
// NMS keyed on tile_index owns that.
type Cell struct {
	BBox       [4]int `json:"bbox"`
	AreaPixels int    `json:"area_pixels"`
	TileIndex  int    `json:"tile_index"`
	TileOrigin [2]int `json:"tile_origin"`
}

// Result is the payload persisted as result.json.
type Result struct {
	Type           string  `json:"type"`
	WSIPath        string  `json:"wsi_path"`
	PixelSizeUM    float64 `json:"pixel_size_um"`
	TilesProcessed int     `json:"tiles_processed"`
	NumCells       int     `json:"num_cells"`
	Cells          []Cell  `json:"cells"`
	MaskPNG        string  `json:"mask_png"`
	OverlayPNG     string  `json:"overlay_png"`
}

type Pipeline struct {
	provider *analyzer.Provider
}

func New(provider *analyzer.Provider) *Pipeline {
	return &Pipeline{provider: provider}
}

func (p *Pipeline) Type() workflow.JobType { return workflow.JobTypeCellSegmentation }

/*
Run walks the slide tile by tile: plan the grid, analyze each tile with the
shared analyzer, translate tile-local detections into global coordinates, and
advance the tile counter after every tile. When the loop finishes it renders
the low-res mask and overlay and persists the aggregated result.

The analyzer is acquired once per run; the first run in the process pays the
construction cost.
*/
func (p *Pipeline) Run(rc *runtime.Context) error {
	params, err := workflow.DecodeCellSegParams(rc.Job().Params)
	if err != nil {
		return err
	}

	img, err := pyramid.Open(params.WSIPath)
	if err != nil {
		return err
	}
	defer img.Close()

	fullW, fullH := img.Dimensions()
	plan, err := tiles.Plan(fullW, fullH, params.TileSize, params.Overlap)
	if err != nil {
		return err
	}
	if params.MaxTiles > 0 && len(plan) > params.MaxTiles {
		plan = plan[:params.MaxTiles]
	}
	rc.SetTilesTotal(len(plan))

	an, err := p.provider.Acquire()
	if err != nil {
		return fmt.Errorf("%w: %v", analyzer.ErrAnalyzerFailure, err)
	}

	var cells []Cell
	for idx, t := range plan {
		region, err := img.ReadRegion(0, t.X, t.Y, t.W, t.H)
		if err != nil {
			return fmt.Errorf("read tile %d at (%d,%d): %w", idx, t.X, t.Y, err)
		}
		labelImg, err := an.Analyze(region, params.PixelSizeUM)
		if err != nil {
			return fmt.Errorf("%w: tile %d: %v", analyzer.ErrAnalyzerFailure, idx, err)
		}
		labels, err := labelImg.Labels()
		if err != nil {
			return fmt.Errorf("%w: tile %d: %v", analyzer.ErrAnalyzerFailure, idx, err)
		}
		cells = append(cells, collectCells(labels, idx, t)...)
		rc.TileDone()
	}

	maskURL, overlayURL, err := renderArtifacts(rc, img, fullW, fullH, cells)
	if err != nil {
		return err
	}

	result := Result{
		Type:           "cell_segmentation",
		WSIPath:        params.WSIPath,
		PixelSizeUM:    params.PixelSizeUM,
		TilesProcessed: len(plan),
		NumCells:       len(cells),
		Cells:          cells,
		MaskPNG:        maskURL,
		OverlayPNG:     overlayURL,
	}
	if result.Cells == nil {
		result.Cells = []Cell{}
	}
	return rc.SaveResult(result)
}

// collectCells reduces one tile's label map to per-instance bounding boxes in
// global coordinates. maxR/maxC are exclusive, keeping the half-open
// convention. Instance ids only need to be distinct within the tile.
func collectCells(labels *analyzer.LabelMap, tileIndex int, t tiles.Tile) []Cell {
	type extent struct {
		minR, minC, maxR, maxC int
		area                   int
	}
	byLabel := map[int]*extent{}
	for y := 0; y < labels.H; y++ {
		for x := 0; x < labels.W; x++ {
			l := labels.At(x, y)
			if l <= 0 {
				continue
			}
			e, ok := byLabel[l]
			if !ok {
				e = &extent{minR: y, minC: x, maxR: y + 1, maxC: x + 1}
				byLabel[l] = e
			}
			if y < e.minR {
				e.minR = y
			}
			if y+1 > e.maxR {
				e.maxR = y + 1
			}
			if x < e.minC {
				e.minC = x
			}
			if x+1 > e.maxC {
				e.maxC = x + 1
			}
			e.area++
		}
	}

	order := make([]int, 0, len(byLabel))
	for l := range byLabel {
		order = append(order, l)
	}
	sort.Ints(order)

	out := make([]Cell, 0, len(order))
	for _, l := range order {
		e := byLabel[l]
		out = append(out, Cell{
			BBox:       [4]int{t.X + e.minC, t.Y + e.minR, t.X + e.maxC, t.Y + e.maxR},
			AreaPixels: e.area,
			TileIndex:  tileIndex,
			TileOrigin: [2]int{t.X, t.Y},
		})
	}
	return out
}

func renderArtifacts(rc *runtime.Context, img pyramid.Image, fullW, fullH int, cells []Cell) (string, string, error) {
	coarse := img.LevelCount() - 1
	lw, lh, err := img.LevelDimensions(coarse)
	if err != nil {
		return "", "", err
	}
	base, err := img.ReadRegion(coarse, 0, 0, lw, lh)
	if err != nil {
		return "", "", err
	}

	boxes := make([]render.Box, 0, len(cells))
	for _, c := range cells {
		boxes = append(boxes, render.Box{XMin: c.BBox[0], YMin: c.BBox[1], XMax: c.BBox[2], YMax: c.BBox[3]})
	}
	sx := float64(lw) / float64(fullW)
	sy := float64(lh) / float64(fullH)
	mask := render.BoxMask(lw, lh, boxes, sx, sy)
	overlay := render.Overlay(base, mask)

	jobID := rc.Job().ID
	if err := rc.Results().SavePNG(jobID, results.MaskFile, mask); err != nil {
		return "", "", err
	}
	if err := rc.Results().SavePNG(jobID, results.OverlayFile, overlay); err != nil {
		return "", "", err
	}
	return rc.Results().ArtifactURL(jobID, results.MaskFile),
		rc.Results().ArtifactURL(jobID, results.OverlayFile), nil
}
