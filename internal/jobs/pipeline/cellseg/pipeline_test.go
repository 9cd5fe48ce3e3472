package cellseg

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
	"github.com/yungbote/slidebridge-backend/internal/imaging/analyzer"
	"github.com/yungbote/slidebridge-backend/internal/imaging/pyramid"
	"github.com/yungbote/slidebridge-backend/internal/imaging/tiles"
	"github.com/yungbote/slidebridge-backend/internal/jobs/runtime"
	"github.com/yungbote/slidebridge-backend/internal/platform/logger"
	"github.com/yungbote/slidebridge-backend/internal/storage/results"
)

// writeSlide renders a white slide with solid dark squares at the given
// origins, each side pixels wide.
func writeSlide(t *testing.T, w, h, side int, origins [][2]int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for _, o := range origins {
		for y := o[1]; y < o[1]+side && y < h; y++ {
			for x := o[0]; x < o[0]+side && x < w; x++ {
				img.SetRGBA(x, y, color.RGBA{R: 30, G: 20, B: 60, A: 255})
			}
		}
	}
	path := filepath.Join(t.TempDir(), "slide.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create slide: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode slide: %v", err)
	}
	return path
}

func runCellSeg(t *testing.T, store *workflow.Store, res *results.Store, params map[string]any) (workflow.Job, error) {
	t.Helper()
	view, err := store.CreateWorkflow("user-1", workflow.WorkflowSpec{
		Name: "cells",
		Branches: []workflow.BranchSpec{{
			BranchID: "b0",
			Jobs:     []workflow.JobSpec{{JobType: workflow.JobTypeCellSegmentation, Params: params}},
		}},
	})
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	admitted := store.AdmitRunnable(4, 3)
	if len(admitted) != 1 {
		t.Fatalf("admitted: want=1 got=%d", len(admitted))
	}
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	rc := runtime.NewContext(context.Background(), log, admitted[0], store, res)
	runErr := New(analyzer.NewProvider(analyzer.DetectorConfig{})).Run(rc)
	job, err := store.GetJob("user-1", view.JobIDs[0])
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	return job, runErr
}

func TestRunDetectsCellsAcrossTiles(t *testing.T) {
	// 64x48 slide, 32px tiles, no overlap: a 2x2 grid of four tiles with one
	// nucleus in tile 0 and one in tile 3.
	slide := writeSlide(t, 64, 48, 6, [][2]int{{10, 10}, {40, 34}})
	store := workflow.NewStore()
	res, err := results.NewStore(filepath.Join(t.TempDir(), "outputs"))
	if err != nil {
		t.Fatalf("results.NewStore: %v", err)
	}

	job, runErr := runCellSeg(t, store, res, map[string]any{
		"wsi_path":  slide,
		"tile_size": 32,
		"overlap":   0,
	})
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	if job.TilesTotal != 4 || job.TilesDone != 4 || job.Progress != 1.0 {
		t.Fatalf("tile accounting: total=%d done=%d progress=%v", job.TilesTotal, job.TilesDone, job.Progress)
	}

	raw, err := res.LoadResult(job.ID)
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Type != "cell_segmentation" || result.WSIPath != slide {
		t.Fatalf("result header mismatch: %+v", result)
	}
	if result.TilesProcessed != 4 || result.NumCells != 2 || len(result.Cells) != 2 {
		t.Fatalf("detection count: %+v", result)
	}

	first, second := result.Cells[0], result.Cells[1]
	if first.BBox != [4]int{10, 10, 16, 16} || first.TileIndex != 0 || first.TileOrigin != [2]int{0, 0} {
		t.Fatalf("first cell mismatch: %+v", first)
	}
	if second.BBox != [4]int{40, 34, 46, 40} || second.TileIndex != 3 || second.TileOrigin != [2]int{32, 32} {
		t.Fatalf("second cell must be translated by its tile origin (32,32): %+v", second)
	}
	for _, cell := range result.Cells {
		if cell.AreaPixels != 36 {
			t.Fatalf("6x6 nucleus area: want=36 got=%d", cell.AreaPixels)
		}
	}
	if result.MaskPNG != "/outputs/"+job.ID+"/mask.png" || result.OverlayPNG != "/outputs/"+job.ID+"/overlay.png" {
		t.Fatalf("artifact URLs: %+v", result)
	}
	for _, name := range []string{results.MaskFile, results.OverlayFile} {
		if _, err := os.Stat(res.ArtifactPath(job.ID, name)); err != nil {
			t.Fatalf("artifact %s missing: %v", name, err)
		}
	}
}

func TestCollectCellsBoxesAreHalfOpen(t *testing.T) {
	// A 6x6 instance whose last set pixels sit at local (15,15) must report
	// an exclusive max of 16 per axis, translated by the tile origin.
	labels := &analyzer.LabelMap{W: 32, H: 32, Pix: make([]int, 32*32)}
	for y := 10; y < 16; y++ {
		for x := 10; x < 16; x++ {
			labels.Pix[y*32+x] = 1
		}
	}
	cells := collectCells(labels, 5, tiles.Tile{X: 32, Y: 32, W: 32, H: 32})
	if len(cells) != 1 {
		t.Fatalf("cell count: want=1 got=%d", len(cells))
	}
	got := cells[0]
	if got.BBox != [4]int{42, 42, 48, 48} {
		t.Fatalf("bbox: want half-open [42 42 48 48] got %v", got.BBox)
	}
	if w := got.BBox[2] - got.BBox[0]; w != 6 {
		t.Fatalf("bbox width of a 6px-wide object: want=6 got=%d", w)
	}
	if got.AreaPixels != 36 || got.TileIndex != 5 || got.TileOrigin != [2]int{32, 32} {
		t.Fatalf("cell metadata: %+v", got)
	}
}

func TestCollectCellsSinglePixelInstance(t *testing.T) {
	labels := &analyzer.LabelMap{W: 8, H: 8, Pix: make([]int, 64)}
	labels.Pix[3*8+4] = 2
	cells := collectCells(labels, 0, tiles.Tile{X: 0, Y: 0, W: 8, H: 8})
	if len(cells) != 1 {
		t.Fatalf("cell count: want=1 got=%d", len(cells))
	}
	if cells[0].BBox != [4]int{4, 3, 5, 4} {
		t.Fatalf("single pixel must span one unit per axis, got %v", cells[0].BBox)
	}
}

func TestRunDuplicatesDetectionsInOverlapRegions(t *testing.T) {
	// One nucleus inside the 8px overlap strip shared by two horizontal
	// neighbors. Both tiles report it; the runtime must not deduplicate.
	slide := writeSlide(t, 56, 32, 6, [][2]int{{25, 10}})
	store := workflow.NewStore()
	res, err := results.NewStore(filepath.Join(t.TempDir(), "outputs"))
	if err != nil {
		t.Fatalf("results.NewStore: %v", err)
	}

	job, runErr := runCellSeg(t, store, res, map[string]any{
		"wsi_path":  slide,
		"tile_size": 32,
		"overlap":   8,
	})
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	raw, err := res.LoadResult(job.ID)
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.NumCells != 2 {
		t.Fatalf("straddling nucleus must appear once per covering tile, got %d", result.NumCells)
	}
	if result.Cells[0].BBox != result.Cells[1].BBox {
		t.Fatalf("both sightings must translate to the same global bbox: %+v", result.Cells)
	}
	if result.Cells[0].TileIndex == result.Cells[1].TileIndex {
		t.Fatalf("sightings must come from distinct tiles: %+v", result.Cells)
	}
}

func TestRunHonorsMaxTiles(t *testing.T) {
	slide := writeSlide(t, 64, 64, 6, nil)
	store := workflow.NewStore()
	res, err := results.NewStore(filepath.Join(t.TempDir(), "outputs"))
	if err != nil {
		t.Fatalf("results.NewStore: %v", err)
	}
	job, runErr := runCellSeg(t, store, res, map[string]any{
		"wsi_path":  slide,
		"tile_size": 32,
		"overlap":   0,
		"max_tiles": 2,
	})
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	if job.TilesTotal != 2 || job.TilesDone != 2 {
		t.Fatalf("max_tiles cap: total=%d done=%d", job.TilesTotal, job.TilesDone)
	}
}

func TestRunMissingSlide(t *testing.T) {
	store := workflow.NewStore()
	res, err := results.NewStore(filepath.Join(t.TempDir(), "outputs"))
	if err != nil {
		t.Fatalf("results.NewStore: %v", err)
	}
	_, runErr := runCellSeg(t, store, res, map[string]any{"wsi_path": "/no/such/slide.png"})
	if !errors.Is(runErr, pyramid.ErrSourceUnavailable) {
		t.Fatalf("want ErrSourceUnavailable got %v", runErr)
	}
}

func TestRunRejectsBadGeometry(t *testing.T) {
	slide := writeSlide(t, 64, 64, 6, nil)
	store := workflow.NewStore()
	res, err := results.NewStore(filepath.Join(t.TempDir(), "outputs"))
	if err != nil {
		t.Fatalf("results.NewStore: %v", err)
	}
	_, runErr := runCellSeg(t, store, res, map[string]any{
		"wsi_path":  slide,
		"tile_size": 16,
		"overlap":   16,
	})
	if !errors.Is(runErr, tiles.ErrInvalidGeometry) {
		t.Fatalf("want ErrInvalidGeometry got %v", runErr)
	}
}

func TestRunRequiresWSIPath(t *testing.T) {
	store := workflow.NewStore()
	res, err := results.NewStore(filepath.Join(t.TempDir(), "outputs"))
	if err != nil {
		t.Fatalf("results.NewStore: %v", err)
	}
	if _, runErr := runCellSeg(t, store, res, map[string]any{}); runErr == nil {
		t.Fatalf("missing wsi_path must fail the run")
	}
}
