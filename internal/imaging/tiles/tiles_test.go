package tiles

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestPlanOverlapGridWithEdgeClipping(t *testing.T) {
	plan, err := Plan(100, 40, 30, 10)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []Tile{
		{X: 0, Y: 0, W: 30, H: 30},
		{X: 20, Y: 0, W: 30, H: 30},
		{X: 40, Y: 0, W: 30, H: 30},
		{X: 60, Y: 0, W: 30, H: 30},
		{X: 80, Y: 0, W: 20, H: 30},
		{X: 0, Y: 20, W: 30, H: 20},
		{X: 20, Y: 20, W: 30, H: 20},
		{X: 40, Y: 20, W: 30, H: 20},
		{X: 60, Y: 20, W: 30, H: 20},
		{X: 80, Y: 20, W: 20, H: 20},
	}
	if len(plan) != len(want) {
		t.Fatalf("tile count: want=%d got=%d", len(want), len(plan))
	}
	for i := range want {
		if plan[i] != want[i] {
			t.Fatalf("tile %d: want=%+v got=%+v", i, want[i], plan[i])
		}
	}
}

func TestPlanWithoutOverlap(t *testing.T) {
	plan, err := Plan(64, 64, 32, 0)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan) != 4 {
		t.Fatalf("tile count: want=4 got=%d", len(plan))
	}
	for _, tile := range plan {
		if tile.W != 32 || tile.H != 32 {
			t.Fatalf("exact grid must not clip, got %+v", tile)
		}
	}
}

func TestPlanSingleTileCoversSmallRaster(t *testing.T) {
	plan, err := Plan(10, 8, 512, 32)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("tile count: want=1 got=%d", len(plan))
	}
	if got := plan[0]; got != (Tile{X: 0, Y: 0, W: 10, H: 8}) {
		t.Fatalf("small raster tile: got %+v", got)
	}
}

func TestPlanEmptyRaster(t *testing.T) {
	for _, dims := range [][2]int{{0, 64}, {64, 0}, {0, 0}, {-5, 10}} {
		plan, err := Plan(dims[0], dims[1], 32, 0)
		if err != nil {
			t.Fatalf("Plan(%d,%d): %v", dims[0], dims[1], err)
		}
		if len(plan) != 0 {
			t.Fatalf("Plan(%d,%d): want empty plan, got %d tiles", dims[0], dims[1], len(plan))
		}
	}
}

func TestPlanRejectsBadGeometry(t *testing.T) {
	cases := []struct {
		name              string
		tileSize, overlap int
	}{
		{"zero tile", 0, 0},
		{"negative tile", -4, 0},
		{"negative overlap", 32, -1},
		{"overlap equals tile", 32, 32},
		{"overlap above tile", 32, 48},
	}
	for _, tc := range cases {
		if _, err := Plan(100, 100, tc.tileSize, tc.overlap); !errors.Is(err, ErrInvalidGeometry) {
			t.Fatalf("%s: want ErrInvalidGeometry got %v", tc.name, err)
		}
	}
}

// TestPropertyPlanCoversEveryPixel checks that any valid plan tiles the whole
// raster: every pixel falls inside at least one tile, every tile stays in
// bounds, and origins follow the fixed stride.
func TestPropertyPlanCoversEveryPixel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		width := rapid.IntRange(1, 300).Draw(t, "width")
		height := rapid.IntRange(1, 300).Draw(t, "height")
		tileSize := rapid.IntRange(1, 96).Draw(t, "tileSize")
		overlap := rapid.IntRange(0, tileSize-1).Draw(t, "overlap")

		plan, err := Plan(width, height, tileSize, overlap)
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		if len(plan) == 0 {
			t.Fatalf("non-empty raster must yield tiles")
		}

		stride := tileSize - overlap
		covered := make([]bool, width*height)
		for i, tile := range plan {
			if tile.X%stride != 0 || tile.Y%stride != 0 {
				t.Fatalf("tile %d origin off stride: %+v", i, tile)
			}
			if tile.W < 1 || tile.H < 1 {
				t.Fatalf("tile %d degenerate: %+v", i, tile)
			}
			if tile.X+tile.W > width || tile.Y+tile.H > height {
				t.Fatalf("tile %d out of bounds: %+v", i, tile)
			}
			for y := tile.Y; y < tile.Y+tile.H; y++ {
				for x := tile.X; x < tile.X+tile.W; x++ {
					covered[y*width+x] = true
				}
			}
		}
		for p, ok := range covered {
			if !ok {
				t.Fatalf("pixel (%d,%d) uncovered", p%width, p/width)
			}
		}
	})
}

// TestPropertyPlanIsRowMajor checks the scan order contract directly.
func TestPropertyPlanIsRowMajor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		width := rapid.IntRange(1, 200).Draw(t, "width")
		height := rapid.IntRange(1, 200).Draw(t, "height")
		tileSize := rapid.IntRange(2, 64).Draw(t, "tileSize")
		overlap := rapid.IntRange(0, tileSize-1).Draw(t, "overlap")

		plan, err := Plan(width, height, tileSize, overlap)
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		for i := 1; i < len(plan); i++ {
			prev, cur := plan[i-1], plan[i]
			if cur.Y < prev.Y {
				t.Fatalf("tile %d row decreased: %+v after %+v", i, cur, prev)
			}
			if cur.Y == prev.Y && cur.X <= prev.X {
				t.Fatalf("tile %d column did not advance: %+v after %+v", i, cur, prev)
			}
			if cur.Y != prev.Y && cur.X != 0 {
				t.Fatalf("tile %d new row must start at x=0: %+v", i, cur)
			}
		}
	})
}
