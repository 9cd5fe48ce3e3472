// Package tiles plans overlapping tile grids over level-0 slide rasters.
package tiles

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry marks tile plans whose parameters cannot produce a grid.
var ErrInvalidGeometry = errors.New("invalid tile geometry")

// Tile is one read window in level-0 pixel coordinates. X/Y locate the
// top-left corner; W/H are clipped at the slide edge and may be smaller than
// the nominal tile size.
type Tile struct {
	X int
	Y int
	W int
	H int
}

/*
Plan lays a tile grid over a width x height raster.

Origins advance by tileSize-overlap in both axes, row-major with x varying
fastest, so each interior tile shares an overlap-wide strip with its right and
bottom neighbors. Edge tiles keep their origin and are clipped to the raster
bounds. An empty raster yields an empty plan.

tileSize must be at least 1 and strictly larger than overlap, and overlap must
not be negative; anything else is ErrInvalidGeometry.
*/
func Plan(width, height, tileSize, overlap int) ([]Tile, error) {
	if tileSize < 1 {
		return nil, fmt.Errorf("%w: tile size %d must be at least 1", ErrInvalidGeometry, tileSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidGeometry, overlap)
	}
	if overlap >= tileSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than tile size %d", ErrInvalidGeometry, overlap, tileSize)
	}
	if width <= 0 || height <= 0 {
		return []Tile{}, nil
	}

	stride := tileSize - overlap
	var plan []Tile
	for y := 0; y < height; y += stride {
		h := tileSize
		if y+h > height {
			h = height - y
		}
		for x := 0; x < width; x += stride {
			w := tileSize
			if x+w > width {
				w = width - x
			}
			plan = append(plan, Tile{X: x, Y: y, W: w, H: h})
		}
	}
	return plan, nil
}
