// Package pyramid opens whole-slide rasters as multi-level image pyramids.
package pyramid

import (
	"errors"
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrSourceUnavailable marks slide sources that cannot be opened or decoded.
var ErrSourceUnavailable = errors.New("slide source unavailable")

const (
	// MaxLevels caps how many downsampled levels a pyramid carries.
	MaxLevels = 8
	// coarseTarget stops level generation once the longest side fits it.
	coarseTarget = 1024
)

// Image is the read surface the job pipelines run against. Level 0 is full
// resolution; each level above halves both dimensions (floor, minimum 1).
type Image interface {
	// Dimensions returns the level-0 width and height.
	Dimensions() (int, int)
	// LevelCount reports how many levels the pyramid holds, always >= 1.
	LevelCount() int
	// LevelDimensions returns the width and height of one level.
	LevelDimensions(level int) (int, int, error)
	// ReadRegion copies a window out of one level. x and y address level-0
	// coordinates; w and h are sized in the target level's pixels. The window
	// is clipped to the level bounds and must stay non-empty.
	ReadRegion(level, x, y, w, h int) (*image.RGBA, error)
	Close() error
}

// Pyramid is a fully decoded in-memory pyramid over a PNG or JPEG slide.
type Pyramid struct {
	path   string
	levels []*image.RGBA
}

/*
Open decodes the slide at path and synthesizes its downsampled levels.

Level k has dimensions (W>>k, H>>k), floored at 1 per axis. Levels are added
until the longest side fits the coarse render target or the level cap is hit,
so every pyramid ends with a level cheap enough to rasterize whole. Missing
files and undecodable payloads both surface ErrSourceUnavailable; callers
treat the two identically.
*/
func Open(path string) (*Pyramid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, path)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrSourceUnavailable, path, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: %s has empty bounds", ErrSourceUnavailable, path)
	}

	base := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(base, base.Bounds(), src, b.Min, draw.Src)

	p := &Pyramid{path: path, levels: []*image.RGBA{base}}
	for len(p.levels) < MaxLevels {
		prev := p.levels[len(p.levels)-1]
		if longest(prev.Bounds().Dx(), prev.Bounds().Dy()) <= coarseTarget {
			break
		}
		lw, lh := w>>len(p.levels), h>>len(p.levels)
		if lw < 1 {
			lw = 1
		}
		if lh < 1 {
			lh = 1
		}
		next := image.NewRGBA(image.Rect(0, 0, lw, lh))
		draw.CatmullRom.Scale(next, next.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		p.levels = append(p.levels, next)
	}
	return p, nil
}

func (p *Pyramid) Dimensions() (int, int) {
	b := p.levels[0].Bounds()
	return b.Dx(), b.Dy()
}

func (p *Pyramid) LevelCount() int { return len(p.levels) }

func (p *Pyramid) LevelDimensions(level int) (int, int, error) {
	if level < 0 || level >= len(p.levels) {
		return 0, 0, fmt.Errorf("level %d out of range [0,%d)", level, len(p.levels))
	}
	b := p.levels[level].Bounds()
	return b.Dx(), b.Dy(), nil
}

// CoarsestLevel returns the index of the smallest level.
func (p *Pyramid) CoarsestLevel() int { return len(p.levels) - 1 }

func (p *Pyramid) ReadRegion(level, x, y, w, h int) (*image.RGBA, error) {
	if level < 0 || level >= len(p.levels) {
		return nil, fmt.Errorf("level %d out of range [0,%d)", level, len(p.levels))
	}
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("region %dx%d is empty", w, h)
	}
	lx, ly := x>>level, y>>level
	src := p.levels[level]
	window := image.Rect(lx, ly, lx+w, ly+h).Intersect(src.Bounds())
	if window.Empty() {
		return nil, fmt.Errorf("region (%d,%d %dx%d) outside level %d bounds %v", x, y, w, h, level, src.Bounds())
	}
	out := image.NewRGBA(image.Rect(0, 0, window.Dx(), window.Dy()))
	draw.Draw(out, out.Bounds(), src, window.Min, draw.Src)
	return out, nil
}

// Close releases the pyramid. Levels live on the heap, so this only severs
// the references.
func (p *Pyramid) Close() error {
	p.levels = nil
	return nil
}

func longest(w, h int) int {
	if w > h {
		return w
	}
	return h
}
