// Package analyzer defines the per-tile analysis contract and the shared
// process-wide analyzer instance the job workers run against.
package analyzer

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

// ErrAnalyzerFailure marks analyzer construction or per-tile analysis faults.
var ErrAnalyzerFailure = errors.New("analyzer failure")

/*
LabelImage is the raw analyzer output: a row-major tensor that is either an
integer instance map of shape (H,W), possibly wrapped in singleton leading
axes such as (1,H,W), or a probability volume of shape (H,W,C) that collapses
to labels by per-pixel argmax over the trailing channel axis.

Zero is background; positive values name cell instances. Instance ids carry
no meaning beyond distinctness within one tile.
*/
type LabelImage struct {
	Shape []int
	Data  []float64
}

// LabelMap is a normalized 2-D instance map.
type LabelMap struct {
	W, H int
	Pix  []int
}

// At returns the instance label at (x, y).
func (m *LabelMap) At(x, y int) int { return m.Pix[y*m.W+x] }

// Labels normalizes the tensor into a 2-D instance map: leading singleton
// axes are stripped, a remaining (H,W,C) volume is collapsed by argmax, and
// values are truncated to integers.
func (li LabelImage) Labels() (*LabelMap, error) {
	n := 1
	for _, d := range li.Shape {
		if d < 1 {
			return nil, fmt.Errorf("label image has empty axis in shape %v", li.Shape)
		}
		n *= d
	}
	if len(li.Shape) == 0 || n != len(li.Data) {
		return nil, fmt.Errorf("label image shape %v does not match %d values", li.Shape, len(li.Data))
	}

	shape := li.Shape
	for len(shape) > 2 && shape[0] == 1 {
		shape = shape[1:]
	}

	switch len(shape) {
	case 2:
		h, w := shape[0], shape[1]
		pix := make([]int, h*w)
		data := li.Data[len(li.Data)-h*w:]
		for i, v := range data {
			pix[i] = int(v)
		}
		return &LabelMap{W: w, H: h, Pix: pix}, nil
	case 3:
		h, w, c := shape[0], shape[1], shape[2]
		pix := make([]int, h*w)
		data := li.Data[len(li.Data)-h*w*c:]
		for p := 0; p < h*w; p++ {
			best, arg := data[p*c], 0
			for k := 1; k < c; k++ {
				if data[p*c+k] > best {
					best, arg = data[p*c+k], k
				}
			}
			pix[p] = arg
		}
		return &LabelMap{W: w, H: h, Pix: pix}, nil
	default:
		return nil, fmt.Errorf("unsupported label image shape %v", li.Shape)
	}
}

// TileAnalyzer turns one RGB tile into instance labels. pixelSizeUM is the
// microns-per-pixel hint forwarded from the job parameters. Implementations
// must tolerate concurrent calls unless wrapped by Gated.
type TileAnalyzer interface {
	Analyze(tile *image.RGBA, pixelSizeUM float64) (LabelImage, error)
}

// Gated serializes every Analyze call through one mutex. It wraps analyzer
// implementations that are not safe for concurrent use.
type Gated struct {
	mu    sync.Mutex
	inner TileAnalyzer
}

func NewGated(inner TileAnalyzer) *Gated { return &Gated{inner: inner} }

func (g *Gated) Analyze(tile *image.RGBA, pixelSizeUM float64) (LabelImage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Analyze(tile, pixelSizeUM)
}

/*
Provider hands out the process-wide analyzer. Construction is deferred to the
first Acquire and runs exactly once; every job worker afterwards shares the
same instance. A construction failure is sticky and resurfaces on every
subsequent Acquire.
*/
type Provider struct {
	cfg      DetectorConfig
	once     sync.Once
	shared   TileAnalyzer
	buildErr error
}

func NewProvider(cfg DetectorConfig) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Acquire() (TileAnalyzer, error) {
	p.once.Do(func() {
		det, err := NewNucleiDetector(p.cfg)
		if err != nil {
			p.buildErr = err
			return
		}
		if p.cfg.Serialize {
			p.shared = NewGated(det)
			return
		}
		p.shared = det
	})
	return p.shared, p.buildErr
}
