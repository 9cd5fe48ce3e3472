package analyzer

import (
	"fmt"
	"image"
)

// DetectorConfig tunes the built-in stain detector.
type DetectorConfig struct {
	// Threshold is the grayscale cut in [0,1]; pixels darker than it count
	// as stained.
	Threshold float64
	// MinArea drops components smaller than this many pixels at the
	// reference resolution.
	MinArea int
	// RefPixelSizeUM is the resolution MinArea is calibrated against.
	RefPixelSizeUM float64
	// Serialize gates Analyze behind a mutex. The detector itself is
	// stateless, so this exists for drop-in analyzers that are not.
	Serialize bool
}

const (
	DefaultThreshold      = 0.62
	DefaultMinArea        = 24
	DefaultRefPixelSizeUM = 0.5
)

/*
NucleiDetector finds stained nuclei by intensity. Hematoxylin renders nuclei
darker than surrounding tissue, so the detector thresholds the BT.601
luminance, groups dark pixels with 8-connected union-find, and drops specks
below the area floor. The area floor rescales with the tile's micron-per-
pixel hint: finer pixels mean more pixels per nucleus.

Output is a (1,H,W) tensor, matching the batch-axis convention of model
runtimes, so downstream normalization strips the singleton axis.
*/
type NucleiDetector struct {
	cfg DetectorConfig
}

func NewNucleiDetector(cfg DetectorConfig) (*NucleiDetector, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinArea == 0 {
		cfg.MinArea = DefaultMinArea
	}
	if cfg.RefPixelSizeUM == 0 {
		cfg.RefPixelSizeUM = DefaultRefPixelSizeUM
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("detector threshold %v outside [0,1]", cfg.Threshold)
	}
	if cfg.MinArea < 1 {
		return nil, fmt.Errorf("detector min area %d must be at least 1", cfg.MinArea)
	}
	return &NucleiDetector{cfg: cfg}, nil
}

func (d *NucleiDetector) Analyze(tile *image.RGBA, pixelSizeUM float64) (LabelImage, error) {
	if tile == nil {
		return LabelImage{}, fmt.Errorf("nil tile")
	}
	b := tile.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 1 || h < 1 {
		return LabelImage{}, fmt.Errorf("empty tile %dx%d", w, h)
	}

	stained := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := tile.PixOffset(b.Min.X+x, b.Min.Y+y)
			px := tile.Pix[off : off+4]
			lum := (0.299*float64(px[0]) + 0.587*float64(px[1]) + 0.114*float64(px[2])) / 255.0
			stained[y*w+x] = lum < d.cfg.Threshold
		}
	}

	labels := labelComponents(stained, w, h)

	minArea := d.cfg.MinArea
	if pixelSizeUM > 0 && pixelSizeUM != d.cfg.RefPixelSizeUM {
		scale := d.cfg.RefPixelSizeUM / pixelSizeUM
		minArea = int(float64(d.cfg.MinArea) * scale * scale)
		if minArea < 1 {
			minArea = 1
		}
	}
	areas := map[int]int{}
	for _, l := range labels {
		if l > 0 {
			areas[l]++
		}
	}

	data := make([]float64, w*h)
	for i, l := range labels {
		if l > 0 && areas[l] >= minArea {
			data[i] = float64(l)
		}
	}
	return LabelImage{Shape: []int{1, h, w}, Data: data}, nil
}

// labelComponents assigns 8-connected components of set pixels sequential
// positive labels with a union-find over the raster.
func labelComponents(set []bool, w, h int) []int {
	parent := make([]int, w*h)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !set[i] {
				continue
			}
			if x > 0 && set[i-1] {
				union(i, i-1)
			}
			if y > 0 {
				if set[i-w] {
					union(i, i-w)
				}
				if x > 0 && set[i-w-1] {
					union(i, i-w-1)
				}
				if x < w-1 && set[i-w+1] {
					union(i, i-w+1)
				}
			}
		}
	}

	labels := make([]int, w*h)
	next := 1
	byRoot := map[int]int{}
	for i, on := range set {
		if !on {
			continue
		}
		root := find(i)
		id, ok := byRoot[root]
		if !ok {
			id = next
			next++
			byRoot[root] = id
		}
		labels[i] = id
	}
	return labels
}
