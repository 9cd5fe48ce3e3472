// Package render rasterizes the low-resolution summary artifacts: binary
// masks and red-tinted overlays at the coarsest pyramid level.
package render

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// TintAlpha is the opacity of a fully masked pixel in the overlay, out of
// 255. 90/255 is roughly 35% red.
const TintAlpha = 90

// Box is an axis-aligned detection box in level-0 pixel coordinates,
// half-open on the high side.
type Box struct {
	XMin, YMin, XMax, YMax int
}

/*
BoxMask rasterizes detection boxes into a lw x lh binary mask. Full-resolution
coordinates are mapped down by the per-axis scale factors; every box covers at
least one low-res pixel so small detections stay visible. Inside a box the
mask is 255, elsewhere 0.
*/
func BoxMask(lw, lh int, boxes []Box, sx, sy float64) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, lw, lh))
	for _, b := range boxes {
		x0 := int(float64(b.XMin) * sx)
		y0 := int(float64(b.YMin) * sy)
		x1 := int(float64(b.XMax) * sx)
		y1 := int(float64(b.YMax) * sy)
		if x1 <= x0 {
			x1 = x0 + 1
		}
		if y1 <= y0 {
			y1 = y0 + 1
		}
		x0, y0 = clamp(x0, 0, lw), clamp(y0, 0, lh)
		x1, y1 = clamp(x1, 0, lw), clamp(y1, 0, lh)
		for y := y0; y < y1; y++ {
			row := mask.Pix[y*mask.Stride:]
			for x := x0; x < x1; x++ {
				row[x] = 255
			}
		}
	}
	return mask
}

// Grayscale converts an RGB buffer to BT.601 luminance in [0,1].
func Grayscale(img *image.RGBA) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			px := img.Pix[off : off+4]
			out[y*w+x] = (0.299*float64(px[0]) + 0.587*float64(px[1]) + 0.114*float64(px[2])) / 255.0
		}
	}
	return out
}

/*
OtsuThreshold picks the grayscale cut that minimizes intra-class variance over
a 256-bin histogram. The second return is false when the histogram is
degenerate (empty input or all mass in a single bin), in which case callers
fall back to a fixed threshold.
*/
func OtsuThreshold(gray []float64) (float64, bool) {
	if len(gray) == 0 {
		return 0, false
	}
	var hist [256]int
	for _, g := range gray {
		bin := int(g * 255.0)
		if bin < 0 {
			bin = 0
		}
		if bin > 255 {
			bin = 255
		}
		hist[bin]++
	}
	occupied := 0
	for _, n := range hist {
		if n > 0 {
			occupied++
		}
	}
	if occupied < 2 {
		return 0, false
	}

	total := float64(len(gray))
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}
	var sumB, wB float64
	bestVar, bestT := -1.0, 0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			bestT = t
		}
	}
	return float64(bestT) / 255.0, true
}

// TissueMask thresholds luminance: pixels darker than t are tissue (255).
func TissueMask(gray []float64, w, h int, t float64) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for i, g := range gray {
		if g < t {
			mask.Pix[(i/w)*mask.Stride+(i%w)] = 255
		}
	}
	return mask
}

/*
Overlay tints the base image red wherever the mask is set. The per-pixel
opacity scales linearly with the mask value, reaching TintAlpha/255 where the
mask is 255. The base is not mutated; compositing happens on a copy through a
gg clip mask so the output is deterministic for a given base and mask.
*/
func Overlay(base *image.RGBA, mask *image.Gray) *image.RGBA {
	b := base.Bounds()
	w, h := b.Dx(), b.Dy()

	alpha := image.NewAlpha(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := int(mask.GrayAt(x, y).Y)
			alpha.Pix[y*alpha.Stride+x] = uint8(m * TintAlpha / 255)
		}
	}

	dc := gg.NewContext(w, h)
	dc.DrawImage(base, 0, 0)
	if err := dc.SetMask(alpha); err == nil {
		dc.SetColor(color.NRGBA{R: 255, A: 255})
		dc.DrawRectangle(0, 0, float64(w), float64(h))
		dc.Fill()
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	src := dc.Image()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(x, y, src.At(x, y))
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
