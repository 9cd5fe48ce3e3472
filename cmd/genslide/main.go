// genslide renders a synthetic slide image: dark elliptical nuclei scattered
// over a light background, usable as wsi_path input for local runs and tests.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/fogleman/gg"
)

func main() {
	out := flag.String("out", "slide.png", "output PNG path")
	width := flag.Int("width", 4096, "slide width in pixels")
	height := flag.Int("height", 3072, "slide height in pixels")
	cells := flag.Int("cells", 400, "number of nuclei to draw")
	seed := flag.Int64("seed", 1, "RNG seed; same seed yields the same slide")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	dc := gg.NewContext(*width, *height)
	dc.SetRGB255(236, 228, 232)
	dc.Clear()

	// Faint eosin-like texture so the background is not perfectly flat.
	for i := 0; i < *cells/2; i++ {
		x := rng.Float64() * float64(*width)
		y := rng.Float64() * float64(*height)
		r := 30 + rng.Float64()*90
		dc.SetRGBA255(222, 196, 208, 60)
		dc.DrawCircle(x, y, r)
		dc.Fill()
	}

	for i := 0; i < *cells; i++ {
		x := rng.Float64() * float64(*width)
		y := rng.Float64() * float64(*height)
		rx := 6 + rng.Float64()*14
		ry := 6 + rng.Float64()*14
		angle := rng.Float64() * 3.14159
		dc.Push()
		dc.RotateAbout(angle, x, y)
		dc.SetRGB255(58+rng.Intn(30), 36+rng.Intn(24), 92+rng.Intn(30))
		dc.DrawEllipse(x, y, rx, ry)
		dc.Fill()
		dc.Pop()
	}

	if err := dc.SavePNG(*out); err != nil {
		fmt.Fprintf(os.Stderr, "save %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%dx%d, %d nuclei)\n", *out, *width, *height, *cells)
}
