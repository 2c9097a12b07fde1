// Package brightness compares two images of the same scene block by block
// and labels where the scene went dark (Outage) or lit up (Restored).
package brightness

import (
	"fmt"
	"image"
	"image/color"
)

// DefaultBlockSize is the block edge length in pixels.
const DefaultBlockSize = 10

// Grid holds the mean luminance (0-255) of each block of an image, row-major
// from the top-left block. Width and Height are the source image size; zero
// when the grid was built by hand.
type Grid struct {
	Rows   int
	Cols   int
	Block  int
	Width  int
	Height int
	Cells  []float64
}

func (g Grid) At(r, c int) float64 {
	return g.Cells[r*g.Cols+c]
}

func (g Grid) sameShape(o Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols && len(g.Cells) == len(o.Cells)
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

// GridShape returns the grid dimensions ComputeBlockBrightness produces for
// an image of the given size.
func GridShape(width, height, block int) (rows, cols int) {
	return ceilDiv(height, block), ceilDiv(width, block)
}

// ComputeBlockBrightness converts img to luminance and averages it over
// block x block tiles. Tiles on the right and bottom edges may be smaller
// and are averaged over the pixels they actually cover.
func ComputeBlockBrightness(img image.Image, block int) (Grid, error) {
	if img == nil {
		return Grid{}, fmt.Errorf("brightness: image is nil: %w", ErrInvalidParameter)
	}
	if block <= 0 {
		return Grid{}, fmt.Errorf("brightness: block size %d must be > 0: %w", block, ErrInvalidParameter)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Grid{}, fmt.Errorf("brightness: image is empty: %w", ErrInvalidParameter)
	}

	rows, cols := GridShape(w, h, block)
	sums := make([]float64, rows*cols)
	counts := make([]int, rows*cols)

	lum := luminance(img)
	for y := 0; y < h; y++ {
		r := y / block
		for x := 0; x < w; x++ {
			i := r*cols + x/block
			sums[i] += float64(lum(b.Min.X+x, b.Min.Y+y))
			counts[i]++
		}
	}

	cells := make([]float64, len(sums))
	for i := range sums {
		cells[i] = sums[i] / float64(counts[i])
	}
	return Grid{Rows: rows, Cols: cols, Block: block, Width: w, Height: h, Cells: cells}, nil
}

// luminance returns a per-pixel 8-bit gray accessor. Single-channel images
// are read directly.
func luminance(img image.Image) func(x, y int) uint8 {
	if g, ok := img.(*image.Gray); ok {
		return func(x, y int) uint8 { return g.Pix[g.PixOffset(x, y)] }
	}
	return func(x, y int) uint8 {
		return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
	}
}
