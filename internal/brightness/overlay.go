package brightness

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

var (
	OutageColor   = color.NRGBA{R: 255, A: 100}
	RestoredColor = color.NRGBA{G: 255, A: 100}
)

// RenderOverlay returns a copy of base with Outage blocks tinted red and
// Restored blocks tinted green. Unchanged blocks keep their pixels. base must
// have the size the status grid was computed from.
func RenderOverlay(base image.Image, sg StatusGrid, block int) (*image.RGBA, error) {
	if base == nil {
		return nil, fmt.Errorf("brightness: base image is nil: %w", ErrInvalidParameter)
	}
	if block <= 0 {
		return nil, fmt.Errorf("brightness: block size %d must be > 0: %w", block, ErrInvalidParameter)
	}
	b := base.Bounds()
	rows, cols := GridShape(b.Dx(), b.Dy(), block)
	if rows != sg.Rows || cols != sg.Cols || len(sg.Cells) != sg.Rows*sg.Cols {
		return nil, fmt.Errorf("brightness: image %dx%d at block %d needs a %dx%d grid, got %dx%d: %w",
			b.Dx(), b.Dy(), block, rows, cols, sg.Rows, sg.Cols, ErrDimensionMismatch)
	}

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), base, b.Min, draw.Src)

	outage := image.NewUniform(OutageColor)
	restored := image.NewUniform(RestoredColor)
	for r := 0; r < sg.Rows; r++ {
		for c := 0; c < sg.Cols; c++ {
			var src image.Image
			switch sg.At(r, c) {
			case Outage:
				src = outage
			case Restored:
				src = restored
			default:
				continue
			}
			cell := image.Rect(c*block, r*block, (c+1)*block, (r+1)*block).Intersect(out.Bounds())
			draw.Draw(out, cell, src, image.Point{}, draw.Over)
		}
	}
	return out, nil
}

// DiffImage renders |before-after| per block, clamped to 0-255, scaled up so
// each block covers block x block pixels again. When the grids carry a source
// size the result is cropped to it, so it lines up with RenderOverlay.
func DiffImage(before, after Grid) (*image.Gray, error) {
	if !before.sameShape(after) {
		return nil, fmt.Errorf("brightness: before %dx%d vs after %dx%d: %w",
			before.Rows, before.Cols, after.Rows, after.Cols, ErrDimensionMismatch)
	}
	small := image.NewGray(image.Rect(0, 0, before.Cols, before.Rows))
	for i := range before.Cells {
		d := math.Abs(before.Cells[i] - after.Cells[i])
		small.Pix[(i/before.Cols)*small.Stride+i%before.Cols] = uint8(math.Min(255, math.Round(d)))
	}
	scale := before.Block
	if scale <= 1 {
		return small, nil
	}
	big := image.NewGray(image.Rect(0, 0, before.Cols*scale, before.Rows*scale))
	draw.NearestNeighbor.Scale(big, big.Bounds(), small, small.Bounds(), draw.Src, nil)
	w, h := before.Width, before.Height
	if w <= 0 || h <= 0 || (w == big.Rect.Dx() && h == big.Rect.Dy()) {
		return big, nil
	}
	out := image.NewGray(image.Rect(0, 0, w, h).Intersect(big.Rect))
	draw.Draw(out, out.Bounds(), big, image.Point{}, draw.Src)
	return out, nil
}
