package brightness

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/floats"
)

// TotalDifference sums |before-after| over all blocks. It backs the coarse
// "did the whole scene change" decision, independent of the per-block labels.
func TotalDifference(before, after Grid) (float64, error) {
	if !before.sameShape(after) {
		return 0, fmt.Errorf("brightness: before %dx%d vs after %dx%d: %w",
			before.Rows, before.Cols, after.Rows, after.Cols, ErrDimensionMismatch)
	}
	if len(before.Cells) == 0 {
		return 0, nil
	}
	diff := make([]float64, len(before.Cells))
	floats.SubTo(diff, before.Cells, after.Cells)
	return floats.Norm(diff, 1), nil
}

type Params struct {
	BlockSize int
	// Threshold is the per-block luminance that separates dark from lit.
	Threshold float64
	// TotalThreshold gates GlobalEvent; 0 disables it.
	TotalThreshold float64
}

type Result struct {
	Before Grid
	After  Grid
	Status StatusGrid
	Counts Counts
	Total  float64
	// GlobalEvent is set when Total exceeds Params.TotalThreshold.
	GlobalEvent bool
}

// Compare runs the full before/after analysis on two images of equal size.
func Compare(before, after image.Image, p Params) (Result, error) {
	if p.BlockSize == 0 {
		p.BlockSize = DefaultBlockSize
	}
	bg, err := ComputeBlockBrightness(before, p.BlockSize)
	if err != nil {
		return Result{}, fmt.Errorf("brightness: before image: %w", err)
	}
	ag, err := ComputeBlockBrightness(after, p.BlockSize)
	if err != nil {
		return Result{}, fmt.Errorf("brightness: after image: %w", err)
	}
	sg, err := ClassifyGrid(bg, ag, p.Threshold)
	if err != nil {
		return Result{}, err
	}
	total, err := TotalDifference(bg, ag)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Before:      bg,
		After:       ag,
		Status:      sg,
		Counts:      sg.Counts(),
		Total:       total,
		GlobalEvent: p.TotalThreshold > 0 && total > p.TotalThreshold,
	}, nil
}
