package brightness

import "fmt"

// Status classifies one block between a before and an after observation.
type Status uint8

const (
	Unchanged Status = iota
	Outage
	Restored
)

func (s Status) String() string {
	switch s {
	case Outage:
		return "Outage"
	case Restored:
		return "Restored"
	default:
		return "Same"
	}
}

// Classify labels a single block.
func Classify(before, after, threshold float64) Status {
	switch {
	case before >= threshold && after < threshold:
		return Outage
	case before < threshold && after >= threshold:
		return Restored
	default:
		return Unchanged
	}
}

type StatusGrid struct {
	Rows  int
	Cols  int
	Cells []Status
}

func (g StatusGrid) At(r, c int) Status {
	return g.Cells[r*g.Cols+c]
}

type Counts struct {
	Unchanged int
	Outage    int
	Restored  int
}

func (g StatusGrid) Counts() Counts {
	var c Counts
	for _, s := range g.Cells {
		switch s {
		case Outage:
			c.Outage++
		case Restored:
			c.Restored++
		default:
			c.Unchanged++
		}
	}
	return c
}

// ClassifyGrid labels every block. The grids must have the same shape.
func ClassifyGrid(before, after Grid, threshold float64) (StatusGrid, error) {
	if !before.sameShape(after) {
		return StatusGrid{}, fmt.Errorf("brightness: before %dx%d vs after %dx%d: %w",
			before.Rows, before.Cols, after.Rows, after.Cols, ErrDimensionMismatch)
	}
	cells := make([]Status, len(before.Cells))
	for i := range cells {
		cells[i] = Classify(before.Cells[i], after.Cells[i], threshold)
	}
	return StatusGrid{Rows: before.Rows, Cols: before.Cols, Cells: cells}, nil
}
