// Package trigger decides when the payload should take a picture, either on
// reaching a target attitude or on returning to where it started.
package trigger

import (
	"fmt"
	"math"

	"flatsat/internal/orientation"
)

// DefaultMarginDeg is the tolerance used when none is configured.
const DefaultMarginDeg = 2.0

// AngleTrigger fires when the selected axis comes within MarginDeg of
// TargetDeg. Yaw differences are taken the short way around the circle.
type AngleTrigger struct {
	Axis      orientation.Axis
	TargetDeg float64
	MarginDeg float64

	inside bool
}

func NewAngleTrigger(axis orientation.Axis, targetDeg, marginDeg float64) (*AngleTrigger, error) {
	if _, err := orientation.ParseAxis(string(axis)); err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}
	if math.IsNaN(targetDeg) || math.IsInf(targetDeg, 0) {
		return nil, fmt.Errorf("trigger: target angle %v is not finite", targetDeg)
	}
	if marginDeg < 0 || math.IsNaN(marginDeg) {
		return nil, fmt.Errorf("trigger: margin %v must be >= 0", marginDeg)
	}
	return &AngleTrigger{Axis: axis, TargetDeg: targetDeg, MarginDeg: marginDeg}, nil
}

// Offset returns the signed distance in degrees from the target.
func (t *AngleTrigger) Offset(s orientation.State) float64 {
	d := s.Angle(t.Axis) - t.TargetDeg
	if t.Axis == orientation.Yaw {
		d = orientation.WrapYaw(d)
	}
	return d
}

// Within reports whether s is inside the margin. It has no side effects.
func (t *AngleTrigger) Within(s orientation.State) bool {
	return math.Abs(t.Offset(s)) <= t.MarginDeg
}

// Update returns true once per entry into the margin. Staying inside does not
// fire again; leaving and re-entering does.
func (t *AngleTrigger) Update(s orientation.State) bool {
	in := t.Within(s)
	fire := in && !t.inside
	t.inside = in
	return fire
}
