package orientation

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"flatsat/internal/imu"
)

// State is the current best-estimate attitude in degrees.
type State struct {
	RollDeg  float64
	PitchDeg float64
	YawDeg   float64
}

// Axis selects one component of a State.
type Axis string

const (
	Roll  Axis = "roll"
	Pitch Axis = "pitch"
	Yaw   Axis = "yaw"
)

func ParseAxis(s string) (Axis, error) {
	switch a := Axis(s); a {
	case Roll, Pitch, Yaw:
		return a, nil
	}
	return "", fmt.Errorf("orientation: unknown axis %q: %w", s, ErrInvalidParameter)
}

// Angle returns the component selected by a.
func (s State) Angle(a Axis) float64 {
	switch a {
	case Pitch:
		return s.PitchDeg
	case Yaw:
		return s.YawDeg
	default:
		return s.RollDeg
	}
}

const (
	radToDeg = 180.0 / math.Pi
)

// WrapYaw maps an angle in degrees into [-180, 180).
func WrapYaw(deg float64) float64 {
	w := math.Mod(deg+180, 360)
	if w < 0 {
		w += 360
	}
	return w - 180
}

// EstimateAbsolute computes attitude from one sample's accelerometer and
// magnetometer readings. The magnetometer is hard-iron corrected with mag
// and then rotated into the horizontal plane before taking the heading.
func EstimateAbsolute(s imu.Sample, mag MagOffset) (State, error) {
	if err := checkFinite("accel", s.Accel); err != nil {
		return State{}, err
	}
	if err := checkFinite("mag", s.Mag); err != nil {
		return State{}, err
	}
	if err := checkFinite("mag offset", r3.Vec(mag)); err != nil {
		return State{}, err
	}

	a := s.Accel
	roll := math.Atan2(a.Y, math.Sqrt(a.X*a.X+a.Z*a.Z))
	pitch := math.Atan2(a.X, math.Sqrt(a.Y*a.Y+a.Z*a.Z))

	m := mag.Correct(s.Mag)
	sr, cr := math.Sincos(roll)
	sp, cp := math.Sincos(pitch)
	mx := m.X*cp + m.Y*sr*sp + m.Z*cr*sp
	my := m.Y*cr - m.Z*sr
	yaw := math.Atan2(-my, mx)

	return State{
		RollDeg:  roll * radToDeg,
		PitchDeg: pitch * radToDeg,
		YawDeg:   WrapYaw(yaw * radToDeg),
	}, nil
}

// EstimateRelative advances prev by rate*dt on each axis: roll from x,
// pitch from y, yaw from z. rate is the calibrated gyro rate in rad/s (see
// GyroOffset.Apply).
func EstimateRelative(prev State, dt time.Duration, rate r3.Vec) (State, error) {
	if dt < 0 {
		return State{}, fmt.Errorf("orientation: dt=%s must be >= 0: %w", dt, ErrInvalidParameter)
	}
	if err := checkFinite("gyro", rate); err != nil {
		return State{}, err
	}
	if err := checkFinite("previous state", r3.Vec{X: prev.RollDeg, Y: prev.PitchDeg, Z: prev.YawDeg}); err != nil {
		return State{}, err
	}
	sec := dt.Seconds()
	return State{
		RollDeg:  prev.RollDeg + rate.X*radToDeg*sec,
		PitchDeg: prev.PitchDeg + rate.Y*radToDeg*sec,
		YawDeg:   WrapYaw(prev.YawDeg + rate.Z*radToDeg*sec),
	}, nil
}

// SetInitial takes one absolute estimate from a fresh sample. The device is
// expected to be held still; the result seeds relative integration.
func SetInitial(src imu.Source, mag MagOffset) (State, error) {
	st, _, err := SetInitialAt(src, mag)
	return st, err
}

// SetInitialAt is SetInitial that also returns the time of the sample the
// seed came from, so integration can start from that instant. The time is
// zero when the source does not stamp samples.
func SetInitialAt(src imu.Source, mag MagOffset) (State, time.Time, error) {
	if src == nil {
		return State{}, time.Time{}, fmt.Errorf("orientation: source is nil: %w", ErrInvalidParameter)
	}
	s, err := src.Read()
	if err != nil {
		return State{}, time.Time{}, fmt.Errorf("orientation: initial sample: %w", err)
	}
	st, err := EstimateAbsolute(s, mag)
	if err != nil {
		return State{}, time.Time{}, err
	}
	return st, s.Time, nil
}

func checkFinite(name string, v r3.Vec) error {
	for i, x := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("orientation: %s axis %c=%v: %w", name, "xyz"[i], x, ErrSensorRead)
		}
	}
	return nil
}
