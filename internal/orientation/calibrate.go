package orientation

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"flatsat/internal/imu"
)

var (
	now   = time.Now
	sleep = time.Sleep
)

const (
	DefaultMagWindow  = 10 * time.Second
	DefaultGyroWindow = 5 * time.Second
)

// MagOffset is the per-axis hard-iron offset in gauss.
type MagOffset r3.Vec

// Correct removes the hard-iron offset from a raw field reading.
func (o MagOffset) Correct(m r3.Vec) r3.Vec {
	return r3.Sub(m, r3.Vec(o))
}

// GyroOffset is the per-axis stationary bias in rad/s.
type GyroOffset r3.Vec

// Apply returns the bias-corrected angular rate of s in rad/s.
func (o GyroOffset) Apply(s imu.Sample) r3.Vec {
	return r3.Sub(s.Gyro, r3.Vec(o))
}

// Offsets is computed once per session and passed explicitly to every
// estimate.
type Offsets struct {
	Mag  MagOffset
	Gyro GyroOffset
}

// CalibrateMagnetometer samples src for the whole window and returns the
// per-axis midpoint of the observed min and max. The device should be waved
// through as many orientations as possible while this runs.
func CalibrateMagnetometer(src imu.Source, window time.Duration) (MagOffset, error) {
	return calibrateMagEvery(src, window, 0)
}

// CalibrateGyroscope samples src for the whole window and returns the
// per-axis mean rate. The device is assumed to be stationary; no motion
// check is made, so a bumped board yields a biased offset.
func CalibrateGyroscope(src imu.Source, window time.Duration) (GyroOffset, error) {
	return calibrateGyroEvery(src, window, 0)
}

func calibrateMagEvery(src imu.Source, window, interval time.Duration) (MagOffset, error) {
	xs, ys, zs, err := collect(src, window, interval, "mag", func(s imu.Sample) r3.Vec { return s.Mag })
	if err != nil {
		return MagOffset{}, err
	}
	mid := func(v []float64) float64 { return (floats.Min(v) + floats.Max(v)) / 2 }
	return MagOffset{X: mid(xs), Y: mid(ys), Z: mid(zs)}, nil
}

func calibrateGyroEvery(src imu.Source, window, interval time.Duration) (GyroOffset, error) {
	xs, ys, zs, err := collect(src, window, interval, "gyro", func(s imu.Sample) r3.Vec { return s.Gyro })
	if err != nil {
		return GyroOffset{}, err
	}
	return GyroOffset{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)}, nil
}

// collect blocks for the full window. There is no early exit; a read error
// aborts the window and is returned as is.
func collect(src imu.Source, window, interval time.Duration, name string, pick func(imu.Sample) r3.Vec) (xs, ys, zs []float64, err error) {
	if src == nil {
		return nil, nil, nil, fmt.Errorf("orientation: %s calibration: source is nil: %w", name, ErrInvalidParameter)
	}
	if window <= 0 {
		return nil, nil, nil, fmt.Errorf("orientation: %s calibration: window=%s must be > 0: %w", name, window, ErrInvalidParameter)
	}
	if interval < 0 {
		return nil, nil, nil, fmt.Errorf("orientation: %s calibration: interval=%s must be >= 0: %w", name, interval, ErrInvalidParameter)
	}

	start := now()
	for now().Sub(start) < window {
		s, err := src.Read()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("orientation: %s calibration: %w", name, err)
		}
		v := pick(s)
		if err := checkFinite(name, v); err != nil {
			return nil, nil, nil, err
		}
		xs = append(xs, v.X)
		ys = append(ys, v.Y)
		zs = append(zs, v.Z)
		if interval > 0 {
			sleep(interval)
		}
	}
	if len(xs) == 0 {
		return nil, nil, nil, fmt.Errorf("orientation: %s calibration collected no samples in %s: %w", name, window, ErrCalibration)
	}
	return xs, ys, zs, nil
}

// Step names a calibration phase for CalibrationConfig.OnStep.
type Step string

const (
	StepGyro Step = "gyro"
	StepMag  Step = "mag"
)

type CalibrationConfig struct {
	MagWindow  time.Duration
	GyroWindow time.Duration
	// Interval paces reads inside a window; 0 reads as fast as the source
	// allows.
	Interval time.Duration
	// OnStep, if set, is called before each window starts so a caller can
	// prompt the operator (hold still / wave around).
	OnStep func(Step)
}

// Calibrate runs the gyroscope window then the magnetometer window on a
// worker goroutine. If ctx ends first, ctx.Err() is returned and whatever
// the worker later produces is discarded: a partial window is never a valid
// offset. The worker itself cannot be interrupted and finishes its current
// window in the background.
func Calibrate(ctx context.Context, src imu.Source, cfg CalibrationConfig) (Offsets, error) {
	if ctx == nil {
		return Offsets{}, fmt.Errorf("orientation: ctx is nil: %w", ErrInvalidParameter)
	}
	if cfg.MagWindow == 0 {
		cfg.MagWindow = DefaultMagWindow
	}
	if cfg.GyroWindow == 0 {
		cfg.GyroWindow = DefaultGyroWindow
	}

	type result struct {
		off Offsets
		err error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		if cfg.OnStep != nil {
			cfg.OnStep(StepGyro)
		}
		r.off.Gyro, r.err = calibrateGyroEvery(src, cfg.GyroWindow, cfg.Interval)
		if r.err == nil {
			if cfg.OnStep != nil {
				cfg.OnStep(StepMag)
			}
			r.off.Mag, r.err = calibrateMagEvery(src, cfg.MagWindow, cfg.Interval)
		}
		done <- r
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return Offsets{}, r.err
		}
		return r.off, nil
	case <-ctx.Done():
		return Offsets{}, ctx.Err()
	}
}
