package imu

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is one instant of raw IMU readings in SI units.
type Sample struct {
	Time time.Time
	// Accel in m/s^2.
	Accel r3.Vec
	// Mag in gauss.
	Mag r3.Vec
	// Gyro in rad/s.
	Gyro r3.Vec
}

// Source supplies samples on demand. Implementations block until a fresh
// sample is available (or fail).
type Source interface {
	Read() (Sample, error)
}
