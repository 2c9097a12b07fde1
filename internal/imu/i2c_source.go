package imu

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"flatsat/internal/i2c"
	"flatsat/internal/sensors/lis3mdl"
	"flatsat/internal/sensors/lsm6dsox"
)

type I2CConfig struct {
	Bus           int
	AccelGyroAddr uint16
	MagAddr       uint16
}

// I2CSource reads the LSM6DSOX + LIS3MDL pair found on the flatsat IMU
// breakout. Both devices share one bus handle.
type I2CSource struct {
	bus       *i2c.Bus
	accelGyro *lsm6dsox.Device
	mag       *lis3mdl.Device
}

func OpenI2C(cfg I2CConfig) (*I2CSource, error) {
	if cfg.Bus == 0 {
		cfg.Bus = 1
	}
	if cfg.AccelGyroAddr == 0 {
		cfg.AccelGyroAddr = lsm6dsox.DefaultAddress()
	}
	if cfg.MagAddr == 0 {
		cfg.MagAddr = lis3mdl.DefaultAddress()
	}

	bus, err := i2c.Open(i2c.Path(cfg.Bus))
	if err != nil {
		return nil, err
	}
	ag, err := lsm6dsox.New(bus.Dev(cfg.AccelGyroAddr))
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("imu: accel/gyro init: %w", err)
	}
	mag, err := lis3mdl.New(bus.Dev(cfg.MagAddr))
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("imu: magnetometer init: %w", err)
	}
	return &I2CSource{bus: bus, accelGyro: ag, mag: mag}, nil
}

func (s *I2CSource) Read() (Sample, error) {
	if s == nil {
		return Sample{}, fmt.Errorf("imu: source is nil")
	}
	ag, err := s.accelGyro.Read()
	if err != nil {
		return Sample{}, err
	}
	m, err := s.mag.Read()
	if err != nil {
		return Sample{}, err
	}
	return Sample{
		Time:  ag.Time,
		Accel: r3.Vec{X: ag.Ax, Y: ag.Ay, Z: ag.Az},
		Mag:   r3.Vec{X: m.Mx, Y: m.My, Z: m.Mz},
		Gyro:  r3.Vec{X: ag.Gx, Y: ag.Gy, Z: ag.Gz},
	}, nil
}

func (s *I2CSource) Close() error {
	if s == nil {
		return nil
	}
	return s.bus.Close()
}
