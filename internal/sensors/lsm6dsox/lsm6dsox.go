package lsm6dsox

import (
	"fmt"
	"math"
	"time"

	"flatsat/internal/i2c"
)

var sleep = time.Sleep

// Minimal LSM6DSOX accelerometer/gyroscope driver.
//
// Configures both sensors at 104 Hz, accel +/-4 g, gyro +/-250 dps, with
// block data update and register auto-increment so one 12-byte read covers
// gyro XYZ followed by accel XYZ.

const (
	addrDefault = 0x6A
	addrAlt     = 0x6B

	regWhoAmI = 0x0F
	whoAmIVal = 0x6C

	regCtrl1XL = 0x10
	regCtrl2G  = 0x11
	regCtrl3C  = 0x12
	regOutXLG  = 0x22 // gyro X..Z, then accel X..Z, little-endian

	ctrl3SwReset = 0x01
	ctrl3IfInc   = 0x04
	ctrl3BDU     = 0x40

	odr104Hz  = 0x40
	fsAccel4g = 0x08
	fsGyro250 = 0x00

	// Datasheet sensitivities.
	accelMgPerLSB4g    = 0.122
	gyroMdpsPerLSB250  = 8.75
	standardGravityMS2 = 9.80665
)

type Sample struct {
	Time time.Time
	// Accel in m/s^2.
	Ax, Ay, Az float64
	// Gyro in rad/s.
	Gx, Gy, Gz float64
}

type Device struct {
	dev regIO

	scaleAccel float64
	scaleGyro  float64
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

func DefaultAddress() uint16 { return addrDefault }

// AltAddress is the address with SA0 pulled high.
func AltAddress() uint16 { return addrAlt }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("lsm6dsox: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev regIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("lsm6dsox: dev is nil")
	}
	d := &Device{dev: dev}

	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("lsm6dsox: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("lsm6dsox: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	if err := d.dev.WriteReg(regCtrl3C, ctrl3SwReset); err != nil {
		return fmt.Errorf("lsm6dsox: reset failed: %w", err)
	}
	sleep(20 * time.Millisecond)

	if err := d.dev.WriteReg(regCtrl3C, ctrl3BDU|ctrl3IfInc); err != nil {
		return fmt.Errorf("lsm6dsox: ctrl3 failed: %w", err)
	}
	if err := d.dev.WriteReg(regCtrl1XL, odr104Hz|fsAccel4g); err != nil {
		return fmt.Errorf("lsm6dsox: accel config failed: %w", err)
	}
	if err := d.dev.WriteReg(regCtrl2G, odr104Hz|fsGyro250); err != nil {
		return fmt.Errorf("lsm6dsox: gyro config failed: %w", err)
	}
	// Let the first conversion land before the caller reads.
	sleep(20 * time.Millisecond)

	d.scaleAccel = accelMgPerLSB4g / 1000.0 * standardGravityMS2
	d.scaleGyro = gyroMdpsPerLSB250 / 1000.0 * math.Pi / 180.0
	return nil
}

func (d *Device) Read() (Sample, error) {
	if d == nil {
		return Sample{}, fmt.Errorf("lsm6dsox: device is nil")
	}

	buf := make([]byte, 12)
	if err := d.dev.ReadReg(regOutXLG, buf); err != nil {
		return Sample{}, fmt.Errorf("lsm6dsox: read sensors failed: %w", err)
	}

	gx := int16(buf[1])<<8 | int16(buf[0])
	gy := int16(buf[3])<<8 | int16(buf[2])
	gz := int16(buf[5])<<8 | int16(buf[4])
	ax := int16(buf[7])<<8 | int16(buf[6])
	ay := int16(buf[9])<<8 | int16(buf[8])
	az := int16(buf[11])<<8 | int16(buf[10])

	return Sample{
		Time: time.Now(),
		Ax:   float64(ax) * d.scaleAccel,
		Ay:   float64(ay) * d.scaleAccel,
		Az:   float64(az) * d.scaleAccel,
		Gx:   float64(gx) * d.scaleGyro,
		Gy:   float64(gy) * d.scaleGyro,
		Gz:   float64(gz) * d.scaleGyro,
	}, nil
}
