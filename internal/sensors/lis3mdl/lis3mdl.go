package lis3mdl

import (
	"fmt"
	"time"

	"flatsat/internal/i2c"
)

var sleep = time.Sleep

// Minimal LIS3MDL magnetometer driver: continuous conversion, 80 Hz,
// ultra-high-performance on all axes, +/-4 gauss.

const (
	addrDefault = 0x1C
	addrAlt     = 0x1E

	regWhoAmI = 0x0F
	whoAmIVal = 0x3D

	regCtrl1 = 0x20
	regCtrl2 = 0x21
	regCtrl3 = 0x22
	regCtrl4 = 0x23
	regCtrl5 = 0x24
	regOutXL = 0x28

	// Sub-address MSB enables auto-increment on I2C.
	autoIncrement = 0x80

	ctrl1UHPXY80Hz = 0x7C
	ctrl2SoftReset = 0x04
	ctrl2FS4Gauss  = 0x00
	ctrl3Continous = 0x00
	ctrl4UHPZ      = 0x0C
	ctrl5BDU       = 0x40

	lsbPerGauss4 = 6842.0
)

type Sample struct {
	Time time.Time
	// Field in gauss.
	Mx, My, Mz float64
}

type Device struct {
	dev regIO

	scale float64
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

func DefaultAddress() uint16 { return addrDefault }

// AltAddress is the address with SDO/SA1 pulled high.
func AltAddress() uint16 { return addrAlt }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("lis3mdl: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev regIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("lis3mdl: dev is nil")
	}
	d := &Device{dev: dev}

	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("lis3mdl: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("lis3mdl: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	if err := d.dev.WriteReg(regCtrl2, ctrl2SoftReset); err != nil {
		return fmt.Errorf("lis3mdl: reset failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	writes := []struct {
		reg, val byte
		name     string
	}{
		{regCtrl1, ctrl1UHPXY80Hz, "ctrl1"},
		{regCtrl2, ctrl2FS4Gauss, "ctrl2"},
		{regCtrl4, ctrl4UHPZ, "ctrl4"},
		{regCtrl5, ctrl5BDU, "ctrl5"},
		{regCtrl3, ctrl3Continous, "ctrl3"},
	}
	for _, w := range writes {
		if err := d.dev.WriteReg(w.reg, w.val); err != nil {
			return fmt.Errorf("lis3mdl: %s config failed: %w", w.name, err)
		}
	}
	sleep(15 * time.Millisecond)

	d.scale = 1.0 / lsbPerGauss4
	return nil
}

func (d *Device) Read() (Sample, error) {
	if d == nil {
		return Sample{}, fmt.Errorf("lis3mdl: device is nil")
	}

	buf := make([]byte, 6)
	if err := d.dev.ReadReg(regOutXL|autoIncrement, buf); err != nil {
		return Sample{}, fmt.Errorf("lis3mdl: read field failed: %w", err)
	}

	mx := int16(buf[1])<<8 | int16(buf[0])
	my := int16(buf[3])<<8 | int16(buf[2])
	mz := int16(buf[5])<<8 | int16(buf[4])

	return Sample{
		Time: time.Now(),
		Mx:   float64(mx) * d.scale,
		My:   float64(my) * d.scale,
		Mz:   float64(mz) * d.scale,
	}, nil
}
