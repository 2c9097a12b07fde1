package trigger

import (
	"fmt"
	"math"
	"time"
)

// Defaults for the depart/return detector.
const (
	DefaultWindow   = 20
	DefaultSampleDT = 100 * time.Millisecond
	DefaultDepartM  = 1.0
	DefaultReturnM  = 0.3
)

// Displacement integrates a run of accelerations (m/s^2) sampled every dt
// seconds, starting from rest, and returns the travelled distance in metres.
func Displacement(accel []float64, dt float64) float64 {
	var v, d float64
	for _, a := range accel {
		v += a * dt
		d += v*dt + 0.5*a*dt*dt
	}
	return d
}

type Phase uint8

const (
	// AtRest: waiting for the payload to move away.
	AtRest Phase = iota
	// Departed: moved far enough; waiting for it to come back.
	Departed
)

func (p Phase) String() string {
	if p == Departed {
		return "departed"
	}
	return "at-rest"
}

type DepartReturnConfig struct {
	// Window is the number of most recent samples integrated.
	Window int
	// DT is the nominal spacing between samples.
	DT time.Duration
	// DepartM is the |displacement| that counts as having left.
	DepartM float64
	// ReturnM is the |displacement| under which a departed payload is back.
	ReturnM float64
}

func (c DepartReturnConfig) withDefaults() DepartReturnConfig {
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.DT == 0 {
		c.DT = DefaultSampleDT
	}
	if c.DepartM == 0 {
		c.DepartM = DefaultDepartM
	}
	if c.ReturnM == 0 {
		c.ReturnM = DefaultReturnM
	}
	return c
}

// DepartReturn watches one accelerometer axis and fires when the payload
// has moved away and then come back. After firing it re-arms.
type DepartReturn struct {
	cfg   DepartReturnConfig
	buf   []float64
	phase Phase
	last  float64
}

func NewDepartReturn(cfg DepartReturnConfig) (*DepartReturn, error) {
	cfg = cfg.withDefaults()
	if cfg.Window < 1 {
		return nil, fmt.Errorf("trigger: window %d must be >= 1", cfg.Window)
	}
	if cfg.DT < 0 {
		return nil, fmt.Errorf("trigger: sample interval %s must not be negative", cfg.DT)
	}
	if cfg.DepartM <= 0 || cfg.ReturnM <= 0 {
		return nil, fmt.Errorf("trigger: depart %.3g and return %.3g must be > 0", cfg.DepartM, cfg.ReturnM)
	}
	if cfg.ReturnM >= cfg.DepartM {
		return nil, fmt.Errorf("trigger: return %.3g must be below depart %.3g", cfg.ReturnM, cfg.DepartM)
	}
	return &DepartReturn{cfg: cfg, buf: make([]float64, 0, cfg.Window)}, nil
}

func (d *DepartReturn) Phase() Phase { return d.phase }

// Displacement is the value computed on the last Push.
func (d *DepartReturn) Displacement() float64 { return d.last }

// Push adds one acceleration sample and reports whether the return
// condition was met on it. Non-finite samples are ignored.
func (d *DepartReturn) Push(a float64) bool {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return false
	}
	if len(d.buf) == d.cfg.Window {
		copy(d.buf, d.buf[1:])
		d.buf = d.buf[:len(d.buf)-1]
	}
	d.buf = append(d.buf, a)
	d.last = Displacement(d.buf, d.cfg.DT.Seconds())

	switch d.phase {
	case AtRest:
		if math.Abs(d.last) > d.cfg.DepartM {
			d.phase = Departed
		}
	case Departed:
		if math.Abs(d.last) < d.cfg.ReturnM {
			d.Reset()
			return true
		}
	}
	return false
}

// Reset drops the window and goes back to AtRest.
func (d *DepartReturn) Reset() {
	d.buf = d.buf[:0]
	d.phase = AtRest
	d.last = 0
}
