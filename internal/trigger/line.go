package trigger

import (
	"fmt"
	"time"
)

var sleep = time.Sleep

// Line is a digital output toggled when a trigger fires, e.g. a camera
// shutter input or a status LED.
type Line interface {
	Set(v int) error
	Close() error
}

// Pulse drives l high for d and then low again.
func Pulse(l Line, d time.Duration) error {
	if l == nil {
		return fmt.Errorf("trigger: line is nil")
	}
	if d <= 0 {
		return fmt.Errorf("trigger: pulse width %s must be > 0", d)
	}
	if err := l.Set(1); err != nil {
		return fmt.Errorf("trigger: line high: %w", err)
	}
	sleep(d)
	if err := l.Set(0); err != nil {
		return fmt.Errorf("trigger: line low: %w", err)
	}
	return nil
}

// OpenLine requests the BCM GPIO pin as an output, initially low.
func OpenLine(pin int) (Line, error) {
	return openLineFn(pin)
}
