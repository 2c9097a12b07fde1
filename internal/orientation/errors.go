package orientation

import "errors"

// These sentinels belong to this package. brightness has its own
// ErrInvalidParameter; errors.Is against one does not match the other.
var (
	// ErrCalibration reports a calibration window that collected no samples.
	ErrCalibration = errors.New("calibration failed")
	// ErrSensorRead reports a non-finite or missing axis value.
	ErrSensorRead = errors.New("sensor read failed")
	// ErrInvalidParameter reports a non-positive window or a negative time step.
	ErrInvalidParameter = errors.New("invalid parameter")
)
