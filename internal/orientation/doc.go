// Package orientation derives roll/pitch/yaw from raw IMU samples and
// computes the sensor calibration offsets those estimates depend on.
//
// Two estimation modes are provided and kept independent:
//
//   - absolute: tilt from the accelerometer, tilt-compensated magnetic
//     heading from the hard-iron corrected magnetometer. Stateless.
//   - relative: first-order integration of the calibrated gyro rate from a
//     previous State. It drifts; nothing here re-anchors it against the
//     absolute estimate, that decision belongs to the caller.
//
// All public angles are degrees. Trigonometry runs in radians internally.
// Yaw is wrapped into [-180, 180) by both modes; roll and pitch are never
// wrapped in relative mode.
//
// Errors wrap this package's sentinels (ErrCalibration, ErrSensorRead,
// ErrInvalidParameter). They are distinct from the brightness sentinels of
// the same name.
//
// Offsets and States are plain values owned by the caller. Nothing in this
// package holds session state, so it is safe for concurrent use.
package orientation
