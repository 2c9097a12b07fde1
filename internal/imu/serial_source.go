package imu

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
	"gonum.org/v1/gonum/spatial/r3"
)

// PortOptions describes the serial link to a USB IMU bridge (a
// microcontroller streaming one CSV line per sample).
type PortOptions struct {
	Device      string
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string
	ReadTimeout time.Duration
}

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if strings.TrimSpace(opts.Device) == "" {
		return opts, fmt.Errorf("imu: serial device is required")
	}
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("imu: invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("imu: invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}
	switch strings.ToUpper(strings.TrimSpace(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("imu: unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 2 * time.Second
	}
	return opts, nil
}

func (o PortOptions) serialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{BaudRate: opts.BaudRate, DataBits: opts.DataBits}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	} else {
		mode.StopBits = serial.OneStopBit
	}
	return mode, nil
}

// SerialSource parses samples streamed by an IMU bridge. Line format:
//
//	ax,ay,az,mx,my,mz,gx,gy,gz
//
// in m/s^2, gauss and rad/s. Blank lines and lines starting with '#' are
// skipped so the bridge can print banners.
type SerialSource struct {
	rc   io.ReadCloser
	scan *bufio.Scanner
	now  func() time.Time
}

func OpenSerial(opts PortOptions) (*SerialSource, error) {
	norm, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := norm.serialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(norm.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("imu: open %s: %w", norm.Device, err)
	}
	if err := port.SetReadTimeout(norm.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("imu: set read timeout: %w", err)
	}
	return newSerialSource(port), nil
}

func newSerialSource(rc io.ReadCloser) *SerialSource {
	return &SerialSource{rc: rc, scan: bufio.NewScanner(rc), now: time.Now}
}

func (s *SerialSource) Read() (Sample, error) {
	if s == nil {
		return Sample{}, fmt.Errorf("imu: source is nil")
	}
	for s.scan.Scan() {
		line := strings.TrimSpace(s.scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sample, err := ParseLine(line)
		if err != nil {
			return Sample{}, err
		}
		sample.Time = s.now()
		return sample, nil
	}
	if err := s.scan.Err(); err != nil {
		return Sample{}, fmt.Errorf("imu: serial read: %w", err)
	}
	return Sample{}, fmt.Errorf("imu: serial read: %w", io.EOF)
}

func (s *SerialSource) Close() error {
	if s == nil || s.rc == nil {
		return nil
	}
	return s.rc.Close()
}

// ParseLine decodes one bridge line. Values are not range-checked; non-finite
// numbers pass through so the estimator can reject them.
func ParseLine(line string) (Sample, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 9 {
		return Sample{}, fmt.Errorf("imu: line has %d fields want 9", len(fields))
	}
	var v [9]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("imu: field %d: %w", i, err)
		}
		v[i] = x
	}
	return Sample{
		Accel: r3.Vec{X: v[0], Y: v[1], Z: v[2]},
		Mag:   r3.Vec{X: v[3], Y: v[4], Z: v[5]},
		Gyro:  r3.Vec{X: v[6], Y: v[7], Z: v[8]},
	}, nil
}

// FormatLine is the inverse of ParseLine.
func FormatLine(s Sample) string {
	v := [9]float64{
		s.Accel.X, s.Accel.Y, s.Accel.Z,
		s.Mag.X, s.Mag.Y, s.Mag.Z,
		s.Gyro.X, s.Gyro.Y, s.Gyro.Z,
	}
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
