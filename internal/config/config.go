package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	IMU         IMUConfig         `yaml:"imu"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Estimator   EstimatorConfig   `yaml:"estimator"`
	Trigger     TriggerConfig     `yaml:"trigger"`
	Brightness  BrightnessConfig  `yaml:"brightness"`
	Capture     CaptureConfig     `yaml:"capture"`
	Output      OutputConfig      `yaml:"output"`
}

type IMUConfig struct {
	// Source is "i2c" (LSM6DSOX + LIS3MDL on the Pi bus), "serial" (CSV
	// sample lines from a microcontroller) or "replay" (a recorded log).
	Source string       `yaml:"source"`
	I2C    I2CConfig    `yaml:"i2c"`
	Serial SerialConfig `yaml:"serial"`
	Replay ReplayConfig `yaml:"replay"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type I2CConfig struct {
	Bus           int    `yaml:"bus"`
	AccelGyroAddr uint16 `yaml:"accel_gyro_addr"`
	MagAddr       uint16 `yaml:"mag_addr"`
}

type SerialConfig struct {
	Device      string        `yaml:"device"`
	BaudRate    int           `yaml:"baud_rate"`
	DataBits    int           `yaml:"data_bits"`
	StopBits    int           `yaml:"stop_bits"`
	Parity      string        `yaml:"parity"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type CalibrationConfig struct {
	// Skip uses zero offsets; only sensible for bench tests.
	Skip       bool          `yaml:"skip"`
	MagWindow  time.Duration `yaml:"mag_window"`
	GyroWindow time.Duration `yaml:"gyro_window"`
	Interval   time.Duration `yaml:"interval"`
}

type EstimatorConfig struct {
	Mode     string        `yaml:"mode"`
	Interval time.Duration `yaml:"interval"`
	MaxGap   time.Duration `yaml:"max_gap"`
}

type TriggerConfig struct {
	// Kind is "angle" or "displacement".
	Kind string `yaml:"kind"`

	Axis      string  `yaml:"axis"`
	TargetDeg float64 `yaml:"target_deg"`
	MarginDeg float64 `yaml:"margin_deg"`

	AccelAxis string        `yaml:"accel_axis"`
	Window    int           `yaml:"window"`
	SampleDT  time.Duration `yaml:"sample_dt"`
	DepartM   float64       `yaml:"depart_m"`
	ReturnM   float64       `yaml:"return_m"`

	// GPIOPin is the BCM pin pulsed on every trigger; 0 disables it.
	GPIOPin int           `yaml:"gpio_pin"`
	Pulse   time.Duration `yaml:"pulse"`
}

type BrightnessConfig struct {
	BlockSize      int     `yaml:"block_size"`
	Threshold      float64 `yaml:"threshold"`
	TotalThreshold float64 `yaml:"total_threshold"`
	Annotate       bool    `yaml:"annotate"`
}

type CaptureConfig struct {
	// Command is run on every trigger; "{path}" in any argument is replaced
	// with the output image path. Empty disables capturing.
	Command []string      `yaml:"command"`
	Settle  time.Duration `yaml:"settle"`
	Timeout time.Duration `yaml:"timeout"`
	// Pair treats the first two captures as before/after and compares them.
	Pair bool `yaml:"pair"`
	// Limit stops the run after this many captures; 0 means no limit.
	Limit int `yaml:"limit"`
}

type OutputConfig struct {
	Dir  string `yaml:"dir"`
	Plot bool   `yaml:"plot"`
	// RecordRaw writes every sample to imu.log for later replay.
	RecordRaw bool `yaml:"record_raw"`
}

var yamlLinePrefix = regexp.MustCompile(`^line \d+: `)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			msgs := make([]string, 0, len(te.Errors))
			unknown := true
			for _, m := range te.Errors {
				m = yamlLinePrefix.ReplaceAllString(m, "")
				if !strings.Contains(m, "not found in type") {
					unknown = false
				}
				msgs = append(msgs, m)
			}
			if unknown {
				return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(msgs, "; "))
			}
			return Config{}, fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return Config{}, err
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills zero values with defaults and rejects settings
// the run cannot honour.
func DefaultAndValidate(cfg *Config) error {
	switch cfg.IMU.Source {
	case "":
		cfg.IMU.Source = "i2c"
	case "i2c", "serial", "replay":
	default:
		return fmt.Errorf("imu.source must be 'i2c', 'serial' or 'replay'")
	}
	if cfg.IMU.I2C.Bus == 0 {
		cfg.IMU.I2C.Bus = 1
	}
	if cfg.IMU.I2C.Bus < 0 {
		return fmt.Errorf("imu.i2c.bus must be >= 0")
	}
	if cfg.IMU.Source == "serial" && cfg.IMU.Serial.Device == "" {
		return fmt.Errorf("imu.serial.device is required when imu.source is 'serial'")
	}
	if cfg.IMU.Source == "replay" && cfg.IMU.Replay.Path == "" {
		return fmt.Errorf("imu.replay.path is required when imu.source is 'replay'")
	}
	if cfg.IMU.Replay.Speed == 0 {
		cfg.IMU.Replay.Speed = 1
	}
	if cfg.IMU.Replay.Speed < 0 {
		return fmt.Errorf("imu.replay.speed must be > 0")
	}
	if cfg.Output.RecordRaw && cfg.IMU.Source == "replay" {
		return fmt.Errorf("output.record_raw cannot be used with imu.source 'replay'")
	}

	if cfg.Calibration.MagWindow == 0 {
		cfg.Calibration.MagWindow = 10 * time.Second
	}
	if cfg.Calibration.GyroWindow == 0 {
		cfg.Calibration.GyroWindow = 5 * time.Second
	}
	if cfg.Calibration.MagWindow < 0 || cfg.Calibration.GyroWindow < 0 {
		return fmt.Errorf("calibration windows must be > 0")
	}
	if cfg.Calibration.Interval == 0 {
		cfg.Calibration.Interval = 20 * time.Millisecond
	}
	if cfg.Calibration.Interval < 0 {
		return fmt.Errorf("calibration.interval must be >= 0")
	}

	switch cfg.Estimator.Mode {
	case "":
		cfg.Estimator.Mode = "absolute"
	case "absolute", "relative":
	default:
		return fmt.Errorf("estimator.mode must be 'absolute' or 'relative'")
	}
	if cfg.Estimator.Interval == 0 {
		cfg.Estimator.Interval = 100 * time.Millisecond
	}
	if cfg.Estimator.Interval < 0 {
		return fmt.Errorf("estimator.interval must be > 0")
	}
	if cfg.Estimator.MaxGap == 0 {
		cfg.Estimator.MaxGap = 500 * time.Millisecond
	}

	if err := defaultTrigger(&cfg.Trigger); err != nil {
		return err
	}

	if cfg.Brightness.BlockSize == 0 {
		cfg.Brightness.BlockSize = 10
	}
	if cfg.Brightness.BlockSize < 0 {
		return fmt.Errorf("brightness.block_size must be > 0")
	}
	if cfg.Brightness.Threshold == 0 {
		cfg.Brightness.Threshold = 100
	}
	if cfg.Brightness.Threshold < 0 || cfg.Brightness.Threshold > 255 {
		return fmt.Errorf("brightness.threshold must be within 0..255")
	}
	if cfg.Brightness.TotalThreshold < 0 {
		return fmt.Errorf("brightness.total_threshold must be >= 0")
	}

	if cfg.Capture.Settle == 0 {
		cfg.Capture.Settle = 2 * time.Second
	}
	if cfg.Capture.Timeout == 0 {
		cfg.Capture.Timeout = 30 * time.Second
	}
	if cfg.Capture.Settle < 0 || cfg.Capture.Timeout < 0 {
		return fmt.Errorf("capture.settle and capture.timeout must be >= 0")
	}
	if cfg.Capture.Limit < 0 {
		return fmt.Errorf("capture.limit must be >= 0")
	}
	if len(cfg.Capture.Command) > 0 {
		hasPath := false
		for _, arg := range cfg.Capture.Command {
			if strings.Contains(arg, "{path}") {
				hasPath = true
			}
		}
		if !hasPath {
			return fmt.Errorf("capture.command must contain a {path} placeholder")
		}
	}
	if cfg.Capture.Pair && len(cfg.Capture.Command) == 0 {
		return fmt.Errorf("capture.pair requires capture.command")
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "./flatsat-out"
	}
	return nil
}

func defaultTrigger(t *TriggerConfig) error {
	switch t.Kind {
	case "":
		t.Kind = "angle"
	case "angle", "displacement":
	default:
		return fmt.Errorf("trigger.kind must be 'angle' or 'displacement'")
	}

	if t.Axis == "" {
		t.Axis = "roll"
	}
	switch t.Axis {
	case "roll", "pitch", "yaw":
	default:
		return fmt.Errorf("trigger.axis must be 'roll', 'pitch' or 'yaw'")
	}
	if t.MarginDeg == 0 {
		t.MarginDeg = 2
	}
	if t.MarginDeg < 0 {
		return fmt.Errorf("trigger.margin_deg must be > 0")
	}

	if t.AccelAxis == "" {
		t.AccelAxis = "x"
	}
	switch t.AccelAxis {
	case "x", "y", "z":
	default:
		return fmt.Errorf("trigger.accel_axis must be 'x', 'y' or 'z'")
	}
	if t.Window == 0 {
		t.Window = 20
	}
	if t.Window < 0 {
		return fmt.Errorf("trigger.window must be > 0")
	}
	if t.SampleDT == 0 {
		t.SampleDT = 100 * time.Millisecond
	}
	if t.DepartM == 0 {
		t.DepartM = 1
	}
	if t.ReturnM == 0 {
		t.ReturnM = 0.3
	}
	if t.DepartM < 0 || t.ReturnM < 0 {
		return fmt.Errorf("trigger.depart_m and trigger.return_m must be > 0")
	}
	if t.ReturnM >= t.DepartM {
		return fmt.Errorf("trigger.return_m must be below trigger.depart_m")
	}

	if t.GPIOPin < 0 {
		return fmt.Errorf("trigger.gpio_pin must be >= 0")
	}
	if t.Pulse == 0 {
		t.Pulse = 100 * time.Millisecond
	}
	return nil
}
