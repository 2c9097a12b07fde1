package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"flatsat/internal/capture"
	"flatsat/internal/config"
	"flatsat/internal/imu"
	"flatsat/internal/orientation"
	"flatsat/internal/replay"
	"flatsat/internal/report"
	"flatsat/internal/session"
	"flatsat/internal/telemetry"
	"flatsat/internal/trigger"
)

var now = time.Now

func runDirName(t time.Time, id uuid.UUID) string {
	return t.UTC().Format("20060102-150405") + "-" + id.String()[:8]
}

func openSource(c config.IMUConfig) (imu.Source, io.Closer, error) {
	switch c.Source {
	case "replay":
		s, err := replay.OpenSource(c.Replay.Path, c.Replay.Speed, c.Replay.Loop)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "serial":
		s, err := imu.OpenSerial(imu.PortOptions{
			Device:      c.Serial.Device,
			BaudRate:    c.Serial.BaudRate,
			DataBits:    c.Serial.DataBits,
			StopBits:    c.Serial.StopBits,
			Parity:      c.Serial.Parity,
			ReadTimeout: c.Serial.ReadTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		s, err := imu.OpenI2C(imu.I2CConfig{
			Bus:           c.I2C.Bus,
			AccelGyroAddr: c.I2C.AccelGyroAddr,
			MagAddr:       c.I2C.MagAddr,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
}

func calibrate(ctx context.Context, src imu.Source, c config.CalibrationConfig) (orientation.Offsets, error) {
	if c.Skip {
		log.Printf("calibration skipped, using zero offsets")
		return orientation.Offsets{}, nil
	}
	off, err := orientation.Calibrate(ctx, src, orientation.CalibrationConfig{
		MagWindow:  c.MagWindow,
		GyroWindow: c.GyroWindow,
		Interval:   c.Interval,
		OnStep: func(step orientation.Step) {
			switch step {
			case orientation.StepGyro:
				log.Printf("calibration: hold the payload still for %s", c.GyroWindow)
			case orientation.StepMag:
				log.Printf("calibration: rotate the payload through all orientations for %s", c.MagWindow)
			}
		},
	})
	if err != nil {
		return orientation.Offsets{}, err
	}
	log.Printf("calibration done gyro=(%.5f %.5f %.5f) rad/s mag=(%.4f %.4f %.4f) gauss",
		off.Gyro.X, off.Gyro.Y, off.Gyro.Z, off.Mag.X, off.Mag.Y, off.Mag.Z)
	return off, nil
}

func run(ctx context.Context, cfg config.Config) error {
	runID := uuid.New()
	outDir := filepath.Join(cfg.Output.Dir, runDirName(now(), runID))
	log.Printf("run id=%s out=%s imu=%s mode=%s trigger=%s", runID, outDir, cfg.IMU.Source, cfg.Estimator.Mode, cfg.Trigger.Kind)

	src, closer, err := openSource(cfg.IMU)
	if err != nil {
		return fmt.Errorf("open imu: %w", err)
	}
	defer closer.Close()

	if cfg.Output.RecordRaw {
		w, err := replay.CreateWriter(filepath.Join(outDir, "imu.log"))
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Printf("imu log close failed: %v", err)
			}
		}()
		src = replay.Tee(src, w)
	}

	offsets, err := calibrate(ctx, src, cfg.Calibration)
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	mode, err := session.ParseMode(cfg.Estimator.Mode)
	if err != nil {
		return err
	}
	var (
		seed   orientation.State
		seedAt time.Time
	)
	if mode == session.ModeRelative {
		seed, seedAt, err = orientation.SetInitialAt(src, offsets.Mag)
		if err != nil {
			return fmt.Errorf("initial attitude: %w", err)
		}
		log.Printf("initial attitude roll=%.1f pitch=%.1f yaw=%.1f", seed.RollDeg, seed.PitchDeg, seed.YawDeg)
	}

	stream := telemetry.NewStream()
	svc, err := session.New(session.Config{
		Mode:     mode,
		Interval: cfg.Estimator.Interval,
		MaxGap:   cfg.Estimator.MaxGap,
		Offsets:  offsets,
		Seed:     seed,
		SeedAt:   seedAt,
	}, src, stream)
	if err != nil {
		return err
	}

	fire, err := newFirer(cfg.Trigger)
	if err != nil {
		return err
	}
	act, err := newActions(cfg, outDir)
	if err != nil {
		return err
	}
	defer act.Close()
	if err := act.captureBefore(ctx); err != nil {
		return fmt.Errorf("before image: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	rec := &telemetry.Recorder{}
	_, recCh := stream.Subscribe(256)
	_, trigCh := stream.Subscribe(64)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// Drains until the stream is closed so no published frame is lost.
		rec.Run(context.Background(), recCh)
	}()
	go func() {
		defer wg.Done()
		if err := watch(runCtx, trigCh, fire, act.onFire); err != nil {
			log.Printf("trigger task stopped: %v", err)
		}
		// The trigger task finishing (limit reached, pair compared) ends the run.
		stop()
	}()

	runErr := svc.Run(runCtx)
	stream.Close()
	wg.Wait()

	snap := svc.Snapshot()
	log.Printf("session done samples=%s errors=%s captures=%d", humanize.Comma(int64(snap.Samples)), humanize.Comma(int64(snap.Errors)), act.captures)
	if snap.LastError != "" {
		log.Printf("session last error: %s", snap.LastError)
	}

	if err := writeRecording(rec, outDir, runID, cfg.Output.Plot); err != nil {
		return err
	}
	if runErr != nil && ctx.Err() == nil && runCtx.Err() == nil {
		return runErr
	}
	return ctx.Err()
}

func writeRecording(rec *telemetry.Recorder, outDir string, runID uuid.UUID, plot bool) error {
	if rec.Len() == 0 {
		log.Printf("no orientation samples recorded")
		return nil
	}
	csvPath := filepath.Join(outDir, "orientation.csv")
	if err := report.WriteFile(csvPath, rec.WriteCSV); err != nil {
		return err
	}
	log.Printf("wrote %s (%s rows)", csvPath, humanize.Comma(int64(rec.Len())))
	if plot {
		plotPath := filepath.Join(outDir, "orientation.png")
		if err := rec.SavePlot(plotPath, "flatsat run "+runID.String()[:8]); err != nil {
			return err
		}
		log.Printf("wrote %s", plotPath)
	}
	return nil
}

// shooter is the camera as seen by the trigger task.
type shooter interface {
	Capture(ctx context.Context, path string) error
}

// actions is what happens when a trigger fires.
type actions struct {
	line   trigger.Line
	pulse  time.Duration
	camera shooter
	outDir string
	pair   bool
	limit  int
	bright config.BrightnessConfig

	fired    int
	captures int
	shots    []string
}

func newActions(cfg config.Config, outDir string) (*actions, error) {
	a := &actions{
		pulse:  cfg.Trigger.Pulse,
		outDir: outDir,
		pair:   cfg.Capture.Pair,
		limit:  cfg.Capture.Limit,
		bright: cfg.Brightness,
	}
	if len(cfg.Capture.Command) > 0 {
		cam, err := capture.New(capture.Config{
			Command: cfg.Capture.Command,
			Settle:  cfg.Capture.Settle,
			Timeout: cfg.Capture.Timeout,
		})
		if err != nil {
			return nil, err
		}
		a.camera = cam
	}
	if cfg.Trigger.GPIOPin > 0 {
		line, err := trigger.OpenLine(cfg.Trigger.GPIOPin)
		if err != nil {
			// Keep running without the line; captures still work.
			log.Printf("trigger gpio disabled: %v", err)
		} else {
			a.line = line
		}
	}
	return a, nil
}

func (a *actions) Close() {
	if a.line != nil {
		_ = a.line.Close()
	}
}

func (a *actions) shotPath() string {
	if a.pair {
		if len(a.shots) == 0 {
			return filepath.Join(a.outDir, "before.jpg")
		}
		return filepath.Join(a.outDir, "after.jpg")
	}
	return filepath.Join(a.outDir, fmt.Sprintf("shot-%03d.jpg", a.captures+1))
}

// captureBefore takes the reference picture of a pair run. The first
// trigger then takes the "after" picture and runs the comparison.
func (a *actions) captureBefore(ctx context.Context) error {
	if !a.pair || a.camera == nil || len(a.shots) > 0 {
		return nil
	}
	path := a.shotPath()
	if err := a.camera.Capture(ctx, path); err != nil {
		return err
	}
	a.captures++
	a.shots = append(a.shots, path)
	log.Printf("captured %s", path)
	return nil
}

// onFire reacts to one trigger. done reports that the run has nothing left
// to do.
func (a *actions) onFire(ctx context.Context, f telemetry.Frame) (done bool, err error) {
	a.fired++
	log.Printf("trigger fired n=%d roll=%.1f pitch=%.1f yaw=%.1f", a.fired, f.State.RollDeg, f.State.PitchDeg, f.State.YawDeg)

	if a.line != nil {
		if err := trigger.Pulse(a.line, a.pulse); err != nil {
			log.Printf("trigger pulse failed: %v", err)
		}
	}
	if a.camera == nil {
		return a.limit > 0 && a.fired >= a.limit, nil
	}

	path := a.shotPath()
	if err := a.camera.Capture(ctx, path); err != nil {
		return false, err
	}
	a.captures++
	a.shots = append(a.shots, path)
	log.Printf("captured %s", path)

	if a.pair && len(a.shots) == 2 {
		if _, err := compareImages(a.shots[0], a.shots[1], a.outDir, a.bright); err != nil {
			return true, err
		}
		return true, nil
	}
	return a.limit > 0 && a.captures >= a.limit, nil
}

// watch feeds frames to fire and calls onFire for each trigger until the
// stream closes, ctx ends or onFire reports done. Capture failures are
// logged and the task keeps watching.
func watch(ctx context.Context, frames <-chan telemetry.Frame, fire func(telemetry.Frame) bool, onFire func(context.Context, telemetry.Frame) (bool, error)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if !fire(f) {
				continue
			}
			done, err := onFire(ctx, f)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if done {
					return err
				}
				log.Printf("trigger action failed: %v", err)
			}
			if done {
				return nil
			}
		}
	}
}

// newFirer turns trigger config into a per-frame predicate.
func newFirer(c config.TriggerConfig) (func(telemetry.Frame) bool, error) {
	switch c.Kind {
	case "displacement":
		dr, err := trigger.NewDepartReturn(trigger.DepartReturnConfig{
			Window:  c.Window,
			DT:      c.SampleDT,
			DepartM: c.DepartM,
			ReturnM: c.ReturnM,
		})
		if err != nil {
			return nil, err
		}
		pick := accelAxis(c.AccelAxis)
		return func(f telemetry.Frame) bool {
			was := dr.Phase()
			fired := dr.Push(pick(f))
			if was != dr.Phase() && !fired {
				log.Printf("trigger %s d=%.2fm", dr.Phase(), dr.Displacement())
			}
			return fired
		}, nil
	default:
		axis, err := orientation.ParseAxis(c.Axis)
		if err != nil {
			return nil, err
		}
		at, err := trigger.NewAngleTrigger(axis, c.TargetDeg, c.MarginDeg)
		if err != nil {
			return nil, err
		}
		return func(f telemetry.Frame) bool { return at.Update(f.State) }, nil
	}
}

func accelAxis(name string) func(telemetry.Frame) float64 {
	switch name {
	case "y":
		return func(f telemetry.Frame) float64 { return f.Accel.Y }
	case "z":
		return func(f telemetry.Frame) float64 { return f.Accel.Z }
	default:
		return func(f telemetry.Frame) float64 { return f.Accel.X }
	}
}
