package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"flatsat/internal/config"
	"flatsat/internal/imu"
	"flatsat/internal/replay"
)

// writeTiltLog records a payload that sits level and then rolls to 30 deg.
func writeTiltLog(t *testing.T, path string) {
	t.Helper()
	w, err := replay.CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	t0 := time.Date(2025, 2, 25, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		roll := 0.0
		if i >= 20 {
			roll = 30 * math.Pi / 180
		}
		s := imu.Sample{
			Time:  t0.Add(time.Duration(i) * 10 * time.Millisecond),
			Accel: r3.Vec{Y: 9.81 * math.Sin(roll), Z: 9.81 * math.Cos(roll)},
			Mag:   r3.Vec{X: 0.3},
		}
		if err := w.WriteSample(s); err != nil {
			t.Fatalf("WriteSample: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRun_ReplayUntilAngleTrigger(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "tilt.log")
	writeTiltLog(t, logPath)

	body := strings.Join([]string{
		"imu:",
		"  source: replay",
		"  replay:",
		"    path: " + logPath,
		"    speed: 10",
		"calibration:",
		"  skip: true",
		"estimator:",
		"  interval: 1ms",
		"trigger:",
		"  axis: roll",
		"  target_deg: 30",
		"capture:",
		"  limit: 1",
		"output:",
		"  dir: " + filepath.Join(dir, "out"),
		"  plot: true",
		"",
	}, "\n")
	cfgPath := filepath.Join(dir, "flatsat.yaml")
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := run(ctx, cfg); err != nil {
		t.Fatalf("run: %v", err)
	}

	runs, err := filepath.Glob(filepath.Join(dir, "out", "*"))
	if err != nil || len(runs) != 1 {
		t.Fatalf("run dirs=%v err=%v", runs, err)
	}
	b, err := os.ReadFile(filepath.Join(runs[0], "orientation.csv"))
	if err != nil {
		t.Fatalf("orientation.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if lines[0] != "time,roll_deg,pitch_deg,yaw_deg" || len(lines) < 2 {
		t.Fatalf("csv=%q", b)
	}
	if !strings.Contains(string(b), ",30.000,") {
		t.Fatalf("expected a 30 deg roll row before the trigger stopped the run:\n%s", b)
	}
	if _, err := os.Stat(filepath.Join(runs[0], "orientation.png")); err != nil {
		t.Fatalf("orientation.png: %v", err)
	}
}

// writeTripLog records one out-and-back move along x followed by rest.
func writeTripLog(t *testing.T, path string) {
	t.Helper()
	var ax []float64
	for _, seg := range []struct {
		a float64
		n int
	}{{3, 5}, {-3, 5}, {0, 3}, {-3, 5}, {3, 5}, {0, 40}} {
		for i := 0; i < seg.n; i++ {
			ax = append(ax, seg.a)
		}
	}
	w, err := replay.CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	t0 := time.Date(2025, 2, 25, 12, 0, 0, 0, time.UTC)
	for i, a := range ax {
		s := imu.Sample{
			Time:  t0.Add(time.Duration(i) * 10 * time.Millisecond),
			Accel: r3.Vec{X: a, Z: 9.81},
			Mag:   r3.Vec{X: 0.3},
		}
		if err := w.WriteSample(s); err != nil {
			t.Fatalf("WriteSample: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRun_PairComparesAfterOneTrip(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "trip.log")
	writeTripLog(t, logPath)
	beforeSrc := filepath.Join(dir, "lit.png")
	afterSrc := filepath.Join(dir, "dark.png")
	writeUniformPNG(t, beforeSrc, 20, 20, 200)
	writeUniformPNG(t, afterSrc, 20, 20, 50)
	marker := filepath.Join(dir, "taken")

	// First capture copies the lit scene, every later one the dark scene.
	script := `if [ -e "$2" ]; then cp "$1" "$3"; else cp "$0" "$3"; touch "$2"; fi`
	body := strings.Join([]string{
		"imu:",
		"  source: replay",
		"  replay:",
		"    path: " + logPath,
		"    speed: 10",
		"calibration:",
		"  skip: true",
		"estimator:",
		"  interval: 1ms",
		"trigger:",
		"  kind: displacement",
		"  accel_axis: x",
		"capture:",
		"  command: ['sh', '-c', '" + script + "', '" + beforeSrc + "', '" + afterSrc + "', '" + marker + "', '{path}']",
		"  settle: 1ms",
		"  pair: true",
		"output:",
		"  dir: " + filepath.Join(dir, "out"),
		"",
	}, "\n")
	cfgPath := filepath.Join(dir, "flatsat.yaml")
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := run(ctx, cfg); err != nil {
		t.Fatalf("run: %v", err)
	}

	runs, err := filepath.Glob(filepath.Join(dir, "out", "*"))
	if err != nil || len(runs) != 1 {
		t.Fatalf("run dirs=%v err=%v", runs, err)
	}
	for _, name := range []string{"before.jpg", "after.jpg", diffCSVName, overlayName} {
		if _, err := os.Stat(filepath.Join(runs[0], name)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	b, err := os.ReadFile(filepath.Join(runs[0], statusCSVName))
	if err != nil {
		t.Fatalf("%s: %v", statusCSVName, err)
	}
	if strings.Count(string(b), "Outage") != 4 {
		t.Fatalf("status csv=%q want 4 outage blocks", b)
	}
}
