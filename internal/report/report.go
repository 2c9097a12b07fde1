// Package report writes the CSV artefacts of a flatsat run.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"flatsat/internal/brightness"
	"flatsat/internal/orientation"
)

// StatusHeader is the header row of the block status table.
var StatusHeader = []string{"Block Row", "Block Column", "Status"}

// DiffHeader is the header row of the per-block brightness difference table.
var DiffHeader = []string{"Pixel Index", "Brightness Difference"}

// OrientationHeader is the header row of the orientation log.
var OrientationHeader = []string{"time", "roll_deg", "pitch_deg", "yaw_deg"}

// WriteStatusCSV writes one row per block, row-major.
func WriteStatusCSV(w io.Writer, sg brightness.StatusGrid) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StatusHeader); err != nil {
		return fmt.Errorf("report: status header: %w", err)
	}
	for r := 0; r < sg.Rows; r++ {
		for c := 0; c < sg.Cols; c++ {
			rec := []string{strconv.Itoa(r), strconv.Itoa(c), sg.At(r, c).String()}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("report: status row %d,%d: %w", r, c, err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: status flush: %w", err)
	}
	return nil
}

// WriteDiffCSV writes before-after for each block, indexed row-major from 0.
// The difference is signed: positive where the scene got darker.
func WriteDiffCSV(w io.Writer, before, after brightness.Grid) error {
	if before.Rows != after.Rows || before.Cols != after.Cols || len(before.Cells) != len(after.Cells) {
		return fmt.Errorf("report: diff grids %dx%d vs %dx%d: %w",
			before.Rows, before.Cols, after.Rows, after.Cols, brightness.ErrDimensionMismatch)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(DiffHeader); err != nil {
		return fmt.Errorf("report: diff header: %w", err)
	}
	for i := range before.Cells {
		rec := []string{strconv.Itoa(i), strconv.FormatFloat(before.Cells[i]-after.Cells[i], 'f', -1, 64)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report: diff row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: diff flush: %w", err)
	}
	return nil
}

type OrientationRow struct {
	Time  time.Time
	State orientation.State
}

// WriteOrientationCSV writes one row per state with UTC RFC3339 timestamps
// and angles to millidegrees.
func WriteOrientationCSV(w io.Writer, rows []OrientationRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OrientationHeader); err != nil {
		return fmt.Errorf("report: orientation header: %w", err)
	}
	for i, row := range rows {
		rec := []string{
			row.Time.UTC().Format(time.RFC3339Nano),
			formatDeg(row.State.RollDeg),
			formatDeg(row.State.PitchDeg),
			formatDeg(row.State.YawDeg),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report: orientation row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: orientation flush: %w", err)
	}
	return nil
}

func formatDeg(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// WriteFile creates path (and its directory) and hands it to write. The
// file is removed again if write fails.
func WriteFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	return nil
}
