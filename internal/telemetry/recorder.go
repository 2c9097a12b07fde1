package telemetry

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"flatsat/internal/report"
)

// Recorder keeps every frame it sees on a subscription.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
}

// Run consumes frames until ctx ends or the channel is closed.
func (r *Recorder) Run(ctx context.Context, frames <-chan Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			r.Add(f)
		}
	}
}

func (r *Recorder) Add(f Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

// Frames returns a copy of what has been recorded so far.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// WriteCSV writes the orientation log.
func (r *Recorder) WriteCSV(w io.Writer) error {
	frames := r.Frames()
	rows := make([]report.OrientationRow, len(frames))
	for i, f := range frames {
		rows[i] = report.OrientationRow{Time: f.Time, State: f.State}
	}
	return report.WriteOrientationCSV(w, rows)
}

var (
	rollColor  = color.RGBA{R: 200, A: 255}
	pitchColor = color.RGBA{G: 150, A: 255}
	yawColor   = color.RGBA{B: 200, A: 255}
)

// Plot renders roll, pitch and yaw against seconds since the first frame.
func (r *Recorder) Plot(title string) (*plot.Plot, error) {
	frames := r.Frames()
	if len(frames) == 0 {
		return nil, fmt.Errorf("telemetry: nothing recorded")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Angle (deg)"

	t0 := frames[0].Time
	roll := make(plotter.XYs, len(frames))
	pitch := make(plotter.XYs, len(frames))
	yaw := make(plotter.XYs, len(frames))
	for i, f := range frames {
		x := f.Time.Sub(t0).Seconds()
		roll[i] = plotter.XY{X: x, Y: f.State.RollDeg}
		pitch[i] = plotter.XY{X: x, Y: f.State.PitchDeg}
		yaw[i] = plotter.XY{X: x, Y: f.State.YawDeg}
	}

	for _, series := range []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{
		{"roll", roll, rollColor},
		{"pitch", pitch, pitchColor},
		{"yaw", yaw, yawColor},
	} {
		line, err := plotter.NewLine(series.pts)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %s line: %w", series.name, err)
		}
		line.Color = series.c
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(series.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	p.Add(plotter.NewGrid())
	return p, nil
}

// SavePlot writes the plot to path; the format follows the extension.
func (r *Recorder) SavePlot(path, title string) error {
	p, err := r.Plot(title)
	if err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("telemetry: save plot %s: %w", path, err)
	}
	return nil
}
