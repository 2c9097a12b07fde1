// Package replay records raw IMU samples to a log and plays them back as a
// sample source for bench runs without hardware.
package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"flatsat/internal/imu"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" marks the beginning of a recording.
// - Data lines are: <t_ns>,ax,ay,az,mx,my,mz,gx,gy,gz
//   where t_ns is nanoseconds since START and the rest is imu.FormatLine.

type Record struct {
	At     time.Duration
	Sample imu.Sample
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)

	recs := make([]Record, 0, 1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") || line == "START" {
			continue
		}

		comma := strings.IndexByte(line, ',')
		if comma < 0 {
			return nil, fmt.Errorf("replay: line %d: missing comma", lineNo)
		}
		tsNs, err := strconv.ParseInt(strings.TrimSpace(line[:comma]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("replay: line %d: timestamp: %w", lineNo, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("replay: line %d: negative timestamp %d", lineNo, tsNs)
		}
		sample, err := imu.ParseLine(line[comma+1:])
		if err != nil {
			return nil, fmt.Errorf("replay: line %d: %w", lineNo, err)
		}
		recs = append(recs, Record{At: time.Duration(tsNs), Sample: sample})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

// Writer records samples as they are read during a run.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("replay: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw}, nil
}

// WriteSample appends s. The first sample's time becomes the origin.
func (ww *Writer) WriteSample(s imu.Sample) error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return errors.New("replay: writer is closed")
	}
	at := s.Time
	if at.IsZero() {
		at = time.Now()
	}
	if ww.start.IsZero() {
		ww.start = at
	}
	d := at.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), imu.FormatLine(s))
	return err
}

func (ww *Writer) Close() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

// Tee returns a source that records every sample src yields to w.
func Tee(src imu.Source, w *Writer) imu.Source {
	return &teeSource{src: src, w: w}
}

type teeSource struct {
	src imu.Source
	w   *Writer
}

func (t *teeSource) Read() (imu.Sample, error) {
	s, err := t.src.Read()
	if err != nil {
		return s, err
	}
	if werr := t.w.WriteSample(s); werr != nil {
		return s, fmt.Errorf("replay: record: %w", werr)
	}
	return s, nil
}
