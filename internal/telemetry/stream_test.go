package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flatsat/internal/orientation"
)

func frameAt(sec int, roll float64) Frame {
	return Frame{
		Time:  time.Date(2025, 2, 25, 12, 0, sec, 0, time.UTC),
		State: orientation.State{RollDeg: roll},
	}
}

func TestStream_FanoutAndReplay(t *testing.T) {
	s := NewStream()
	id1, ch1 := s.Subscribe(4)
	_, ch2 := s.Subscribe(4)

	s.Publish(frameAt(0, 1))
	for i, ch := range []<-chan Frame{ch1, ch2} {
		select {
		case f := <-ch:
			if f.State.RollDeg != 1 {
				t.Fatalf("sub %d roll=%v want 1", i, f.State.RollDeg)
			}
		default:
			t.Fatalf("sub %d got nothing", i)
		}
	}

	_, late := s.Subscribe(1)
	select {
	case f := <-late:
		if f.State.RollDeg != 1 {
			t.Fatalf("replay roll=%v want 1", f.State.RollDeg)
		}
	default:
		t.Fatalf("late subscriber did not get the last frame")
	}

	s.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed after Unsubscribe")
	}
	if last, ok := s.Last(); !ok || last.State.RollDeg != 1 {
		t.Fatalf("last=%+v ok=%v", last, ok)
	}
}

func TestStream_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewStream()
	_, ch := s.Subscribe(1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(frameAt(i, float64(i)))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
	if f := <-ch; f.State.RollDeg != 0 {
		t.Fatalf("buffered roll=%v want first frame", f.State.RollDeg)
	}
}

func TestStream_CloseEndsSubscribers(t *testing.T) {
	s := NewStream()
	_, ch := s.Subscribe(2)
	s.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	s.Publish(frameAt(0, 5))
	if _, ok := s.Last(); ok {
		t.Fatalf("publish after close must be dropped")
	}
	if _, after := s.Subscribe(1); after == nil {
		t.Fatalf("subscribe after close returned nil channel")
	} else if _, ok := <-after; ok {
		t.Fatalf("subscribe after close must return a closed channel")
	}
	s.Close()
}

func TestRecorder_RunStopsOnClose(t *testing.T) {
	s := NewStream()
	_, ch := s.Subscribe(16)
	var r Recorder
	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), ch)
		close(done)
	}()
	for i := 0; i < 5; i++ {
		s.Publish(frameAt(i, float64(i)))
	}
	s.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("recorder did not stop on stream close")
	}
	if r.Len() != 5 {
		t.Fatalf("recorded %d frames want 5", r.Len())
	}
}

func TestRecorder_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var r Recorder
	done := make(chan struct{})
	go func() {
		r.Run(ctx, make(chan Frame))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("recorder did not stop on cancel")
	}
}

func TestRecorder_WriteCSVAndPlot(t *testing.T) {
	var r Recorder
	for i := 0; i < 3; i++ {
		r.Add(frameAt(i, float64(10*i)))
	}
	var buf bytes.Buffer
	if err := r.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines=%d want 4:\n%s", len(lines), buf.String())
	}
	if lines[3] != "2025-02-25T12:00:02Z,20.000,0.000,0.000" {
		t.Fatalf("last row=%q", lines[3])
	}

	path := filepath.Join(t.TempDir(), "orientation.png")
	if err := r.SavePlot(path, "session"); err != nil {
		t.Fatalf("SavePlot: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil || st.Size() == 0 {
		t.Fatalf("plot file stat=%v err=%v", st, err)
	}
}

func TestRecorder_PlotEmpty(t *testing.T) {
	var r Recorder
	if _, err := r.Plot("empty"); err == nil {
		t.Fatalf("expected error plotting no frames")
	}
}
