package replay

import (
	"errors"
	"fmt"
	"io"
	"time"

	"flatsat/internal/imu"
)

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Source plays recorded samples back as an imu.Source, waiting between
// reads so that the recording's timing is kept (scaled by speed).
// Timestamps follow the recording's own timeline starting at base, so
// gyro integration sees the recorded intervals whatever the speed.
type Source struct {
	recs    []Record
	speed   float64
	loop    bool
	sleeper Sleeper
	base    time.Time

	i        int
	pass     time.Duration
	lastAt   time.Duration
	haveLast bool
}

// speed: 1.0 = real time, 2.0 = 2x speed (half waits), 0.5 = half speed.
func NewSource(recs []Record, speed float64, loop bool, sleeper Sleeper) (*Source, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("replay: speed must be > 0")
	}
	if len(recs) == 0 {
		return nil, errors.New("replay: no records")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	return &Source{recs: recs, speed: speed, loop: loop, sleeper: sleeper, base: time.Now()}, nil
}

func OpenSource(path string, speed float64, loop bool) (*Source, error) {
	recs, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewSource(recs, speed, loop, nil)
}

func (s *Source) Read() (imu.Sample, error) {
	if s.i >= len(s.recs) {
		if !s.loop {
			return imu.Sample{}, fmt.Errorf("replay: %w", io.EOF)
		}
		// Continue the timeline so timestamps keep increasing.
		s.pass += s.recs[len(s.recs)-1].At
		s.i = 0
		s.haveLast = false
	}
	r := s.recs[s.i]
	s.i++

	if s.haveLast {
		wait := r.At - s.lastAt
		if wait > 0 {
			s.sleeper.Sleep(time.Duration(float64(wait) / s.speed))
		}
	}
	s.lastAt = r.At
	s.haveLast = true

	out := r.Sample
	out.Time = s.base.Add(s.pass + r.At)
	return out, nil
}

// Close exists so a Source can stand in for a hardware source.
func (s *Source) Close() error { return nil }
