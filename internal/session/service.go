// Package session runs the estimator continuously against a live sensor
// and publishes every estimate.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"flatsat/internal/imu"
	"flatsat/internal/orientation"
	"flatsat/internal/telemetry"
)

type Mode string

const (
	ModeAbsolute Mode = "absolute"
	ModeRelative Mode = "relative"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAbsolute, ModeRelative:
		return m, nil
	}
	return "", fmt.Errorf("session: unknown mode %q", s)
}

const (
	DefaultInterval = 100 * time.Millisecond
	// DefaultMaxGap: a longer gap between samples is not integrated.
	DefaultMaxGap = 500 * time.Millisecond
)

type Config struct {
	Mode     Mode
	Interval time.Duration
	MaxGap   time.Duration
	Offsets  orientation.Offsets
	// Seed is the starting attitude in relative mode.
	Seed orientation.State
	// SeedAt is when Seed was sampled. The first relative step integrates
	// from it; zero means the first sample only anchors time.
	SeedAt time.Time
}

type Snapshot struct {
	Valid     bool
	Mode      Mode
	State     orientation.State
	Samples   uint64
	Errors    uint64
	LastError string
	UpdatedAt time.Time
}

var now = time.Now

type Service struct {
	cfg    Config
	src    imu.Source
	stream *telemetry.Stream

	// Owned by the run loop.
	state  orientation.State
	lastAt time.Time

	mu   sync.RWMutex
	snap Snapshot

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New validates cfg. stream may be nil when nobody listens.
func New(cfg Config, src imu.Source, stream *telemetry.Stream) (*Service, error) {
	if src == nil {
		return nil, fmt.Errorf("session: source is nil")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAbsolute
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("session: interval %s must be > 0", cfg.Interval)
	}
	if cfg.MaxGap == 0 {
		cfg.MaxGap = DefaultMaxGap
	}
	s := &Service{
		cfg:    cfg,
		src:    src,
		stream: stream,
		state:  cfg.Seed,
		stopCh: make(chan struct{}),
	}
	s.snap.Mode = cfg.Mode
	if cfg.Mode == ModeRelative {
		s.lastAt = cfg.SeedAt
		s.snap.State = cfg.Seed
		s.snap.Valid = true
	}
	return s, nil
}

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Close stops Run. It is safe to call more than once.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Run polls the source every Interval until ctx is done, Close is called or
// the source reports io.EOF. Other per-sample failures are recorded in the
// snapshot and skipped.
func (s *Service) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("session: service is nil")
	}
	tick := time.NewTicker(s.cfg.Interval)
	defer tick.Stop()

	log.Printf("session: started mode=%s interval=%s", s.cfg.Mode, s.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-tick.C:
			if _, err := s.Step(); err != nil {
				if errors.Is(err, io.EOF) {
					log.Printf("session: source exhausted")
					return nil
				}
				snap := s.Snapshot()
				// Log the first failure and then every 50th to keep the log usable.
				if snap.Errors == 1 || snap.Errors%50 == 0 {
					log.Printf("session: %v (errors=%d)", err, snap.Errors)
				}
			}
		}
	}
}

// Step reads one sample, updates the estimate and publishes it. It is not
// safe to call concurrently with Run.
func (s *Service) Step() (orientation.State, error) {
	sample, err := s.src.Read()
	if err != nil {
		err = fmt.Errorf("session: read: %w", err)
		s.recordErr(err)
		return orientation.State{}, err
	}
	at := sample.Time
	if at.IsZero() {
		at = now()
	}

	var next orientation.State
	switch s.cfg.Mode {
	case ModeRelative:
		var dt time.Duration
		if !s.lastAt.IsZero() {
			dt = at.Sub(s.lastAt)
		}
		if dt < 0 || dt > s.cfg.MaxGap {
			dt = 0
		}
		next, err = orientation.EstimateRelative(s.state, dt, s.cfg.Offsets.Gyro.Apply(sample))
	default:
		next, err = orientation.EstimateAbsolute(sample, s.cfg.Offsets.Mag)
	}
	if err != nil {
		err = fmt.Errorf("session: estimate: %w", err)
		s.recordErr(err)
		return orientation.State{}, err
	}
	s.state = next
	s.lastAt = at

	s.mu.Lock()
	s.snap.Valid = true
	s.snap.State = next
	s.snap.Samples++
	s.snap.UpdatedAt = at
	s.mu.Unlock()

	s.stream.Publish(telemetry.Frame{Time: at, State: next, Accel: sample.Accel})
	return next, nil
}

func (s *Service) recordErr(err error) {
	s.mu.Lock()
	s.snap.Errors++
	s.snap.LastError = err.Error()
	s.mu.Unlock()
}
