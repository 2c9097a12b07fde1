// Package telemetry fans estimator output out to concurrent consumers and
// records it for later review.
package telemetry

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"flatsat/internal/orientation"
)

// Frame is one estimator output together with the raw acceleration it was
// derived from, so consumers can run motion triggers without a second
// sensor reader.
type Frame struct {
	Time  time.Time
	State orientation.State
	Accel r3.Vec
}

// Stream fans frames out to any number of subscribers. Slow subscribers
// drop frames instead of blocking the publisher. The most recent frame is
// replayed to new subscribers.
type Stream struct {
	mu       sync.RWMutex
	subs     map[int]chan Frame
	nextID   int
	last     Frame
	haveLast bool
	closed   bool
}

func NewStream() *Stream {
	return &Stream{
		subs: make(map[int]chan Frame),
	}
}

// Subscribe registers a listener with the given channel buffer. The channel
// is closed by Unsubscribe or Close.
func (s *Stream) Subscribe(buffer int) (int, <-chan Frame) {
	if s == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan Frame, buffer)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return -1, ch
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	last := s.last
	have := s.haveLast
	s.mu.Unlock()
	if have {
		select {
		case ch <- last:
		default:
		}
	}
	return id, ch
}

func (s *Stream) Unsubscribe(id int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	ch, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
}

// Publish delivers f to every subscriber without blocking.
func (s *Stream) Publish(f Frame) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.subs {
		select {
		case ch <- f:
		default:
		}
	}
	s.last = f
	s.haveLast = true
}

// Last returns the most recently published frame.
func (s *Stream) Last() (Frame, bool) {
	if s == nil {
		return Frame{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.haveLast
}

// Close ends the stream: all subscriber channels are closed and later
// publishes are dropped. It is the shared stop signal for consumers.
func (s *Stream) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
