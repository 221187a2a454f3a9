// Package jitter decides whether a probabilistic fault response replaces the
// baseline response of a definition.
package jitter

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source yields uniformly distributed samples in [0, 1).
type Source interface {
	Float64() float64
}

// ShouldTrigger draws exactly one sample from src and reports whether it
// falls below probabilityPercent. A probability of 0 or less never
// triggers and 100 or more always triggers, whatever the source returns.
func ShouldTrigger(probabilityPercent int, src Source) bool {
	sample := src.Float64() * 100
	switch {
	case probabilityPercent <= 0:
		return false
	case probabilityPercent >= 100:
		return true
	}
	return sample < float64(probabilityPercent)
}

// lockedSource makes a *rand.Rand safe for concurrent requests.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns a concurrency-safe PCG source. A zero seed seeds from
// the current time.
func NewSource(seed uint64) Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// SequenceSource replays fixed samples in order and wraps around at the end.
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	next   int
	draws  int
}

// Sequence returns a source that yields values in order. With no values it
// always yields 0.
func Sequence(values ...float64) *SequenceSource {
	return &SequenceSource{values: values}
}

func (s *SequenceSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws++
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next]
	s.next = (s.next + 1) % len(s.values)
	return v
}

// Draws returns how many samples have been taken.
func (s *SequenceSource) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}
