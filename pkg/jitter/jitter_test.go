package jitter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// boundarySamples covers the edges of [0, 1) plus values a broken source
// might produce outside it.
var boundarySamples = []float64{0, math.SmallestNonzeroFloat64, 0.5, 0.99, math.Nextafter(1, 0), 1, -0.1, 1.5}

func TestShouldTrigger_ZeroNeverTriggers(t *testing.T) {
	src := Sequence(boundarySamples...)
	for i := 0; i < 1200; i++ {
		assert.False(t, ShouldTrigger(0, src))
	}

	rng := NewSource(42)
	for i := 0; i < 5000; i++ {
		if ShouldTrigger(0, rng) {
			t.Fatalf("probability 0 triggered on draw %d", i)
		}
	}
}

func TestShouldTrigger_HundredAlwaysTriggers(t *testing.T) {
	src := Sequence(boundarySamples...)
	for i := 0; i < 1200; i++ {
		assert.True(t, ShouldTrigger(100, src))
	}

	rng := NewSource(7)
	for i := 0; i < 5000; i++ {
		if !ShouldTrigger(100, rng) {
			t.Fatalf("probability 100 did not trigger on draw %d", i)
		}
	}
}

func TestShouldTrigger_Threshold(t *testing.T) {
	tests := []struct {
		p      int
		sample float64
		want   bool
	}{
		{50, 0.49, true},
		{50, 0.50, false},
		{50, 0.51, false},
		{1, 0.0, true},
		{1, 0.015, false},
		{99, 0.989, true},
		{99, 0.995, false},
		{-5, 0, false},
		{150, 0.999, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldTrigger(tt.p, Sequence(tt.sample)), "p=%d sample=%v", tt.p, tt.sample)
	}
}

func TestShouldTrigger_DrawsExactlyOnce(t *testing.T) {
	for _, p := range []int{0, 30, 100} {
		src := Sequence(0.2)
		ShouldTrigger(p, src)
		assert.Equal(t, 1, src.Draws(), "p=%d", p)
	}
}

func TestNewSource_Deterministic(t *testing.T) {
	a, b := NewSource(99), NewSource(99)
	for i := 0; i < 100; i++ {
		va, vb := a.Float64(), b.Float64()
		assert.Equal(t, va, vb)
		assert.GreaterOrEqual(t, va, 0.0)
		assert.Less(t, va, 1.0)
	}
}

func TestNewSource_RoughDistribution(t *testing.T) {
	src := NewSource(1234)
	hits := 0
	const n = 20000
	for i := 0; i < n; i++ {
		if ShouldTrigger(25, src) {
			hits++
		}
	}
	ratio := float64(hits) / n
	assert.InDelta(t, 0.25, ratio, 0.03)
}

func TestSequence_Empty(t *testing.T) {
	src := Sequence()
	assert.Equal(t, 0.0, src.Float64())
	assert.True(t, ShouldTrigger(10, src))
}
