package coop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantileSketch_ConvergesOnUniformDistribution(t *testing.T) {
	s := newQuantileSketch(0.01)
	for i := 1; i <= 1000; i++ {
		s.Update(float64(i))
	}
	assert.InDelta(t, 500, s.Quantile(0.5), 50)
	assert.InDelta(t, 900, s.Quantile(0.9), 50)
	assert.InDelta(t, 990, s.Quantile(0.99), 50)
	assert.Equal(t, float64(1000), s.Max())
	assert.Equal(t, 1000, s.Count())
	assert.InDelta(t, 500.5, s.Mean(), 0.01)
}

func TestQuantileSketch_InvalidAccuracyFallsBackToDefault(t *testing.T) {
	s := newQuantileSketch(0)
	want := (1 + defaultRelativeAccuracy) / (1 - defaultRelativeAccuracy)
	assert.InDelta(t, want, s.gamma, 1e-9)

	s = newQuantileSketch(1.5)
	assert.InDelta(t, want, s.gamma, 1e-9)
}

func TestQuantileSketch_EmptyQuantileIsZero(t *testing.T) {
	s := newQuantileSketch(0.01)
	assert.Equal(t, float64(0), s.Quantile(0.5))
	assert.Equal(t, float64(0), s.Max())
	assert.Equal(t, float64(0), s.Mean())
	assert.Equal(t, 0, s.Count())
}

func TestQuantileSketch_NonPositiveValuesTrackExactly(t *testing.T) {
	s := newQuantileSketch(0.01)
	for _, v := range []float64{0, 0, -5, 1} {
		s.Update(v)
	}
	assert.Equal(t, 4, s.Count())
	// zeros/negatives occupy the lowest ranks; rank 1..3 of 4 fall there.
	assert.Equal(t, float64(0), s.Quantile(0.5))
	assert.Equal(t, float64(1), s.Max())
}

func TestQuantileSketch_QuantileBoundsClampToMinAndMax(t *testing.T) {
	s := newQuantileSketch(0.01)
	for _, v := range []float64{10, 20, 30} {
		s.Update(v)
	}
	assert.Equal(t, float64(30), s.Quantile(1))
	assert.InDelta(t, 10, s.Quantile(0), 1)
}

func TestQuantileSketch_ResetClearsState(t *testing.T) {
	s := newQuantileSketch(0.01)
	s.Update(10)
	s.Update(20)
	s.Reset()

	assert.Equal(t, 0, s.Count())
	assert.Equal(t, float64(0), s.Sum())
	assert.Equal(t, float64(0), s.Max())
	assert.Equal(t, float64(0), s.Mean())
}
