package echogram

import (
	"math"
	"testing"
)

func TestLevelTracker_DefaultsUntilEnoughSamples(t *testing.T) {
	lt := NewLevelTracker(1)

	got := lt.Update(-40, -41, math.NaN(), math.Inf(1))
	if got.Min != DefaultMinDB || got.Max != DefaultMaxDB {
		t.Errorf("Expected default window, got %+v", got)
	}
}

func TestLevelTracker_PercentileWindow(t *testing.T) {
	lt := NewLevelTracker(1)

	values := make([]float64, 0, 200)
	for i := 0; i < 200; i++ {
		values = append(values, -120+float64(i%100))
	}
	got := lt.Update(values...)

	if got.Min >= got.Max {
		t.Fatalf("Invalid window %+v", got)
	}
	if got.Max-got.Min < minimumLevelRange {
		t.Errorf("Window narrower than %d dB: %+v", minimumLevelRange, got)
	}
	if got.Min > -110 || got.Max < -30 {
		t.Errorf("Window should cover the bulk of the data, got %+v", got)
	}
}

func TestLevelTracker_NarrowDataWidened(t *testing.T) {
	lt := NewLevelTracker(1)

	values := make([]float64, 100)
	for i := range values {
		values[i] = -60
	}
	got := lt.Update(values...)

	if got.Max-got.Min < minimumLevelRange {
		t.Errorf("Expected at least %d dB window, got %+v", minimumLevelRange, got)
	}
	if got.Mean != -60 {
		t.Errorf("Expected mean -60, got %v", got.Mean)
	}
}

func TestLevelTracker_SmoothingAndReset(t *testing.T) {
	lt := NewLevelTracker(0.5)

	values := make([]float64, 100)
	for i := range values {
		values[i] = -20
	}
	got := lt.Update(values...)

	// halfway between the default and the observed window
	if got.Min <= DefaultMinDB || got.Min >= -40 {
		t.Errorf("Expected smoothed minimum, got %+v", got)
	}

	lt.Reset()
	if c := lt.Current(); c.Min != DefaultMinDB || c.Max != DefaultMaxDB {
		t.Errorf("Expected defaults after reset, got %+v", c)
	}
}

func TestLevelTracker_CloneIsIndependent(t *testing.T) {
	lt := NewLevelTracker(1)

	values := make([]float64, 100)
	for i := range values {
		values[i] = -60
	}
	lt.Update(values...)
	before := lt.Current()

	clone := lt.Clone()
	for i := range values {
		values[i] = 20
	}
	if got := clone.Update(values...); got == before {
		t.Fatalf("Expected the clone to follow new data, got %+v", got)
	}

	if got := lt.Current(); got != before {
		t.Errorf("Expected original window %+v, got %+v", before, got)
	}
	if got := lt.Update(-60); got.Mean != -60 {
		t.Errorf("Original histogram picked up the clone's samples, mean %v", got.Mean)
	}
}
