package echogram

import (
	"maps"
	"math"
)

const (
	DefaultMinDB = -100.0 // dB
	DefaultMaxDB = 10.0   // dB

	// For 20 samples:
	// - 5% percentile  = 1 sample
	// - 95% percentile = 19th sample
	minimumSampleCount = 20

	minimumLevelRange = 30 // dB
)

// Levels is an intensity window suggested from observed samples.
type Levels struct {
	Min  float64 // 5th percentile minus margin, dB
	Max  float64 // 95th percentile plus margin, dB
	Mean float64 // Mean intensity, dB
}

func defaultLevels() Levels {
	return Levels{
		Min:  DefaultMinDB,
		Max:  DefaultMaxDB,
		Mean: (DefaultMinDB + DefaultMaxDB) / 2,
	}
}

// levelHistogram maintains a histogram of intensities with 1dB bins
type levelHistogram struct {
	bins       map[int]uint32
	totalCount uint64
	minBin     int
	maxBin     int
}

func newLevelHistogram() *levelHistogram {
	return &levelHistogram{
		bins:   make(map[int]uint32),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

// halve scales all bin counts down by factor of 2
func (h *levelHistogram) halve() {
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32

	for bin := range h.bins {
		h.bins[bin] /= 2
		if h.bins[bin] == 0 {
			delete(h.bins, bin)
			continue
		}
		h.minBin = min(h.minBin, bin)
		h.maxBin = max(h.maxBin, bin)
	}
	h.totalCount /= 2
}

func (h *levelHistogram) add(value float64) {
	bin := int(math.Floor(value))

	if h.bins[bin] == math.MaxUint32 || h.totalCount == math.MaxUint64 {
		h.halve()
	}

	h.bins[bin]++
	h.totalCount++
	h.minBin = min(h.minBin, bin)
	h.maxBin = max(h.maxBin, bin)
}

func (h *levelHistogram) reset() {
	clear(h.bins)
	h.totalCount = 0
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32
}

// percentileLevels returns the 5th..95th percentile window widened to at
// least minimumLevelRange and padded by 10%.
func (h *levelHistogram) percentileLevels() Levels {
	if h.totalCount < minimumSampleCount {
		return defaultLevels()
	}

	target := h.totalCount * 5 / 100

	var count uint64
	var low, high int

	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += uint64(h.bins[bin])
		if count >= target {
			low = bin
			break
		}
	}

	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += uint64(h.bins[bin])
		if count >= target {
			high = bin
			break
		}
	}

	var sum float64
	for bin, n := range h.bins {
		sum += float64(bin) * float64(n)
	}
	mean := sum / float64(h.totalCount)

	if high-low < minimumLevelRange {
		center := (high + low) / 2
		low = center - minimumLevelRange/2
		high = center + minimumLevelRange/2
	}

	margin := (high - low) / 10
	return Levels{
		Min:  float64(low - margin),
		Max:  float64(high + margin),
		Mean: mean,
	}
}

// LevelTracker suggests a dB window for quantization from the intensities
// seen so far, smoothing changes so the display does not flicker.
type LevelTracker struct {
	hist    *levelHistogram
	alpha   float64 // Smoothing factor (0-1)
	current Levels
}

// NewLevelTracker creates a tracker with smoothing factor alpha in (0, 1].
func NewLevelTracker(alpha float64) *LevelTracker {
	if !(alpha > 0) || alpha > 1 {
		alpha = 1
	}
	return &LevelTracker{
		hist:    newLevelHistogram(),
		alpha:   alpha,
		current: defaultLevels(),
	}
}

// Update adds finite values to the histogram and returns the smoothed window.
func (t *LevelTracker) Update(values ...float64) Levels {
	var added bool
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		t.hist.add(v)
		added = true
	}
	if !added {
		return t.current
	}

	next := t.hist.percentileLevels()

	t.current.Min = t.current.Min*(1-t.alpha) + next.Min*t.alpha
	t.current.Max = t.current.Max*(1-t.alpha) + next.Max*t.alpha
	t.current.Mean = next.Mean
	return t.current
}

// Clone returns a tracker with the same observations that can be updated
// without affecting t.
func (t *LevelTracker) Clone() *LevelTracker {
	hist := *t.hist
	hist.bins = maps.Clone(t.hist.bins)
	return &LevelTracker{
		hist:    &hist,
		alpha:   t.alpha,
		current: t.current,
	}
}

// Current returns the current smoothed window.
func (t *LevelTracker) Current() Levels {
	return t.current
}

// Reset forgets every observed value.
func (t *LevelTracker) Reset() {
	t.hist.reset()
	t.current = defaultLevels()
}
