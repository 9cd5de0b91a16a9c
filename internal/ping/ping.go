package ping

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	float32Size = 4

	// indexEpsilon absorbs rounding in (depth-min)/binSize so that a depth
	// computed as min+k*binSize resolves to bin k and not k-1.
	indexEpsilon = 1e-9
)

// ErrDegenerateGeometry is returned when a ping's sound speed or sample rate
// cannot produce a finite, positive depth mapping.
var ErrDegenerateGeometry = errors.New("degenerate ping geometry")

// Geometry is the depth mapping of a single ping, in meters.
type Geometry struct {
	MinDepth float64 // Depth of the first sample
	MaxDepth float64 // Depth just past the last sample
	BinSize  float64 // Depth covered by one sample
}

// Span returns the depth range covered by the ping.
func (g Geometry) Span() float64 {
	return g.MaxDepth - g.MinDepth
}

// Ping is a read-only view over one sonar ping: a sequence of intensity
// samples (dB) along depth. A Ping never changes after construction.
type Ping struct {
	timestamp      time.Time
	soundSpeed     float64
	sampleRate     float64
	sample0        uint32
	samplesPerBeam uint32
	encoding       Encoding
	samples        []byte

	geometry    Geometry
	geometryErr error
}

// FromRecord builds a Ping from its wire representation. The sample bytes are
// copied, so the record may be reused by the caller.
func FromRecord(r Record) *Ping {
	p := &Ping{
		timestamp:      r.Timestamp,
		soundSpeed:     r.SoundSpeed,
		sampleRate:     r.SampleRate,
		sample0:        r.Sample0,
		samplesPerBeam: r.SamplesPerBeam,
		encoding:       r.Encoding,
		samples:        append([]byte(nil), r.Samples...),
	}
	p.geometry, p.geometryErr = computeGeometry(r.SoundSpeed, r.SampleRate, r.Sample0, r.SamplesPerBeam)
	return p
}

// NewFloat32 creates a float32-encoded ping holding values, one per depth bin.
func NewFloat32(timestamp time.Time, soundSpeed, sampleRate float64, sample0 uint32, values []float32) *Ping {
	return FromRecord(Record{
		Timestamp:      timestamp,
		SoundSpeed:     soundSpeed,
		SampleRate:     sampleRate,
		Sample0:        sample0,
		SamplesPerBeam: uint32(len(values)),
		Encoding:       EncodingFloat32,
		Samples:        EncodeFloat32(values),
	})
}

func computeGeometry(soundSpeed, sampleRate float64, sample0, samplesPerBeam uint32) (Geometry, error) {
	valid := func(v float64) bool { return v > 0 && !math.IsInf(v, 0) }
	if !valid(soundSpeed) || !valid(sampleRate) {
		return Geometry{}, fmt.Errorf("%w: sound speed %g m/s, sample rate %g Hz", ErrDegenerateGeometry, soundSpeed, sampleRate)
	}

	g := Geometry{
		MinDepth: 0.5 * soundSpeed * float64(sample0) / sampleRate,
		MaxDepth: 0.5 * soundSpeed * (float64(sample0) + float64(samplesPerBeam)) / sampleRate,
		BinSize:  0.5 * soundSpeed / sampleRate,
	}
	if !valid(g.BinSize) || math.IsInf(g.MaxDepth, 0) {
		return Geometry{}, fmt.Errorf("%w: bin size %g m", ErrDegenerateGeometry, g.BinSize)
	}
	return g, nil
}

func (p *Ping) Timestamp() time.Time { return p.timestamp }
func (p *Ping) Encoding() Encoding   { return p.encoding }
func (p *Ping) SoundSpeed() float64  { return p.soundSpeed }
func (p *Ping) SampleRate() float64  { return p.sampleRate }

// Geometry returns the full depth mapping or ErrDegenerateGeometry.
func (p *Ping) Geometry() (Geometry, error) {
	return p.geometry, p.geometryErr
}

// MinimumDepth returns the depth of the first sample in meters.
func (p *Ping) MinimumDepth() (float64, error) {
	return p.geometry.MinDepth, p.geometryErr
}

// MaximumDepth returns the depth just past the last sample in meters.
func (p *Ping) MaximumDepth() (float64, error) {
	return p.geometry.MaxDepth, p.geometryErr
}

// BinSize returns the depth covered by a single sample in meters.
func (p *Ping) BinSize() (float64, error) {
	return p.geometry.BinSize, p.geometryErr
}

// Len returns the number of samples that can actually be read. It is bounded
// both by the declared samples per beam and by the bytes present, so a
// truncated message never causes an out of range read.
func (p *Ping) Len() int {
	if !p.encoding.Supported() {
		return 0
	}
	return min(int(p.samplesPerBeam), len(p.samples)/float32Size)
}

// SampleAt returns the sample of the bin containing depth, or NaN when the
// depth is outside [MinimumDepth, MaximumDepth), the encoding is unsupported,
// or the message does not carry that many samples.
func (p *Ping) SampleAt(depth float64) float64 {
	if !p.encoding.Supported() {
		return math.NaN()
	}
	return p.float32At(depth)
}

func (p *Ping) float32At(depth float64) float64 {
	if p.geometryErr != nil {
		return math.NaN()
	}
	g := p.geometry
	if !(depth >= g.MinDepth && depth < g.MaxDepth) {
		return math.NaN()
	}

	index := int(math.Floor((depth-g.MinDepth)/g.BinSize + indexEpsilon))
	if index < 0 || index >= p.Len() {
		return math.NaN()
	}
	return float64(p.float32Sample(index))
}

func (p *Ping) float32Sample(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(p.samples[i*float32Size:]))
}

// Values decodes every readable sample. Unsupported encodings yield nil.
func (p *Ping) Values() []float64 {
	n := p.Len()
	if n == 0 {
		return nil
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(p.float32Sample(i))
	}
	return values
}

// Stats summarises the finite samples of a ping.
type Stats struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Stats returns statistics over the finite samples. The boolean is false
// when there is nothing to summarise.
func (p *Ping) Stats() (Stats, bool) {
	values := p.Values()
	finite := values[:0]
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return Stats{}, false
	}

	mean, std := stat.MeanStdDev(finite, nil)
	if len(finite) == 1 {
		std = 0
	}
	return Stats{
		Count:  len(finite),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(finite),
		Max:    floats.Max(finite),
	}, true
}

// Record returns the wire representation of the ping.
func (p *Ping) Record() Record {
	return Record{
		Timestamp:      p.timestamp,
		SoundSpeed:     p.soundSpeed,
		SampleRate:     p.sampleRate,
		Sample0:        p.sample0,
		SamplesPerBeam: p.samplesPerBeam,
		Encoding:       p.encoding,
		Samples:        append([]byte(nil), p.samples...),
	}
}
