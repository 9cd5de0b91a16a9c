package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/marine-echogram/internal/ping"
)

// seafloorAttenuation is the intensity loss below the seafloor return, dB/m.
const seafloorAttenuation = 4.0

// Config describes the synthetic sonar.
type Config struct {
	Interval time.Duration // Time between pings

	SoundSpeed     float64 // m/s
	SampleRate     float64 // Hz
	Sample0        uint32  // Index of the first sample
	SamplesPerBeam uint32

	SeafloorDepth  float64       // Mean seafloor depth, m
	SwellAmplitude float64       // Seafloor depth oscillation, m
	SwellPeriod    time.Duration // Seafloor depth oscillation period
	SeafloorDB     float64       // Seafloor return intensity

	SurfaceDB   float64 // Surface reverberation intensity at 0m
	NoiseDB     float64 // Mean water column intensity
	NoiseStdDev float64 // Water column intensity spread, dB

	UnsupportedEvery   int     // Every n-th ping uses an unsupported encoding; 0 disables
	DropoutProbability float64 // Chance of a NaN bin

	Seed uint64
}

// DefaultConfig returns a 100m deep sounder pinging at 10 Hz.
func DefaultConfig() Config {
	return Config{
		Interval:       100 * time.Millisecond,
		SoundSpeed:     1500,
		SampleRate:     15000,
		SamplesPerBeam: 2000,
		SeafloorDepth:  60,
		SwellAmplitude: 2,
		SwellPeriod:    8 * time.Second,
		SeafloorDB:     -5,
		SurfaceDB:      -20,
		NoiseDB:        -80,
		NoiseStdDev:    6,
		Seed:           1,
	}
}

// Validate checks that the configuration describes a usable sonar.
func (c Config) Validate() error {
	var errs []error

	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must not be negative: %s", c.Interval))
	}
	if !(c.SoundSpeed > 0) || math.IsInf(c.SoundSpeed, 0) {
		errs = append(errs, fmt.Errorf("sound speed must be positive: %g", c.SoundSpeed))
	}
	if !(c.SampleRate > 0) || math.IsInf(c.SampleRate, 0) {
		errs = append(errs, fmt.Errorf("sample rate must be positive: %g", c.SampleRate))
	}
	if c.SamplesPerBeam == 0 {
		errs = append(errs, fmt.Errorf("samples per beam must be positive"))
	}
	if c.NoiseStdDev < 0 {
		errs = append(errs, fmt.Errorf("noise spread must not be negative: %g", c.NoiseStdDev))
	}
	if c.UnsupportedEvery < 0 {
		errs = append(errs, fmt.Errorf("unsupported ping period must not be negative: %d", c.UnsupportedEvery))
	}
	if c.DropoutProbability < 0 || c.DropoutProbability > 1 {
		errs = append(errs, fmt.Errorf("dropout probability must be within [0, 1]: %g", c.DropoutProbability))
	}

	return errors.Join(errs...)
}

// Generator produces a deterministic stream of synthetic pings.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	start  time.Time
	seq    int
	depths []float64 // Depth of every bin
}

// New creates a generator whose first ping is stamped at start.
func New(cfg Config, start time.Time) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}

	bin := 0.5 * cfg.SoundSpeed / cfg.SampleRate
	minDepth := float64(cfg.Sample0) * bin
	maxDepth := minDepth + float64(cfg.SamplesPerBeam-1)*bin

	depths := make([]float64, cfg.SamplesPerBeam)
	if len(depths) == 1 {
		depths[0] = minDepth
	} else {
		floats.Span(depths, minDepth, maxDepth)
	}

	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		start:  start,
		depths: depths,
	}, nil
}

// Seq returns the number of pings generated so far.
func (g *Generator) Seq() int { return g.seq }

// SeafloorAt returns the seafloor depth at elapsed time d.
func (g *Generator) SeafloorAt(d time.Duration) float64 {
	if g.cfg.SwellPeriod <= 0 {
		return g.cfg.SeafloorDepth
	}
	phase := 2 * math.Pi * d.Seconds() / g.cfg.SwellPeriod.Seconds()
	return g.cfg.SeafloorDepth + g.cfg.SwellAmplitude*math.Sin(phase)
}

// Next returns the next ping.
func (g *Generator) Next() *ping.Ping {
	elapsed := time.Duration(g.seq) * g.cfg.Interval
	ts := g.start.Add(elapsed)
	g.seq++

	if g.cfg.UnsupportedEvery > 0 && g.seq%g.cfg.UnsupportedEvery == 0 {
		return ping.FromRecord(ping.Record{
			Timestamp:      ts,
			SoundSpeed:     g.cfg.SoundSpeed,
			SampleRate:     g.cfg.SampleRate,
			Sample0:        g.cfg.Sample0,
			SamplesPerBeam: g.cfg.SamplesPerBeam,
			Encoding:       ping.EncodingUint16,
			Samples:        make([]byte, 2*g.cfg.SamplesPerBeam),
		})
	}

	floor := g.SeafloorAt(elapsed)
	values := make([]float32, len(g.depths))
	for i, d := range g.depths {
		if g.cfg.DropoutProbability > 0 && g.rng.Float64() < g.cfg.DropoutProbability {
			values[i] = float32(math.NaN())
			continue
		}
		values[i] = float32(g.intensity(d, floor))
	}

	return ping.NewFloat32(ts, g.cfg.SoundSpeed, g.cfg.SampleRate, g.cfg.Sample0, values)
}

// intensity combines water column noise, surface reverberation and the
// seafloor return, taking the strongest.
func (g *Generator) intensity(depth, floor float64) float64 {
	v := g.cfg.NoiseDB + g.rng.NormFloat64()*g.cfg.NoiseStdDev

	// surface reverberation fades by 20 dB per decade of depth
	if surface := g.cfg.SurfaceDB - 20*math.Log10(1+depth); surface > v {
		v = surface
	}

	if depth >= floor {
		if bottom := g.cfg.SeafloorDB - seafloorAttenuation*(depth-floor); bottom > v {
			v = bottom
		}
	}
	return v
}

// Run emits count pings (forever if count <= 0). With pace set it waits
// Interval between pings, otherwise it generates as fast as emit accepts.
func (g *Generator) Run(ctx context.Context, count int, pace bool, emit func(*ping.Ping) error) error {
	var tick <-chan time.Time
	if pace && g.cfg.Interval > 0 {
		ticker := time.NewTicker(g.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; count <= 0 || i < count; i++ {
		if tick != nil && i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := emit(g.Next()); err != nil {
			return fmt.Errorf("emitting ping %d: %w", g.seq, err)
		}
	}
	return nil
}
