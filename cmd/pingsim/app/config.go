package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/marine-echogram/internal/sim"
)

const (
	defaultName         = "pingsim"
	defaultDataDir      = "data"
	defaultMaxBatchSize = 100
)

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Generator GeneratorConfig `yaml:"generator"`
	Storage   StorageConfig   `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level returns the configured log level; empty means info.
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, err
	}
	return level, nil
}

// GeneratorConfig describes the simulated sounder and the run length.
type GeneratorConfig struct {
	Name string `yaml:"name" json:"name"`

	Count int  `yaml:"count" json:"count"` // Number of pings; 0 runs until interrupted
	Pace  bool `yaml:"pace" json:"pace"`   // Wait the interval between pings

	Interval TimeDuration `yaml:"interval" json:"interval"`

	SoundSpeed     float64 `yaml:"soundSpeed" json:"soundSpeed"`
	SampleRate     float64 `yaml:"sampleRate" json:"sampleRate"`
	Sample0        uint32  `yaml:"sample0" json:"sample0"`
	SamplesPerBeam uint32  `yaml:"samplesPerBeam" json:"samplesPerBeam"`

	SeafloorDepth  float64      `yaml:"seafloorDepth" json:"seafloorDepth"`
	SwellAmplitude float64      `yaml:"swellAmplitude" json:"swellAmplitude"`
	SwellPeriod    TimeDuration `yaml:"swellPeriod" json:"swellPeriod"`
	SeafloorDB     float64      `yaml:"seafloorDB" json:"seafloorDB"`

	SurfaceDB   float64 `yaml:"surfaceDB" json:"surfaceDB"`
	NoiseDB     float64 `yaml:"noiseDB" json:"noiseDB"`
	NoiseStdDev float64 `yaml:"noiseStdDev" json:"noiseStdDev"`

	UnsupportedEvery   int     `yaml:"unsupportedEvery" json:"unsupportedEvery"`
	DropoutProbability float64 `yaml:"dropoutProbability" json:"dropoutProbability"`

	Seed uint64 `yaml:"seed" json:"seed"`
}

// Sim converts the configuration for the generator.
func (c *GeneratorConfig) Sim() sim.Config {
	return sim.Config{
		Interval:           time.Duration(c.Interval),
		SoundSpeed:         c.SoundSpeed,
		SampleRate:         c.SampleRate,
		Sample0:            c.Sample0,
		SamplesPerBeam:     c.SamplesPerBeam,
		SeafloorDepth:      c.SeafloorDepth,
		SwellAmplitude:     c.SwellAmplitude,
		SwellPeriod:        time.Duration(c.SwellPeriod),
		SeafloorDB:         c.SeafloorDB,
		SurfaceDB:          c.SurfaceDB,
		NoiseDB:            c.NoiseDB,
		NoiseStdDev:        c.NoiseStdDev,
		UnsupportedEvery:   c.UnsupportedEvery,
		DropoutProbability: c.DropoutProbability,
		Seed:               c.Seed,
	}
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
}

// NewConfig returns the configuration used for any value the file omits.
func NewConfig() *Config {
	d := sim.DefaultConfig()

	return &Config{
		Settings: Settings{LogLevel: "info"},
		Generator: GeneratorConfig{
			Name:               defaultName,
			Interval:           TimeDuration(d.Interval),
			SoundSpeed:         d.SoundSpeed,
			SampleRate:         d.SampleRate,
			Sample0:            d.Sample0,
			SamplesPerBeam:     d.SamplesPerBeam,
			SeafloorDepth:      d.SeafloorDepth,
			SwellAmplitude:     d.SwellAmplitude,
			SwellPeriod:        TimeDuration(d.SwellPeriod),
			SeafloorDB:         d.SeafloorDB,
			SurfaceDB:          d.SurfaceDB,
			NoiseDB:            d.NoiseDB,
			NoiseStdDev:        d.NoiseStdDev,
			UnsupportedEvery:   d.UnsupportedEvery,
			DropoutProbability: d.DropoutProbability,
			Seed:               d.Seed,
		},
		Storage: StorageConfig{
			DataDirectory: defaultDataDir,
			MaxBatchSize:  defaultMaxBatchSize,
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration over the defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	c := NewConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, &ConfigError{Field: "settings.logLevel", Err: err})
	}
	if c.Generator.Name == "" {
		errs = append(errs, &ConfigError{Field: "generator.name", Err: errors.New("must not be empty")})
	}
	if c.Generator.Count < 0 {
		errs = append(errs, &ConfigError{Field: "generator.count", Err: fmt.Errorf("must not be negative: %d", c.Generator.Count)})
	}
	if err := c.Generator.Sim().Validate(); err != nil {
		errs = append(errs, &ConfigError{Field: "generator", Err: err})
	}
	if c.Storage.MaxBatchSize <= 0 {
		errs = append(errs, &ConfigError{Field: "storage.maxBatchSize", Err: fmt.Errorf("must be positive: %d", c.Storage.MaxBatchSize)})
	}

	return errors.Join(errs...)
}

// TimeDuration is a time.Duration written as "100ms", "8s" or "1m".
type TimeDuration time.Duration

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}
