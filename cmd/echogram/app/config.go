package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/roman-kulish/marine-echogram/internal/display"
	"github.com/roman-kulish/marine-echogram/internal/history"
	"github.com/roman-kulish/marine-echogram/internal/render"
)

const (
	defaultWidth  = 1024
	defaultHeight = 600
)

type Config struct {
	// Source: either a recorded session or a command printing JSON lines
	DBPath    string
	SessionID int64
	From      *time.Time
	To        *time.Time
	Command   []string

	OutputFile string
	Format     render.ImageFormat
	Theme      render.ColorTheme
	TimeZone   *time.Location

	Width        int
	Height       int
	MaxPings     int
	MinDB        *float64
	MaxDB        *float64
	AutoLevels   bool
	PingSpacing  float64
	TickInterval *float64

	// Gestures applied before rendering
	ZoomSteps int
	Pan       float64

	Verbose       bool
	NoAnnotations bool
}

var validImageFormats = map[render.ImageFormat]struct{}{
	render.ImagePNG:  {},
	render.ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:      render.ImagePNG,
		Theme:       render.MarineTheme,
		TimeZone:    time.Local,
		Width:       defaultWidth,
		Height:      defaultHeight,
		MaxPings:    history.DefaultCapacity,
		PingSpacing: 1,
	}
}

// ParseConfig builds a configuration from command line arguments.
func ParseConfig(name string, args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	var imageFormat, theme, command, from, to, tz string
	var minDB, maxDB, tickInterval float64
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file to replay")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.StringVar(&from, "from", "", "Replay pings from this time (RFC 3339)")
	fs.StringVar(&to, "to", "", "Replay pings until this time (RFC 3339)")
	fs.StringVar(&command, "exec", "", "Command printing JSON ping records, one per line")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	fs.StringVar(&imageFormat, "f", string(render.ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(render.MarineTheme), "Color theme. [marine, classic, grayscale, jungle, thermal]")
	fs.StringVar(&tz, "tz", "Local", "Time zone of the info bar")
	fs.IntVar(&c.Width, "width", defaultWidth, "Echogram width in pixels")
	fs.IntVar(&c.Height, "height", defaultHeight, "Echogram height in pixels")
	fs.IntVar(&c.MaxPings, "max-pings", history.DefaultCapacity, "Number of pings kept in the history")
	fs.Float64Var(&minDB, "min-db", 0, "Intensity drawn as the weakest color (format nn.n)")
	fs.Float64Var(&maxDB, "max-db", 0, "Intensity drawn as the strongest color (format nn.n)")
	fs.BoolVar(&c.AutoLevels, "auto-levels", false, "Derive the intensity window from the data")
	fs.Float64Var(&c.PingSpacing, "ping-spacing", 1, "Horizontal stretch of ping columns")
	fs.Float64Var(&tickInterval, "tick-interval", 0, "Fixed depth tick interval in meters; automatic when omitted")
	fs.IntVar(&c.ZoomSteps, "zoom-steps", 0, "Wheel steps to zoom around the center; negative zooms out")
	fs.Float64Var(&c.Pan, "pan", 0, "Meters to drag the view down")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as the depth scale")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "min-db":
			c.MinDB = &minDB
		case "max-db":
			c.MaxDB = &maxDB
		case "tick-interval":
			c.TickInterval = &tickInterval
		}
	})

	c.Command = strings.Fields(command)

	var err error
	if c.From, err = parseTime("from", from); err != nil {
		return nil, err
	}
	if c.To, err = parseTime("to", to); err != nil {
		return nil, err
	}
	if c.TimeZone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid time zone: %w", err)
	}
	if c.Theme, err = render.ParseColorTheme(theme); err != nil {
		return nil, err
	}
	c.Format = render.ImageFormat(strings.ToLower(imageFormat))

	if err = c.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}

	if filepath.Ext(c.OutputFile) != "."+string(c.Format) {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	}
	return c, nil
}

func parseTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s time: %w", name, err)
	}
	return &t, nil
}

func (c *Config) Validate() error {
	switch {
	case c.DBPath == "" && len(c.Command) == 0:
		return errors.New("either a database or a command is required")
	case c.DBPath != "" && len(c.Command) > 0:
		return errors.New("a database and a command are mutually exclusive")
	case c.DBPath != "" && c.SessionID <= 0:
		return errors.New("session id is required")
	case c.From != nil && c.To != nil && c.From.After(*c.To):
		return fmt.Errorf("from %s is after to %s", c.From.Format(time.RFC3339), c.To.Format(time.RFC3339))
	case c.OutputFile == "":
		return errors.New("output file is required")
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("invalid image size: %dx%d", c.Width, c.Height)
	case c.MaxPings <= 0 || c.MaxPings > display.MaxPingCount:
		return fmt.Errorf("max pings must be between 1 and %d: %d", display.MaxPingCount, c.MaxPings)
	case c.MinDB != nil && c.MaxDB != nil && *c.MinDB >= *c.MaxDB:
		return fmt.Errorf("min dB must be below max dB: %g >= %g", *c.MinDB, *c.MaxDB)
	case c.AutoLevels && (c.MinDB != nil || c.MaxDB != nil):
		return errors.New("auto levels and a manual dB window are mutually exclusive")
	case !(c.PingSpacing > 0):
		return fmt.Errorf("ping spacing must be positive: %g", c.PingSpacing)
	case c.TickInterval != nil && !(*c.TickInterval > 0):
		return fmt.Errorf("tick interval must be positive: %g", *c.TickInterval)
	}

	if _, ok := validImageFormats[c.Format]; !ok {
		return fmt.Errorf("invalid image format: %s", c.Format)
	}
	return nil
}
