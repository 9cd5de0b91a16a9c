package display

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roman-kulish/marine-echogram/internal/echogram"
	"github.com/roman-kulish/marine-echogram/internal/history"
	"github.com/roman-kulish/marine-echogram/internal/ping"
	"github.com/roman-kulish/marine-echogram/internal/viewport"
)

const (
	// MaxPingCount bounds the history capacity, and with it the raster width.
	MaxPingCount = 8192

	defaultLevelSmoothing = 0.2
)

var (
	// ErrCapacity is returned for a ping capacity the display cannot hold.
	ErrCapacity = errors.New("invalid ping capacity")

	// ErrInvalidSetting is returned when a tunable is rejected. The previous
	// value stays in effect.
	ErrInvalidSetting = errors.New("invalid setting")
)

// PointerListener receives the depth under the pointer.
type PointerListener func(depth float64)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) func(*Controller) {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMaxPings sets the history capacity and the raster width.
func WithMaxPings(n int) func(*Controller) {
	return func(c *Controller) {
		c.maxPings = n
	}
}

// WithDBRange sets the intensity window mapped onto the gray scale.
func WithDBRange(minDB, maxDB float64) func(*Controller) {
	return func(c *Controller) {
		c.minDB = minDB
		c.maxDB = maxDB
	}
}

// WithPingSpacing sets the display width multiplier per ping.
func WithPingSpacing(spacing float64) func(*Controller) {
	return func(c *Controller) {
		c.pingSpacing = spacing
	}
}

// WithTickInterval fixes the depth axis tick interval, disabling adaptive
// tick selection.
func WithTickInterval(interval float64) func(*Controller) {
	return func(c *Controller) {
		c.tickInterval = interval
	}
}

// WithPointerListener registers a listener for pointer depth notifications.
func WithPointerListener(listener PointerListener) func(*Controller) {
	return func(c *Controller) {
		c.listeners = append(c.listeners, listener)
	}
}

// WithAutoLevels derives the dB window from the observed intensities.
func WithAutoLevels() func(*Controller) {
	return func(c *Controller) {
		c.levels = echogram.NewLevelTracker(defaultLevelSmoothing)
	}
}

// WithMaxCells sets the raster cell budget.
func WithMaxCells(n int) func(*Controller) {
	return func(c *Controller) {
		c.maxCells = n
	}
}

// Settings is a snapshot of the display tunables.
type Settings struct {
	MinDB        float64
	MaxDB        float64
	PingSpacing  float64
	TickInterval float64
	AutoTick     bool
	AutoLevels   bool
	MaxPings     int
}

// Controller turns ping arrivals and user gestures into frames. It owns the
// ping history, the current raster and the viewport.
//
// Controller is single-threaded: every method must be called from the same
// goroutine. Pings from other goroutines go through a feed.Queue.
type Controller struct {
	logger *slog.Logger

	history  *history.History
	viewport *viewport.Viewport
	raster   *echogram.Raster
	levels   *echogram.LevelTracker

	listeners []PointerListener

	minDB        float64
	maxDB        float64
	maxPings     int
	maxCells     int
	pingSpacing  float64
	tickInterval float64 // 0 keeps adaptive ticks
}

// New creates a controller with an empty history.
func New(options ...func(*Controller)) (*Controller, error) {
	c := Controller{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		minDB:       echogram.DefaultMinDB,
		maxDB:       echogram.DefaultMaxDB,
		maxPings:    history.DefaultCapacity,
		maxCells:    echogram.DefaultMaxCells,
		pingSpacing: viewport.DefaultPingSpacing,
	}

	for _, option := range options {
		option(&c)
	}

	if err := validateCapacity(c.maxPings); err != nil {
		return nil, err
	}
	if err := validateDBRange(c.minDB, c.maxDB); err != nil {
		return nil, err
	}

	h, err := history.New(c.maxPings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapacity, err)
	}
	c.history = h

	c.viewport = viewport.New()
	if err := c.viewport.SetPingSpacing(c.pingSpacing); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSetting, err)
	}
	if c.tickInterval != 0 {
		if err := c.viewport.SetTickInterval(c.tickInterval); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSetting, err)
		}
	}

	if c.levels != nil {
		lv := c.levels.Current()
		c.minDB, c.maxDB = lv.Min, lv.Max
	}

	c.raster = echogram.NewBackground(c.maxPings)

	return &c, nil
}

func validateCapacity(n int) error {
	if n <= 0 || n > MaxPingCount {
		return fmt.Errorf("%w: %d, must be within 1..%d", ErrCapacity, n, MaxPingCount)
	}
	return nil
}

func validateDBRange(minDB, maxDB float64) error {
	if math.IsNaN(minDB) || math.IsInf(minDB, 0) || math.IsNaN(maxDB) || math.IsInf(maxDB, 0) {
		return fmt.Errorf("%w: non-finite dB window [%g, %g]", ErrInvalidSetting, minDB, maxDB)
	}
	if maxDB <= minDB {
		return fmt.Errorf("%w: maximum %g dB must be above minimum %g dB", ErrInvalidSetting, maxDB, minDB)
	}
	return nil
}

func (c *Controller) builder() echogram.Builder {
	return echogram.Builder{
		MinDB:    c.minDB,
		MaxDB:    c.maxDB,
		Width:    c.history.Cap(),
		MaxCells: c.maxCells,
	}
}

// rebuild regenerates the raster from the history. On failure the previous
// raster stays visible.
func (c *Controller) rebuild() error {
	raster, err := c.builder().Build(c.history)
	if err != nil {
		c.logger.Warn("keeping previous echogram",
			slog.Int("pings", c.history.Len()),
			slog.String("error", err.Error()))
		return fmt.Errorf("rebuilding echogram: %w", err)
	}

	c.raster = raster
	if c.history.Len() == 0 {
		c.viewport.Reset()
		c.viewport.SetDepthRange(0, 0)
		return nil
	}

	c.viewport.SetDepthRange(raster.MinDepth, raster.MaxDepth)
	return nil
}

// AddPing inserts p into the history and rebuilds the echogram. A ping with
// an unusable depth mapping is rejected and leaves the display unchanged, as
// does a ping the echogram cannot be rebuilt with: its insert and its effect
// on automatic levels are undone.
func (c *Controller) AddPing(p *ping.Ping) error {
	if p == nil {
		return fmt.Errorf("adding ping: nil ping")
	}
	if _, err := p.Geometry(); err != nil {
		c.logger.Warn("rejecting ping",
			slog.Time("timestamp", p.Timestamp()),
			slog.String("error", err.Error()))
		return fmt.Errorf("adding ping at %s: %w", p.Timestamp(), err)
	}

	levels, minDB, maxDB := c.levels, c.minDB, c.maxDB
	replaced, _ := c.history.Get(p.Timestamp())

	evicted := c.history.Insert(p)
	if len(evicted) > 0 {
		c.logger.Debug("evicted pings", slog.Int("count", len(evicted)))
	}

	if c.levels != nil {
		c.levels = c.levels.Clone()
		lv := c.levels.Update(p.Values()...)
		if validateDBRange(lv.Min, lv.Max) == nil {
			c.minDB, c.maxDB = lv.Min, lv.Max
		}
	}

	if err := c.rebuild(); err != nil {
		c.undoInsert(p, replaced, evicted)
		c.levels, c.minDB, c.maxDB = levels, minDB, maxDB
		return fmt.Errorf("adding ping at %s: %w", p.Timestamp(), err)
	}
	return nil
}

// undoInsert restores the history as it was before p was inserted.
func (c *Controller) undoInsert(p, replaced *ping.Ping, evicted []*ping.Ping) {
	if replaced != nil {
		c.history.Insert(replaced)
		return
	}

	c.history.Remove(p.Timestamp())
	for _, e := range evicted {
		if e != p {
			c.history.Insert(e)
		}
	}
}

// Clear drops every ping and resets zoom and pan.
func (c *Controller) Clear() {
	c.history.Clear()
	if c.levels != nil {
		c.levels.Reset()
		lv := c.levels.Current()
		c.minDB, c.maxDB = lv.Min, lv.Max
	}
	c.viewport.EndDrag()

	// an empty history always yields a background raster
	_ = c.rebuild()
}

// Resize sets the display area in pixels.
func (c *Controller) Resize(width, height float64) {
	c.viewport.Resize(width, height)
}

// Wheel zooms around the pointer. angleDelta is in eighths of a degree;
// fine selects the slower zoom rate.
func (c *Controller) Wheel(angleDelta float64, fine bool, y float64) {
	c.viewport.Wheel(angleDelta, fine, y)
}

// PressPointer starts a pan gesture.
func (c *Controller) PressPointer(y float64) {
	c.viewport.BeginDrag(y)
}

// MovePointer continues a pan gesture, if any, and reports the depth under
// the pointer to the registered listeners.
func (c *Controller) MovePointer(y float64) {
	c.viewport.Drag(y)

	if len(c.listeners) == 0 || c.viewport.Area().Empty() {
		return
	}
	depth := c.viewport.DepthAt(y)
	for _, listener := range c.listeners {
		listener(depth)
	}
}

// ReleasePointer ends a pan gesture.
func (c *Controller) ReleasePointer(y float64) {
	c.viewport.Drag(y)
	c.viewport.EndDrag()
}

// SetMinimumDB sets the intensity mapped to the darkest level. It disables
// automatic levels.
func (c *Controller) SetMinimumDB(v float64) error {
	return c.setDBRange(v, c.maxDB)
}

// SetMaximumDB sets the intensity mapped to the brightest level. It disables
// automatic levels.
func (c *Controller) SetMaximumDB(v float64) error {
	return c.setDBRange(c.minDB, v)
}

func (c *Controller) setDBRange(minDB, maxDB float64) error {
	if err := validateDBRange(minDB, maxDB); err != nil {
		c.logger.Warn("rejecting dB window", slog.String("error", err.Error()))
		return err
	}
	if c.levels != nil {
		c.logger.Info("automatic levels disabled")
		c.levels = nil
	}
	c.minDB, c.maxDB = minDB, maxDB
	return c.rebuild()
}

// SetPingSpacing sets the display width multiplier per ping.
func (c *Controller) SetPingSpacing(spacing float64) error {
	if err := c.viewport.SetPingSpacing(spacing); err != nil {
		c.logger.Warn("rejecting ping spacing", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrInvalidSetting, err)
	}
	c.pingSpacing = spacing
	return nil
}

// SetTickInterval fixes the depth axis tick interval.
func (c *Controller) SetTickInterval(interval float64) error {
	if err := c.viewport.SetTickInterval(interval); err != nil {
		c.logger.Warn("rejecting tick interval", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrInvalidSetting, err)
	}
	c.tickInterval = interval
	return nil
}

// SetAutoTick switches between adaptive and fixed tick intervals.
func (c *Controller) SetAutoTick(enabled bool) {
	c.viewport.SetAutoTick(enabled)
	if enabled {
		c.tickInterval = 0
	}
}

// SetMaxPingCount changes the history capacity, evicting the oldest pings
// when it shrinks. The raster width follows the capacity.
func (c *Controller) SetMaxPingCount(n int) error {
	if err := validateCapacity(n); err != nil {
		return err
	}
	if !c.raster.Empty() && n*c.raster.Height() > c.maxCells {
		return fmt.Errorf("%w: %d pings of %d depth bins exceed %d cells", ErrCapacity, n, c.raster.Height(), c.maxCells)
	}

	evicted, err := c.history.SetCapacity(n)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCapacity, err)
	}
	c.maxPings = n
	if evicted > 0 {
		c.logger.Debug("evicted pings", slog.Int("count", evicted))
	}

	if err := c.rebuild(); err != nil {
		return fmt.Errorf("%w: %w", ErrCapacity, err)
	}
	return nil
}

func (c *Controller) MinimumDB() float64    { return c.minDB }
func (c *Controller) MaximumDB() float64    { return c.maxDB }
func (c *Controller) PingSpacing() float64  { return c.viewport.PingSpacing() }
func (c *Controller) TickInterval() float64 { return c.viewport.TickInterval() }
func (c *Controller) MaxPingCount() int     { return c.history.Cap() }

// Len returns the number of pings in the history.
func (c *Controller) Len() int { return c.history.Len() }

// DepthAt returns the depth shown at vertical pixel y.
func (c *Controller) DepthAt(y float64) float64 {
	return c.viewport.DepthAt(y)
}

// Settings returns the current tunables.
func (c *Controller) Settings() Settings {
	return Settings{
		MinDB:        c.minDB,
		MaxDB:        c.maxDB,
		PingSpacing:  c.viewport.PingSpacing(),
		TickInterval: c.viewport.TickInterval(),
		AutoTick:     c.viewport.AutoTick(),
		AutoLevels:   c.levels != nil,
		MaxPings:     c.history.Cap(),
	}
}
