package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/marine-echogram/internal/display"
	"github.com/roman-kulish/marine-echogram/internal/echogram"
	"github.com/roman-kulish/marine-echogram/internal/feed"
	"github.com/roman-kulish/marine-echogram/internal/ping"
	"github.com/roman-kulish/marine-echogram/internal/render"
	"github.com/roman-kulish/marine-echogram/internal/storage"
)

// wheelStep is the angle delta of one mouse wheel notch.
const wheelStep = 120

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	ctrl, err := newController(config, logger)
	if err != nil {
		return fmt.Errorf("creating display: %w", err)
	}

	// The queue holds at least a full history: when it drops the oldest
	// pings, those would have been evicted from the history anyway.
	q, err := feed.NewQueue(max(config.MaxPings, feed.DefaultQueueCapacity), feed.WithLogger(logger))
	if err != nil {
		return err
	}

	sourceErr := make(chan error, 1)
	if config.DBPath != "" {
		if _, err = os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
			return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
		}
		go func() {
			defer q.Close()
			sourceErr <- replaySession(ctx, config, q, logger)
		}()
	} else {
		src := feed.NewCommandSource(config.Command[0], config.Command[1:], feed.WithCommandLogger(logger))
		stopped, err := src.Start(ctx, q)
		if err != nil {
			return err
		}
		defer src.Stop()

		go func() {
			defer q.Close()
			sourceErr <- <-stopped
		}()
	}

	logger.Info("reading pings, hold on tight")

	var intensity intensityStats
	err = feed.Pump(ctx, q, func(p *ping.Ping) error {
		intensity.add(p)
		return ctrl.AddPing(p)
	})
	if err != nil {
		return err
	}
	if err = <-sourceErr; err != nil {
		return fmt.Errorf("reading pings: %w", err)
	}

	applyGestures(ctrl, config, logger)

	frame := ctrl.Frame()
	logger.Info("finished reading pings",
		slog.Group("stats",
			slog.String("pings", humanize.Comma(int64(frame.Pings))),
			slog.String("oldest", frame.Oldest.In(config.TimeZone).Format(time.DateTime)),
			slog.String("newest", frame.Newest.In(config.TimeZone).Format(time.DateTime)),
			slog.String("minDepth", fmt.Sprintf("%0.2fm", -frame.AxisMax)),
			slog.String("maxDepth", fmt.Sprintf("%0.2fm", -frame.AxisMin)),
			slog.String("minDB", fmt.Sprintf("%0.1fdB", frame.MinDB)),
			slog.String("maxDB", fmt.Sprintf("%0.1fdB", frame.MaxDB)),
		),
		intensity.attr())

	return renderFrame(&frame, config, logger)
}

func newController(config *Config, logger *slog.Logger) (*display.Controller, error) {
	options := []func(*display.Controller){
		display.WithLogger(logger),
		display.WithMaxPings(config.MaxPings),
		display.WithPingSpacing(config.PingSpacing),
		display.WithPointerListener(func(depth float64) {
			logger.Debug("pointer moved", slog.Float64("depth", depth))
		}),
	}

	if config.MinDB != nil || config.MaxDB != nil {
		minDB, maxDB := echogram.DefaultMinDB, echogram.DefaultMaxDB
		if config.MinDB != nil {
			minDB = *config.MinDB
		}
		if config.MaxDB != nil {
			maxDB = *config.MaxDB
		}
		options = append(options, display.WithDBRange(minDB, maxDB))
	}
	if config.AutoLevels {
		options = append(options, display.WithAutoLevels())
	}
	if config.TickInterval != nil {
		options = append(options, display.WithTickInterval(*config.TickInterval))
	}

	ctrl, err := display.New(options...)
	if err != nil {
		return nil, err
	}
	ctrl.Resize(float64(config.Width), float64(config.Height))
	return ctrl, nil
}

func replaySession(ctx context.Context, config *Config, q *feed.Queue, logger *slog.Logger) (err error) {
	store := storage.NewSqliteStore(config.DBPath)
	defer func() {
		if cErr := store.Close(); cErr != nil {
			err = errors.Join(err, cErr)
		}
	}()

	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.From != nil && config.To != nil:
		opts = append(opts, storage.WithTimeRange(config.From.UTC(), config.To.UTC()))
		filters = append(filters,
			slog.String("from", config.From.UTC().Format(time.DateTime)),
			slog.String("to", config.To.UTC().Format(time.DateTime)))

	case config.From != nil:
		opts = append(opts, storage.WithStartTime(config.From.UTC()))
		filters = append(filters, slog.String("from", config.From.UTC().Format(time.DateTime)))

	case config.To != nil:
		opts = append(opts, storage.WithEndTime(config.To.UTC()))
		filters = append(filters, slog.String("to", config.To.UTC().Format(time.DateTime)))
	}

	logger.Info("replaying session", append(filters, slog.Int64("session", config.SessionID))...)

	reader, err := store.ReadPings(ctx, config.SessionID, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := reader.Close(); cErr != nil {
			err = errors.Join(err, cErr)
		}
	}()

	logger.Debug("session",
		slog.String("source", reader.Session().Source),
		slog.String("sourceID", reader.Session().SourceID),
		slog.String("started", reader.Session().StartTime.In(config.TimeZone).Format(time.DateTime)))

	for reader.Next(ctx) {
		if err = q.Push(reader.Current()); err != nil {
			return err
		}
	}
	return reader.Error()
}

// applyGestures zooms around the center of the area and then drags the
// view, the way an operator would with a mouse.
func applyGestures(ctrl *display.Controller, config *Config, logger *slog.Logger) {
	center := float64(config.Height) / 2

	if config.ZoomSteps != 0 {
		ctrl.Wheel(float64(config.ZoomSteps*wheelStep), false, center)
	}

	if config.Pan != 0 {
		frame := ctrl.Frame()
		metersPerPixel := (frame.AxisMax - frame.AxisMin) / frame.Area.Height
		if metersPerPixel > 0 {
			// dragging up reveals deeper water
			ctrl.PressPointer(center)
			ctrl.MovePointer(center - config.Pan/metersPerPixel)
			ctrl.ReleasePointer(center - config.Pan/metersPerPixel)
		}
	}

	logger.Debug("view",
		slog.Float64("depthAtCenter", ctrl.DepthAt(center)),
		slog.Int("zoomSteps", config.ZoomSteps),
		slog.Float64("pan", config.Pan))
}

func renderFrame(frame *display.Frame, config *Config, logger *slog.Logger) (err error) {
	renderer, err := render.NewRenderer(render.RenderConfig{
		Location:      config.TimeZone,
		ColorTheme:    config.Theme,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	logger.Info("rendering echogram",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img, err := renderer.Render(frame)
	if err != nil {
		return fmt.Errorf("rendering echogram: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil {
			err = errors.Join(err, cErr)
		}
	}()

	return render.Encode(out, img, config.Format)
}
