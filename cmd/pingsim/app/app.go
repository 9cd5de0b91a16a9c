package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/marine-echogram/internal/ping"
	"github.com/roman-kulish/marine-echogram/internal/sim"
	"github.com/roman-kulish/marine-echogram/internal/storage"
)

const sessionSource = "sim"

// Run generates pings into a new session of a fresh database under the
// storage directory. It returns the database path and the session ID.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (dbPath string, sessionID int64, err error) {
	if dbPath, err = sessionPath(&config.Storage, time.Now()); err != nil {
		return
	}

	store := storage.NewSqliteStore(dbPath)
	defer func() {
		if cErr := store.Close(); cErr != nil {
			err = errors.Join(err, fmt.Errorf("closing storage: %w", cErr))
		}
	}()

	if sessionID, err = store.CreateSession(ctx, sessionSource, config.Generator.Name, config.Generator); err != nil {
		err = fmt.Errorf("creating session: %w", err)
		return
	}

	logger.Info("recording session",
		slog.String("db", dbPath),
		slog.Int64("session", sessionID),
		slog.String("source", config.Generator.Name))

	w := newBatchWriter(store, sessionID, config.Storage.MaxBatchSize)
	count, err := generate(ctx, config, logger, w.add)
	if fErr := w.flush(context.WithoutCancel(ctx)); fErr != nil {
		err = errors.Join(err, fErr)
	}

	logger.Info("session recorded",
		slog.String("pings", humanize.Comma(int64(count))),
		slog.Int64("session", sessionID))
	return
}

// Stream writes generated pings to w as JSON lines.
func Stream(ctx context.Context, config *Config, w io.Writer, logger *slog.Logger) error {
	enc := json.NewEncoder(w)
	count, err := generate(ctx, config, logger, func(p *ping.Ping) error {
		return enc.Encode(p.Record())
	})

	logger.Info("stream finished", slog.String("pings", humanize.Comma(int64(count))))
	return err
}

// generate runs the generator until the configured count is reached or ctx
// is cancelled; cancellation is not an error.
func generate(ctx context.Context, config *Config, logger *slog.Logger, emit func(*ping.Ping) error) (int, error) {
	gen, err := sim.New(config.Generator.Sim(), time.Now().UTC())
	if err != nil {
		return 0, err
	}

	logger.Debug("generator configuration",
		slog.Int("count", config.Generator.Count),
		slog.Bool("pace", config.Generator.Pace),
		slog.String("interval", config.Generator.Interval.String()),
		slog.Float64("seafloorDepth", config.Generator.SeafloorDepth))

	err = gen.Run(ctx, config.Generator.Count, config.Generator.Pace, emit)
	if errors.Is(err, context.Canceled) {
		logger.Info("generator interrupted")
		err = nil
	}
	return gen.Seq(), err
}

// batchWriter stores pings in transactions of up to size pings.
type batchWriter struct {
	store     storage.Store
	sessionID int64
	size      int
	batch     []*ping.Ping
}

func newBatchWriter(store storage.Store, sessionID int64, size int) *batchWriter {
	return &batchWriter{
		store:     store,
		sessionID: sessionID,
		size:      size,
		batch:     make([]*ping.Ping, 0, size),
	}
}

func (w *batchWriter) add(p *ping.Ping) error {
	w.batch = append(w.batch, p)
	if len(w.batch) < w.size {
		return nil
	}
	return w.flush(context.Background())
}

func (w *batchWriter) flush(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}
	if err := w.store.StorePings(ctx, w.sessionID, w.batch); err != nil {
		return fmt.Errorf("storing pings: %w", err)
	}
	w.batch = w.batch[:0]
	return nil
}

func sessionPath(config *StorageConfig, now time.Time) (string, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = defaultDataDir
	}
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating storage directory '%s': %w", dir, err)
	}
	return filepath.Join(dir, fmt.Sprintf("echogram_session_%s.sqlite", now.UTC().Format("20060102_150405"))), nil
}
