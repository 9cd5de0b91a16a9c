package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/marine-echogram/internal/ping"
)

// ReaderOption configures a SqlitePingReader with specific filtering criteria.
type ReaderOption func(*SqlitePingReader)

// WithStartTime sets the start time filter for the ping reader.
// Pings with timestamps before this time will be excluded.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqlitePingReader) {
		r.startTime = &t
	}
}

// WithEndTime sets the end time filter for the ping reader.
// Pings with timestamps after this time will be excluded.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqlitePingReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqlitePingReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// newSqlitePingReader creates a new PingReader reading pings of a session
// from a database, applying optional filters.
func newSqlitePingReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqlitePingReader, error) {
	pr := &SqlitePingReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(pr)
	}
	if err := pr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return pr, nil
}

// SqlitePingReader implements PingReader for SQLite database backend.
type SqlitePingReader struct {
	db *sql.DB

	sessionID int64
	session   *Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	current *ping.Ping
	rows    *sql.Rows
	err     error
}

func (pr *SqlitePingReader) init(ctx context.Context) error {
	if pr.db == nil {
		return errors.New("database connection required")
	}
	if pr.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: pr.loadSession},
		{msg: "initializing filters", fn: pr.initFilters},
		{msg: "initializing query", fn: pr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (pr *SqlitePingReader) loadSession(ctx context.Context) (err error) {
	pr.session, err = loadSession(ctx, pr.db, pr.sessionID)
	return
}

func (pr *SqlitePingReader) initFilters(ctx context.Context) error {
	if pr.startTime != nil && pr.endTime != nil {
		if pr.startTime.After(*pr.endTime) {
			return fmt.Errorf("start time %s is after end time %s", pr.startTime, pr.endTime)
		}
		return nil
	}

	stats, err := querySessionStats(ctx, pr.db, pr.sessionID)
	if err != nil {
		return err
	}

	if pr.startTime == nil {
		pr.startTime = &stats.First
	}
	if pr.endTime == nil {
		pr.endTime = &stats.Last
	}
	return nil
}

func (pr *SqlitePingReader) initQuery(ctx context.Context) (err error) {
	stmt, err := pr.db.PrepareContext(ctx, selectPingsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if pr.rows, err = stmt.QueryContext(ctx, pr.sessionID, pr.startTime.UnixNano(), pr.endTime.UnixNano()); err != nil {
		return err
	}
	return nil
}

func (pr *SqlitePingReader) Session() *Session {
	return pr.session
}

func (pr *SqlitePingReader) Next(ctx context.Context) bool {
	if pr.err != nil || pr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		pr.err = ctx.Err()
		return false
	default:
	}

	if !pr.rows.Next() {
		pr.current = nil
		return false
	}

	var data pingData
	err := pr.rows.Scan(
		&data.Timestamp,
		&data.SoundSpeed,
		&data.SampleRate,
		&data.Sample0,
		&data.SamplesPerBeam,
		&data.Encoding,
		&data.Samples,
	)
	if err != nil {
		pr.err = fmt.Errorf("scanning ping: %w", err)
		return false
	}

	if pr.current, pr.err = fromPingData(&data); pr.err != nil {
		return false
	}
	return true
}

func (pr *SqlitePingReader) Current() *ping.Ping {
	return pr.current
}

func (pr *SqlitePingReader) Error() error {
	if pr.err != nil {
		return pr.err
	}
	if pr.rows != nil {
		return pr.rows.Err()
	}
	return nil
}

func (pr *SqlitePingReader) Close() error {
	if pr.rows != nil {
		err := pr.rows.Close()
		pr.current = nil
		pr.rows = nil
		return err
	}
	return nil
}
