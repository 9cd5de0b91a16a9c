package storage

import (
	"context"

	"github.com/roman-kulish/marine-echogram/internal/ping"
)

// Store provides an interface for recording and replaying ping sessions.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new recording session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - source: Kind of ping source (e.g., "sim", "exec")
	//   - sourceID: Identifier of the specific source
	//   - config: Optional source configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, source, sourceID string, config any) (sessionID int64, err error)

	// Session retrieves a specific recording session by its ID.
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all recording sessions ordered by start time.
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// SessionStats returns the number and time range of the pings in a session.
	SessionStats(ctx context.Context, sessionID int64) (*SessionStats, error)

	// StorePings saves pings for a session in a single transaction.
	StorePings(ctx context.Context, sessionID int64, pings []*ping.Ping) error

	// ReadPings returns a reader over the pings of a session in timestamp order.
	// The reader must be closed after use.
	ReadPings(ctx context.Context, sessionID int64, opts ...ReaderOption) (PingReader, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}

// PingReader provides an iterator-based interface for replaying a session.
type PingReader interface {
	// Session returns metadata about the session this reader is accessing.
	Session() *Session

	// Next advances the iterator and returns true if there is another ping
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current ping in the iteration.
	Current() *ping.Ping

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}
