package storage

import (
	"time"
)

// Session represents a single recording of pings from one source.
type Session struct {
	ID        int64     `json:"ID"`                      // Unique identifier for the session
	StartTime time.Time `json:"startTime"`               // When the recording began
	Source    string    `json:"source"`                  // Kind of source (e.g., "sim", "exec")
	SourceID  string    `json:"sourceID"`                // Identifier of the specific source
	Config    *string   `json:"config,string,omitempty"` // Optional source configuration in JSON format
}

// SessionStats summarises the pings recorded in a session.
type SessionStats struct {
	Count int64
	First time.Time
	Last  time.Time
}

type pingData struct {
	SessionID      int64
	Timestamp      int64 // Unix nanoseconds
	SoundSpeed     float64
	SampleRate     float64
	Sample0        int64
	SamplesPerBeam int64
	Encoding       int64
	Samples        []byte
}
