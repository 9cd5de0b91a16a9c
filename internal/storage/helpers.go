package storage

import (
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/marine-echogram/internal/ping"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func toPingData(sessionID int64, p *ping.Ping) *pingData {
	r := p.Record()
	return &pingData{
		SessionID:      sessionID,
		Timestamp:      r.Timestamp.UnixNano(),
		SoundSpeed:     r.SoundSpeed,
		SampleRate:     r.SampleRate,
		Sample0:        int64(r.Sample0),
		SamplesPerBeam: int64(r.SamplesPerBeam),
		Encoding:       int64(r.Encoding),
		Samples:        r.Samples,
	}
}

func fromPingData(d *pingData) (*ping.Ping, error) {
	if d.Sample0 < 0 || d.Sample0 > math.MaxUint32 {
		return nil, fmt.Errorf("sample0 out of range: %d", d.Sample0)
	}
	if d.SamplesPerBeam < 0 || d.SamplesPerBeam > math.MaxUint32 {
		return nil, fmt.Errorf("samples per beam out of range: %d", d.SamplesPerBeam)
	}
	if d.Encoding < 0 || d.Encoding > math.MaxUint8 {
		return nil, fmt.Errorf("encoding out of range: %d", d.Encoding)
	}

	return ping.FromRecord(ping.Record{
		Timestamp:      time.Unix(0, d.Timestamp).UTC(),
		SoundSpeed:     d.SoundSpeed,
		SampleRate:     d.SampleRate,
		Sample0:        uint32(d.Sample0),
		SamplesPerBeam: uint32(d.SamplesPerBeam),
		Encoding:       ping.Encoding(d.Encoding),
		Samples:        d.Samples,
	}), nil
}
