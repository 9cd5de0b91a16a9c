package ping

import (
	"encoding/binary"
	"math"
	"time"
)

// Record is the transport form of a ping as delivered by a feed or stored in
// a session. Samples are little-endian, packed according to Encoding.
type Record struct {
	Timestamp      time.Time `json:"timestamp"`      // Unique key of the ping
	SoundSpeed     float64   `json:"soundSpeed"`     // Speed of sound in m/s
	SampleRate     float64   `json:"sampleRate"`     // Samples per second
	Sample0        uint32    `json:"sample0"`        // Offset of the first sample
	SamplesPerBeam uint32    `json:"samplesPerBeam"` // Number of samples in the beam
	Encoding       Encoding  `json:"encoding"`       // Sample packing
	Samples        []byte    `json:"samples"`        // Packed samples, base64 in JSON
}

// EncodeFloat32 packs values as little-endian IEEE-754 float32.
func EncodeFloat32(values []float32) []byte {
	p := make([]byte, len(values)*float32Size)
	for i, v := range values {
		binary.LittleEndian.PutUint32(p[i*float32Size:], math.Float32bits(v))
	}
	return p
}
