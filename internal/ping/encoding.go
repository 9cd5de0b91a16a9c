package ping

import (
	"fmt"
	"strings"
)

// Encoding identifies how sample values are packed into a ping's sample bytes.
// Only EncodingFloat32 can be sampled, every other value reads as "no data".
type Encoding uint8

const (
	EncodingUnknown Encoding = iota
	EncodingUint8
	EncodingUint16
	EncodingUint32
	EncodingFloat32
	EncodingFloat64
)

var encodingNames = map[Encoding]string{
	EncodingUnknown: "unknown",
	EncodingUint8:   "uint8",
	EncodingUint16:  "uint16",
	EncodingUint32:  "uint32",
	EncodingFloat32: "float32",
	EncodingFloat64: "float64",
}

func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("encoding(%d)", uint8(e))
}

// Supported reports whether samples in this encoding can be read.
func (e Encoding) Supported() bool {
	return e == EncodingFloat32
}

// ParseEncoding converts a name produced by Encoding.String back into an
// Encoding. Names it does not know decode to EncodingUnknown, so a feed
// using a newer encoding still yields pings that draw as background.
func ParseEncoding(s string) Encoding {
	s = strings.ToLower(strings.TrimSpace(s))
	for e, name := range encodingNames {
		if name == s {
			return e
		}
	}
	return EncodingUnknown
}

// MarshalText writes the encoding name. Values without a name are written
// as "unknown".
func (e Encoding) MarshalText() ([]byte, error) {
	if name, ok := encodingNames[e]; ok {
		return []byte(name), nil
	}
	return []byte(encodingNames[EncodingUnknown]), nil
}

func (e *Encoding) UnmarshalText(text []byte) error {
	*e = ParseEncoding(string(text))
	return nil
}
