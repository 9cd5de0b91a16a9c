package ping

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

// soundSpeed/sampleRate chosen so that binSize is exactly 1m
const (
	testSoundSpeed = 1500.0
	testSampleRate = 750.0
)

func TestPing_Geometry(t *testing.T) {
	p := NewFloat32(time.Unix(0, 0), testSoundSpeed, testSampleRate, 10, make([]float32, 20))

	minDepth, err := p.MinimumDepth()
	if err != nil {
		t.Fatalf("MinimumDepth: %v", err)
	}
	maxDepth, _ := p.MaximumDepth()
	binSize, _ := p.BinSize()

	if minDepth != 10 {
		t.Errorf("Expected min depth 10, got %v", minDepth)
	}
	if maxDepth != 30 {
		t.Errorf("Expected max depth 30, got %v", maxDepth)
	}
	if binSize != 1 {
		t.Errorf("Expected bin size 1, got %v", binSize)
	}
}

func TestPing_DegenerateGeometry(t *testing.T) {
	testCases := []struct {
		name       string
		soundSpeed float64
		sampleRate float64
	}{
		{"zero sample rate", 1500, 0},
		{"negative sample rate", 1500, -10},
		{"zero sound speed", 0, 750},
		{"NaN sample rate", 1500, math.NaN()},
		{"infinite sound speed", math.Inf(1), 750},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewFloat32(time.Unix(0, 0), tc.soundSpeed, tc.sampleRate, 0, []float32{1, 2, 3})

			if _, err := p.BinSize(); !errors.Is(err, ErrDegenerateGeometry) {
				t.Errorf("Expected ErrDegenerateGeometry, got %v", err)
			}
			if _, err := p.MinimumDepth(); !errors.Is(err, ErrDegenerateGeometry) {
				t.Errorf("Expected ErrDegenerateGeometry, got %v", err)
			}
			if v := p.SampleAt(0); !math.IsNaN(v) {
				t.Errorf("Expected NaN sample, got %v", v)
			}
		})
	}
}

func TestPing_SampleAtRoundTrip(t *testing.T) {
	geometries := []struct {
		soundSpeed float64
		sampleRate float64
		sample0    uint32
	}{
		{1500, 750, 0},
		{1500, 750, 7},
		{1480.3, 12345.6, 3},
		{1500, 10000, 128},
	}

	values := make([]float32, 64)
	for i := range values {
		values[i] = -100 + float32(i)*1.5
	}

	for _, g := range geometries {
		p := NewFloat32(time.Unix(0, 0), g.soundSpeed, g.sampleRate, g.sample0, values)
		minDepth, _ := p.MinimumDepth()
		binSize, _ := p.BinSize()

		for k, want := range values {
			got := p.SampleAt(minDepth + float64(k)*binSize)
			if got != float64(want) {
				t.Fatalf("geometry %+v: bin %d expected %v, got %v", g, k, want, got)
			}
		}
	}
}

func TestPing_SampleAtOutOfRange(t *testing.T) {
	p := NewFloat32(time.Unix(0, 0), testSoundSpeed, testSampleRate, 5, []float32{1, 2, 3})

	for _, depth := range []float64{-1, 4.99, 8, 100, math.NaN(), math.Inf(1)} {
		if v := p.SampleAt(depth); !math.IsNaN(v) {
			t.Errorf("depth %v: expected NaN, got %v", depth, v)
		}
	}
	if v := p.SampleAt(7.5); v != 3 {
		t.Errorf("Expected 3 at depth 7.5, got %v", v)
	}
}

func TestPing_TruncatedSamples(t *testing.T) {
	// declares 10 samples but carries only 2
	p := FromRecord(Record{
		Timestamp:      time.Unix(0, 0),
		SoundSpeed:     testSoundSpeed,
		SampleRate:     testSampleRate,
		SamplesPerBeam: 10,
		Encoding:       EncodingFloat32,
		Samples:        EncodeFloat32([]float32{4, 5}),
	})

	if p.Len() != 2 {
		t.Fatalf("Expected 2 readable samples, got %d", p.Len())
	}
	if v := p.SampleAt(1); v != 5 {
		t.Errorf("Expected 5, got %v", v)
	}
	if v := p.SampleAt(5); !math.IsNaN(v) {
		t.Errorf("Expected NaN beyond carried samples, got %v", v)
	}
}

func TestPing_UnsupportedEncoding(t *testing.T) {
	for _, enc := range []Encoding{EncodingUnknown, EncodingUint8, EncodingUint16, EncodingUint32, EncodingFloat64} {
		p := FromRecord(Record{
			Timestamp:      time.Unix(0, 0),
			SoundSpeed:     testSoundSpeed,
			SampleRate:     testSampleRate,
			SamplesPerBeam: 4,
			Encoding:       enc,
			Samples:        make([]byte, 64),
		})

		if v := p.SampleAt(1); !math.IsNaN(v) {
			t.Errorf("%s: expected NaN, got %v", enc, v)
		}
		if p.Len() != 0 {
			t.Errorf("%s: expected no readable samples, got %d", enc, p.Len())
		}
		if _, err := p.Geometry(); err != nil {
			t.Errorf("%s: geometry should not depend on encoding: %v", enc, err)
		}
	}
}

func TestPing_Stats(t *testing.T) {
	nan := float32(math.NaN())
	p := NewFloat32(time.Unix(0, 0), testSoundSpeed, testSampleRate, 0, []float32{-10, nan, -20, -30})

	s, ok := p.Stats()
	if !ok {
		t.Fatal("Expected stats")
	}
	if s.Count != 3 || s.Min != -30 || s.Max != -10 || s.Mean != -20 {
		t.Errorf("Unexpected stats: %+v", s)
	}

	empty := NewFloat32(time.Unix(0, 0), testSoundSpeed, testSampleRate, 0, []float32{nan})
	if _, ok := empty.Stats(); ok {
		t.Error("Expected no stats for all-NaN ping")
	}
}

func TestRecord_JSON(t *testing.T) {
	p := NewFloat32(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), testSoundSpeed, testSampleRate, 2, []float32{1, 2})

	data, err := json.Marshal(p.Record())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var r Record
	if err = json.Unmarshal(data, &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.Encoding != EncodingFloat32 {
		t.Errorf("Expected float32 encoding, got %s", r.Encoding)
	}

	q := FromRecord(r)
	if !q.Timestamp().Equal(p.Timestamp()) {
		t.Errorf("Timestamp mismatch: %v != %v", q.Timestamp(), p.Timestamp())
	}
	if v := q.SampleAt(3); v != 2 {
		t.Errorf("Expected 2, got %v", v)
	}
}

func TestParseEncoding(t *testing.T) {
	testCases := []struct {
		name   string
		expect Encoding
	}{
		{" FLOAT32 ", EncodingFloat32},
		{"uint16", EncodingUint16},
		{"unknown", EncodingUnknown},
		{"int16", EncodingUnknown},
		{"", EncodingUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if e := ParseEncoding(tc.name); e != tc.expect {
				t.Errorf("Expected %s, got %s", tc.expect, e)
			}
		})
	}
}

func TestEncoding_TextRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{EncodingFloat32, EncodingUint8, Encoding(7)} {
		text, err := enc.MarshalText()
		if err != nil {
			t.Fatalf("%s: MarshalText: %v", enc, err)
		}

		var got Encoding
		if err = got.UnmarshalText(text); err != nil {
			t.Fatalf("%s: UnmarshalText(%q): %v", enc, text, err)
		}
		if want := ParseEncoding(enc.String()); got != want {
			t.Errorf("%s: expected %s after round trip, got %s", enc, want, got)
		}
	}

	text, _ := Encoding(7).MarshalText()
	if string(text) != "unknown" {
		t.Errorf("Expected unnamed encoding to be written as unknown, got %q", text)
	}
}

func TestRecord_UnknownEncodingIsBackground(t *testing.T) {
	var r Record
	err := json.Unmarshal([]byte(`{"timestamp":"2024-05-01T12:00:00Z","soundSpeed":1500,"sampleRate":750,"samplesPerBeam":2,"encoding":"int16","samples":"AAAAAAAAAAA="}`), &r)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.Encoding != EncodingUnknown {
		t.Errorf("Expected unknown encoding, got %s", r.Encoding)
	}

	p := FromRecord(r)
	if v := p.SampleAt(0.5); !math.IsNaN(v) {
		t.Errorf("Expected NaN for unknown encoding, got %v", v)
	}
}
