package app

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/marine-echogram/internal/ping"
)

// intensityStats accumulates the echo intensities of the pings read in a run.
type intensityStats struct {
	pings   int // pings with at least one finite sample
	samples int
	sum     float64
	min     float64
	max     float64
}

func (s *intensityStats) add(p *ping.Ping) {
	st, ok := p.Stats()
	if !ok {
		return
	}

	if s.pings == 0 {
		s.min, s.max = st.Min, st.Max
	} else {
		s.min = min(s.min, st.Min)
		s.max = max(s.max, st.Max)
	}
	s.pings++
	s.samples += st.Count
	s.sum += st.Mean * float64(st.Count)
}

func (s *intensityStats) mean() float64 {
	if s.samples == 0 {
		return 0
	}
	return s.sum / float64(s.samples)
}

func (s *intensityStats) attr() slog.Attr {
	if s.pings == 0 {
		return slog.Group("intensity", slog.String("pings", "0"))
	}
	return slog.Group("intensity",
		slog.String("pings", humanize.Comma(int64(s.pings))),
		slog.String("samples", humanize.Comma(int64(s.samples))),
		slog.String("min", fmt.Sprintf("%0.1fdB", s.min)),
		slog.String("mean", fmt.Sprintf("%0.1fdB", s.mean())),
		slog.String("max", fmt.Sprintf("%0.1fdB", s.max)),
	)
}
