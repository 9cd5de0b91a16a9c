package display

import (
	"time"

	"github.com/roman-kulish/marine-echogram/internal/echogram"
	"github.com/roman-kulish/marine-echogram/internal/viewport"
)

// Frame is everything needed to draw the current state of the display.
type Frame struct {
	Raster    *echogram.Raster
	Placement viewport.Placement
	Visible   bool // Placement is valid; false for an empty area

	Area    viewport.Area
	AxisMin float64 // Altitude at the bottom edge (negative depth)
	AxisMax float64 // Altitude at the top edge (negative depth)

	TickInterval float64
	Ticks        []float64 // Axis values of the visible ticks, top to bottom

	Zoom  float64
	Pan   float64
	MinDB float64
	MaxDB float64

	Pings  int
	Oldest time.Time
	Newest time.Time
}

// DepthAt returns the depth at vertical pixel y of the frame.
func (f *Frame) DepthAt(y float64) float64 {
	if f.Area.Height <= 0 {
		return -f.AxisMax
	}
	return -f.AxisMax + y*(f.AxisMax-f.AxisMin)/f.Area.Height
}

// YForAxis returns the vertical pixel of an axis value.
func (f *Frame) YForAxis(axis float64) float64 {
	span := f.AxisMax - f.AxisMin
	if span <= 0 {
		return 0
	}
	return (f.AxisMax - axis) * f.Area.Height / span
}

// Frame returns the current frame. The raster is shared with the controller
// and must not be modified.
func (c *Controller) Frame() Frame {
	r := c.raster
	placement, visible := c.viewport.Placement(r.Width(), r.Height(), r.MinDepth, r.BinSize)
	axisMin, axisMax := c.viewport.AxisRange()

	f := Frame{
		Raster:       r,
		Placement:    placement,
		Visible:      visible,
		Area:         c.viewport.Area(),
		AxisMin:      axisMin,
		AxisMax:      axisMax,
		TickInterval: c.viewport.TickInterval(),
		Ticks:        c.viewport.Ticks(),
		Zoom:         c.viewport.Zoom(),
		Pan:          c.viewport.Pan(),
		MinDB:        c.minDB,
		MaxDB:        c.maxDB,
		Pings:        c.history.Len(),
	}
	if p, ok := c.history.Oldest(); ok {
		f.Oldest = p.Timestamp()
	}
	if p, ok := c.history.Newest(); ok {
		f.Newest = p.Timestamp()
	}
	return f
}
