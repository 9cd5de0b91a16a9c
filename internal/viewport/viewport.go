package viewport

import (
	"fmt"
	"math"
)

const (
	// MinZoom limits zooming out to twice the data depth span.
	MinZoom = 0.5

	// ZoomPerDegree is the zoom exponent (base 2) per degree of wheel rotation.
	ZoomPerDegree = 0.01

	// FineZoomDivisor slows zooming down while the fine-zoom modifier is held.
	FineZoomDivisor = 3.0

	DefaultPingSpacing  = 1.0
	DefaultTickInterval = 100.0 // m
)

// Area is the size of the display area in pixels.
type Area struct {
	Width  float64
	Height float64
}

// Empty reports whether the area has no drawable surface.
func (a Area) Empty() bool {
	return !(a.Width > 0) || !(a.Height > 0)
}

// Viewport holds the zoom and pan state of an echogram display and converts
// between screen pixels and depth. The depth axis is drawn as altitude:
// values grow upwards, so depth d is shown at axis value -d.
//
// Viewport is owned by a single display thread and is not safe for
// concurrent use.
type Viewport struct {
	area Area

	minDepth float64 // Shallowest depth of the data
	maxDepth float64 // Deepest depth of the data

	zoom         float64 // Depth span magnification, >= MinZoom
	pan          float64 // Depth shown at the top edge, relative to minDepth
	pingSpacing  float64 // Display width multiplier per ping
	tickInterval float64 // Depth between axis ticks
	autoTick     bool

	dragging     bool
	dragStartY   float64
	dragStartPan float64
}

// New returns a viewport with unit zoom, no pan and adaptive ticks.
func New() *Viewport {
	return &Viewport{
		zoom:         1,
		pingSpacing:  DefaultPingSpacing,
		tickInterval: DefaultTickInterval,
		autoTick:     true,
	}
}

// Reset returns zoom and pan to their defaults and cancels any drag.
func (v *Viewport) Reset() {
	v.zoom = 1
	v.pan = 0
	v.dragging = false
	v.recomputeTicks()
}

// SetDepthRange sets the depth extent of the data being displayed.
func (v *Viewport) SetDepthRange(minDepth, maxDepth float64) {
	v.minDepth = minDepth
	v.maxDepth = maxDepth
	v.recomputeTicks()
}

// DepthRange returns the depth extent of the data.
func (v *Viewport) DepthRange() (float64, float64) {
	return v.minDepth, v.maxDepth
}

// Resize updates the display area. Zoom and pan are unchanged; a zero-sized
// area is stored but leaves tick selection untouched.
func (v *Viewport) Resize(width, height float64) {
	v.area = Area{Width: width, Height: height}
	v.recomputeTicks()
}

func (v *Viewport) Area() Area           { return v.area }
func (v *Viewport) Zoom() float64        { return v.zoom }
func (v *Viewport) Pan() float64         { return v.pan }
func (v *Viewport) PingSpacing() float64 { return v.pingSpacing }
func (v *Viewport) TickInterval() float64 {
	return v.tickInterval
}

// AutoTick reports whether the tick interval follows zoom and area changes.
func (v *Viewport) AutoTick() bool { return v.autoTick }

// SetPingSpacing sets the display width multiplier per ping.
func (v *Viewport) SetPingSpacing(spacing float64) error {
	if !(spacing > 0) || math.IsInf(spacing, 0) {
		return fmt.Errorf("invalid ping spacing: %g", spacing)
	}
	v.pingSpacing = spacing
	return nil
}

// SetTickInterval fixes the tick interval and disables adaptive ticks.
func (v *Viewport) SetTickInterval(interval float64) error {
	if !(interval > 0) || math.IsInf(interval, 0) {
		return fmt.Errorf("invalid tick interval: %g", interval)
	}
	v.tickInterval = interval
	v.autoTick = false
	return nil
}

// SetAutoTick enables or disables adaptive tick selection.
func (v *Viewport) SetAutoTick(enabled bool) {
	v.autoTick = enabled
	v.recomputeTicks()
}

func (v *Viewport) span() float64 {
	return v.maxDepth - v.minDepth
}

// AxisRange returns the visible interval on the altitude axis.
func (v *Viewport) AxisRange() (axisMin, axisMax float64) {
	axisMax = -(v.minDepth + v.pan)
	axisMin = axisMax - v.span()/v.zoom
	return axisMin, axisMax
}

// pixelsPerMeter is the vertical scale, zero when it cannot be computed.
func (v *Viewport) pixelsPerMeter() float64 {
	span := v.span()
	if v.area.Empty() || !(span > 0) {
		return 0
	}
	return v.zoom * v.area.Height / span
}

// DepthAt returns the depth shown at vertical pixel y (0 is the top edge).
func (v *Viewport) DepthAt(y float64) float64 {
	top := v.minDepth + v.pan
	ppm := v.pixelsPerMeter()
	if ppm == 0 {
		return top
	}
	return top + y/ppm
}

// Wheel zooms by a wheel rotation of angleDelta eighths of a degree, keeping
// the depth under cursorY fixed on screen.
func (v *Viewport) Wheel(angleDelta float64, fine bool, cursorY float64) {
	if math.IsNaN(angleDelta) || math.IsInf(angleDelta, 0) || angleDelta == 0 {
		return
	}

	perDegree := ZoomPerDegree
	if fine {
		perDegree /= FineZoomDivisor
	}
	scale := math.Pow(2, perDegree*angleDelta/8)

	anchored := v.pixelsPerMeter() > 0
	anchor := v.DepthAt(cursorY)

	v.zoom = max(v.zoom*scale, MinZoom)

	if anchored {
		v.pan = anchor - v.minDepth - cursorY/v.pixelsPerMeter()
	}
	v.recomputeTicks()
}

// BeginDrag starts a pan gesture at vertical pixel y.
func (v *Viewport) BeginDrag(y float64) {
	v.dragging = true
	v.dragStartY = y
	v.dragStartPan = v.pan
}

// Drag moves the view so that the depth grabbed at BeginDrag follows y.
func (v *Viewport) Drag(y float64) {
	if !v.dragging || v.area.Empty() {
		return
	}
	axisRange := v.span() / v.zoom
	v.pan = v.dragStartPan - (y-v.dragStartY)*axisRange/v.area.Height
}

// EndDrag finishes a pan gesture, keeping the current pan.
func (v *Viewport) EndDrag() {
	v.dragging = false
}

func (v *Viewport) recomputeTicks() {
	if !v.autoTick {
		return
	}
	if interval, ok := NiceTickInterval(v.span()/v.zoom, v.area.Height, MinTickSpacing); ok {
		v.tickInterval = interval
	}
}
