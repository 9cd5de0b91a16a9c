package viewport

import (
	"image"
	"math"

	"golang.org/x/image/math/f64"
)

// Placement maps a raster into the display area.
type Placement struct {
	Source image.Rectangle // Visible raster sub-rectangle

	ScaleX  float64 // Display pixels per raster column
	ScaleY  float64 // Display pixels per raster row
	OffsetX float64 // Display position of raster column 0
	OffsetY float64 // Display position of raster row 0
}

// Transform returns the raster-to-display affine matrix.
func (p Placement) Transform() f64.Aff3 {
	return f64.Aff3{
		p.ScaleX, 0, p.OffsetX,
		0, p.ScaleY, p.OffsetY,
	}
}

// Placement positions a raster of width×height cells whose row 0 sits at
// rasterMinDepth and whose rows are binSize apart. The newest column is
// aligned with the right edge of the area; each column is
// max(areaWidth/width, 1)×pingSpacing pixels wide.
//
// The boolean is false when the area or the raster is empty.
func (v *Viewport) Placement(width, height int, rasterMinDepth, binSize float64) (Placement, bool) {
	if v.area.Empty() || width <= 0 || height <= 0 {
		return Placement{}, false
	}

	basePixelWidth := max(v.area.Width/float64(width), 1)
	columnWidth := basePixelWidth * v.pingSpacing
	visibleColumns := min(width, int(math.Ceil(v.area.Width/columnWidth)))

	p := Placement{
		ScaleX:  columnWidth,
		OffsetX: v.area.Width - float64(width)*columnWidth,
	}

	ppm := v.pixelsPerMeter()
	if ppm == 0 || !(binSize > 0) {
		// no depth extent: stretch the raster over the area
		p.Source = image.Rect(width-visibleColumns, 0, width, height)
		p.ScaleY = v.area.Height / float64(height)
		return p, true
	}

	p.ScaleY = binSize * ppm
	p.OffsetY = (rasterMinDepth - v.minDepth - v.pan) * ppm

	rowOf := func(depth float64) float64 {
		return (depth - rasterMinDepth) / binSize
	}
	clampRow := func(row float64) int {
		return int(math.Max(0, math.Min(float64(height), row)))
	}
	top := clampRow(math.Floor(rowOf(v.DepthAt(0))))
	bottom := clampRow(math.Ceil(rowOf(v.DepthAt(v.area.Height))))

	p.Source = image.Rect(width-visibleColumns, top, width, bottom)
	return p, true
}
