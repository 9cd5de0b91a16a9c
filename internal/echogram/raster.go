package echogram

import (
	"errors"
	"fmt"
	"image"
	"iter"
	"math"
	"time"

	"github.com/roman-kulish/marine-echogram/internal/ping"
)

const (
	// Background marks cells without data. Quantized intensities never reach it.
	Background uint8 = 255

	// MaxLevel is the brightest quantized intensity.
	MaxLevel uint8 = 254

	// DefaultMaxCells bounds the size of a single raster (64 MiB of gray pixels).
	DefaultMaxCells = 64 << 20

	// rowEpsilon keeps the deepest row when span/binSize lands just below
	// an integer, matching the tolerance of ping.SampleAt.
	rowEpsilon = 1e-9
)

var (
	// ErrDegenerateGeometry is returned when the retained pings do not
	// define a usable depth grid. It matches ping.ErrDegenerateGeometry.
	ErrDegenerateGeometry = ping.ErrDegenerateGeometry

	// ErrRasterTooLarge is returned when the depth grid would exceed the
	// configured cell budget.
	ErrRasterTooLarge = errors.New("raster exceeds cell budget")
)

// PingSource is an ordered, restartable collection of pings.
type PingSource interface {
	Len() int
	All() iter.Seq2[time.Time, *ping.Ping]
}

// Raster is a gray-scale echogram: one column per ping slot, one row per
// depth bin. The newest ping sits in the rightmost column.
type Raster struct {
	Image    *image.Gray
	MinDepth float64 // Depth of row 0
	MaxDepth float64 // Deepest depth among the pings
	BinSize  float64 // Depth covered by one row
	Pings    int     // Number of pings drawn
}

func (r *Raster) Width() int  { return r.Image.Rect.Dx() }
func (r *Raster) Height() int { return r.Image.Rect.Dy() }

// Empty reports whether the raster carries no ping data.
func (r *Raster) Empty() bool { return r.Pings == 0 }

// Value returns the quantized intensity at column x, row y.
func (r *Raster) Value(x, y int) uint8 {
	return r.Image.GrayAt(x, y).Y
}

// RowDepth returns the depth sampled by a row.
func (r *Raster) RowDepth(row int) float64 {
	return r.MinDepth + float64(row)*r.BinSize
}

// Builder turns a ping history into a Raster.
type Builder struct {
	MinDB    float64 // Intensity mapped to 0
	MaxDB    float64 // Intensity mapped to 255 (clamped to MaxLevel)
	Width    int     // Number of columns, equal to the ping capacity
	MaxCells int     // Cell budget; 0 means DefaultMaxCells
}

func (b Builder) maxCells() int {
	if b.MaxCells <= 0 {
		return DefaultMaxCells
	}
	return b.MaxCells
}

// NewBackground returns a width×width raster filled with Background.
func NewBackground(width int) *Raster {
	return &Raster{Image: newFilledGray(width, width)}
}

func newFilledGray(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = Background
	}
	return img
}

// Build resamples every ping of src onto a common depth grid and quantizes
// it. The grid spans the shallowest minimum to the deepest maximum depth at
// the finest bin size; coarser pings are repeated, not averaged.
//
// An empty source yields a background raster. Pings with degenerate
// geometry are left as background columns. Build returns
// ErrDegenerateGeometry or ErrRasterTooLarge when no valid grid exists, in
// which case the caller should keep its previous raster.
func (b Builder) Build(src PingSource) (*Raster, error) {
	if b.Width <= 0 {
		return nil, fmt.Errorf("invalid raster width: %d", b.Width)
	}

	n := src.Len()
	if n == 0 {
		return NewBackground(b.Width), nil
	}

	grid, err := commonGrid(src)
	if err != nil {
		return nil, err
	}

	rows := math.Floor(grid.Span()/grid.BinSize + rowEpsilon)
	if math.IsNaN(rows) || math.IsInf(rows, 0) || rows < 1 {
		return nil, fmt.Errorf("%w: %v depth rows for span %g m at %g m", ErrDegenerateGeometry, rows, grid.Span(), grid.BinSize)
	}
	if rows*float64(b.Width) > float64(b.maxCells()) {
		return nil, fmt.Errorf("%w: %d x %.0f cells", ErrRasterTooLarge, b.Width, rows)
	}

	raster := &Raster{
		Image:    newFilledGray(b.Width, int(rows)),
		MinDepth: grid.MinDepth,
		MaxDepth: grid.MaxDepth,
		BinSize:  grid.BinSize,
	}

	// right-justify: the k-th oldest of n pings lands in column Width-n+k
	col := b.Width - n
	for _, p := range src.All() {
		if col >= 0 {
			if b.drawColumn(raster, col, p) {
				raster.Pings++
			}
		}
		col++
	}

	return raster, nil
}

// commonGrid finds the union depth range and the finest bin size.
func commonGrid(src PingSource) (ping.Geometry, error) {
	var grid ping.Geometry
	var valid int

	for _, p := range src.All() {
		g, err := p.Geometry()
		if err != nil {
			continue
		}
		if valid == 0 {
			grid = g
		} else {
			grid.MinDepth = min(grid.MinDepth, g.MinDepth)
			grid.MaxDepth = max(grid.MaxDepth, g.MaxDepth)
			grid.BinSize = min(grid.BinSize, g.BinSize)
		}
		valid++
	}

	if valid == 0 {
		return grid, fmt.Errorf("%w: no ping with a valid depth mapping", ErrDegenerateGeometry)
	}
	if !(grid.BinSize > 0) {
		return grid, fmt.Errorf("%w: bin size %g m", ErrDegenerateGeometry, grid.BinSize)
	}
	return grid, nil
}

func (b Builder) drawColumn(r *Raster, col int, p *ping.Ping) bool {
	if _, err := p.Geometry(); err != nil {
		return false
	}

	img := r.Image
	for row := 0; row < img.Rect.Dy(); row++ {
		v := p.SampleAt(r.RowDepth(row))
		if math.IsNaN(v) {
			continue
		}
		img.Pix[row*img.Stride+col] = Quantize(v, b.MinDB, b.MaxDB)
	}
	return true
}

// Quantize maps an intensity in dB to [0, MaxLevel]. NaN maps to Background.
// For a fixed window the mapping is monotonic non-decreasing. A window
// without width (maxDB <= minDB) thresholds at minDB.
func Quantize(value, minDB, maxDB float64) uint8 {
	if math.IsNaN(value) {
		return Background
	}

	span := maxDB - minDB
	if !(span > 0) || math.IsInf(span, 0) {
		if value >= minDB {
			return MaxLevel
		}
		return 0
	}

	q := math.Round(255 * (value - minDB) / span)
	switch {
	case q <= 0:
		return 0
	case q >= float64(MaxLevel):
		return MaxLevel
	default:
		return uint8(q)
	}
}
