package render

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"time"

	"golang.org/x/image/draw"

	"github.com/roman-kulish/marine-echogram/internal/display"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
)

type ImageFormat string

const (
	fontSize = 10.0

	// Default border sizes in pixels
	defaultTopBorder    = 20
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 20

	defaultDatetimeFormat = time.DateTime
)

// BorderConfig defines the sizes of white space around the echogram
type BorderConfig struct {
	Top    int // Top padding
	Left   int // Space for the depth scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for echogram images
type RenderConfig struct {
	DatetimeFormat string         // Format string for date/time display
	Location       *time.Location // Timezone for time display

	FontSize   float64
	ColorTheme ColorTheme

	BorderConfig BorderConfig

	// NoAnnotations renders the echogram only, without borders.
	NoAnnotations bool
}

// Renderer draws display frames into images.
type Renderer struct {
	colors *ColorMapper
	config RenderConfig
}

// NewRenderer creates a new renderer with the given configuration
func NewRenderer(config RenderConfig) (*Renderer, error) {
	if config.ColorTheme == "" {
		config.ColorTheme = MarineTheme
	}
	if _, ok := validThemes[config.ColorTheme]; !ok {
		return nil, fmt.Errorf("unknown color theme: %s", config.ColorTheme)
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}

	if config.NoAnnotations {
		config.BorderConfig = BorderConfig{}
	} else {
		if config.BorderConfig.Top == 0 {
			config.BorderConfig.Top = defaultTopBorder
		}
		if config.BorderConfig.Left == 0 {
			config.BorderConfig.Left = defaultLeftBorder
		}
		if config.BorderConfig.Bottom == 0 {
			config.BorderConfig.Bottom = defaultBottomBorder
		}
		if config.BorderConfig.Right == 0 {
			config.BorderConfig.Right = defaultRightBorder
		}
	}

	return &Renderer{
		colors: NewColorMapper(config.ColorTheme),
		config: config,
	}, nil
}

// Colors returns the renderer's color mapper.
func (r *Renderer) Colors() *ColorMapper {
	return r.colors
}

// DataArea returns the rectangle the echogram occupies in an image
// rendered from a frame.
func (r *Renderer) DataArea(f *display.Frame) image.Rectangle {
	b := r.config.BorderConfig
	return image.Rect(b.Left, b.Top, b.Left+int(f.Area.Width), b.Top+int(f.Area.Height))
}

// Render creates an image of the frame with annotations
func (r *Renderer) Render(f *display.Frame) (*image.RGBA, error) {
	if f.Area.Empty() {
		return nil, fmt.Errorf("empty display area %.0fx%.0f", f.Area.Width, f.Area.Height)
	}

	area := r.DataArea(f)
	b := r.config.BorderConfig
	img := image.NewRGBA(image.Rect(0, 0, area.Max.X+b.Right, area.Max.Y+b.Bottom))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(annotatorConfig{
			DatetimeFormat: r.config.DatetimeFormat,
			Location:       r.config.Location,
			FontSize:       r.config.FontSize,
			Borders:        b,
		})
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, area, f); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	r.renderEchogram(img, area, f)

	return img, nil
}

// renderEchogram scales the visible part of the raster into the data area.
func (r *Renderer) renderEchogram(img *image.RGBA, area image.Rectangle, f *display.Frame) {
	dst := img.SubImage(area).(*image.RGBA)
	draw.Draw(dst, area, image.NewUniform(NoDataColor), image.Point{}, draw.Src)

	if !f.Visible || f.Raster == nil || f.Raster.Empty() || f.Placement.Source.Empty() {
		return
	}

	m := f.Placement.Transform()
	m[2] += float64(area.Min.X)
	m[5] += float64(area.Min.Y)

	src := r.colors.Colorize(f.Raster.Image)
	draw.NearestNeighbor.Transform(dst, m, src, f.Placement.Source, draw.Src, nil)
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{
			Quality: 98,
		})
	default:
		return fmt.Errorf("invalid image format: %s", format)
	}
}
