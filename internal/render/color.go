package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/roman-kulish/marine-echogram/internal/echogram"
)

const (
	MarineTheme    ColorTheme = "marine"
	ClassicTheme   ColorTheme = "classic"
	GrayscaleTheme ColorTheme = "grayscale"
	JungleTheme    ColorTheme = "jungle"
	ThermalTheme   ColorTheme = "thermal"
)

type ColorTheme string

// NoDataColor fills cells without ping data.
var NoDataColor color.Color = color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xff}

var validThemes = map[ColorTheme]struct{}{
	MarineTheme:    {},
	ClassicTheme:   {},
	GrayscaleTheme: {},
	JungleTheme:    {},
	ThermalTheme:   {},
}

// ParseColorTheme returns the theme with the given case-insensitive name.
// An empty name selects MarineTheme.
func ParseColorTheme(name string) (ColorTheme, error) {
	if name == "" {
		return MarineTheme, nil
	}
	theme := ColorTheme(strings.ToLower(name))
	if _, ok := validThemes[theme]; !ok {
		return "", fmt.Errorf("unknown color theme: %s", name)
	}
	return theme, nil
}

// ColorMapper maps quantized intensity levels to colors. The palette is
// computed once: index 0..MaxLevel follows the theme, Background maps to
// NoDataColor.
type ColorMapper struct {
	theme   ColorTheme
	palette color.Palette
}

func NewColorMapper(theme ColorTheme) *ColorMapper {
	fn := getColorTheme(theme)

	palette := make(color.Palette, int(echogram.Background)+1)
	for i := 0; i <= int(echogram.MaxLevel); i++ {
		palette[i] = fn(float64(i) / float64(echogram.MaxLevel))
	}
	palette[echogram.Background] = NoDataColor

	return &ColorMapper{theme: theme, palette: palette}
}

// Color returns the color of a quantized level.
func (cm *ColorMapper) Color(level uint8) color.Color {
	return cm.palette[level]
}

func (cm *ColorMapper) Theme() ColorTheme {
	return cm.theme
}

// Colorize returns a paletted view of a gray raster. The pixels are shared
// with img.
func (cm *ColorMapper) Colorize(img *image.Gray) *image.Paletted {
	return &image.Paletted{
		Pix:     img.Pix,
		Stride:  img.Stride,
		Rect:    img.Rect,
		Palette: cm.palette,
	}
}

type gradientStop struct {
	col colorful.Color
	pos float64
}

// gradient interpolates between stops in HCL space.
type gradient []gradientStop

func (g gradient) at(t float64) colorful.Color {
	for i := 0; i < len(g)-1; i++ {
		c1, c2 := g[i], g[i+1]
		if c1.pos <= t && t <= c2.pos {
			return c1.col.BlendHcl(c2.col, (t-c1.pos)/(c2.pos-c1.pos)).Clamped()
		}
	}
	return g[len(g)-1].col
}

var (
	marineGradient = gradient{
		{colorful.Color{R: 0.02, G: 0.03, B: 0.15}, 0.0},
		{colorful.Color{R: 0.05, G: 0.25, B: 0.65}, 0.3},
		{colorful.Color{R: 0.10, G: 0.75, B: 0.80}, 0.55},
		{colorful.Color{R: 0.95, G: 0.85, B: 0.15}, 0.8},
		{colorful.Color{R: 0.85, G: 0.10, B: 0.05}, 1.0},
	}

	thermalGradient = gradient{
		{colorful.Color{R: 0, G: 0, B: 0}, 0.0},
		{colorful.Color{R: 0.9, G: 0.05, B: 0.05}, 0.4},
		{colorful.Color{R: 1, G: 0.85, B: 0.1}, 0.75},
		{colorful.Color{R: 1, G: 1, B: 1}, 1.0},
	}
)

func getColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case ClassicTheme:
		return func(level float64) color.Color {
			return colorful.Hsv(240-(level*240), 0.9+(level*0.1), math.Pow(level, 0.7))
		}

	case GrayscaleTheme:
		return func(level float64) color.Color {
			v := math.Pow(level, 0.7)
			return colorful.Color{R: v, G: v, B: v}
		}

	case JungleTheme:
		return func(level float64) color.Color {
			return colorful.Hsv(120-(level*60), 1.0, 0.3+(math.Pow(level, 0.6)*0.7))
		}

	case ThermalTheme:
		return func(level float64) color.Color {
			return thermalGradient.at(level)
		}

	default:
		return func(level float64) color.Color {
			return marineGradient.at(level)
		}
	}
}
