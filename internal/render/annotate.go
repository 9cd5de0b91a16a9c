package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/marine-echogram/internal/display"
)

const (
	dpi            = 96.0
	tickMarkWidth  = 5
	labelMargin    = 3
	infoSeparator  = "; "
	depthLabelUnit = "m"
)

type annotatorConfig struct {
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, area image.Rectangle, f *display.Frame) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, image.Rectangle, *display.Frame) error
	}{
		{"drawing depth scale", a.drawDepthScale},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, area, f); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}
	return nil
}

func (a *annotator) drawDepthScale(img *image.RGBA, area image.Rectangle, f *display.Frame) error {
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for _, tick := range f.Ticks {
		y := area.Min.Y + int(math.Round(f.YForAxis(tick)))
		if y < area.Min.Y || y > area.Max.Y {
			continue
		}

		for x := area.Min.X - tickMarkWidth; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := formatDepth(-tick)
		width := font.MeasureString(a.fontFace, label).Round()

		// right-aligned against the tick mark, centered vertically on it
		x := area.Min.X - tickMarkWidth - labelMargin - width
		textY := y + fontHeight/2 - metrics.Descent.Round()
		if _, err := a.context.DrawString(label, freetype.Pt(x, textY)); err != nil {
			return fmt.Errorf("drawing depth label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, area image.Rectangle, f *display.Frame) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Pings: %s", humanize.Comma(int64(f.Pings))))
	if f.Pings > 0 {
		sb.WriteString(infoSeparator)
		sb.WriteString(fmt.Sprintf("Time: %s - %s",
			f.Oldest.In(a.config.Location).Format(a.config.DatetimeFormat),
			f.Newest.In(a.config.Location).Format(a.config.DatetimeFormat)))
	}

	sb.WriteString(infoSeparator)
	sb.WriteString(fmt.Sprintf("Depth: %s - %s", formatDepth(-f.AxisMax), formatDepth(-f.AxisMin)))

	if f.Area.Height > 0 && f.AxisMax > f.AxisMin {
		sb.WriteString(infoSeparator)
		perPixel := (f.AxisMax - f.AxisMin) / f.Area.Height
		sb.WriteString(fmt.Sprintf("1px = %s", humanize.SIWithDigits(perPixel, 2, depthLabelUnit)))
	}

	sb.WriteString(infoSeparator)
	sb.WriteString(fmt.Sprintf("Zoom: %sx", humanize.FtoaWithDigits(f.Zoom, 2)))

	sb.WriteString(infoSeparator)
	sb.WriteString(fmt.Sprintf("dB: %s .. %s",
		humanize.FtoaWithDigits(f.MinDB, 1), humanize.FtoaWithDigits(f.MaxDB, 1)))

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Center text vertically in bottom border
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(area.Min.X, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

func formatDepth(depth float64) string {
	if depth == 0 {
		depth = 0 // no "-0"
	}
	return humanize.FtoaWithDigits(depth, 2) + " " + depthLabelUnit
}
