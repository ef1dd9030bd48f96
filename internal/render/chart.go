package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/color"
	"image/png"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kjstillabower/mining-weather-advisor/internal/risk"
)

// Chart dimensions in pixels.
const (
	ChartWidth  = 800
	ChartHeight = 400

	chartMarginLeft   = 60
	chartMarginRight  = 20
	chartMarginTop    = 40
	chartMarginBottom = 50
	yTicks            = 4
)

var (
	chartBackground = color.RGBA{0xff, 0xff, 0xff, 0xff}
	chartAxis       = color.RGBA{0x33, 0x33, 0x33, 0xff}
	chartGrid       = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}

	// levelColors runs green to dark red for levels 1..5.
	levelColors = map[risk.Level]color.RGBA{
		risk.LevelMinimal:  {0x2e, 0x7d, 0x32, 0xff},
		risk.LevelLow:      {0xf9, 0xa8, 0x25, 0xff},
		risk.LevelModerate: {0xef, 0x6c, 0x00, 0xff},
		risk.LevelHigh:     {0xc6, 0x28, 0x28, 0xff},
		risk.LevelSevere:   {0x6a, 0x1b, 0x1b, 0xff},
	}
)

// RiskChart draws a PNG bar chart of forecast hours per risk level.
func RiskChart(s risk.Summary) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, ChartWidth, ChartHeight))
	fill(img, img.Bounds(), chartBackground)

	plot := image.Rect(chartMarginLeft, chartMarginTop, ChartWidth-chartMarginRight, ChartHeight-chartMarginBottom)

	maxHours := 0
	for _, lc := range s.Distribution {
		if lc.Hours > maxHours {
			maxHours = lc.Hours
		}
	}
	scaleMax := niceCeil(maxHours)

	// Horizontal grid lines with y-axis labels.
	for i := 0; i <= yTicks; i++ {
		value := scaleMax * i / yTicks
		y := plot.Max.Y - plot.Dy()*i/yTicks
		fill(img, image.Rect(plot.Min.X, y, plot.Max.X, y+1), chartGrid)
		label := strconv.Itoa(value)
		drawText(img, label, plot.Min.X-8-textWidth(label), y+4, chartAxis)
	}

	// Axes.
	fill(img, image.Rect(plot.Min.X, plot.Min.Y, plot.Min.X+1, plot.Max.Y+1), chartAxis)
	fill(img, image.Rect(plot.Min.X, plot.Max.Y, plot.Max.X, plot.Max.Y+1), chartAxis)

	n := len(s.Distribution)
	if n > 0 {
		slot := plot.Dx() / n
		barWidth := slot * 3 / 5
		for i, lc := range s.Distribution {
			x0 := plot.Min.X + i*slot + (slot-barWidth)/2
			h := 0
			if scaleMax > 0 {
				h = plot.Dy() * lc.Hours / scaleMax
			}
			fill(img, image.Rect(x0, plot.Max.Y-h, x0+barWidth, plot.Max.Y), levelColors[lc.Level])

			count := strconv.Itoa(lc.Hours)
			drawText(img, count, x0+(barWidth-textWidth(count))/2, plot.Max.Y-h-6, chartAxis)
			level := strconv.Itoa(int(lc.Level))
			drawText(img, level, x0+(barWidth-textWidth(level))/2, plot.Max.Y+18, chartAxis)
		}
	}

	title := "Risk Level Distribution"
	drawText(img, title, (ChartWidth-textWidth(title))/2, chartMarginTop-16, chartAxis)
	xLabel := "Risk Level"
	drawText(img, xLabel, plot.Min.X+(plot.Dx()-textWidth(xLabel))/2, ChartHeight-12, chartAxis)
	drawText(img, "Hours", 8, chartMarginTop-16, chartAxis)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

// ChartDataURL returns RiskChart(s) as a data: URL for inline <img> tags.
func ChartDataURL(s risk.Summary) (template.URL, error) {
	img, err := RiskChart(s)
	if err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(img)), nil
}

func fill(dst *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func drawText(dst *image.RGBA, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// niceCeil rounds n up so the y axis divides evenly into yTicks steps.
func niceCeil(n int) int {
	if n <= 0 {
		return yTicks
	}
	if rem := n % yTicks; rem != 0 {
		return n + yTicks - rem
	}
	return n
}
