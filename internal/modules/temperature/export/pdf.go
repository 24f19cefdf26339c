package export

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/window"
)

type rgb struct{ r, g, b int }

// seriesColors cycle per device in id order.
var seriesColors = []rgb{
	{0, 0, 255},
	{255, 0, 0},
	{0, 128, 0},
}

// Plot area on a landscape A4 page, in mm.
const (
	plotLeft   = 25.0
	plotTop    = 28.0
	plotWidth  = 245.0
	plotHeight = 145.0
	xTicks     = 6
	yTicks     = 5
	markerSize = 1.4
)

// WritePDFChart renders ds as a line chart of temperature over time.
func WritePDFChart(w io.Writer, ds types.WindowDataset, opts Options) error {
	loc := opts.location()

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(opts.Title), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Text(plotLeft, 15, tr(opts.Title))
	if !opts.GeneratedAt.IsZero() {
		pdf.SetFont("Arial", "", 8)
		pdf.Text(plotLeft, 20, "Generated "+opts.GeneratedAt.In(loc).Format("2006-01-02 15:04 MST"))
	}

	ids := window.DeviceIDs(ds)
	b, ok := boundsOf(ds)
	if !ok {
		pdf.SetFont("Arial", "", 12)
		pdf.Text(plotLeft, plotTop+plotHeight/2, "No readings in window")
		return pdf.Output(w)
	}

	sx := func(d float64) float64 { return plotLeft + (d-b.minX)/(b.maxX-b.minX)*plotWidth }
	sy := func(t float64) float64 { return plotTop + plotHeight - (t-b.minY)/(b.maxY-b.minY)*plotHeight }

	drawAxes(pdf, b, loc, tr)

	pdf.SetLineWidth(0.4)
	for i, id := range ids {
		c := seriesColors[i%len(seriesColors)]
		pdf.SetDrawColor(c.r, c.g, c.b)
		pdf.SetFillColor(c.r, c.g, c.b)

		pts := ds[id]
		for j, p := range pts {
			x, y := sx(p.OffsetDays), sy(p.Temperature)
			if j > 0 {
				prev := pts[j-1]
				pdf.Line(sx(prev.OffsetDays), sy(prev.Temperature), x, y)
			}
			triangle(pdf, x, y)
		}
	}

	drawLegend(pdf, ids, opts, tr)
	return pdf.Output(w)
}

type bounds struct {
	minX, maxX, minY, maxY float64
}

// boundsOf returns the padded data extent, or false when ds has no points.
func boundsOf(ds types.WindowDataset) (bounds, bool) {
	b := bounds{minX: math.Inf(1), maxX: math.Inf(-1), minY: math.Inf(1), maxY: math.Inf(-1)}
	n := 0
	for _, pts := range ds {
		for _, p := range pts {
			b.minX = min(b.minX, p.OffsetDays)
			b.maxX = max(b.maxX, p.OffsetDays)
			b.minY = min(b.minY, p.Temperature)
			b.maxY = max(b.maxY, p.Temperature)
			n++
		}
	}
	if n == 0 {
		return bounds{}, false
	}
	if b.maxX == b.minX {
		b.minX -= 0.5
		b.maxX += 0.5
	}
	if b.maxY == b.minY {
		b.minY--
		b.maxY++
	}
	pad := (b.maxY - b.minY) * 0.05
	b.minY -= pad
	b.maxY += pad
	return b, true
}

func drawAxes(pdf *gofpdf.Fpdf, b bounds, loc *time.Location, tr func(string) string) {
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.3)
	pdf.Line(plotLeft, plotTop, plotLeft, plotTop+plotHeight)
	pdf.Line(plotLeft, plotTop+plotHeight, plotLeft+plotWidth, plotTop+plotHeight)

	pdf.SetFont("Arial", "", 8)
	pdf.SetTextColor(0, 0, 0)

	for i := 0; i <= yTicks; i++ {
		v := b.minY + (b.maxY-b.minY)*float64(i)/yTicks
		y := plotTop + plotHeight - plotHeight*float64(i)/yTicks
		pdf.Line(plotLeft-1.5, y, plotLeft, y)
		label := fmt.Sprintf("%.1f", v)
		pdf.Text(plotLeft-2.5-pdf.GetStringWidth(label), y+1, label)
	}

	for i := 0; i <= xTicks; i++ {
		d := b.minX + (b.maxX-b.minX)*float64(i)/xTicks
		x := plotLeft + plotWidth*float64(i)/xTicks
		pdf.Line(x, plotTop+plotHeight, x, plotTop+plotHeight+1.5)
		label := types.PointTime(d).In(loc).Format("02 Jan 15:04")
		pdf.Text(x-pdf.GetStringWidth(label)/2, plotTop+plotHeight+5, label)
	}

	pdf.Text(plotLeft+plotWidth/2-10, plotTop+plotHeight+11, "Time ("+loc.String()+")")
	pdf.TransformBegin()
	pdf.TransformRotate(90, plotLeft-14, plotTop+plotHeight/2)
	pdf.Text(plotLeft-14, plotTop+plotHeight/2, tr("Temperature (°C)"))
	pdf.TransformEnd()
}

func drawLegend(pdf *gofpdf.Fpdf, ids []string, opts Options, tr func(string) string) {
	pdf.SetFont("Arial", "", 8)
	pdf.SetLineWidth(0.4)
	y := plotTop + 4
	x := plotLeft + plotWidth - 70
	for i, id := range ids {
		c := seriesColors[i%len(seriesColors)]
		pdf.SetDrawColor(c.r, c.g, c.b)
		pdf.SetFillColor(c.r, c.g, c.b)
		pdf.Line(x, y-1, x+8, y-1)
		triangle(pdf, x+4, y-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(x+10, y, tr(opts.label(id)))
		y += 5
	}
}

// triangle draws a downward filled marker centred on (x, y).
func triangle(pdf *gofpdf.Fpdf, x, y float64) {
	pdf.Polygon(triangleVertices(x, y), "F")
}

// Page y grows downward, so the apex has the largest Y.
func triangleVertices(x, y float64) []gofpdf.PointType {
	h := markerSize
	return []gofpdf.PointType{
		{X: x - h, Y: y - h*0.8},
		{X: x + h, Y: y - h*0.8},
		{X: x, Y: y + h},
	}
}
