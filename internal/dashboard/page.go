package dashboard

import (
	"fmt"
	"strings"
	"time"

	"cryptodash/internal/panel"
	"cryptodash/models"
	"cryptodash/processor"
)

const (
	chartWidth   = 640
	chartHeight  = 240
	chartPadding = 16
)

// panelPage is what the panel template renders.
type panelPage struct {
	panel.View
	Chart   *chart
	Updated string
}

// chart is a precomputed SVG line chart.
type chart struct {
	Width      int
	Height     int
	Polyline   string
	MinLabel   string
	MaxLabel   string
	StartLabel string
	EndLabel   string
}

func (s *Server) page(p panel.Panel) panelPage {
	v := p.View()
	pg := panelPage{View: v}
	if v.FetchedAt != nil {
		pg.Updated = v.FetchedAt.In(s.opts.Location).Format(time.Kitchen)
	}
	if v.Kind == panel.KindChart && v.Status == panel.StatusReady {
		pg.Chart = buildChart(v.Points, chartWidth, chartHeight)
	}
	return pg
}

// buildChart scales points into a width x height box. A flat series is drawn
// along the vertical middle; nil is returned when there is nothing to draw.
func buildChart(points []models.PricePoint, width, height int) *chart {
	if len(points) == 0 {
		return nil
	}

	lo, hi := points[0].Price, points[0].Price
	for _, p := range points[1:] {
		if p.Price < lo {
			lo = p.Price
		}
		if p.Price > hi {
			hi = p.Price
		}
	}

	innerW := float64(width - 2*chartPadding)
	innerH := float64(height - 2*chartPadding)

	coords := make([]string, len(points))
	for i, p := range points {
		x := float64(chartPadding) + innerW/2
		if len(points) > 1 {
			x = float64(chartPadding) + innerW*float64(i)/float64(len(points)-1)
		}
		y := float64(chartPadding) + innerH/2
		if hi > lo {
			y = float64(chartPadding) + innerH*float64(hi-p.Price)/float64(hi-lo)
		}
		coords[i] = fmt.Sprintf("%.1f,%.1f", x, y)
	}

	return &chart{
		Width:      width,
		Height:     height,
		Polyline:   strings.Join(coords, " "),
		MinLabel:   "$" + processor.FormatWhole(lo),
		MaxLabel:   "$" + processor.FormatWhole(hi),
		StartLabel: points[0].Timestamp,
		EndLabel:   points[len(points)-1].Timestamp,
	}
}
