package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mum4k/termdash"
	"github.com/mum4k/termdash/cell"
	"github.com/mum4k/termdash/container"
	"github.com/mum4k/termdash/container/grid"
	"github.com/mum4k/termdash/keyboard"
	"github.com/mum4k/termdash/linestyle"
	"github.com/mum4k/termdash/terminal/tcell"
	"github.com/mum4k/termdash/terminal/terminalapi"
	"github.com/mum4k/termdash/widgets/linechart"
	"github.com/mum4k/termdash/widgets/text"

	"cryptodash/internal/panel"
	"cryptodash/logger"
	"cryptodash/models"
)

const redrawInterval = 250 * time.Millisecond

// Dashboard renders panel views in the terminal. It only reads panel state.
type Dashboard struct {
	panels      []panel.Panel
	attribution string
	loc         *time.Location
	log         *logger.Log

	status  map[string]*text.Text
	charts  map[string]*linechart.LineChart
	footer  *text.Text
	updates chan panel.View
	mu      sync.Mutex
}

func New(panels []panel.Panel, attribution string, loc *time.Location, log *logger.Log) *Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Dashboard{
		panels:      panels,
		attribution: attribution,
		loc:         loc,
		log:         log,
		status:      make(map[string]*text.Text),
		charts:      make(map[string]*linechart.LineChart),
		updates:     make(chan panel.View, 16),
	}
}

// InitWidgets creates one status text per panel plus a line chart for chart
// panels.
func (d *Dashboard) InitWidgets() error {
	for _, p := range d.panels {
		status, err := text.New(text.WrapAtWords())
		if err != nil {
			return fmt.Errorf("failed to create text widget for %s: %v", p.ID(), err)
		}
		d.status[p.ID()] = status

		if p.Definition().Kind != panel.KindChart {
			continue
		}
		chart, err := linechart.New(
			linechart.AxesCellOpts(cell.FgColor(cell.ColorNumber(244))),
			linechart.YLabelCellOpts(cell.FgColor(cell.ColorGreen)),
			linechart.XLabelCellOpts(cell.FgColor(cell.ColorGreen)),
		)
		if err != nil {
			return fmt.Errorf("failed to create line chart for %s: %v", p.ID(), err)
		}
		d.charts[p.ID()] = chart
	}

	footer, err := text.New()
	if err != nil {
		return fmt.Errorf("failed to create footer widget: %v", err)
	}
	d.footer = footer
	if d.attribution != "" {
		if err := d.footer.Write(d.attribution + "  (q to quit)"); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dashboard) apply(v panel.View) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if status, ok := d.status[v.ID]; ok {
		status.Reset()
		color := cell.ColorDefault
		switch v.Status {
		case panel.StatusError:
			color = cell.ColorRed
		case panel.StatusReady:
			color = cell.ColorGreen
		}
		if err := status.Write(describe(v, d.loc), text.WriteCellOpts(cell.FgColor(color))); err != nil {
			d.log.WithComponent("tui").WithError(err).Warn("failed to write panel status")
		}
	}

	chart, ok := d.charts[v.ID]
	if !ok {
		return
	}
	values, labels := chartData(v)
	if err := chart.Series(v.ID, values,
		linechart.SeriesCellOpts(cell.FgColor(cell.ColorNumber(105))),
		linechart.SeriesXLabels(labels),
	); err != nil {
		d.log.WithComponent("tui").WithError(err).Warn("failed to update chart series")
	}
}

// chartData is the series drawn for v. Views that are not ready get an empty
// series and an empty label set, which replaces labels left by earlier data.
func chartData(v panel.View) ([]float64, map[int]string) {
	if v.Status != panel.StatusReady {
		return []float64{}, map[int]string{}
	}
	return chartSeries(v.Points)
}

// describe is the status text for a panel: placeholder, alert, or summary and
// the coin table.
func describe(v panel.View, loc *time.Location) string {
	switch v.Status {
	case panel.StatusError:
		return "! " + v.Message
	case panel.StatusReady:
	default:
		return v.Message
	}

	var b strings.Builder
	b.WriteString(v.Title)
	if v.Summary != "" {
		b.WriteString("  " + v.Summary)
	}
	if v.FetchedAt != nil {
		b.WriteString("  (updated " + v.FetchedAt.In(loc).Format("15:04:05") + ")")
	}
	b.WriteString("\n")
	if len(v.Coins) > 0 {
		b.WriteString(coinTable(v.Coins))
	}
	return b.String()
}

func coinTable(coins []models.CoinSummary) string {
	var b strings.Builder
	for _, c := range coins {
		arrow := "▲"
		if c.Direction == models.DirectionDown {
			arrow = "▼"
		}
		fmt.Fprintf(&b, "%-6s %-14s %16s  %s %-8s Vol: $%s\n",
			strings.ToUpper(c.Symbol), c.Name, "$"+c.PriceDisplay, arrow, c.ChangeDisplay, c.VolumeDisplay)
	}
	return b.String()
}

// chartSeries converts points to linechart values with roughly six evenly
// spaced x labels.
func chartSeries(points []models.PricePoint) ([]float64, map[int]string) {
	values := make([]float64, len(points))
	labels := make(map[int]string)
	if len(points) == 0 {
		return values, labels
	}
	step := len(points) / 6
	if step == 0 {
		step = 1
	}
	for i, p := range points {
		values[i] = float64(p.Price)
		if i%step == 0 || i == len(points)-1 {
			labels[i] = p.Timestamp
		}
	}
	return values, labels
}

// layout places chart panels side by side above table panels, with the footer
// at the bottom.
func (d *Dashboard) layout() ([]container.Option, error) {
	var charts, tables []grid.Element
	for _, p := range d.panels {
		def := p.Definition()
		status := grid.Widget(d.status[p.ID()],
			container.Border(linestyle.Light),
			container.BorderTitle(" "+def.Title+" "),
		)
		if chart, ok := d.charts[p.ID()]; ok {
			charts = append(charts, grid.RowHeightPerc(20, status), grid.RowHeightPerc(80,
				grid.Widget(chart, container.Border(linestyle.Light)),
			))
			continue
		}
		tables = append(tables, status)
	}

	builder := grid.New()
	var rows []grid.Element
	chartCols := pairsToCols(charts)
	switch {
	case len(chartCols) > 0 && len(tables) > 0:
		rows = append(rows,
			grid.RowHeightPerc(55, chartCols...),
			grid.RowHeightPerc(40, splitCols(tables)...),
		)
	case len(chartCols) > 0:
		rows = append(rows, grid.RowHeightPerc(95, chartCols...))
	default:
		rows = append(rows, grid.RowHeightPerc(95, splitCols(tables)...))
	}
	rows = append(rows, grid.RowHeightPerc(5, grid.Widget(d.footer)))
	builder.Add(rows...)

	return builder.Build()
}

// pairsToCols groups (status, chart) row pairs into one column per panel.
func pairsToCols(pairs []grid.Element) []grid.Element {
	var cols []grid.Element
	n := len(pairs) / 2
	for i := 0; i+1 < len(pairs); i += 2 {
		if n == 1 {
			return pairs
		}
		cols = append(cols, grid.ColWidthPerc(colPerc(n), pairs[i], pairs[i+1]))
	}
	return cols
}

func splitCols(elems []grid.Element) []grid.Element {
	if len(elems) <= 1 {
		return elems
	}
	cols := make([]grid.Element, 0, len(elems))
	for _, e := range elems {
		cols = append(cols, grid.ColWidthPerc(colPerc(len(elems)), e))
	}
	return cols
}

func colPerc(n int) int {
	if n <= 1 {
		return 99
	}
	return 100 / n
}

// subscribe registers for updates before drawing each panel's current view,
// so a cycle finishing in between is not lost.
func (d *Dashboard) subscribe() {
	for _, p := range d.panels {
		p.Watch(func(v panel.View) {
			select {
			case d.updates <- v:
			default:
				d.log.WithComponent("tui").WithField("panel", v.ID).Warn("update channel full, dropping view")
			}
		})
		d.apply(p.View())
	}
}

// Run draws the dashboard until ctx is cancelled or the user presses q/Esc.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := d.InitWidgets(); err != nil {
		return err
	}

	d.subscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-d.updates:
				d.apply(v)
			}
		}
	}()

	t, err := tcell.New(tcell.ColorMode(terminalapi.ColorMode256))
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}
	defer t.Close()

	gridOpts, err := d.layout()
	if err != nil {
		return fmt.Errorf("failed to build grid layout: %v", err)
	}

	c, err := container.New(t, gridOpts...)
	if err != nil {
		return fmt.Errorf("failed to create root container: %v", err)
	}

	quit := func(k *terminalapi.Keyboard) {
		if k.Key == 'q' || k.Key == 'Q' || k.Key == keyboard.KeyEsc || k.Key == keyboard.KeyCtrlC {
			cancel()
		}
	}

	return termdash.Run(ctx, t, c, termdash.KeyboardSubscriber(quit), termdash.RedrawInterval(redrawInterval))
}
