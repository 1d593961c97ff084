package panel

import (
	"time"

	"cryptodash/config"
	"cryptodash/models"
)

// Kind selects how a panel's data is drawn.
type Kind string

const (
	KindChart Kind = "chart"
	KindTable Kind = "table"
)

// Definition is the static description of one dashboard panel.
type Definition struct {
	ID          string
	Title       string
	Kind        Kind
	Placeholder string
	Fallback    string
	Range       models.PriceRange
	Limit       int
	Interval    time.Duration
}

var (
	BitcoinChart = Definition{
		ID:          "bitcoin-chart",
		Title:       "Bitcoin Price (7 Days)",
		Kind:        KindChart,
		Placeholder: "Loading chart data...",
		Fallback:    "Failed to load chart data",
		Range:       models.SevenDayHourly,
		Interval:    10 * time.Minute,
	}
	TopCoins = Definition{
		ID:          "top-coins",
		Title:       "Top Cryptocurrencies",
		Kind:        KindTable,
		Placeholder: "Loading...",
		Fallback:    "Failed to load cryptocurrency data",
		Limit:       5,
		Interval:    2 * time.Minute,
	}
	Portfolio = Definition{
		ID:          "portfolio",
		Title:       "Bitcoin Performance",
		Kind:        KindChart,
		Placeholder: "Loading...",
		Fallback:    "Failed to load portfolio data",
		Range:       models.HalfYearDaily,
		Interval:    5 * time.Minute,
	}
)

// Definitions returns the enabled panels in page order with intervals and
// limits taken from cfg.
func Definitions(cfg config.PanelsConfig) []Definition {
	var defs []Definition
	add := func(def Definition, pc config.PanelConfig) {
		if !pc.Enabled {
			return
		}
		if pc.RefreshInterval > 0 {
			def.Interval = pc.RefreshInterval
		}
		if pc.Limit > 0 && def.Kind == KindTable {
			def.Limit = pc.Limit
		}
		defs = append(defs, def)
	}
	add(BitcoinChart, cfg.BitcoinChart)
	add(TopCoins, cfg.TopCoins)
	add(Portfolio, cfg.Portfolio)
	return defs
}
