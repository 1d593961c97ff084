package models

import (
	"time"
)

// LabelStyle selects how a price point timestamp is rendered for display.
type LabelStyle string

const (
	// LabelDay renders a medium date such as "Jan 2, 2006".
	LabelDay LabelStyle = "day"
	// LabelMonth renders the abbreviated month only, e.g. "Jan".
	LabelMonth LabelStyle = "month"
)

// PriceRange describes one market_chart request against the price API and how
// the result is trimmed and labelled.
type PriceRange struct {
	CoinID   string     `json:"coin_id"`
	Days     int        `json:"days"`
	Interval string     `json:"interval"`
	Tail     int        `json:"tail,omitempty"` // keep only the trailing N points; 0 keeps all
	Label    LabelStyle `json:"label"`
}

var (
	// SevenDayHourly backs the Bitcoin price chart.
	SevenDayHourly = PriceRange{CoinID: "bitcoin", Days: 7, Interval: "hourly", Label: LabelDay}
	// HalfYearDaily backs the Bitcoin performance panel.
	HalfYearDaily = PriceRange{CoinID: "bitcoin", Days: 180, Interval: "daily", Tail: 180, Label: LabelMonth}
)

// PricePoint is a single display-ready sample of a price history.
type PricePoint struct {
	Time      time.Time `json:"time"`
	Timestamp string    `json:"timestamp"`
	Price     int64     `json:"price"`
}

// MarketChart mirrors the /coins/{id}/market_chart response. Each price entry
// is an [epochMillis, price] pair.
type MarketChart struct {
	Prices [][]float64 `json:"prices"`
}
