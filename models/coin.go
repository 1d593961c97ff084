package models

import (
	"github.com/shopspring/decimal"
)

// Direction marks whether a 24h change is drawn with an up or a down indicator.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// CoinMarket mirrors one element of the /coins/markets response. Numeric fields
// are pointers because the API reports null for coins without recent data.
type CoinMarket struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	Image                    string   `json:"image"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	MarketCapRank            *int     `json:"market_cap_rank"`
	TotalVolume              *float64 `json:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

// CoinSummary is a ranked, display-ready row of the top coins table.
type CoinSummary struct {
	Symbol           string          `json:"symbol"`
	Name             string          `json:"name"`
	ImageRef         string          `json:"image"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	Change24hPercent float64         `json:"change_24h_percent"`
	Volume24h        float64         `json:"volume_24h"`

	PriceDisplay  string    `json:"price_display"`
	ChangeDisplay string    `json:"change_display"`
	Direction     Direction `json:"direction"`
	VolumeDisplay string    `json:"volume_display"`
}
