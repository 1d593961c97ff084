package processor

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"cryptodash/models"
)

var (
	billion = decimal.New(1, 9)
	printer = message.NewPrinter(language.English)
)

// TopCoins turns the /coins/markets payload into table rows. The source order
// (market cap descending) is preserved and the result is capped at limit.
func TopCoins(raw []models.CoinMarket, limit int) ([]models.CoinSummary, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: missing coin list", ErrMalformedPayload)
	}
	if limit > 0 && len(raw) > limit {
		raw = raw[:limit]
	}

	out := make([]models.CoinSummary, 0, len(raw))
	for i, coin := range raw {
		if strings.TrimSpace(coin.Symbol) == "" {
			return nil, fmt.Errorf("%w: coin %d has no symbol", ErrMalformedPayload, i)
		}
		if coin.CurrentPrice == nil || invalidNumber(*coin.CurrentPrice) {
			return nil, fmt.Errorf("%w: coin %q has no current price", ErrMalformedPayload, coin.Symbol)
		}

		change := valueOrZero(coin.PriceChangePercentage24h)
		volume := valueOrZero(coin.TotalVolume)
		price := decimal.NewFromFloat(*coin.CurrentPrice)
		changeText, direction := FormatChange(change)

		out = append(out, models.CoinSummary{
			Symbol:           coin.Symbol,
			Name:             coin.Name,
			ImageRef:         coin.Image,
			CurrentPrice:     price,
			Change24hPercent: change,
			Volume24h:        volume,
			PriceDisplay:     FormatPrice(price),
			ChangeDisplay:    changeText,
			Direction:        direction,
			VolumeDisplay:    FormatVolume(volume),
		})
	}
	return out, nil
}

// FormatVolume renders a volume in billions with one decimal, e.g. "2.5B".
func FormatVolume(volume float64) string {
	return decimal.NewFromFloat(volume).Div(billion).StringFixed(1) + "B"
}

// FormatChange renders the magnitude of a percentage change with two decimals.
// The sign is reported separately as a direction.
func FormatChange(pct float64) (string, models.Direction) {
	direction := models.DirectionUp
	if pct < 0 {
		direction = models.DirectionDown
	}
	return decimal.NewFromFloat(pct).Abs().StringFixed(2) + "%", direction
}

// FormatPrice groups thousands and keeps at most three fraction digits.
func FormatPrice(price decimal.Decimal) string {
	f, _ := price.Round(3).Float64()
	return printer.Sprint(number.Decimal(f, number.MaxFractionDigits(3)))
}

// FormatWhole groups thousands of a whole currency amount.
func FormatWhole(v int64) string {
	return printer.Sprint(number.Decimal(v))
}

func valueOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}
