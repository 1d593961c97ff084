package processor

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cryptodash/models"
)

// ErrMalformedPayload is returned when a decoded API payload cannot be turned
// into display records.
var ErrMalformedPayload = errors.New("malformed payload")

const (
	dayLabelLayout   = "Jan 2, 2006"
	monthLabelLayout = "Jan"
)

// PriceHistory converts market_chart price pairs into chronological price
// points. When the range sets a tail only the trailing entries are kept.
func PriceHistory(prices [][]float64, r models.PriceRange, loc *time.Location) ([]models.PricePoint, error) {
	if prices == nil {
		return nil, fmt.Errorf("%w: missing prices", ErrMalformedPayload)
	}
	if loc == nil {
		loc = time.UTC
	}
	if r.Tail > 0 && len(prices) > r.Tail {
		prices = prices[len(prices)-r.Tail:]
	}

	points := make([]models.PricePoint, 0, len(prices))
	for i, pair := range prices {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: price entry %d has %d values", ErrMalformedPayload, i, len(pair))
		}
		ms, raw := pair[0], pair[1]
		if invalidNumber(ms) || invalidNumber(raw) {
			return nil, fmt.Errorf("%w: price entry %d is not a finite number", ErrMalformedPayload, i)
		}
		at := time.UnixMilli(int64(ms)).In(loc)
		points = append(points, models.PricePoint{
			Time:      at,
			Timestamp: DateLabel(at, r.Label),
			Price:     RoundPrice(raw),
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	return points, nil
}

// RoundPrice rounds to the nearest whole currency unit, halves away from zero.
func RoundPrice(raw float64) int64 {
	return decimal.NewFromFloat(raw).Round(0).IntPart()
}

// DateLabel formats t for an axis label in the requested style.
func DateLabel(t time.Time, style models.LabelStyle) string {
	if style == models.LabelMonth {
		return t.Format(monthLabelLayout)
	}
	return t.Format(dayLabelLayout)
}

func invalidNumber(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
