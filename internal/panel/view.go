package panel

import (
	"errors"
	"time"

	"cryptodash/internal/refresh"
	"cryptodash/models"
	"cryptodash/processor"
)

// Display statuses. Idle is shown as loading.
const (
	StatusLoading = "loading"
	StatusError   = "error"
	StatusReady   = "ready"
)

// View is everything a renderer needs to draw one panel.
type View struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Kind      Kind                 `json:"kind"`
	Status    string               `json:"status"`
	Message   string               `json:"message,omitempty"`
	Summary   string               `json:"summary,omitempty"`
	Points    []models.PricePoint  `json:"points,omitempty"`
	Coins     []models.CoinSummary `json:"coins,omitempty"`
	FetchedAt *time.Time           `json:"fetched_at,omitempty"`
}

type userMessager interface {
	error
	UserMessage() string
}

// ErrorMessage picks the alert text for err: the error's own user message
// when it has one, otherwise fallback.
func ErrorMessage(err error, fallback string) string {
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}

func baseView(def Definition) View {
	return View{ID: def.ID, Title: def.Title, Kind: def.Kind}
}

// PresentPrices maps a price history state to its view.
func PresentPrices(def Definition, s refresh.State[[]models.PricePoint]) View {
	v := baseView(def)
	switch s.Status {
	case refresh.StatusError:
		v.Status = StatusError
		v.Message = ErrorMessage(s.Err, def.Fallback)
	case refresh.StatusReady:
		v.Status = StatusReady
		v.Points = s.Data
		if n := len(s.Data); n > 0 {
			v.Summary = "$" + processor.FormatWhole(s.Data[n-1].Price)
		}
		at := s.FetchedAt
		v.FetchedAt = &at
	default:
		v.Status = StatusLoading
		v.Message = def.Placeholder
	}
	return v
}

// PresentCoins maps a top coins state to its view.
func PresentCoins(def Definition, s refresh.State[[]models.CoinSummary]) View {
	v := baseView(def)
	switch s.Status {
	case refresh.StatusError:
		v.Status = StatusError
		v.Message = ErrorMessage(s.Err, def.Fallback)
	case refresh.StatusReady:
		v.Status = StatusReady
		v.Coins = s.Data
		if len(s.Data) > 0 {
			v.Summary = "$" + s.Data[0].PriceDisplay
		}
		at := s.FetchedAt
		v.FetchedAt = &at
	default:
		v.Status = StatusLoading
		v.Message = def.Placeholder
	}
	return v
}
