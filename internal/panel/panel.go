package panel

import (
	"context"
	"fmt"

	"cryptodash/internal/refresh"
	"cryptodash/models"
)

// Source is the price data capability a panel polls.
type Source interface {
	FetchPriceHistory(ctx context.Context, r models.PriceRange) ([]models.PricePoint, error)
	FetchTopCoins(ctx context.Context, n int) ([]models.CoinSummary, error)
}

// Panel is one independently refreshed dashboard panel.
type Panel interface {
	ID() string
	Definition() Definition
	Start(ctx context.Context) error
	Stop()
	View() View
	Watch(fn func(View))
}

type panel[T any] struct {
	def     Definition
	ctrl    *refresh.Controller[T]
	present func(Definition, refresh.State[T]) View
}

func (p *panel[T]) ID() string                      { return p.def.ID }
func (p *panel[T]) Definition() Definition          { return p.def }
func (p *panel[T]) Start(ctx context.Context) error { return p.ctrl.Start(ctx) }
func (p *panel[T]) Stop()                           { p.ctrl.Stop() }

func (p *panel[T]) View() View {
	return p.present(p.def, p.ctrl.State())
}

func (p *panel[T]) Watch(fn func(View)) {
	p.ctrl.Watch(func(s refresh.State[T]) {
		fn(p.present(p.def, s))
	})
}

// New builds the panel for def polling src. opts.Policy.Interval is replaced
// by def.Interval.
func New(def Definition, src Source, opts refresh.Options) (Panel, error) {
	if src == nil {
		return nil, fmt.Errorf("panel %s: nil source", def.ID)
	}
	opts.Policy.Interval = def.Interval

	switch def.Kind {
	case KindChart:
		r := def.Range
		fetch := func(ctx context.Context) ([]models.PricePoint, error) {
			return src.FetchPriceHistory(ctx, r)
		}
		return &panel[[]models.PricePoint]{
			def:     def,
			ctrl:    refresh.NewController(def.ID, fetch, opts),
			present: PresentPrices,
		}, nil
	case KindTable:
		limit := def.Limit
		fetch := func(ctx context.Context) ([]models.CoinSummary, error) {
			return src.FetchTopCoins(ctx, limit)
		}
		return &panel[[]models.CoinSummary]{
			def:     def,
			ctrl:    refresh.NewController(def.ID, fetch, opts),
			present: PresentCoins,
		}, nil
	default:
		return nil, fmt.Errorf("panel %s: unknown kind %q", def.ID, def.Kind)
	}
}
