// Package retrieval is the single entry point for the transport layer.
// Every operation resolves the symbol first, failing fast on bad input
// before any cache or provider is touched.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockdata/internal/cache"
	"stockdata/internal/provider"
	"stockdata/internal/symbol"
)

// ErrInvalidRange rejects a history request whose window is malformed.
var ErrInvalidRange = errors.New("invalid history range")

// Getter is the cache layer seen from the facade.
type Getter interface {
	Get(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*cache.Entry, error)
}

// Service composes resolve -> cache -> fallback -> providers.
type Service struct {
	data Getter
}

func New(data Getter) *Service {
	return &Service{data: data}
}

// GetQuote returns the latest quote for a raw ticker string.
func (s *Service) GetQuote(ctx context.Context, raw string) (*cache.Entry, error) {
	id, err := symbol.Resolve(raw)
	if err != nil {
		return nil, err
	}
	return s.data.Get(ctx, provider.KindQuote, id, provider.Params{})
}

// GetPriceHistory returns daily bars in [start, end], date-ascending.
func (s *Service) GetPriceHistory(ctx context.Context, raw string, start, end time.Time) (*cache.Entry, error) {
	id, err := symbol.Resolve(raw)
	if err != nil {
		return nil, err
	}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("%w: [%s, %s]", ErrInvalidRange, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return s.data.Get(ctx, provider.KindHistory, id, provider.Params{Start: start, End: end})
}

// GetFundamental returns fundamental metrics; a zero asOf means "latest".
func (s *Service) GetFundamental(ctx context.Context, raw string, asOf time.Time) (*cache.Entry, error) {
	id, err := symbol.Resolve(raw)
	if err != nil {
		return nil, err
	}
	return s.data.Get(ctx, provider.KindFundamental, id, provider.Params{AsOf: asOf})
}

// GetNews returns headlines published within the lookback window, newest first.
func (s *Service) GetNews(ctx context.Context, raw string, window time.Duration) (*cache.Entry, error) {
	id, err := symbol.Resolve(raw)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return s.data.Get(ctx, provider.KindNews, id, provider.Params{Window: window})
}
