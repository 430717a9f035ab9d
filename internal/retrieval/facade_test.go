package retrieval_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockdata/internal/cache"
	"stockdata/internal/calendar"
	"stockdata/internal/fallback"
	"stockdata/internal/provider"
	"stockdata/internal/registry"
	"stockdata/internal/retrieval"
	"stockdata/internal/symbol"
)

// memStore is an in-process cache.Store for wiring the full stack in tests.
type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemStore() *memStore { return &memStore{m: map[string][]byte{}} }

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.m[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (s *memStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = val
	return nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }

// scriptedAdapter answers every market/kind from a fixed response.
type scriptedAdapter struct {
	name  string
	calls atomic.Int64
	fetch func(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error)
}

func (a *scriptedAdapter) Name() string { return a.name }

func (a *scriptedAdapter) Supports(kind provider.Kind, market symbol.Market) bool { return true }

func (a *scriptedAdapter) Fetch(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
	a.calls.Add(1)
	return a.fetch(ctx, kind, id, params)
}

// buildStack wires adapters -> registry -> fallback -> cache -> facade,
// the same composition the binaries use.
func buildStack(t *testing.T, adapters ...provider.Adapter) (*retrieval.Service, *fallback.Executor) {
	t.Helper()
	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	prefs := map[registry.Key][]string{}
	for _, m := range []symbol.Market{symbol.MarketCNA, symbol.MarketHK, symbol.MarketUS} {
		for _, k := range provider.Kinds {
			prefs[registry.Key{Market: m, Kind: k}] = names
		}
	}
	reg, err := registry.New(adapters, prefs)
	require.NoError(t, err)
	exec := fallback.New(reg, adapters, fallback.Config{}, nil)
	layer := cache.New(newMemStore(), exec, calendar.Weekday{}, cache.Config{}, nil)
	return retrieval.New(layer), exec
}

func TestGetQuote_FallsBackToSecondary(t *testing.T) {
	t.Parallel()

	primary := &scriptedAdapter{name: "primary", fetch: func(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
		return nil, provider.ErrTimeout
	}}
	secondary := &scriptedAdapter{name: "secondary", fetch: func(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
		return &provider.Result{
			Kind:  provider.KindQuote,
			Quote: &provider.Quote{Ticker: id.Ticker, Price: 256.48},
		}, nil
	}}
	svc, exec := buildStack(t, primary, secondary)

	ent, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.InEpsilon(t, 256.48, ent.Payload.Quote.Price, 0.0001)
	require.Equal(t, "secondary", ent.Payload.Source)
	require.False(t, ent.FromCache)
	require.Equal(t, 1, exec.Breaker("primary").ConsecutiveFailures())

	// second request is served from cache, no further provider traffic
	ent, err = svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, ent.FromCache)
	require.Equal(t, "secondary", ent.Payload.Source)
	require.EqualValues(t, 1, primary.calls.Load())
	require.EqualValues(t, 1, secondary.calls.Load())
}

func TestGetPriceHistory_BarsAscending(t *testing.T) {
	t.Parallel()

	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }
	src := &scriptedAdapter{name: "primary", fetch: func(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
		require.Equal(t, provider.KindHistory, kind)
		require.Equal(t, "600519", id.Ticker)
		// deliberately shuffled and with a duplicate date; the later
		// element wins and output comes back sorted
		return &provider.Result{
			Kind: provider.KindHistory,
			Bars: []provider.PriceBar{
				{Date: day(7), Close: 7},
				{Date: day(3), Close: 3},
				{Date: day(5), Close: 99},
				{Date: day(6), Close: 6},
				{Date: day(4), Close: 4},
				{Date: day(5), Close: 5},
				{Date: day(10), Close: 10},
				{Date: day(11), Close: 11},
			},
		}, nil
	}}
	svc, _ := buildStack(t, src)

	ent, err := svc.GetPriceHistory(context.Background(), "600519.SH", day(3), day(11))
	require.NoError(t, err)
	bars := ent.Payload.Bars
	require.Len(t, bars, 7)
	for i := 1; i < len(bars); i++ {
		require.True(t, bars[i-1].Date.Before(bars[i].Date), "bars must be date-ascending")
	}
	require.InEpsilon(t, 5.0, bars[2].Close, 0.0001, "later same-day bar wins")
}

func TestGetPriceHistory_InvalidRange(t *testing.T) {
	t.Parallel()

	src := &scriptedAdapter{name: "primary", fetch: func(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
		t.Error("provider must not be called for invalid input")
		return nil, provider.ErrUpstream
	}}
	svc, _ := buildStack(t, src)

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.GetPriceHistory(context.Background(), "600519", start, start.AddDate(0, 0, -1))
	require.ErrorIs(t, err, retrieval.ErrInvalidRange)

	_, err = svc.GetPriceHistory(context.Background(), "600519", time.Time{}, start)
	require.ErrorIs(t, err, retrieval.ErrInvalidRange)
}

func TestOperations_RejectBadSymbolBeforeFetch(t *testing.T) {
	t.Parallel()

	src := &scriptedAdapter{name: "primary", fetch: func(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
		t.Error("provider must not be called for invalid input")
		return nil, provider.ErrUpstream
	}}
	svc, _ := buildStack(t, src)

	_, err := svc.GetQuote(context.Background(), "12AB34")
	require.ErrorIs(t, err, symbol.ErrInvalidSymbol)
	_, err = svc.GetFundamental(context.Background(), "", time.Time{})
	require.ErrorIs(t, err, symbol.ErrInvalidSymbol)
	_, err = svc.GetNews(context.Background(), "no_such_symbol", 0)
	require.ErrorIs(t, err, symbol.ErrInvalidSymbol)
}

func TestGetNews_NewestFirstAndDeduplicated(t *testing.T) {
	t.Parallel()

	ts := func(h int) time.Time { return time.Date(2025, 6, 2, h, 0, 0, 0, time.UTC) }
	src := &scriptedAdapter{name: "primary", fetch: func(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
		require.Equal(t, provider.KindNews, kind)
		require.Equal(t, 7*24*time.Hour, params.Window, "zero window defaults to 7 days")
		return &provider.Result{
			Kind: provider.KindNews,
			News: []provider.NewsItem{
				{Title: "Earnings beat", URL: "https://example.com/a", PublishedAt: ts(9)},
				{Title: "Earnings Beat", URL: "HTTPS://example.com/a/", PublishedAt: ts(9)},
				{Title: "Guidance raised", URL: "https://example.com/b", PublishedAt: ts(12)},
			},
		}, nil
	}}
	svc, _ := buildStack(t, src)

	ent, err := svc.GetNews(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	news := ent.Payload.News
	require.Len(t, news, 2, "case/slash variants of the same story collapse")
	require.Equal(t, "Guidance raised", news[0].Title)
	require.Equal(t, "Earnings beat", news[1].Title)
}

func TestGetFundamental_PassesAsOf(t *testing.T) {
	t.Parallel()

	asOf := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	src := &scriptedAdapter{name: "primary", fetch: func(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
		require.Equal(t, provider.KindFundamental, kind)
		require.True(t, params.AsOf.Equal(asOf))
		return &provider.Result{
			Kind:        provider.KindFundamental,
			Fundamental: &provider.Fundamental{Ticker: id.Ticker, AsOfDate: asOf, Metrics: map[string]float64{"pe": 28.4}},
		}, nil
	}}
	svc, _ := buildStack(t, src)

	ent, err := svc.GetFundamental(context.Background(), "600519", asOf)
	require.NoError(t, err)
	require.InEpsilon(t, 28.4, ent.Payload.Fundamental.Metrics["pe"], 0.0001)
}
