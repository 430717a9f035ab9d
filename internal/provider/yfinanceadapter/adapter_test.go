package yfinanceadapter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockdata/internal/provider"
	"stockdata/internal/provider/yfinance"
	"stockdata/internal/provider/yfinanceadapter"
	"stockdata/internal/symbol"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) *yfinanceadapter.Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := yfinance.NewClient(yfinance.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return yfinanceadapter.New(yfinanceadapter.Config{}, client)
}

func mustResolve(t *testing.T, raw string) symbol.Identity {
	t.Helper()
	id, err := symbol.Resolve(raw)
	require.NoError(t, err)
	return id
}

func chartBody(price, prevClose float64) map[string]any {
	return map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta": map[string]any{
					"symbol":             "X",
					"regularMarketPrice": price,
					"chartPreviousClose": prevClose,
					"regularMarketTime":  1736290800,
				},
			}},
		},
	}
}

func TestFetchQuote_US(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		_ = json.NewEncoder(w).Encode(chartBody(256.48, 251.1))
	})

	res, err := a.Fetch(context.Background(), provider.KindQuote, mustResolve(t, "AAPL"), provider.Params{})
	require.NoError(t, err)
	require.InEpsilon(t, 256.48, res.Quote.Price, 0.0001)
	require.InEpsilon(t, 5.38, res.Quote.Change, 0.001)
	require.Equal(t, "AAPL", res.Quote.Ticker)
	require.Equal(t, "yfinance", res.Source)
	require.True(t, res.Quote.AsOf.Equal(time.Unix(1736290800, 0)))
}

// HK codes go out to Yahoo as a 4-digit body with the .HK suffix while the
// canonical ticker stays untouched.
func TestFetchQuote_HKSymbolForm(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v8/finance/chart/0700.HK", r.URL.Path)
		_ = json.NewEncoder(w).Encode(chartBody(620.5, 615.0))
	})

	res, err := a.Fetch(context.Background(), provider.KindQuote, mustResolve(t, "700"), provider.Params{})
	require.NoError(t, err)
	require.Equal(t, "700", res.Quote.Ticker)
	require.InEpsilon(t, 620.5, res.Quote.Price, 0.0001)
}

func TestFetchHistory_BarsFromArrays(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"chart": map[string]any{
				"result": []any{map[string]any{
					"meta":      map[string]any{"symbol": "AAPL"},
					"timestamp": []any{1735738200, 1735824600},
					"indicators": map[string]any{
						"quote": []any{map[string]any{
							"open":   []any{250.0, 252.3},
							"high":   []any{253.1, 257.0},
							"low":    []any{249.2, 251.9},
							"close":  []any{251.1, 256.48},
							"volume": []any{41000000, 39000000},
						}},
					},
				}},
			},
		})
	})

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	res, err := a.Fetch(context.Background(), provider.KindHistory, mustResolve(t, "AAPL"), provider.Params{Start: start, End: end})
	require.NoError(t, err)
	require.Len(t, res.Bars, 2)
	require.InEpsilon(t, 251.1, res.Bars[0].Close, 0.0001)
	require.EqualValues(t, 39000000, res.Bars[1].Volume)
}

func TestSupports(t *testing.T) {
	t.Parallel()

	a := yfinanceadapter.New(yfinanceadapter.Config{}, nil)
	require.True(t, a.Supports(provider.KindQuote, symbol.MarketUS))
	require.True(t, a.Supports(provider.KindNews, symbol.MarketHK))
	require.False(t, a.Supports(provider.KindQuote, symbol.MarketCNA))
}
