// Package registry maps (market, request kind) to an ordered list of
// provider adapters. Ordering encodes preference: authoritative/cheap
// sources first, generic fallback sources last. The mapping is fixed at
// construction; lookups never mutate it.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"stockdata/internal/provider"
	"stockdata/internal/symbol"
)

// Key addresses one adapter list.
type Key struct {
	Market symbol.Market
	Kind   provider.Kind
}

// ErrNoProvider is returned by Lookup for a pair the registry does not cover.
// New fails fast instead, so in practice this only fires for markets/kinds
// outside the construction-time preference table.
var ErrNoProvider = errors.New("no provider available")

// Registry holds the ordered adapter lists.
type Registry struct {
	order map[Key][]provider.Adapter
}

// DefaultPreferences is the provider ordering per (market, kind):
// CN_A leans on tushare with the tdx feed as backup, US/HK lean on yfinance,
// akshare is the generic aggregator fallback everywhere and the CN news
// primary, tavily backstops news only.
func DefaultPreferences() map[Key][]string {
	return map[Key][]string{
		{symbol.MarketCNA, provider.KindQuote}:       {"tushare", "tdx", "akshare"},
		{symbol.MarketCNA, provider.KindHistory}:     {"tushare", "tdx", "akshare"},
		{symbol.MarketCNA, provider.KindFundamental}: {"tushare", "akshare"},
		{symbol.MarketCNA, provider.KindNews}:        {"akshare", "tushare", "tavily"},

		{symbol.MarketHK, provider.KindQuote}:       {"akshare", "tushare", "yfinance"},
		{symbol.MarketHK, provider.KindHistory}:     {"akshare", "tushare", "yfinance"},
		{symbol.MarketHK, provider.KindFundamental}: {"akshare", "tushare", "yfinance"},
		{symbol.MarketHK, provider.KindNews}:        {"akshare", "yfinance", "tavily"},

		{symbol.MarketUS, provider.KindQuote}:       {"yfinance", "akshare"},
		{symbol.MarketUS, provider.KindHistory}:     {"yfinance", "akshare"},
		{symbol.MarketUS, provider.KindFundamental}: {"yfinance", "akshare"},
		{symbol.MarketUS, provider.KindNews}:        {"yfinance", "akshare", "tavily"},
	}
}

// New builds a registry from the configured adapters and a preference table.
// Preferred names missing from adapters (disabled providers) are skipped;
// an adapter is only listed for pairs its Supports accepts. Construction
// fails if any pair in the table ends up with zero adapters, since requests
// for that pair could never succeed.
func New(adapters []provider.Adapter, prefs map[Key][]string) (*Registry, error) {
	byName := make(map[string]provider.Adapter, len(adapters))
	for _, a := range adapters {
		byName[strings.ToLower(a.Name())] = a
	}

	order := make(map[Key][]provider.Adapter, len(prefs))
	var missing []string
	for key, names := range prefs {
		var list []provider.Adapter
		for _, n := range names {
			a, ok := byName[strings.ToLower(n)]
			if !ok || !a.Supports(key.Kind, key.Market) {
				continue
			}
			list = append(list, a)
		}
		if len(list) == 0 {
			missing = append(missing, fmt.Sprintf("%s/%s", key.Market, key.Kind))
			continue
		}
		order[key] = list
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("registry configuration: no adapters for %s", strings.Join(missing, ", "))
	}
	return &Registry{order: order}, nil
}

// Lookup returns the ordered adapter list for a pair. The returned slice is
// shared; callers must not mutate it.
func (r *Registry) Lookup(market symbol.Market, kind provider.Kind) ([]provider.Adapter, error) {
	list, ok := r.order[Key{Market: market, Kind: kind}]
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("%w for %s/%s", ErrNoProvider, market, kind)
	}
	return list, nil
}
