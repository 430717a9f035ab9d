package registry_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stockdata/internal/provider"
	"stockdata/internal/registry"
	"stockdata/internal/symbol"
)

// fakeAdapter answers Supports from a fixed set and never fetches.
type fakeAdapter struct {
	name    string
	markets map[symbol.Market]bool
	kinds   map[provider.Kind]bool
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Supports(kind provider.Kind, market symbol.Market) bool {
	return f.markets[market] && f.kinds[kind]
}

func (f *fakeAdapter) Fetch(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
	panic("not called")
}

func allKinds() map[provider.Kind]bool {
	m := map[provider.Kind]bool{}
	for _, k := range provider.Kinds {
		m[k] = true
	}
	return m
}

func fullPool() []provider.Adapter {
	return []provider.Adapter{
		&fakeAdapter{name: "tushare",
			markets: map[symbol.Market]bool{symbol.MarketCNA: true, symbol.MarketHK: true},
			kinds:   allKinds()},
		&fakeAdapter{name: "tdx",
			markets: map[symbol.Market]bool{symbol.MarketCNA: true},
			kinds:   map[provider.Kind]bool{provider.KindQuote: true, provider.KindHistory: true}},
		&fakeAdapter{name: "akshare",
			markets: map[symbol.Market]bool{symbol.MarketCNA: true, symbol.MarketHK: true, symbol.MarketUS: true},
			kinds:   allKinds()},
		&fakeAdapter{name: "yfinance",
			markets: map[symbol.Market]bool{symbol.MarketHK: true, symbol.MarketUS: true},
			kinds:   allKinds()},
		&fakeAdapter{name: "tavily",
			markets: map[symbol.Market]bool{symbol.MarketCNA: true, symbol.MarketHK: true, symbol.MarketUS: true},
			kinds:   map[provider.Kind]bool{provider.KindNews: true}},
	}
}

func TestLookup_PreferenceOrderPreserved(t *testing.T) {
	reg, err := registry.New(fullPool(), registry.DefaultPreferences())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	list, err := reg.Lookup(symbol.MarketCNA, provider.KindQuote)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	got := names(list)
	if got != "tushare,tdx,akshare" {
		t.Fatalf("CN_A/quote order = %s", got)
	}

	list, err = reg.Lookup(symbol.MarketUS, provider.KindNews)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got := names(list); got != "yfinance,akshare,tavily" {
		t.Fatalf("US/news order = %s", got)
	}
}

func TestLookup_SkipsNonSupportingAdapters(t *testing.T) {
	reg, err := registry.New(fullPool(), registry.DefaultPreferences())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// tdx serves quotes and history only
	list, err := reg.Lookup(symbol.MarketCNA, provider.KindFundamental)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	for _, a := range list {
		if a.Name() == "tdx" {
			t.Fatal("tdx listed for a kind it does not support")
		}
	}
}

func TestNew_DisabledProviderIsSkipped(t *testing.T) {
	// drop tdx from the pool; the CN_A chains must still build without it
	pool := fullPool()
	trimmed := pool[:0]
	for _, a := range pool {
		if a.Name() != "tdx" {
			trimmed = append(trimmed, a)
		}
	}
	reg, err := registry.New(trimmed, registry.DefaultPreferences())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	list, err := reg.Lookup(symbol.MarketCNA, provider.KindQuote)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got := names(list); got != "tushare,akshare" {
		t.Fatalf("order without tdx = %s", got)
	}
}

func TestNew_FailsOnUncoveredPair(t *testing.T) {
	only := []provider.Adapter{
		&fakeAdapter{name: "tushare",
			markets: map[symbol.Market]bool{symbol.MarketCNA: true},
			kinds:   allKinds()},
	}
	_, err := registry.New(only, registry.DefaultPreferences())
	if err == nil {
		t.Fatal("New succeeded with uncovered market/kind pairs")
	}
	if !strings.Contains(err.Error(), "US/quote") {
		t.Fatalf("error does not name the uncovered pair: %v", err)
	}
}

func TestLookup_UnknownPair(t *testing.T) {
	reg, err := registry.New(fullPool(), registry.DefaultPreferences())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = reg.Lookup(symbol.Market("LSE"), provider.KindQuote)
	if !errors.Is(err, registry.ErrNoProvider) {
		t.Fatalf("want ErrNoProvider, got %v", err)
	}
}

func names(list []provider.Adapter) string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Name())
	}
	return strings.Join(out, ",")
}
