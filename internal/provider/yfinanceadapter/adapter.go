// Package yfinanceadapter normalizes the Yahoo Finance client into the
// provider contract. Primary source for US and HK quotes, bars, fundamentals
// and news.
package yfinanceadapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockdata/internal/provider"
	"stockdata/internal/provider/yfinance"
	"stockdata/internal/symbol"
)

type Config struct {
	Name string
}

type Adapter struct {
	cfg    Config
	client *yfinance.Client
}

func New(cfg Config, client *yfinance.Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "yfinance"
	}
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Supports(kind provider.Kind, market symbol.Market) bool {
	return market == symbol.MarketUS || market == symbol.MarketHK
}

func (a *Adapter) Fetch(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
	switch kind {
	case provider.KindQuote:
		return a.fetchQuote(ctx, id)
	case provider.KindHistory:
		return a.fetchHistory(ctx, id, params)
	case provider.KindFundamental:
		return a.fetchFundamental(ctx, id)
	case provider.KindNews:
		return a.fetchNews(ctx, id, params)
	}
	return nil, fmt.Errorf("%w: yfinance does not serve %s", provider.ErrUpstream, kind)
}

func (a *Adapter) fetchQuote(ctx context.Context, id symbol.Identity) (*provider.Result, error) {
	chart, err := a.client.GetChart(ctx, ySymbol(id), 0, 0)
	if err != nil {
		return nil, err
	}
	m := chart.Meta
	if m.RegularMarketPrice == 0 {
		return nil, fmt.Errorf("%w: no market price for %s", provider.ErrUpstream, ySymbol(id))
	}
	q := &provider.Quote{
		Ticker: id.Ticker,
		Price:  m.RegularMarketPrice,
		Change: m.RegularMarketPrice - m.ChartPreviousClose,
		AsOf:   time.Unix(m.RegularMarketTime, 0).UTC(),
	}
	if m.ChartPreviousClose != 0 {
		q.ChangePercent = q.Change / m.ChartPreviousClose * 100
	}
	return &provider.Result{Kind: provider.KindQuote, Quote: q, Source: a.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

func (a *Adapter) fetchHistory(ctx context.Context, id symbol.Identity, params provider.Params) (*provider.Result, error) {
	var p1, p2 int64
	if !params.Start.IsZero() {
		p1 = params.Start.Unix()
	}
	if !params.End.IsZero() {
		// chart period2 is exclusive; include the end date itself
		p2 = params.End.Add(24 * time.Hour).Unix()
	}
	chart, err := a.client.GetChart(ctx, ySymbol(id), p1, p2)
	if err != nil {
		return nil, err
	}
	if len(chart.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: chart %s: no quote indicators", provider.ErrUpstream, ySymbol(id))
	}
	ind := chart.Indicators.Quote[0]
	bars := make([]provider.PriceBar, 0, len(chart.Timestamp))
	for i, ts := range chart.Timestamp {
		if i >= len(ind.Close) {
			break
		}
		bars = append(bars, provider.PriceBar{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   at(ind.Open, i),
			High:   at(ind.High, i),
			Low:    at(ind.Low, i),
			Close:  at(ind.Close, i),
			Volume: atInt(ind.Volume, i),
		})
	}
	return &provider.Result{Kind: provider.KindHistory, Bars: bars, Source: a.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

func (a *Adapter) fetchFundamental(ctx context.Context, id symbol.Identity) (*provider.Result, error) {
	sum, err := a.client.GetQuoteSummary(ctx, ySymbol(id), nil)
	if err != nil {
		return nil, err
	}
	metrics := map[string]float64{}
	put := func(name string, v *yfinance.FmtValue) {
		if v != nil {
			metrics[name] = v.Raw
		}
	}
	put("trailing_pe", sum.SummaryDetail.TrailingPE)
	put("forward_pe", sum.SummaryDetail.ForwardPE)
	put("market_cap", sum.SummaryDetail.MarketCap)
	put("dividend_rate", sum.SummaryDetail.DividendRate)
	put("price_to_book", sum.SummaryDetail.PriceToBook)
	put("trailing_eps", sum.DefaultKeyStatistics.TrailingEps)
	put("forward_eps", sum.DefaultKeyStatistics.ForwardEps)
	put("peg_ratio", sum.DefaultKeyStatistics.PegRatio)
	put("book_value", sum.DefaultKeyStatistics.BookValue)
	put("enterprise_value", sum.DefaultKeyStatistics.EnterpriseValue)
	if len(metrics) == 0 {
		return nil, fmt.Errorf("%w: quoteSummary %s: no usable metrics", provider.ErrUpstream, ySymbol(id))
	}
	f := &provider.Fundamental{Ticker: id.Ticker, AsOfDate: time.Now().UTC(), Metrics: metrics}
	return &provider.Result{Kind: provider.KindFundamental, Fundamental: f, Source: a.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

func (a *Adapter) fetchNews(ctx context.Context, id symbol.Identity, params provider.Params) (*provider.Result, error) {
	news, err := a.client.GetNews(ctx, ySymbol(id), 10)
	if err != nil {
		return nil, err
	}
	cutoff := time.Time{}
	if params.Window > 0 {
		cutoff = time.Now().Add(-params.Window)
	}
	items := make([]provider.NewsItem, 0, len(news))
	for _, n := range news {
		ts := time.Unix(n.ProviderPublishTime, 0).UTC()
		if !cutoff.IsZero() && ts.Before(cutoff) {
			continue
		}
		items = append(items, provider.NewsItem{
			Title:       n.Title,
			Summary:     n.Publisher,
			URL:         n.Link,
			PublishedAt: ts,
		})
	}
	return &provider.Result{Kind: provider.KindNews, News: items, Source: a.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

func at(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func atInt(s []int64, i int) int64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

// ySymbol renders the Yahoo symbol form: US tickers pass through, HK codes
// become a 4-digit body with the .HK suffix (e.g. 0700.HK).
func ySymbol(id symbol.Identity) string {
	if id.Market != symbol.MarketHK {
		return id.Ticker
	}
	body := strings.TrimLeft(id.Ticker, "0")
	for len(body) < 4 {
		body = "0" + body
	}
	return body + ".HK"
}
