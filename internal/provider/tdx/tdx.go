// Package tdx reads A-share quotes and bars from a TDX gateway service.
// The raw TDX feed speaks a binary TCP protocol; the gateway owns that and
// exposes plain JSON over HTTP, so this adapter stays a thin GET client.
// Used as the CN_A backup behind tushare.
package tdx

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/url"
    "strings"
    "time"

    "stockdata/internal/httpx"
    "stockdata/internal/provider"
    "stockdata/internal/symbol"
)

type Config struct {
    Name     string
    Endpoint string // gateway base URL, e.g. http://tdx-gw:7709
}

type Provider struct {
    cfg    Config
    client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
    if cfg.Name == "" { cfg.Name = "tdx" }
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Supports(kind provider.Kind, market symbol.Market) bool {
    if market != symbol.MarketCNA {
        return false
    }
    return kind == provider.KindQuote || kind == provider.KindHistory
}

func (p *Provider) Fetch(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
    if p.cfg.Endpoint == "" {
        return nil, fmt.Errorf("%w: tdx gateway endpoint not configured", provider.ErrUpstream)
    }
    switch kind {
    case provider.KindQuote:
        return p.fetchQuote(ctx, id)
    case provider.KindHistory:
        return p.fetchHistory(ctx, id, params)
    }
    return nil, fmt.Errorf("%w: tdx does not serve %s", provider.ErrUpstream, kind)
}

func (p *Provider) fetchQuote(ctx context.Context, id symbol.Identity) (*provider.Result, error) {
    var body quotePayload
    q := url.Values{"code": {id.Ticker}, "market": {tdxMarket(id)}}
    if err := p.get(ctx, "/quote", q, &body); err != nil { return nil, err }
    if body.Price == 0 && body.LastClose == 0 {
        return nil, fmt.Errorf("%w: empty quote for %s", provider.ErrUpstream, id.Ticker)
    }
    quote := &provider.Quote{
        Ticker: id.Ticker,
        Price:  body.Price,
        Change: body.Price - body.LastClose,
        AsOf:   time.Unix(body.Timestamp, 0).UTC(),
    }
    if body.LastClose != 0 {
        quote.ChangePercent = (body.Price - body.LastClose) / body.LastClose * 100
    }
    return &provider.Result{Kind: provider.KindQuote, Quote: quote, Source: p.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

func (p *Provider) fetchHistory(ctx context.Context, id symbol.Identity, params provider.Params) (*provider.Result, error) {
    q := url.Values{"code": {id.Ticker}, "market": {tdxMarket(id)}, "period": {"day"}}
    if !params.Start.IsZero() { q.Set("start", params.Start.Format("2006-01-02")) }
    if !params.End.IsZero() { q.Set("end", params.End.Format("2006-01-02")) }
    var body klinePayload
    if err := p.get(ctx, "/kline", q, &body); err != nil { return nil, err }
    bars := make([]provider.PriceBar, 0, len(body.Bars))
    for _, b := range body.Bars {
        d, derr := time.Parse("2006-01-02", b.Date)
        if derr != nil { continue }
        bars = append(bars, provider.PriceBar{
            Date: d, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
        })
    }
    res := &provider.Result{Kind: provider.KindHistory, Bars: bars, Source: p.cfg.Name, FetchedAt: time.Now().UTC()}
    // the gateway truncates long ranges at its buffer size and says so
    res.Partial = body.Truncated
    return res, nil
}

func (p *Provider) get(ctx context.Context, path string, q url.Values, out any) error {
    u := strings.TrimRight(p.cfg.Endpoint, "/") + path + "?" + q.Encode()
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
    if err != nil { return err }
    req.Header.Set("Accept", "application/json")
    resp, err := p.client.Do(ctx, req)
    if err != nil {
        if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
            return fmt.Errorf("%w: GET %s: %s", provider.ErrTimeout, path, err)
        }
        return fmt.Errorf("%w: GET %s: %s", provider.ErrUpstream, path, err)
    }
    defer resp.Body.Close()
    if resp.StatusCode == http.StatusTooManyRequests {
        return fmt.Errorf("%w: GET %s -> 429", provider.ErrRateLimited, path)
    }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return fmt.Errorf("%w: GET %s -> %d", provider.ErrUpstream, path, resp.StatusCode)
    }
    if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
        return fmt.Errorf("%w: decode %s: %s", provider.ErrUpstream, path, err)
    }
    return nil
}

type quotePayload struct {
    Code      string  `json:"code"`
    Price     float64 `json:"price"`
    LastClose float64 `json:"last_close"`
    Timestamp int64   `json:"timestamp"`
}

type klinePayload struct {
    Bars []struct {
        Date   string  `json:"date"`
        Open   float64 `json:"open"`
        High   float64 `json:"high"`
        Low    float64 `json:"low"`
        Close  float64 `json:"close"`
        Volume int64   `json:"volume"`
    } `json:"bars"`
    Truncated bool `json:"truncated"`
}

// tdxMarket is the gateway's exchange discriminator: 0 Shenzhen, 1 Shanghai.
func tdxMarket(id symbol.Identity) string {
    if id.Exchange == symbol.ExchangeSSE {
        return "1"
    }
    return "0"
}
