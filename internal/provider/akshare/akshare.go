// Package akshare talks to an aktools gateway, which fronts the akshare
// Python library over HTTP. It is the broadest source in the pool and the
// only one covering every market for every data kind, so it sits somewhere
// in every preference chain.
package akshare

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
    Endpoint string // aktools base URL
}

const defaultEndpoint = "http://127.0.0.1:8080/api/public"

type Provider struct {
    cfg    Config
    client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
    if cfg.Name == "" { cfg.Name = "akshare" }
    if cfg.Endpoint == "" { cfg.Endpoint = defaultEndpoint }
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Supports(kind provider.Kind, market symbol.Market) bool {
    // akshare aggregates eastmoney, sina and friends; it answers for
    // every market and every kind we ask about.
    return true
}

func (p *Provider) Fetch(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
    switch kind {
    case provider.KindQuote:
        return p.fetchQuote(ctx, id)
    case provider.KindHistory:
        return p.fetchHistory(ctx, id, params)
    case provider.KindFundamental:
        return p.fetchFundamental(ctx, id)
    case provider.KindNews:
        return p.fetchNews(ctx, id)
    }
    return nil, fmt.Errorf("%w: akshare does not serve %s", provider.ErrUpstream, kind)
}

// spotRow mirrors one row of the *_spot_em endpoints. Column names come back
// in Chinese straight from eastmoney.
type spotRow struct {
    Code          string  `json:"代码"`
    Price         float64 `json:"最新价"`
    Change        float64 `json:"涨跌额"`
    ChangePercent float64 `json:"涨跌幅"`
    PERatio       float64 `json:"市盈率-动态"`
    MarketCap     float64 `json:"总市值"`
}

func (p *Provider) fetchQuote(ctx context.Context, id symbol.Identity) (*provider.Result, error) {
    row, err := p.spot(ctx, id)
    if err != nil { return nil, err }
    quote := &provider.Quote{
        Ticker:        id.Ticker,
        Price:         row.Price,
        Change:        row.Change,
        ChangePercent: row.ChangePercent,
        AsOf:          time.Now().UTC(),
    }
    if row.PERatio != 0 {
        pe := row.PERatio
        quote.PERatio = &pe
    }
    if row.MarketCap != 0 {
        mc := row.MarketCap
        quote.MarketCap = &mc
    }
    return &provider.Result{Kind: provider.KindQuote, Quote: quote, Source: p.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

func (p *Provider) fetchFundamental(ctx context.Context, id symbol.Identity) (*provider.Result, error) {
    // the spot table carries the valuation columns we need; a dedicated
    // indicator endpoint exists only for A-shares, so this keeps all three
    // markets on one code path.
    row, err := p.spot(ctx, id)
    if err != nil { return nil, err }
    metrics := map[string]float64{}
    if row.PERatio != 0 { metrics["pe"] = row.PERatio }
    if row.MarketCap != 0 { metrics["total_mv"] = row.MarketCap }
    if len(metrics) == 0 {
        return nil, fmt.Errorf("%w: no fundamental columns for %s", provider.ErrUpstream, id.Ticker)
    }
    f := &provider.Fundamental{Ticker: id.Ticker, AsOfDate: time.Now().UTC(), Metrics: metrics}
    return &provider.Result{Kind: provider.KindFundamental, Fundamental: f, Source: p.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

func (p *Provider) spot(ctx context.Context, id symbol.Identity) (*spotRow, error) {
    var rows []spotRow
    if err := p.get(ctx, spotAPI(id.Market), nil, &rows); err != nil { return nil, err }
    want := akCode(id)
    for i := range rows {
        if rows[i].Code == want {
            return &rows[i], nil
        }
    }
    return nil, fmt.Errorf("%w: %s not in %s spot table", provider.ErrUpstream, want, id.Market)
}

type histRow struct {
    Date   string  `json:"日期"`
    Open   float64 `json:"开盘"`
    High   float64 `json:"最高"`
    Low    float64 `json:"最低"`
    Close  float64 `json:"收盘"`
    Volume int64   `json:"成交量"`
}

func (p *Provider) fetchHistory(ctx context.Context, id symbol.Identity, params provider.Params) (*provider.Result, error) {
    q := url.Values{"symbol": {akCode(id)}, "period": {"daily"}, "adjust": {"qfq"}}
    if !params.Start.IsZero() { q.Set("start_date", params.Start.Format("20060102")) }
    if !params.End.IsZero() { q.Set("end_date", params.End.Format("20060102")) }
    var rows []histRow
    if err := p.get(ctx, histAPI(id.Market), q, &rows); err != nil { return nil, err }
    bars := make([]provider.PriceBar, 0, len(rows))
    for _, r := range rows {
        d, derr := time.Parse("2006-01-02", r.Date)
        if derr != nil { continue }
        bars = append(bars, provider.PriceBar{
            Date: d, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
        })
    }
    return &provider.Result{Kind: provider.KindHistory, Bars: bars, Source: p.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

type newsRow struct {
    Title       string `json:"新闻标题"`
    Content     string `json:"新闻内容"`
    URL         string `json:"新闻链接"`
    PublishedAt string `json:"发布时间"`
}

func (p *Provider) fetchNews(ctx context.Context, id symbol.Identity) (*provider.Result, error) {
    q := url.Values{"symbol": {id.Ticker}}
    var rows []newsRow
    if err := p.get(ctx, "stock_news_em", q, &rows); err != nil { return nil, err }
    items := make([]provider.NewsItem, 0, len(rows))
    for _, r := range rows {
        ts, terr := time.ParseInLocation("2006-01-02 15:04:05", r.PublishedAt, time.UTC)
        if terr != nil { continue }
        items = append(items, provider.NewsItem{
            Title:       r.Title,
            Summary:     r.Content,
            URL:         r.URL,
            PublishedAt: ts,
        })
    }
    return &provider.Result{Kind: provider.KindNews, News: items, Source: p.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

func (p *Provider) get(ctx context.Context, api string, q url.Values, out any) error {
    u := strings.TrimRight(p.cfg.Endpoint, "/") + "/" + api
    if len(q) > 0 { u += "?" + q.Encode() }
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
    if err != nil { return err }
    req.Header.Set("Accept", "application/json")
    resp, err := p.client.Do(ctx, req)
    if err != nil {
        if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
            return fmt.Errorf("%w: GET %s: %s", provider.ErrTimeout, api, err)
        }
        return fmt.Errorf("%w: GET %s: %s", provider.ErrUpstream, api, err)
    }
    defer resp.Body.Close()
    if resp.StatusCode == http.StatusTooManyRequests {
        return fmt.Errorf("%w: GET %s -> 429", provider.ErrRateLimited, api)
    }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return fmt.Errorf("%w: GET %s -> %d", provider.ErrUpstream, api, resp.StatusCode)
    }
    if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
        return fmt.Errorf("%w: decode %s: %s", provider.ErrUpstream, api, err)
    }
    return nil
}

// spotAPI picks the eastmoney spot table per market.
func spotAPI(m symbol.Market) string {
    switch m {
    case symbol.MarketHK:
        return "stock_hk_spot_em"
    case symbol.MarketUS:
        return "stock_us_spot_em"
    }
    return "stock_zh_a_spot_em"
}

func histAPI(m symbol.Market) string {
    switch m {
    case symbol.MarketHK:
        return "stock_hk_hist"
    case symbol.MarketUS:
        return "stock_us_hist"
    }
    return "stock_zh_a_hist"
}

// akCode is the symbol form akshare expects: HK codes padded to five digits,
// everything else as-is.
func akCode(id symbol.Identity) string {
    if id.Market != symbol.MarketHK {
        return id.Ticker
    }
    body := id.Ticker
    for len(body) < 5 { body = "0" + body }
    return body
}
