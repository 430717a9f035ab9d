// Package tushare integrates the Tushare Pro data API: the authoritative
// source for mainland A-share quotes, daily bars and fundamentals.
// The API is a single POST endpoint taking {api_name, token, params, fields}
// and answering a columnar {fields, items} payload.
package tushare

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "stockdata/internal/httpx"
    "stockdata/internal/provider"
    "stockdata/internal/symbol"
)

type Config struct {
    Name     string
    Endpoint string
    Token    string
}

type Provider struct {
    cfg    Config
    client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
    if cfg.Name == "" { cfg.Name = "tushare" }
    if cfg.Endpoint == "" { cfg.Endpoint = "https://api.tushare.pro" }
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Supports(kind provider.Kind, market symbol.Market) bool {
    if market != symbol.MarketCNA {
        return false
    }
    switch kind {
    case provider.KindQuote, provider.KindHistory, provider.KindFundamental:
        return true
    }
    return false
}

func (p *Provider) Fetch(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
    switch kind {
    case provider.KindQuote:
        return p.fetchQuote(ctx, id)
    case provider.KindHistory:
        return p.fetchHistory(ctx, id, params)
    case provider.KindFundamental:
        return p.fetchFundamental(ctx, id, params)
    }
    return nil, fmt.Errorf("%w: tushare does not serve %s", provider.ErrUpstream, kind)
}

func (p *Provider) fetchQuote(ctx context.Context, id symbol.Identity) (*provider.Result, error) {
    rows, err := p.call(ctx, "daily", map[string]any{"ts_code": tsCode(id)},
        "trade_date,open,high,low,close,pre_close,pct_chg,vol")
    if err != nil { return nil, err }
    if len(rows) == 0 {
        return nil, fmt.Errorf("%w: no daily row for %s", provider.ErrUpstream, tsCode(id))
    }
    // first row is the most recent trade date
    r := rows[0]
    asOf, _ := time.Parse("20060102", r.str("trade_date"))
    q := &provider.Quote{
        Ticker:        id.Ticker,
        Price:         r.num("close"),
        Change:        r.num("close") - r.num("pre_close"),
        ChangePercent: r.num("pct_chg"),
        AsOf:          asOf,
    }
    return &provider.Result{Kind: provider.KindQuote, Quote: q, Source: p.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

func (p *Provider) fetchHistory(ctx context.Context, id symbol.Identity, params provider.Params) (*provider.Result, error) {
    args := map[string]any{"ts_code": tsCode(id)}
    if !params.Start.IsZero() { args["start_date"] = params.Start.Format("20060102") }
    if !params.End.IsZero() { args["end_date"] = params.End.Format("20060102") }
    rows, err := p.call(ctx, "daily", args, "trade_date,open,high,low,close,vol")
    if err != nil { return nil, err }
    bars := make([]provider.PriceBar, 0, len(rows))
    for _, r := range rows {
        d, derr := time.Parse("20060102", r.str("trade_date"))
        if derr != nil { continue }
        bars = append(bars, provider.PriceBar{
            Date:   d,
            Open:   r.num("open"),
            High:   r.num("high"),
            Low:    r.num("low"),
            Close:  r.num("close"),
            Volume: int64(r.num("vol")),
        })
    }
    return &provider.Result{Kind: provider.KindHistory, Bars: bars, Source: p.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

func (p *Provider) fetchFundamental(ctx context.Context, id symbol.Identity, params provider.Params) (*provider.Result, error) {
    args := map[string]any{"ts_code": tsCode(id)}
    if !params.AsOf.IsZero() { args["trade_date"] = params.AsOf.Format("20060102") }
    rows, err := p.call(ctx, "daily_basic", args,
        "trade_date,pe,pe_ttm,pb,ps,dv_ratio,turnover_rate,total_mv,circ_mv")
    if err != nil { return nil, err }
    if len(rows) == 0 {
        return nil, fmt.Errorf("%w: no daily_basic row for %s", provider.ErrUpstream, tsCode(id))
    }
    r := rows[0]
    asOf, _ := time.Parse("20060102", r.str("trade_date"))
    metrics := map[string]float64{}
    for _, k := range []string{"pe", "pe_ttm", "pb", "ps", "dv_ratio", "turnover_rate", "total_mv", "circ_mv"} {
        if v, ok := r.lookup(k); ok { metrics[k] = v }
    }
    f := &provider.Fundamental{Ticker: id.Ticker, AsOfDate: asOf, Metrics: metrics}
    return &provider.Result{Kind: provider.KindFundamental, Fundamental: f, Source: p.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

// call performs one Tushare RPC and reshapes the columnar payload into rows.
func (p *Provider) call(ctx context.Context, apiName string, args map[string]any, fields string) ([]row, error) {
    if p.cfg.Token == "" {
        return nil, fmt.Errorf("%w: tushare token not configured", provider.ErrUpstream)
    }
    payload := map[string]any{
        "api_name": apiName,
        "token":    p.cfg.Token,
        "params":   args,
        "fields":   fields,
    }
    body, _ := json.Marshal(payload)
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
    if err != nil { return nil, err }
    req.Header.Set("Content-Type", "application/json")
    resp, err := p.client.Do(ctx, req)
    if err != nil {
        if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
            return nil, fmt.Errorf("%w: %s %s", provider.ErrTimeout, apiName, err)
        }
        return nil, fmt.Errorf("%w: %s: %s", provider.ErrUpstream, apiName, err)
    }
    defer resp.Body.Close()
    if resp.StatusCode == http.StatusTooManyRequests {
        return nil, fmt.Errorf("%w: %s -> 429", provider.ErrRateLimited, apiName)
    }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
        return nil, fmt.Errorf("%w: POST %s %s -> %d: %s", provider.ErrUpstream, p.cfg.Endpoint, apiName, resp.StatusCode, string(b))
    }
    var api apiResponse
    dec := json.NewDecoder(resp.Body)
    dec.UseNumber()
    if err := dec.Decode(&api); err != nil {
        return nil, fmt.Errorf("%w: decode %s: %s", provider.ErrUpstream, apiName, err)
    }
    if api.Code != 0 {
        // 40203 is Tushare's per-minute points throttle
        if api.Code == 40203 || strings.Contains(api.Msg, "每分钟") {
            return nil, fmt.Errorf("%w: %s: %s", provider.ErrRateLimited, apiName, api.Msg)
        }
        return nil, fmt.Errorf("%w: %s: code=%d msg=%q", provider.ErrUpstream, apiName, api.Code, api.Msg)
    }

    idx := make(map[string]int, len(api.Data.Fields))
    for i, f := range api.Data.Fields { idx[f] = i }
    rows := make([]row, 0, len(api.Data.Items))
    for _, it := range api.Data.Items {
        rows = append(rows, row{idx: idx, vals: it})
    }
    return rows, nil
}

type apiResponse struct {
    RequestID string `json:"request_id"`
    Code      int    `json:"code"`
    Msg       string `json:"msg"`
    Data      struct {
        Fields []string `json:"fields"`
        Items  [][]any  `json:"items"`
    } `json:"data"`
}

// row gives name-based access into one columnar item. Values arrive as
// json.Number or string depending on the column (decoder uses UseNumber).
type row struct {
    idx  map[string]int
    vals []any
}

func (r row) str(field string) string {
    i, ok := r.idx[field]
    if !ok || i >= len(r.vals) { return "" }
    switch v := r.vals[i].(type) {
    case string:
        return v
    case json.Number:
        return v.String()
    }
    return ""
}

func (r row) num(field string) float64 {
    v, _ := r.lookup(field)
    return v
}

func (r row) lookup(field string) (float64, bool) {
    i, ok := r.idx[field]
    if !ok || i >= len(r.vals) { return 0, false }
    n, isNum := r.vals[i].(json.Number)
    if !isNum { return 0, false }
    f, err := n.Float64()
    if err != nil { return 0, false }
    return f, true
}

// tsCode renders the Tushare symbol form, e.g. 600519.SH, 000001.SZ.
func tsCode(id symbol.Identity) string {
    switch id.Exchange {
    case symbol.ExchangeSSE:
        return id.Ticker + ".SH"
    case symbol.ExchangeSZSE:
        return id.Ticker + ".SZ"
    case symbol.ExchangeBSE:
        return id.Ticker + ".BJ"
    }
    return id.Ticker
}
