// Package tavily is the news-only backstop. It searches the open web, so it
// sits last in every news preference chain and answers for no other kind.
package tavily

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "time"

    "stockdata/internal/httpx"
    "stockdata/internal/provider"
    "stockdata/internal/symbol"
)

type Config struct {
    Name     string
    Endpoint string
    APIKey   string
}

const defaultEndpoint = "https://api.tavily.com"

type Provider struct {
    cfg    Config
    client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
    if cfg.Name == "" { cfg.Name = "tavily" }
    if cfg.Endpoint == "" { cfg.Endpoint = defaultEndpoint }
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Supports(kind provider.Kind, market symbol.Market) bool {
    return kind == provider.KindNews
}

type searchRequest struct {
    APIKey     string `json:"api_key"`
    Query      string `json:"query"`
    Topic      string `json:"topic"`
    Days       int    `json:"days"`
    MaxResults int    `json:"max_results"`
}

type searchResponse struct {
    Results []struct {
        Title         string `json:"title"`
        Content       string `json:"content"`
        URL           string `json:"url"`
        PublishedDate string `json:"published_date"`
    } `json:"results"`
}

func (p *Provider) Fetch(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
    if kind != provider.KindNews {
        return nil, fmt.Errorf("%w: tavily does not serve %s", provider.ErrUpstream, kind)
    }
    if p.cfg.APIKey == "" {
        return nil, fmt.Errorf("%w: tavily api key not configured", provider.ErrUpstream)
    }
    days := 7
    if params.Window > 0 {
        days = int(params.Window/(24*time.Hour)) + 1
    }
    reqBody := searchRequest{
        APIKey:     p.cfg.APIKey,
        Query:      id.Ticker + " stock news",
        Topic:      "news",
        Days:       days,
        MaxResults: 10,
    }
    payload, err := json.Marshal(reqBody)
    if err != nil { return nil, err }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint+"/search", bytes.NewReader(payload))
    if err != nil { return nil, err }
    req.Header.Set("Content-Type", "application/json")
    resp, err := p.client.Do(ctx, req)
    if err != nil {
        if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
            return nil, fmt.Errorf("%w: tavily search: %s", provider.ErrTimeout, err)
        }
        return nil, fmt.Errorf("%w: tavily search: %s", provider.ErrUpstream, err)
    }
    defer resp.Body.Close()
    if resp.StatusCode == http.StatusTooManyRequests {
        return nil, fmt.Errorf("%w: tavily search -> 429", provider.ErrRateLimited)
    }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return nil, fmt.Errorf("%w: tavily search -> %d", provider.ErrUpstream, resp.StatusCode)
    }
    var body searchResponse
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return nil, fmt.Errorf("%w: decode tavily search: %s", provider.ErrUpstream, err)
    }

    items := make([]provider.NewsItem, 0, len(body.Results))
    for _, r := range body.Results {
        item := provider.NewsItem{Title: r.Title, Summary: r.Content, URL: r.URL}
        if ts, terr := parseDate(r.PublishedDate); terr == nil {
            item.PublishedAt = ts
        }
        items = append(items, item)
    }
    return &provider.Result{Kind: provider.KindNews, News: items, Source: p.cfg.Name, FetchedAt: time.Now().UTC()}, nil
}

// parseDate accepts the handful of timestamp shapes tavily emits.
func parseDate(s string) (time.Time, error) {
    for _, layout := range []string{time.RFC3339, "Mon, 02 Jan 2006 15:04:05 MST", "2006-01-02"} {
        if ts, err := time.Parse(layout, s); err == nil {
            return ts.UTC(), nil
        }
    }
    return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
