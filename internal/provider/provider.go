package provider

import (
    "context"
    "errors"
    "time"

    "stockdata/internal/symbol"
)

// Kind selects which capability of an adapter a request exercises.
// It also determines the cache TTL class applied to the result.
type Kind string

const (
    KindQuote       Kind = "quote"
    KindHistory     Kind = "history"
    KindFundamental Kind = "fundamental"
    KindNews        Kind = "news"
)

// Kinds lists every request kind; the registry requires coverage for all of them.
var Kinds = []Kind{KindQuote, KindHistory, KindFundamental, KindNews}

// Quote is a normalized latest-price snapshot.
type Quote struct {
    Ticker        string    `json:"ticker"`
    Price         float64   `json:"price"`
    Change        float64   `json:"change"`
    ChangePercent float64   `json:"change_percent"`
    PERatio       *float64  `json:"pe_ratio,omitempty"`
    MarketCap     *float64  `json:"market_cap,omitempty"`
    AsOf          time.Time `json:"as_of"`
}

// PriceBar is one OHLCV candle. History results are date-ascending and
// contain at most one bar per date.
type PriceBar struct {
    Date   time.Time `json:"date"`
    Open   float64   `json:"open"`
    High   float64   `json:"high"`
    Low    float64   `json:"low"`
    Close  float64   `json:"close"`
    Volume int64     `json:"volume"`
}

// Fundamental carries point-in-time valuation/financial metrics keyed by name.
type Fundamental struct {
    Ticker   string             `json:"ticker"`
    AsOfDate time.Time          `json:"as_of_date"`
    Metrics  map[string]float64 `json:"metrics"`
}

// NewsItem is one normalized headline. News results are newest-first and
// deduplicated by normalized URL+title.
type NewsItem struct {
    Title       string    `json:"title"`
    Summary     string    `json:"summary"`
    URL         string    `json:"url"`
    PublishedAt time.Time `json:"published_at"`
}

// Result is the tagged union every adapter normalizes into. Exactly one of
// Quote/Bars/Fundamental/News is populated, selected by Kind. Source and
// FetchedAt are provenance and survive caching untouched.
type Result struct {
    Kind        Kind         `json:"kind"`
    Quote       *Quote       `json:"quote,omitempty"`
    Bars        []PriceBar   `json:"bars,omitempty"`
    Fundamental *Fundamental `json:"fundamental,omitempty"`
    News        []NewsItem   `json:"news,omitempty"`

    Source    string    `json:"source_provider"`
    FetchedAt time.Time `json:"fetched_at"`
    // Partial marks a result the upstream could not fully satisfy
    // (e.g. a truncated history range). Never implied silently.
    Partial bool `json:"partial,omitempty"`
}

// Params narrows a request. Zero fields mean "adapter default".
type Params struct {
    Start  time.Time     `json:"start,omitempty"`  // history range start
    End    time.Time     `json:"end,omitempty"`    // history range end
    AsOf   time.Time     `json:"as_of,omitempty"`  // fundamental as-of date
    Window time.Duration `json:"window,omitempty"` // news lookback
}

// Adapter wraps one upstream data source. Implementations own the provider
// wire format entirely; nothing provider-specific crosses this boundary.
// Fetch must honor ctx deadlines and classify failures with the sentinel
// errors below rather than returning partial data as success.
type Adapter interface {
    Name() string
    Supports(kind Kind, market symbol.Market) bool
    Fetch(ctx context.Context, kind Kind, id symbol.Identity, params Params) (*Result, error)
}

// Adapter-level error taxonomy. The fallback executor recovers these by
// moving to the next candidate; they surface only inside an exhaustion error.
var (
    ErrTimeout     = errors.New("provider timeout")
    ErrRateLimited = errors.New("provider rate limited")
    ErrUpstream    = errors.New("upstream error")
)

// CtxErr maps a context failure observed during an upstream call onto the
// adapter taxonomy.
func CtxErr(err error) error {
    if errors.Is(err, context.DeadlineExceeded) {
        return ErrTimeout
    }
    return ErrUpstream
}
