// Package app assembles the retrieval stack from config: provider adapters
// wrapped in rate limiters, the preference registry, fallback executor,
// redis-backed cache layer and the facade on top. Both binaries build the
// same stack through here.
package app

import (
    "fmt"
    "log/slog"
    "net/http"
    "time"

    "github.com/redis/go-redis/v9"

    "stockdata/internal/cache"
    "stockdata/internal/calendar"
    "stockdata/internal/config"
    "stockdata/internal/fallback"
    "stockdata/internal/httpx"
    "stockdata/internal/provider"
    "stockdata/internal/provider/akshare"
    "stockdata/internal/provider/ratelimit"
    "stockdata/internal/provider/tavily"
    "stockdata/internal/provider/tdx"
    "stockdata/internal/provider/tushare"
    "stockdata/internal/provider/yfinance"
    "stockdata/internal/provider/yfinanceadapter"
    "stockdata/internal/registry"
    "stockdata/internal/retrieval"
)

// App is the assembled stack plus the handles the binaries need.
type App struct {
    Service  *retrieval.Service
    Executor *fallback.Executor
    Adapters []provider.Adapter
    Log      *slog.Logger

    rdb *redis.Client
}

// New builds the full stack. Disabled or unconfigurable providers are
// skipped with a warning; at least one adapter must survive.
func New(cfg config.Config, log *slog.Logger) (*App, error) {
    if log == nil { log = slog.Default() }

    httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

    adapters := buildAdapters(cfg, httpClient, log)
    if len(adapters) == 0 {
        return nil, fmt.Errorf("no provider adapters enabled")
    }

    reg, err := registry.New(adapters, registry.DefaultPreferences())
    if err != nil {
        return nil, err
    }

    exec := fallback.New(reg, adapters, fallback.Config{
        CallTimeout:      time.Duration(cfg.Fallback.CallTimeoutSec) * time.Second,
        FailureThreshold: cfg.Breaker.FailureThreshold,
        Cooldown:         time.Duration(cfg.Breaker.CooldownSec) * time.Second,
    }, log)

    rdb := redis.NewClient(&redis.Options{
        Addr:     cfg.Redis.Addr,
        Password: cfg.Redis.Password,
        DB:       cfg.Redis.DB,
    })
    layer := cache.New(cache.NewRedisStore(rdb), exec, calendar.Weekday{}, cache.Config{
        KeyPrefix:    cfg.Redis.KeyPrefix,
        ProbeTimeout: time.Duration(cfg.Redis.ProbeTimeoutMS) * time.Millisecond,
        ProbeWindow:  time.Duration(cfg.Redis.ProbeWindowSec) * time.Second,
        TTL: cache.TTLs{
            Quote:       time.Duration(cfg.TTL.QuoteSec) * time.Second,
            History:     time.Duration(cfg.TTL.HistorySec) * time.Second,
            Fundamental: time.Duration(cfg.TTL.FundamentalSec) * time.Second,
            News:        time.Duration(cfg.TTL.NewsSec) * time.Second,
        },
    }, log)

    return &App{
        Service:  retrieval.New(layer),
        Executor: exec,
        Adapters: adapters,
        Log:      log,
        rdb:      rdb,
    }, nil
}

func (a *App) Close() error {
    if a.rdb != nil {
        return a.rdb.Close()
    }
    return nil
}

func buildAdapters(cfg config.Config, httpClient *httpx.Client, log *slog.Logger) []provider.Adapter {
    var adapters []provider.Adapter

    if cfg.Tushare.Enabled {
        if cfg.Tushare.Token == "" {
            log.Warn("tushare.enabled=true but TUSHARE_TOKEN not set; skipping")
        } else {
            ts := tushare.New(tushare.Config{
                Endpoint: cfg.Tushare.Endpoint,
                Token:    cfg.Tushare.Token,
            }, httpClient)
            adapters = append(adapters, withRateLimit(ts,
                cfg.Tushare.MaxRequestsPerMinute, cfg.Tushare.Burst, cfg.Tushare.MinRequestIntervalSec))
        }
    }

    if cfg.TDX.Enabled {
        if cfg.TDX.Endpoint == "" {
            log.Warn("tdx.enabled=true but endpoint not set; skipping")
        } else {
            t := tdx.New(tdx.Config{Endpoint: cfg.TDX.Endpoint}, httpClient)
            adapters = append(adapters, withRateLimit(t, 0, 0, cfg.TDX.MinRequestIntervalSec))
        }
    }

    if cfg.Akshare.Enabled {
        ak := akshare.New(akshare.Config{Endpoint: cfg.Akshare.Endpoint}, httpClient)
        adapters = append(adapters, withRateLimit(ak,
            cfg.Akshare.MaxRequestsPerMinute, cfg.Akshare.Burst, 0))
    }

    if cfg.YFinance.Enabled {
        opts := []yfinance.ClientOption{
            yfinance.WithHTTPClient(httpClient.HTTP),
            yfinance.WithHeader(http.Header{"User-Agent": []string{httpClient.UserAgent}}),
        }
        if cfg.YFinance.BaseURL != "" {
            opts = append(opts, yfinance.WithBaseURL(cfg.YFinance.BaseURL))
        }
        yc, err := yfinance.NewClient(opts...)
        if err != nil {
            log.Warn("yfinance client error; skipping", "err", err)
        } else {
            yf := yfinanceadapter.New(yfinanceadapter.Config{}, yc)
            adapters = append(adapters, withRateLimit(yf,
                cfg.YFinance.MaxRequestsPerMinute, cfg.YFinance.Burst, 0))
        }
    }

    if cfg.Tavily.Enabled {
        if cfg.Tavily.APIKey == "" {
            log.Warn("tavily.enabled=true but TAVILY_API_KEY not set; skipping")
        } else {
            tv := tavily.New(tavily.Config{
                Endpoint: cfg.Tavily.Endpoint,
                APIKey:   cfg.Tavily.APIKey,
            }, httpClient)
            adapters = append(adapters, withRateLimit(tv, 0, 0, cfg.Tavily.MinRequestIntervalSec))
        }
    }

    return adapters
}

// withRateLimit prefers a token bucket when an RPM budget is set, otherwise
// a minimum-interval gate, otherwise the bare adapter.
func withRateLimit(a provider.Adapter, rpm, burst, minIntervalSec int) provider.Adapter {
    if rpm > 0 {
        if burst <= 0 { burst = 1 }
        return &ratelimit.TokenBucketAdapter{A: a, TB: ratelimit.NewTokenBucket(float64(rpm)/60.0, burst)}
    }
    if minIntervalSec > 0 {
        return &ratelimit.MinInterval{A: a, Interval: time.Duration(minIntervalSec) * time.Second}
    }
    return a
}
