package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "strings"
)

type Server struct {
    Port              string `json:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Redis struct {
    Addr           string `json:"addr"`
    Password       string `json:"password"`
    DB             int    `json:"db"`
    KeyPrefix      string `json:"key_prefix"`
    ProbeTimeoutMS int    `json:"probe_timeout_ms"`
    ProbeWindowSec int    `json:"probe_window_sec"`
}

type Breaker struct {
    FailureThreshold int `json:"failure_threshold"`
    CooldownSec      int `json:"cooldown_sec"`
}

type Fallback struct {
    CallTimeoutSec int `json:"call_timeout_sec"`
}

type TTL struct {
    QuoteSec       int `json:"quote_sec"`
    HistorySec     int `json:"history_sec"`
    FundamentalSec int `json:"fundamental_sec"`
    NewsSec        int `json:"news_sec"`
}

type Tushare struct {
    Enabled               bool   `json:"enabled"`
    Endpoint              string `json:"endpoint"`
    Token                 string `json:"token"`
    MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
    MinRequestIntervalSec int    `json:"min_request_interval_sec"`
    Burst                 int    `json:"burst"`
}

type TDX struct {
    Enabled               bool   `json:"enabled"`
    Endpoint              string `json:"endpoint"`
    MinRequestIntervalSec int    `json:"min_request_interval_sec"`
}

type Akshare struct {
    Enabled              bool   `json:"enabled"`
    Endpoint             string `json:"endpoint"`
    MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
    Burst                int    `json:"burst"`
}

type YFinance struct {
    Enabled              bool   `json:"enabled"`
    BaseURL              string `json:"base_url"`
    MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
    Burst                int    `json:"burst"`
}

type Tavily struct {
    Enabled               bool   `json:"enabled"`
    Endpoint              string `json:"endpoint"`
    APIKey                string `json:"api_key"`
    MinRequestIntervalSec int    `json:"min_request_interval_sec"`
}

type Config struct {
    Server   Server   `json:"server"`
    Redis    Redis    `json:"redis"`
    Breaker  Breaker  `json:"breaker"`
    Fallback Fallback `json:"fallback"`
    TTL      TTL      `json:"ttl"`
    Tushare  Tushare  `json:"tushare"`
    TDX      TDX      `json:"tdx"`
    Akshare  Akshare  `json:"akshare"`
    YFinance YFinance `json:"yfinance"`
    Tavily   Tavily   `json:"tavily"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 30},
        Redis: Redis{
            Addr:           "127.0.0.1:6379",
            KeyPrefix:      "stock_srv",
            ProbeTimeoutMS: 200,
            ProbeWindowSec: 30,
        },
        Breaker:  Breaker{FailureThreshold: 5, CooldownSec: 60},
        Fallback: Fallback{CallTimeoutSec: 8},
        TTL: TTL{
            QuoteSec:       60,
            HistorySec:     3600,
            FundamentalSec: 3600,
            NewsSec:        1800,
        },
        Tushare: Tushare{
            Enabled:  true,
            Endpoint: "https://api.tushare.pro",
            MaxRequestsPerMinute: 120,
            Burst: 10,
        },
        TDX: TDX{
            Enabled: false,
        },
        Akshare: Akshare{
            Enabled:  true,
            Endpoint: "http://127.0.0.1:8080/api/public",
            MaxRequestsPerMinute: 60,
            Burst: 5,
        },
        YFinance: YFinance{
            Enabled: true,
            MaxRequestsPerMinute: 60,
            Burst: 5,
        },
        Tavily: Tavily{
            Enabled:  false,
            Endpoint: "https://api.tavily.com",
            MinRequestIntervalSec: 1,
        },
    }
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := json.Unmarshal(b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg)
    return cfg, nil
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }

    if v := os.Getenv("REDIS_ADDR"); v != "" { cfg.Redis.Addr = v }
    if v := os.Getenv("REDIS_PASSWORD"); v != "" { cfg.Redis.Password = v }
    if v := os.Getenv("REDIS_DB"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Redis.DB = x }
    }
    if v := os.Getenv("REDIS_KEY_PREFIX"); v != "" { cfg.Redis.KeyPrefix = v }
    if v := os.Getenv("REDIS_PROBE_TIMEOUT_MS"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Redis.ProbeTimeoutMS = x }
    }
    if v := os.Getenv("REDIS_PROBE_WINDOW_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Redis.ProbeWindowSec = x }
    }

    if v := os.Getenv("BREAKER_FAILURE_THRESHOLD"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Breaker.FailureThreshold = x }
    }
    if v := os.Getenv("BREAKER_COOLDOWN_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Breaker.CooldownSec = x }
    }
    if v := os.Getenv("CALL_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Fallback.CallTimeoutSec = x }
    }

    if v := os.Getenv("TTL_QUOTE_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.TTL.QuoteSec = x }
    }
    if v := os.Getenv("TTL_HISTORY_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.TTL.HistorySec = x }
    }
    if v := os.Getenv("TTL_FUNDAMENTAL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.TTL.FundamentalSec = x }
    }
    if v := os.Getenv("TTL_NEWS_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.TTL.NewsSec = x }
    }

    if v := os.Getenv("TUSHARE_TOKEN"); v != "" { cfg.Tushare.Token = v }
    if v := os.Getenv("TUSHARE_ENDPOINT"); v != "" { cfg.Tushare.Endpoint = v }
    if v := os.Getenv("TUSHARE_ENABLED"); v != "" { cfg.Tushare.Enabled = parseBool(v, cfg.Tushare.Enabled) }
    if v := os.Getenv("TUSHARE_MAX_RPM"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Tushare.MaxRequestsPerMinute = x }
    }
    if v := os.Getenv("TUSHARE_MIN_INTERVAL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Tushare.MinRequestIntervalSec = x }
    }
    if v := os.Getenv("TUSHARE_BURST"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Tushare.Burst = x }
    }

    if v := os.Getenv("TDX_ENABLED"); v != "" { cfg.TDX.Enabled = parseBool(v, cfg.TDX.Enabled) }
    if v := os.Getenv("TDX_ENDPOINT"); v != "" { cfg.TDX.Endpoint = v }
    if v := os.Getenv("TDX_MIN_INTERVAL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.TDX.MinRequestIntervalSec = x }
    }

    if v := os.Getenv("AKSHARE_ENABLED"); v != "" { cfg.Akshare.Enabled = parseBool(v, cfg.Akshare.Enabled) }
    if v := os.Getenv("AKSHARE_ENDPOINT"); v != "" { cfg.Akshare.Endpoint = v }
    if v := os.Getenv("AKSHARE_MAX_RPM"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Akshare.MaxRequestsPerMinute = x }
    }
    if v := os.Getenv("AKSHARE_BURST"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Akshare.Burst = x }
    }

    if v := os.Getenv("YFINANCE_ENABLED"); v != "" { cfg.YFinance.Enabled = parseBool(v, cfg.YFinance.Enabled) }
    if v := os.Getenv("YFINANCE_BASE_URL"); v != "" { cfg.YFinance.BaseURL = v }
    if v := os.Getenv("YFINANCE_MAX_RPM"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.YFinance.MaxRequestsPerMinute = x }
    }
    if v := os.Getenv("YFINANCE_BURST"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.YFinance.Burst = x }
    }

    if v := os.Getenv("TAVILY_API_KEY"); v != "" { cfg.Tavily.APIKey = v }
    if v := os.Getenv("TAVILY_ENDPOINT"); v != "" { cfg.Tavily.Endpoint = v }
    if v := os.Getenv("TAVILY_ENABLED"); v != "" { cfg.Tavily.Enabled = parseBool(v, cfg.Tavily.Enabled) }
    if v := os.Getenv("TAVILY_MIN_INTERVAL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Tavily.MinRequestIntervalSec = x }
    }
}

func parseBool(v string, def bool) bool {
    switch strings.ToLower(v) {
    case "1", "true", "yes", "y":
        return true
    case "0", "false", "no", "n":
        return false
    }
    return def
}
