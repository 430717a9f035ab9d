// provider_dump calls a single named adapter directly, bypassing registry,
// breakers and cache, and prints the raw canonical result. Used to verify
// one upstream's wiring in isolation.
package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log/slog"
    "os"
    "strings"
    "time"

    "stockdata/internal/app"
    "stockdata/internal/config"
    "stockdata/internal/provider"
    "stockdata/internal/symbol"
)

func main() {
    var (
        name    string
        sym     string
        kind    string
        start   string
        end     string
        timeout int
        cfgPath string
    )
    flag.StringVar(&name, "provider", "", "adapter name (tushare, tdx, akshare, yfinance, tavily)")
    flag.StringVar(&sym, "symbol", "", "raw symbol")
    flag.StringVar(&kind, "kind", "quote", "quote | history | fundamental | news")
    flag.StringVar(&start, "start", "", "history start date YYYY-MM-DD")
    flag.StringVar(&end, "end", "", "history end date YYYY-MM-DD")
    flag.IntVar(&timeout, "timeout", 20, "timeout seconds")
    flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
    flag.Parse()

    log := slog.New(slog.NewTextHandler(os.Stderr, nil))
    slog.SetDefault(log)

    if name == "" || sym == "" {
        log.Error("both -provider and -symbol are required")
        os.Exit(2)
    }

    cfg, err := config.Load(cfgPath)
    if err != nil {
        log.Error("config", "err", err)
        os.Exit(1)
    }
    a, err := app.New(cfg, log)
    if err != nil {
        log.Error("startup", "err", err)
        os.Exit(1)
    }
    defer a.Close()

    var target provider.Adapter
    for _, ad := range a.Adapters {
        if strings.EqualFold(ad.Name(), name) {
            target = ad
            break
        }
    }
    if target == nil {
        log.Error("adapter not enabled", "provider", name)
        os.Exit(1)
    }

    id, err := symbol.Resolve(sym)
    if err != nil {
        log.Error("resolve", "symbol", sym, "err", err)
        os.Exit(2)
    }

    k := provider.Kind(kind)
    if !target.Supports(k, id.Market) {
        log.Error("adapter does not cover this request", "provider", name, "kind", kind, "market", string(id.Market))
        os.Exit(1)
    }

    params := provider.Params{}
    if start != "" {
        if params.Start, err = time.Parse("2006-01-02", start); err != nil {
            log.Error("bad -start", "err", err)
            os.Exit(2)
        }
    }
    if end != "" {
        if params.End, err = time.Parse("2006-01-02", end); err != nil {
            log.Error("bad -end", "err", err)
            os.Exit(2)
        }
    }

    ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
    defer cancel()

    res, err := target.Fetch(ctx, k, id, params)
    if err != nil {
        log.Error("fetch failed", "provider", name, "err", err)
        os.Exit(1)
    }
    provider.Normalize(res)

    b, _ := json.MarshalIndent(res, "", "  ")
    fmt.Println(string(b))
}
