// fetch runs one retrieval through the full stack from the command line and
// prints the cache entry as JSON. Handy for poking at provider coverage and
// fallback behavior without standing up the server.
package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log/slog"
    "os"
    "time"

    "stockdata/internal/app"
    "stockdata/internal/cache"
    "stockdata/internal/config"
)

func main() {
    var (
        sym     string
        kind    string
        start   string
        end     string
        asOf    string
        days    int
        timeout int
        cfgPath string
    )
    flag.StringVar(&sym, "symbol", "", "raw symbol (e.g. 600519, 600519.SH, 0700, AAPL)")
    flag.StringVar(&kind, "kind", "quote", "quote | history | fundamental | news")
    flag.StringVar(&start, "start", "", "history start date YYYY-MM-DD")
    flag.StringVar(&end, "end", "", "history end date YYYY-MM-DD")
    flag.StringVar(&asOf, "date", "", "fundamental as-of date YYYY-MM-DD (optional)")
    flag.IntVar(&days, "days", 7, "news lookback in days")
    flag.IntVar(&timeout, "timeout", 30, "overall timeout seconds")
    flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
    flag.Parse()

    log := slog.New(slog.NewTextHandler(os.Stderr, nil))
    slog.SetDefault(log)

    if sym == "" {
        log.Error("missing -symbol")
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

    ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
    defer cancel()

    var ent *cache.Entry
    switch kind {
    case "quote":
        ent, err = a.Service.GetQuote(ctx, sym)
    case "history":
        var s, e time.Time
        if s, err = time.Parse("2006-01-02", start); err != nil {
            log.Error("bad -start", "err", err)
            os.Exit(2)
        }
        if e, err = time.Parse("2006-01-02", end); err != nil {
            log.Error("bad -end", "err", err)
            os.Exit(2)
        }
        ent, err = a.Service.GetPriceHistory(ctx, sym, s, e)
    case "fundamental":
        var d time.Time
        if asOf != "" {
            if d, err = time.Parse("2006-01-02", asOf); err != nil {
                log.Error("bad -date", "err", err)
                os.Exit(2)
            }
        }
        ent, err = a.Service.GetFundamental(ctx, sym, d)
    case "news":
        ent, err = a.Service.GetNews(ctx, sym, time.Duration(days)*24*time.Hour)
    default:
        log.Error("unknown -kind", "kind", kind)
        os.Exit(2)
    }
    if err != nil {
        log.Error("fetch failed", "symbol", sym, "kind", kind, "err", err)
        os.Exit(1)
    }

    b, _ := json.MarshalIndent(ent, "", "  ")
    fmt.Println(string(b))
}
