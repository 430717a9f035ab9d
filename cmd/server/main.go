package main

import (
    "compress/gzip"
    "context"
    "encoding/json"
    "errors"
    "io"
    "log/slog"
    "net/http"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "sync"
    "syscall"
    "time"

    "stockdata/internal/app"
    "stockdata/internal/config"
    "stockdata/internal/fallback"
    "stockdata/internal/provider"
    "stockdata/internal/registry"
    "stockdata/internal/retrieval"
    "stockdata/internal/symbol"
)

func main() {
    log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
    slog.SetDefault(log)

    cfgPath := os.Getenv("CONFIG_FILE")
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

    mux := http.NewServeMux()
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.HandleFunc("/api/quote", handleQuote(a.Service))
    mux.HandleFunc("/api/history", handleHistory(a.Service))
    mux.HandleFunc("/api/fundamental", handleFundamental(a.Service))
    mux.HandleFunc("/api/news", handleNews(a.Service))

    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(mux)))),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        WriteTimeout:      30 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    go func() {
        log.Info("server listening", "port", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Error("server", "err", err)
            os.Exit(1)
        }
    }()

    // graceful shutdown
    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
}

func handleQuote(svc *retrieval.Service) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        sym := strings.TrimSpace(r.URL.Query().Get("symbol"))
        if sym == "" {
            http.Error(w, "missing symbol query param", http.StatusBadRequest)
            return
        }
        ent, err := svc.GetQuote(r.Context(), sym)
        if err != nil { writeError(w, err); return }
        writeJSON(w, ent)
    }
}

func handleHistory(svc *retrieval.Service) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        q := r.URL.Query()
        sym := strings.TrimSpace(q.Get("symbol"))
        if sym == "" {
            http.Error(w, "missing symbol query param", http.StatusBadRequest)
            return
        }
        start, err := time.Parse("2006-01-02", q.Get("start"))
        if err != nil {
            http.Error(w, "start must be YYYY-MM-DD", http.StatusBadRequest)
            return
        }
        end, err := time.Parse("2006-01-02", q.Get("end"))
        if err != nil {
            http.Error(w, "end must be YYYY-MM-DD", http.StatusBadRequest)
            return
        }
        ent, err := svc.GetPriceHistory(r.Context(), sym, start, end)
        if err != nil { writeError(w, err); return }
        writeJSON(w, ent)
    }
}

func handleFundamental(svc *retrieval.Service) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        q := r.URL.Query()
        sym := strings.TrimSpace(q.Get("symbol"))
        if sym == "" {
            http.Error(w, "missing symbol query param", http.StatusBadRequest)
            return
        }
        var asOf time.Time
        if v := q.Get("date"); v != "" {
            var err error
            asOf, err = time.Parse("2006-01-02", v)
            if err != nil {
                http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
                return
            }
        }
        ent, err := svc.GetFundamental(r.Context(), sym, asOf)
        if err != nil { writeError(w, err); return }
        writeJSON(w, ent)
    }
}

func handleNews(svc *retrieval.Service) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        q := r.URL.Query()
        sym := strings.TrimSpace(q.Get("symbol"))
        if sym == "" {
            http.Error(w, "missing symbol query param", http.StatusBadRequest)
            return
        }
        var window time.Duration
        if v := q.Get("days"); v != "" {
            days, err := strconv.Atoi(v)
            if err != nil || days <= 0 {
                http.Error(w, "days must be a positive integer", http.StatusBadRequest)
                return
            }
            window = time.Duration(days) * 24 * time.Hour
        }
        ent, err := svc.GetNews(r.Context(), sym, window)
        if err != nil { writeError(w, err); return }
        writeJSON(w, ent)
    }
}

type errorResponse struct {
    Error    string             `json:"error"`
    Attempts []fallback.Attempt `json:"attempts,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses: bad input is the
// caller's fault, exhausted fallback is the upstreams', missing coverage is
// configuration, and deadline overruns are 504.
func writeError(w http.ResponseWriter, err error) {
    resp := errorResponse{Error: err.Error()}
    status := http.StatusInternalServerError
    var ex *fallback.ExhaustedError
    switch {
    case errors.Is(err, symbol.ErrInvalidSymbol), errors.Is(err, retrieval.ErrInvalidRange):
        status = http.StatusBadRequest
    case errors.As(err, &ex):
        status = http.StatusBadGateway
        resp.Attempts = ex.Attempts
    case errors.Is(err, registry.ErrNoProvider):
        status = http.StatusServiceUnavailable
    case errors.Is(err, provider.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
        status = http.StatusGatewayTimeout
    }
    w.WriteHeader(status)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(resp)
}

func writeJSON(w http.ResponseWriter, v any) {
    w.WriteHeader(http.StatusOK)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(v)
}

func withJSONHeaders(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        // Basic CORS for browser usage; adjust as needed.
        w.Header().Set("Access-Control-Allow-Origin", "*")
        w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        // Prefer best speed to reduce CPU usage since payloads are JSON
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
        next.ServeHTTP(gw, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
    const maxBody = 1 << 20 // 1MB
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Method == http.MethodPost && r.Body != nil {
            r.Body = http.MaxBytesReader(w, r.Body, maxBody)
        }
        next.ServeHTTP(w, r)
    })
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                http.Error(w, "internal server error", http.StatusInternalServerError)
            }
        }()
        next.ServeHTTP(w, r)
    })
}
