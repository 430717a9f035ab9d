// Package cache is the cache-aside layer in front of the fallback executor.
// The shared cache service is an optimization, never a correctness
// dependency: when it is unreachable the layer degrades to direct fetches,
// marks every served entry degraded, and probes for recovery in the
// background of regular requests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"stockdata/internal/calendar"
	"stockdata/internal/provider"
	"stockdata/internal/symbol"
)

// Fetcher is what the layer calls on a miss (the fallback executor).
type Fetcher interface {
	Execute(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error)
}

// TTLs are the per-kind expiry classes.
type TTLs struct {
	Quote       time.Duration
	History     time.Duration
	Fundamental time.Duration
	News        time.Duration
}

// Config tunes the layer. Zero values get sane defaults in New.
type Config struct {
	KeyPrefix    string
	ProbeTimeout time.Duration // budget for one cache read/write/ping
	ProbeWindow  time.Duration // min spacing between recovery probes while degraded
	TTL          TTLs
}

// Entry is what the layer returns: the payload plus cache metadata. Entries
// are created only here; everything downstream treats them as read-only.
type Entry struct {
	Key       string           `json:"key"`
	Payload   *provider.Result `json:"payload"`
	StoredAt  time.Time        `json:"stored_at"`
	TTL       time.Duration    `json:"ttl"`
	Degraded  bool             `json:"degraded"`
	FromCache bool             `json:"from_cache"`
}

// envelope is the wire form persisted in the store. Redis expiry enforces
// the TTL; StoredAt/TTL ride along as metadata.
type envelope struct {
	Payload  *provider.Result `json:"payload"`
	StoredAt time.Time        `json:"stored_at"`
	TTLSec   int64            `json:"ttl_sec"`
}

// Layer implements cache-aside with single-flight de-duplication.
type Layer struct {
	store Store
	next  Fetcher
	cal   calendar.Calendar
	cfg   Config
	log   *slog.Logger

	sf        singleflight.Group
	degraded  atomic.Bool
	nextProbe atomic.Int64 // unix nanos; earliest next recovery probe

	now func() time.Time // test hook
}

func New(store Store, next Fetcher, cal calendar.Calendar, cfg Config, log *slog.Logger) *Layer {
	if cfg.KeyPrefix == "" { cfg.KeyPrefix = "stock_srv" }
	if cfg.ProbeTimeout <= 0 { cfg.ProbeTimeout = 200 * time.Millisecond }
	if cfg.ProbeWindow <= 0 { cfg.ProbeWindow = 30 * time.Second }
	if cfg.TTL.Quote <= 0 { cfg.TTL.Quote = time.Minute }
	if cfg.TTL.History <= 0 { cfg.TTL.History = time.Hour }
	if cfg.TTL.Fundamental <= 0 { cfg.TTL.Fundamental = time.Hour }
	if cfg.TTL.News <= 0 { cfg.TTL.News = 30 * time.Minute }
	if log == nil { log = slog.Default() }
	return &Layer{store: store, next: next, cal: cal, cfg: cfg, log: log, now: time.Now}
}

// Get serves one request cache-aside: probe the store, fall through to the
// executor on miss or outage, write back on success. Concurrent misses on
// the same key collapse into a single executor invocation and all callers
// share its outcome.
func (l *Layer) Get(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*Entry, error) {
	key := l.key(kind, id, params)

	if l.storeUsable(ctx) {
		rctx, cancel := context.WithTimeout(ctx, l.cfg.ProbeTimeout)
		b, err := l.store.Get(rctx, key)
		cancel()
		switch {
		case err == nil:
			var env envelope
			if jsonErr := json.Unmarshal(b, &env); jsonErr == nil && env.Payload != nil {
				return &Entry{
					Key:       key,
					Payload:   env.Payload,
					StoredAt:  env.StoredAt,
					TTL:       time.Duration(env.TTLSec) * time.Second,
					FromCache: true,
				}, nil
			}
			// undecodable entry: treat as miss and overwrite below
		case errors.Is(err, ErrMiss):
			// fall through to fetch
		default:
			l.enterDegraded(err)
		}
	}

	v, err, _ := l.sf.Do(key, func() (any, error) {
		return l.fetchAndStore(ctx, key, kind, id, params)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

func (l *Layer) fetchAndStore(ctx context.Context, key string, kind provider.Kind, id symbol.Identity, params provider.Params) (*Entry, error) {
	res, err := l.next.Execute(ctx, kind, id, params)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	ttl := l.ttlFor(kind, id, now)
	ent := &Entry{Key: key, Payload: res, StoredAt: now, TTL: ttl, Degraded: l.degraded.Load()}

	if !ent.Degraded {
		b, merr := json.Marshal(envelope{Payload: res, StoredAt: now, TTLSec: int64(ttl.Seconds())})
		if merr == nil {
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ProbeTimeout)
			werr := l.store.Set(wctx, key, b, ttl)
			cancel()
			if werr != nil {
				// a failed write never fails the request
				l.log.Warn("cache write failed", "key", key, "err", werr)
				l.enterDegraded(werr)
				ent.Degraded = true
			}
		}
	}
	return ent, nil
}

// storeUsable reports whether reads/writes should touch the store. While
// degraded it pings at most once per probe window; success re-enables the
// store for everyone.
func (l *Layer) storeUsable(ctx context.Context) bool {
	if !l.degraded.Load() {
		return true
	}
	nowNs := l.now().UnixNano()
	next := l.nextProbe.Load()
	if nowNs < next || !l.nextProbe.CompareAndSwap(next, nowNs+int64(l.cfg.ProbeWindow)) {
		return false
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ProbeTimeout)
	err := l.store.Ping(pctx)
	cancel()
	if err != nil {
		return false
	}
	l.degraded.Store(false)
	l.log.Info("cache service recovered, leaving degraded mode")
	return true
}

// enterDegraded flips to degraded mode, logging once per outage window.
func (l *Layer) enterDegraded(cause error) {
	if l.degraded.CompareAndSwap(false, true) {
		l.nextProbe.Store(l.now().UnixNano() + int64(l.cfg.ProbeWindow))
		l.log.Error("cache service unavailable, entering degraded mode", "err", cause)
	}
}

// ttlFor picks the kind's TTL class. Quotes cannot move while the session is
// closed, so their TTL is stretched to the history class on non-trading days.
func (l *Layer) ttlFor(kind provider.Kind, id symbol.Identity, now time.Time) time.Duration {
	switch kind {
	case provider.KindQuote:
		if l.cal != nil && !l.cal.IsTradingDay(id.Exchange, now) {
			return l.cfg.TTL.History
		}
		return l.cfg.TTL.Quote
	case provider.KindHistory:
		return l.cfg.TTL.History
	case provider.KindFundamental:
		return l.cfg.TTL.Fundamental
	case provider.KindNews:
		return l.cfg.TTL.News
	}
	return l.cfg.TTL.Quote
}

// key is deterministic over (kind, identity, normalized params).
func (l *Layer) key(kind provider.Kind, id symbol.Identity, params provider.Params) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s", params.Start.UTC().Format(time.RFC3339),
		params.End.UTC().Format(time.RFC3339), params.AsOf.UTC().Format(time.RFC3339), params.Window)
	return fmt.Sprintf("%s:%s:%s:%s:%x", l.cfg.KeyPrefix, kind, id.Market, id.Ticker, h.Sum64())
}
