// Package ratelimit gates adapter fetches so one provider's rate limit is
// consumed at a controlled pace no matter how many requests fall back to it.
package ratelimit

import (
    "context"
    "sync"
    "time"

    "stockdata/internal/provider"
    "stockdata/internal/symbol"
)

// TokenBucketAdapter wraps an adapter and gates Fetch calls on a token bucket.
type TokenBucketAdapter struct {
    A  provider.Adapter
    TB *TokenBucket
}

func (t *TokenBucketAdapter) Name() string { return t.A.Name() }

func (t *TokenBucketAdapter) Supports(kind provider.Kind, market symbol.Market) bool {
    return t.A.Supports(kind, market)
}

func (t *TokenBucketAdapter) Fetch(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
    if t.TB != nil {
        if err := t.TB.wait(ctx); err != nil { return nil, provider.CtxErr(err) }
    }
    return t.A.Fetch(ctx, kind, id, params)
}

// MinInterval wraps an adapter and enforces a minimum time between calls.
// Concurrent calls wait until the interval has elapsed since the last call,
// or return early when the context dies.
type MinInterval struct {
    A        provider.Adapter
    Interval time.Duration
    mu       sync.Mutex
    last     time.Time
}

func (m *MinInterval) Name() string { return m.A.Name() }

func (m *MinInterval) Supports(kind provider.Kind, market symbol.Market) bool {
    return m.A.Supports(kind, market)
}

func (m *MinInterval) Fetch(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
    if m.Interval > 0 {
        // simple gate: ensure at least Interval since last
        m.mu.Lock()
        wait := time.Until(m.last.Add(m.Interval))
        m.mu.Unlock()
        if wait > 0 {
            t := time.NewTimer(wait)
            defer t.Stop()
            select {
            case <-ctx.Done():
                return nil, provider.CtxErr(ctx.Err())
            case <-t.C:
            }
        }
    }
    res, err := m.A.Fetch(ctx, kind, id, params)
    if m.Interval > 0 {
        m.mu.Lock()
        m.last = time.Now()
        m.mu.Unlock()
    }
    return res, err
}
