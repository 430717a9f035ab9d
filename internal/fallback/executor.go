// Package fallback walks the registry's ordered adapter list for a request:
// strict sequential attempts, first success wins. Sequential (never parallel
// fan-out) because upstreams are rate-limited resources shared by all
// concurrent requests; burning two providers to shave latency is a bad trade.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stockdata/internal/breaker"
	"stockdata/internal/provider"
	"stockdata/internal/registry"
	"stockdata/internal/symbol"
)

// Config bounds each adapter attempt and parameterizes the per-adapter breakers.
type Config struct {
	CallTimeout      time.Duration // per-adapter fetch deadline
	FailureThreshold int           // breaker: consecutive failures before opening
	Cooldown         time.Duration // breaker: open duration before one trial call
}

// Attempt records the outcome of one adapter during a failed execution.
type Attempt struct {
	Provider string `json:"provider"`
	Err      error  `json:"-"`
	Reason   string `json:"reason"`
}

// ExhaustedError is the terminal failure: every candidate adapter either
// failed or was skipped with an open breaker. Attempts preserves registry
// order so operators can tell "all providers down" from "misconfigured".
type ExhaustedError struct {
	Kind     provider.Kind
	Identity symbol.Identity
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Provider, a.Reason))
	}
	return fmt.Sprintf("all providers exhausted for %s %s (%s): %s",
		e.Kind, e.Identity.Ticker, e.Identity.Market, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Executor runs requests against the registry with per-adapter breakers.
type Executor struct {
	reg      *registry.Registry
	breakers map[string]*breaker.Breaker
	cfg      Config
	log      *slog.Logger
}

func New(reg *registry.Registry, adapters []provider.Adapter, cfg Config, log *slog.Logger) *Executor {
	if cfg.CallTimeout <= 0 { cfg.CallTimeout = 8 * time.Second }
	if log == nil { log = slog.Default() }
	brs := make(map[string]*breaker.Breaker, len(adapters))
	for _, a := range adapters {
		brs[a.Name()] = breaker.New(cfg.FailureThreshold, cfg.Cooldown)
	}
	return &Executor{reg: reg, breakers: brs, cfg: cfg, log: log}
}

// Breaker exposes the breaker of one adapter (diagnostics and tests).
func (e *Executor) Breaker(name string) *breaker.Breaker { return e.breakers[name] }

// Execute tries each candidate adapter in registry order under a bounded
// per-call deadline. Adapters with an open breaker are skipped without an
// upstream call. The first success is returned immediately; if the caller's
// own deadline dies mid-walk the remaining candidates are abandoned.
func (e *Executor) Execute(ctx context.Context, kind provider.Kind, id symbol.Identity, params provider.Params) (*provider.Result, error) {
	adapters, err := e.reg.Lookup(id.Market, kind)
	if err != nil {
		return nil, err
	}

	attempts := make([]Attempt, 0, len(adapters))
	for _, a := range adapters {
		if err := ctx.Err(); err != nil {
			// caller deadline exceeded mid-fallback; stop trying
			return nil, fmt.Errorf("%w: request deadline exceeded after %d attempts", provider.ErrTimeout, len(attempts))
		}

		br := e.breakers[a.Name()]
		if br != nil && !br.Allow() {
			// skipped, not an upstream attempt; recorded for diagnostics only
			attempts = append(attempts, Attempt{Provider: a.Name(), Err: breaker.ErrOpen, Reason: breaker.ErrOpen.Error()})
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		res, err := a.Fetch(callCtx, kind, id, params)
		cancel()

		if err != nil {
			if br != nil { br.Failure() }
			e.log.Warn("provider fetch failed",
				"provider", a.Name(), "kind", string(kind), "ticker", id.Ticker, "err", err)
			attempts = append(attempts, Attempt{Provider: a.Name(), Err: err, Reason: err.Error()})
			continue
		}
		if br != nil { br.Success() }

		if res.Source == "" { res.Source = a.Name() }
		if res.FetchedAt.IsZero() { res.FetchedAt = time.Now().UTC() }
		provider.Normalize(res)
		return res, nil
	}

	return nil, &ExhaustedError{Kind: kind, Identity: id, Attempts: attempts}
}

// IsExhausted reports whether err is a terminal all-providers failure.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}
