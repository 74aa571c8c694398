package theme

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
)

// Attempt outcomes reported to an Observer.
const (
	OutcomeHit     = "hit"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeDefault = "default"
)

// Observer receives one call per strategy attempt, and one for the default.
type Observer func(source, outcome string)

// Source is a strategy bound to its own timeout.
type Source struct {
	Strategy Strategy
	Timeout  time.Duration
}

// Resolver walks the configured strategies in order and returns the first
// non-empty theme. It never fails: when every strategy does, the default
// constant is returned tagged with domain.DefaultThemeSource.
type Resolver struct {
	sources        []Source
	defaultText    string
	resolveTimeout time.Duration
	observe        Observer
}

// NewResolver creates a resolver. resolveTimeout bounds the whole chain.
func NewResolver(sources []Source, defaultText string, resolveTimeout time.Duration) *Resolver {
	return &Resolver{
		sources:        sources,
		defaultText:    strings.TrimSpace(defaultText),
		resolveTimeout: resolveTimeout,
		observe:        func(string, string) {},
	}
}

// SetObserver installs an attempt observer, typically metrics.
func (r *Resolver) SetObserver(o Observer) {
	if o != nil {
		r.observe = o
	}
}

// Sources returns the configured chain in order.
func (r *Resolver) Sources() []Source {
	return r.sources
}

// Resolve returns the theme for a run.
func (r *Resolver) Resolve(ctx context.Context, req Request) domain.Theme {
	if r.resolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.resolveTimeout)
		defer cancel()
	}

	for _, src := range r.sources {
		if ctx.Err() != nil {
			logger.CtxWarn(ctx, "Theme resolution budget exhausted, using default")
			break
		}

		name := src.Strategy.Name()
		sctx := logger.SetStrategy(ctx, name)
		start := time.Now()

		text, err := r.attempt(sctx, src, req)
		entry := logger.With(logger.Fields{"kind": src.Strategy.Kind()}).WithDuration(time.Since(start))
		switch {
		case err != nil:
			outcome := OutcomeError
			if errors.Is(err, context.DeadlineExceeded) {
				outcome = OutcomeTimeout
			}
			r.observe(name, outcome)
			entry.WithStatus(outcome).Warn(sctx, "Theme strategy %s failed: %v", name, err)
		case text == "":
			r.observe(name, OutcomeEmpty)
			entry.WithStatus(OutcomeEmpty).Warn(sctx, "Theme strategy %s returned nothing", name)
		default:
			r.observe(name, OutcomeHit)
			entry.WithStatus(OutcomeHit).Info(sctx, "Theme %q from %s", text, name)
			return domain.Theme{Text: text, Source: name, Kind: src.Strategy.Kind()}
		}
	}

	r.observe(domain.DefaultThemeSource, OutcomeDefault)
	logger.CtxInfo(ctx, "Using default theme %q", r.defaultText)
	return domain.Theme{Text: r.defaultText, Source: domain.DefaultThemeSource, Kind: domain.DefaultThemeSource}
}

// attempt runs one strategy under its timeout. A strategy that ignores its
// context cannot hold the chain past the deadline.
func (r *Resolver) attempt(ctx context.Context, src Source, req Request) (string, error) {
	if src.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, src.Timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("strategy panicked: %v", p)}
			}
		}()
		text, err := src.Strategy.Produce(ctx, req)
		done <- result{text: strings.TrimSpace(text), err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
