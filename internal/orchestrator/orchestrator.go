package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"finmetrics/internal/provider"
)

// Result is a successful fetch outcome: the normalized statements and the
// name of the adapter that actually served them, which may differ from the
// one the caller requested after a fallback.
type Result struct {
	Statements []provider.Statement
	Provider   string
}

// Orchestrator runs the per-request fallback state machine. It holds no
// mutable state between requests; the registry is immutable.
type Orchestrator struct {
	registry       *provider.Registry
	enableFallback bool
	logger         *slog.Logger
}

// New creates an Orchestrator over the given registry.
func New(registry *provider.Registry, enableFallback bool, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry:       registry,
		enableFallback: enableFallback,
		logger:         logger,
	}
}

// Fetch resolves providerName (empty or unknown names resolve to the default),
// attempts the primary adapter, and applies the fallback policy:
//
//   - RateLimited or Unauthorized: never fall back. These conditions need the
//     caller's direct action; substituting another provider would hide them.
//   - NotFound or Unknown: attempt the registry's fallback adapter once,
//     unless the primary already was the fallback. A fallback failure of any
//     kind is terminal and the fallback's error is the one propagated.
//
// At most two upstream attempts happen, always sequentially.
func (o *Orchestrator) Fetch(ctx context.Context, ticker string, period provider.Period, limit int, providerName string) (*Result, error) {
	primary := o.registry.Resolve(strings.ToLower(strings.TrimSpace(providerName)))

	statements, err := primary.Fetch(ctx, ticker, period, limit)
	if err == nil {
		return &Result{Statements: statements, Provider: primary.Name()}, nil
	}

	cerr := provider.AsError(err, primary.Name())
	switch cerr.Kind {
	case provider.KindRateLimited, provider.KindUnauthorized:
		return nil, cerr
	}

	fallback := o.registry.Fallback()
	if !o.enableFallback || fallback.Name() == primary.Name() {
		return nil, cerr
	}

	o.logger.WarnContext(ctx, "primary provider failed, attempting fallback",
		"ticker", ticker,
		"primary", primary.Name(),
		"fallback", fallback.Name(),
		"kind", string(cerr.Kind),
	)

	statements, err = fallback.Fetch(ctx, ticker, period, limit)
	if err != nil {
		return nil, provider.AsError(err, fallback.Name())
	}
	return &Result{Statements: statements, Provider: fallback.Name()}, nil
}
