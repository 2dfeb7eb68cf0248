// File: internal/engine/gateway.go
package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/config"
)

// Gateway is the thin transport wrapper in front of the inference engine. It
// owns per-call timeouts, bounded transport-level retries, and request rate
// limiting shared across concurrently running scenarios. It has no semantic
// knowledge of prompts or responses.
type Gateway struct {
	client     schemas.EngineClient
	logger     *zap.Logger
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int

	// backoffFactory builds the wait strategy for one Complete call.
	// Replaceable in tests to avoid real backoff delays.
	backoffFactory func() backoff.BackOff
}

// NewGateway wraps an engine client with the configured transport policy.
func NewGateway(client schemas.EngineClient, cfg config.EngineConfig, logger *zap.Logger) *Gateway {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Gateway{
		client:     client,
		logger:     logger.Named("engine_gateway"),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		timeout:    cfg.APITimeout,
		maxRetries: cfg.TransportRetries,
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
}

// Complete sends one generation request and returns the raw textual
// completion. Transport-level failures (unreachable, timed out) are retried
// with exponential backoff up to the configured limit; the final error is
// surfaced to the caller, which aborts the scenario.
func (g *Gateway) Complete(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	var response string

	operation := func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if g.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		start := time.Now()
		out, err := g.client.Generate(callCtx, req)
		if err != nil {
			if IsTransport(err) && ctx.Err() == nil {
				g.logger.Warn("Transport error during engine request, retrying",
					zap.Duration("elapsed", time.Since(start)),
					zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}

		g.logger.Debug("Engine completion received",
			zap.Duration("duration", time.Since(start)),
			zap.Int("response_chars", len(out)))
		response = out
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(g.backoffFactory(), uint64(g.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return response, nil
}

// Close releases the underlying engine client.
func (g *Gateway) Close() error {
	return g.client.Close()
}
