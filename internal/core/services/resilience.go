package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/logger"
	"github.com/custodia-labs/verity/internal/observability"
)

// Ensure ResilientEmbedder implements the interface.
var _ driven.EmbeddingService = (*ResilientEmbedder)(nil)

// retrier runs backend calls under a per-attempt timeout with bounded,
// jittered exponential backoff.
type retrier struct {
	cfg     domain.BackendConfig
	metrics *observability.Metrics
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

func newRetrier(cfg domain.BackendConfig, metrics *observability.Metrics) *retrier {
	return &retrier{cfg: cfg, metrics: metrics, sleep: sleepContext}
}

// do calls fn until it succeeds, fails permanently or the attempt budget
// runs out. Caller cancellation is returned as the context error and is
// never retried. Exhaustion wraps domain.ErrBackendUnavailable.
func (r *retrier) do(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) error {
	attempts := max(r.cfg.MaxAttempts, 1)
	backoff := r.cfg.InitialBackoff

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %s rate limit: %w", domain.ErrBackendUnavailable, op, err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isTransient(err) {
			return err
		}

		last = err
		if attempt == attempts {
			break
		}
		r.metrics.IncRetry(op)
		delay := jitter(backoff)
		logger.Debug("%s attempt %d/%d failed, retrying in %s: %v", op, attempt, attempts, delay, err)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
		backoff = min(backoff*2, r.cfg.MaxBackoff)
	}

	r.metrics.IncBackendFailure(op)
	if errors.Is(last, domain.ErrBackendUnavailable) {
		return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, last)
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %w", domain.ErrBackendUnavailable, op, attempts, last)
}

// isTransient reports whether another attempt could succeed.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrDimensionMismatch),
		errors.Is(err, domain.ErrEmbedderMismatch),
		errors.Is(err, domain.ErrNotFound):
		return false
	default:
		return true
	}
}

// jitter spreads d uniformly over [d/2, d].
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(d-half+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ResilientEmbedder decorates an embedder with timeouts, retries, optional
// rate limiting and output validation.
type ResilientEmbedder struct {
	inner driven.EmbeddingService
	retry *retrier
}

// NewResilientEmbedder wraps inner with the given backend budgets.
// metrics may be nil.
func NewResilientEmbedder(inner driven.EmbeddingService, cfg domain.BackendConfig, metrics *observability.Metrics) *ResilientEmbedder {
	r := newRetrier(cfg, metrics)
	if cfg.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return &ResilientEmbedder{inner: inner, retry: r}
}

// Embed generates one embedding.
func (e *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.retry.do(ctx, "embed", e.retry.cfg.EmbedTimeout, func(ctx context.Context) error {
		v, err := e.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		if err := e.checkDimension(v); err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch generates one embedding per text, in order.
func (e *ResilientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var vecs [][]float32
	err := e.retry.do(ctx, "embed_batch", e.retry.cfg.EmbedTimeout, func(ctx context.Context) error {
		vs, err := e.inner.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vs) != len(texts) {
			return fmt.Errorf("%w: embedder returned %d vectors for %d texts",
				domain.ErrDimensionMismatch, len(vs), len(texts))
		}
		for _, v := range vs {
			if err := e.checkDimension(v); err != nil {
				return err
			}
		}
		vecs = vs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

func (e *ResilientEmbedder) checkDimension(v []float32) error {
	if want := e.inner.Dimensions(); want > 0 && len(v) != want {
		return fmt.Errorf("%w: embedder returned %d dimensions, expected %d",
			domain.ErrDimensionMismatch, len(v), want)
	}
	return nil
}

// Dimensions returns the wrapped embedder's vector size.
func (e *ResilientEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// ModelName returns the wrapped embedder's model.
func (e *ResilientEmbedder) ModelName() string {
	return e.inner.ModelName()
}

// Ping checks the wrapped embedder once, under the embed timeout.
func (e *ResilientEmbedder) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.retry.cfg.EmbedTimeout)
	defer cancel()
	return e.inner.Ping(ctx)
}

// Close closes the wrapped embedder.
func (e *ResilientEmbedder) Close() error {
	return e.inner.Close()
}
