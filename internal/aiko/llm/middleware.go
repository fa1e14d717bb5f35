package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aikobot/aiko/common/retry"
	"github.com/aikobot/aiko/common/trace"
	"github.com/aikobot/aiko/internal/aiko/cache"
)

// Middleware wraps a Completer with a cross-cutting concern. Concerns are
// composed explicitly around the completion call — there is no generic
// annotation mechanism.
type Middleware func(Completer) Completer

// Chain applies middlewares so the first listed is outermost:
// Chain(c, A, B) calls A(B(c)).
func Chain(c Completer, mws ...Middleware) Completer {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

// WithTiming logs the duration and token usage of every completion call,
// keyed by the trace ID when one is present.
func WithTiming() Middleware {
	return func(next Completer) Completer {
		return CompleterFunc(func(ctx context.Context, messages []Message, params Params) (string, Usage, error) {
			start := time.Now()
			text, usage, err := next.Complete(ctx, messages, params)
			elapsed := time.Since(start)

			if err != nil {
				slog.Warn("llm: completion failed",
					"trace_id", trace.FromContext(ctx),
					"model", params.Model,
					"elapsed", elapsed,
					"err", err)
			} else {
				slog.Info("llm: completion",
					"trace_id", trace.FromContext(ctx),
					"model", params.Model,
					"elapsed", elapsed,
					"prompt_tokens", usage.PromptTokens,
					"completion_tokens", usage.CompletionTokens)
			}
			return text, usage, err
		})
	}
}

// WithRetry retries transient failure kinds (rate limit, server error,
// timeout) with exponential backoff. Permanent kinds pass through on the
// first attempt.
func WithRetry(cfg retry.Config) Middleware {
	cfg.ShouldRetry = Retryable
	return func(next Completer) Completer {
		return CompleterFunc(func(ctx context.Context, messages []Message, params Params) (string, Usage, error) {
			var (
				text  string
				usage Usage
			)
			err := retry.Do(ctx, cfg, func() error {
				var callErr error
				text, usage, callErr = next.Complete(ctx, messages, params)
				return callErr
			})
			return text, usage, err
		})
	}
}

// WithCache memoizes completions for identical prompt+params in the
// API-response cache namespace. Only successful completions are stored.
// Useful for repeated deterministic calls (translation lookups); chat
// prompts rarely repeat, and when they do a cached reply is acceptable
// within the response tier's short TTL.
func WithCache(c *cache.Cache) Middleware {
	return func(next Completer) Completer {
		return CompleterFunc(func(ctx context.Context, messages []Message, params Params) (string, Usage, error) {
			key := promptKey(messages, params)
			if v, ok := c.Get(cache.NamespaceResponse, key); ok {
				if text, ok := v.(string); ok {
					slog.Debug("llm: completion served from cache", "key", key)
					return text, Usage{}, nil
				}
			}

			text, usage, err := next.Complete(ctx, messages, params)
			if err == nil {
				c.Set(cache.NamespaceResponse, key, text)
			}
			return text, usage, err
		})
	}
}

// promptKey hashes the full request so distinct prompts never collide.
func promptKey(messages []Message, params Params) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(params)
	_ = enc.Encode(messages)
	return hex.EncodeToString(h.Sum(nil))
}
