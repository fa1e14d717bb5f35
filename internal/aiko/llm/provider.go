// Package llm provides the outbound completion layer: an OpenAI-compatible
// chat client, a failure taxonomy mapped to user-facing messages, media
// generation endpoints, and the middleware (timing, retry, caching) composed
// around the completion call.
package llm

import (
	"context"
	"errors"
)

// Message is one entry of a completion request, in wire order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the per-call sampling parameters, taken from the active
// persona template.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Failure kinds surfaced by providers. Callers classify with errors.Is and
// translate to user-facing text via UserMessage; the raw error still goes
// to the logs.
var (
	ErrUnauthorized  = errors.New("llm: unauthorized (invalid or missing API key)")
	ErrRateLimited   = errors.New("llm: upstream rate limit exceeded")
	ErrServer        = errors.New("llm: upstream server error")
	ErrTimeout       = errors.New("llm: request timed out")
	ErrContentPolicy = errors.New("llm: request rejected by content policy")
)

// Usage carries the token counts reported by the upstream API for one call.
// Zero-valued when the provider does not report usage.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completer is the outbound completion capability. Implementations must be
// safe for concurrent use; the only suspension point in a chat turn is
// inside Complete.
type Completer interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, Usage, error)
}

// CompleterFunc adapts a function to the Completer interface, used by the
// middleware in this package and by test stubs.
type CompleterFunc func(ctx context.Context, messages []Message, params Params) (string, Usage, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, messages []Message, params Params) (string, Usage, error) {
	return f(ctx, messages, params)
}

// User-facing replies for each failure kind. Raw detail is logged, never
// shown in chat.
const (
	unauthorizedMessage  = "I can't reach my brain right now — the API key seems to be rejected. Please tell the operator."
	rateLimitedMessage   = "⏳ The AI service is temporarily rate-limited. Please try again in a moment."
	serverErrorMessage   = "The AI service is having trouble right now. Please try again shortly."
	timeoutMessage       = "That took too long and I gave up waiting. Please try again."
	contentPolicyMessage = "I can't help with that request."
	unknownErrorMessage  = "Something went wrong while generating a reply. Please try again."
)

// UserMessage translates a provider error into the localized, user-facing
// reply for that failure kind. Unclassified errors fall back to a generic
// message.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return unauthorizedMessage
	case errors.Is(err, ErrRateLimited):
		return rateLimitedMessage
	case errors.Is(err, ErrTimeout):
		return timeoutMessage
	case errors.Is(err, ErrContentPolicy):
		return contentPolicyMessage
	case errors.Is(err, ErrServer):
		return serverErrorMessage
	default:
		return unknownErrorMessage
	}
}

// Retryable reports whether a failure kind is worth retrying. Auth and
// content-policy rejections are permanent; rate limits, server errors, and
// timeouts are transient.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServer) ||
		errors.Is(err, ErrTimeout)
}
