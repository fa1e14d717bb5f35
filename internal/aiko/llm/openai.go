package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// Config configures the OpenAI-compatible client.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model used when a call does not specify one.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 60 s — completions
	// stream nothing back until they finish.
	Timeout time.Duration
}

// Client implements Completer against the OpenAI (or compatible) chat API.
// Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client with cfg (zero fields defaulted).
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the configured default model name.
func (c *Client) Model() string { return c.cfg.Model }

// --- minimal OpenAI wire types ---

type oaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Usage   *oaiUsage   `json:"usage,omitempty"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Complete sends the messages to the chat-completions endpoint and returns
// the first choice's text. Failures are classified into the package's
// sentinel kinds so callers can pick retry behaviour and user-facing text.
func (c *Client) Complete(ctx context.Context, messages []Message, params Params) (string, Usage, error) {
	model := params.Model
	if model == "" {
		model = c.cfg.Model
	}

	body := oaiRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: params.MaxTokens,
	}
	if params.Temperature > 0 {
		t := params.Temperature
		body.Temperature = &t
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", Usage{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", Usage{}, fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm: read response body: %w", err)
	}

	var oaiResp oaiResponse
	// Decode before classifying the status: error bodies carry the detail.
	if err := json.Unmarshal(respBody, &oaiResp); err != nil && resp.StatusCode == http.StatusOK {
		return "", Usage{}, fmt.Errorf("llm: decode API response: %w", err)
	}

	if kindErr := classifyStatus(resp.StatusCode, &oaiResp); kindErr != nil {
		return "", Usage{}, kindErr
	}

	if len(oaiResp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("llm: no choices returned (HTTP %d)", resp.StatusCode)
	}

	choice := oaiResp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", Usage{}, fmt.Errorf("%w: completion stopped by content filter", ErrContentPolicy)
	}

	var usage Usage
	if oaiResp.Usage != nil {
		usage = Usage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      oaiResp.Usage.TotalTokens,
		}
	}

	return choice.Message.Content, usage, nil
}

// classifyStatus maps an HTTP status (plus any decoded error body) to a
// sentinel failure kind. Returns nil for 2xx.
func classifyStatus(status int, resp *oaiResponse) error {
	detail := ""
	if resp != nil && resp.Error != nil {
		detail = fmt.Sprintf(" (%s: %s)", resp.Error.Type, resp.Error.Message)
	}

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d%s", ErrUnauthorized, status, detail)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d%s", ErrRateLimited, status, detail)
	case status == http.StatusBadRequest && isPolicyRejection(resp):
		return fmt.Errorf("%w: HTTP %d%s", ErrContentPolicy, status, detail)
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d%s", ErrServer, status, detail)
	default:
		return fmt.Errorf("llm: unexpected HTTP %d%s", status, detail)
	}
}

// isPolicyRejection recognizes content-moderation rejections inside a 400
// error body.
func isPolicyRejection(resp *oaiResponse) bool {
	if resp == nil || resp.Error == nil {
		return false
	}
	return resp.Error.Code == "content_policy_violation" ||
		strings.Contains(resp.Error.Type, "content_policy") ||
		strings.Contains(resp.Error.Message, "content policy")
}

// isTimeout recognizes net-level timeouts wrapped by the http client.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
