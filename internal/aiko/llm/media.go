package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// Static capability tables for the auxiliary endpoints. Validation against
// these tables happens before any network call, so a bad argument is a
// synchronous user-facing rejection, not an upstream error.

// ImageSizes are the generation sizes the image endpoint accepts.
var ImageSizes = map[string]bool{
	"256x256":   true,
	"512x512":   true,
	"1024x1024": true,
	"1792x1024": true,
	"1024x1792": true,
}

// DefaultImageSize is used when the caller does not pass --size.
const DefaultImageSize = "1024x1024"

// VideoActions are the operations the video endpoint accepts.
var VideoActions = map[string]string{
	"generate": "text-to-video generation",
	"animate":  "animate a still image",
	"extend":   "extend an existing clip",
}

// Languages maps the language codes accepted by the translate command to
// their display names, used both for validation and for the prompt.
var Languages = map[string]string{
	"en": "English",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
	"ru": "Russian",
	"pt": "Portuguese",
	"it": "Italian",
}

// SupportedList formats a capability table's keys for user-facing help.
func SupportedList(table map[string]bool) string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// LanguageList formats the language table for user-facing help.
func LanguageList() string {
	codes := make([]string, 0, len(Languages))
	for c := range Languages {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		parts = append(parts, c+" ("+Languages[c]+")")
	}
	return strings.Join(parts, ", ")
}

// GenerateImage requests an image for prompt at the given size and returns
// the image URL. size must be a key of ImageSizes.
func (c *Client) GenerateImage(ctx context.Context, prompt, size string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("llm: image prompt must not be empty")
	}
	if size == "" {
		size = DefaultImageSize
	}
	if !ImageSizes[size] {
		return "", fmt.Errorf("llm: unsupported image size %q (supported: %s)", size, SupportedList(ImageSizes))
	}

	var resp struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	err := c.postJSON(ctx, "/images/generations", map[string]any{
		"prompt": prompt,
		"size":   size,
		"n":      1,
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("llm: image endpoint returned no result")
	}
	return resp.Data[0].URL, nil
}

// GenerateVideo submits a video job for prompt and returns the job ID.
// action must be a key of VideoActions.
func (c *Client) GenerateVideo(ctx context.Context, action, prompt string) (string, error) {
	if _, ok := VideoActions[action]; !ok {
		keys := make([]string, 0, len(VideoActions))
		for k := range VideoActions {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("llm: unsupported video action %q (supported: %s)", action, strings.Join(keys, ", "))
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("llm: video prompt must not be empty")
	}

	var resp struct {
		ID string `json:"id"`
	}
	err := c.postJSON(ctx, "/videos/generations", map[string]any{
		"action": action,
		"prompt": prompt,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("llm: video endpoint returned no job ID")
	}
	return resp.ID, nil
}

// Translate renders text into the target language through the completion
// API. lang must be a key of Languages.
func Translate(ctx context.Context, completer Completer, lang, text string) (string, error) {
	name, ok := Languages[strings.ToLower(lang)]
	if !ok {
		return "", fmt.Errorf("llm: unsupported language %q (supported: %s)", lang, LanguageList())
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("llm: nothing to translate")
	}

	messages := []Message{
		{Role: "system", Content: "You are a translator. Translate the user's text into " + name +
			", preserving tone and register. Output only the translation."},
		{Role: "user", Content: text},
	}
	out, _, err := completer.Complete(ctx, messages, Params{Temperature: 0.3, MaxTokens: 1024})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// postJSON posts a JSON body to the given API path and decodes the 2xx
// response into out. Non-2xx statuses go through the same failure
// classification as completions.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("llm: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("llm: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody oaiResponse
		_ = json.Unmarshal(respBody, &errBody)
		return classifyStatus(resp.StatusCode, &errBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("llm: decode API response: %w", err)
	}
	return nil
}
