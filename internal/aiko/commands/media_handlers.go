package commands

import (
	"context"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/aikobot/aiko/internal/aiko/llm"
)

// HandleImage generates an image from a prompt. The optional --size flag
// must name a supported generation size.
func (h *Handlers) HandleImage(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	prompt := cmd.ArgsText()
	if prompt == "" {
		return fmt.Sprintf("Usage: !image <prompt> [--size WxH]\nSizes: %s",
			llm.SupportedList(llm.ImageSizes)), nil
	}

	if !h.deps.Limiter.Allow(evt.Sender.String()) {
		return llm.RateLimitMessage, nil
	}

	size := cmd.GetFlag("size", llm.DefaultImageSize)
	url, err := h.deps.Client.GenerateImage(ctx, prompt, size)
	if err != nil {
		return llm.UserMessage(err), nil
	}
	return "Here's your image: " + url, nil
}

// HandleVideo submits a video generation job.
func (h *Handlers) HandleVideo(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	action, ok := cmd.GetArg(0)
	if !ok {
		actions := make([]string, 0, len(llm.VideoActions))
		for a := range llm.VideoActions {
			actions = append(actions, a)
		}
		return fmt.Sprintf("Usage: !video <action> <prompt>\nActions: %s",
			strings.Join(actions, ", ")), nil
	}
	prompt := strings.TrimSpace(strings.TrimPrefix(cmd.ArgsText(), action))
	if prompt == "" {
		return "Usage: !video <action> <prompt>", nil
	}

	if !h.deps.Limiter.Allow(evt.Sender.String()) {
		return llm.RateLimitMessage, nil
	}

	jobID, err := h.deps.Client.GenerateVideo(ctx, action, prompt)
	if err != nil {
		return llm.UserMessage(err), nil
	}
	return fmt.Sprintf("Video job submitted (%s). I'll let you know when it's ready — job ID: %s",
		llm.VideoActions[action], jobID), nil
}

// HandleTranslate translates text into a target language.
func (h *Handlers) HandleTranslate(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	lang, ok := cmd.GetArg(0)
	if !ok {
		return "Usage: !translate <lang> <text>\nLanguages: " + llm.LanguageList(), nil
	}
	text := strings.TrimSpace(strings.TrimPrefix(cmd.Rest, lang))
	if text == "" {
		return "Usage: !translate <lang> <text>", nil
	}

	if !h.deps.Limiter.Allow(evt.Sender.String()) {
		return llm.RateLimitMessage, nil
	}

	out, err := llm.Translate(ctx, h.deps.Completer, lang, text)
	if err != nil {
		if _, known := llm.Languages[strings.ToLower(lang)]; !known {
			return fmt.Sprintf("I can't translate into %q. Languages: %s", lang, llm.LanguageList()), nil
		}
		return llm.UserMessage(err), nil
	}
	return out, nil
}
