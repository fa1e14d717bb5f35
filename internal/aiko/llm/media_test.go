package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateImage_ValidatesBeforeNetwork(t *testing.T) {
	// BaseURL is unreachable on purpose: validation failures must never
	// touch the network.
	c := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:0"})

	tests := []struct {
		name   string
		prompt string
		size   string
	}{
		{"empty prompt", "", DefaultImageSize},
		{"blank prompt", "   ", DefaultImageSize},
		{"bad size", "a cat", "640x480"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.GenerateImage(context.Background(), tt.prompt, tt.size); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGenerateImage_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img.example.org/1.png"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	url, err := c.GenerateImage(context.Background(), "a cat", "")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if url != "https://img.example.org/1.png" {
		t.Errorf("url = %q", url)
	}
}

func TestGenerateVideo_RejectsUnknownAction(t *testing.T) {
	c := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:0"})
	if _, err := c.GenerateVideo(context.Background(), "teleport", "a cat"); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestGenerateVideo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/generations" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"job-42"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	id, err := c.GenerateVideo(context.Background(), "generate", "a cat surfing")
	if err != nil {
		t.Fatalf("GenerateVideo failed: %v", err)
	}
	if id != "job-42" {
		t.Errorf("id = %q", id)
	}
}

func TestTranslate(t *testing.T) {
	var captured []Message
	stub := CompleterFunc(func(ctx context.Context, messages []Message, params Params) (string, Usage, error) {
		captured = messages
		return "  你好  ", Usage{}, nil
	})

	out, err := Translate(context.Background(), stub, "zh", "hello")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if out != "你好" {
		t.Errorf("out = %q, want trimmed translation", out)
	}
	if len(captured) != 2 || captured[0].Role != "system" {
		t.Fatalf("messages = %+v, want system+user pair", captured)
	}
	if !strings.Contains(captured[0].Content, "Chinese") {
		t.Errorf("system prompt %q must name the target language", captured[0].Content)
	}
	if captured[1].Content != "hello" {
		t.Errorf("user content = %q", captured[1].Content)
	}
}

func TestTranslate_RejectsUnknownLanguage(t *testing.T) {
	stub := CompleterFunc(func(ctx context.Context, messages []Message, params Params) (string, Usage, error) {
		t.Error("completer must not be called for an unknown language")
		return "", Usage{}, nil
	})
	if _, err := Translate(context.Background(), stub, "xx", "hello"); err == nil {
		t.Error("expected error for unknown language")
	}
}

func TestCapabilityLists(t *testing.T) {
	sizes := SupportedList(ImageSizes)
	if !strings.Contains(sizes, "1024x1024") {
		t.Errorf("SupportedList = %q", sizes)
	}
	langs := LanguageList()
	if !strings.Contains(langs, "zh (Chinese)") {
		t.Errorf("LanguageList = %q", langs)
	}
}
