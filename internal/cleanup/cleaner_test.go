package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuildPromptEmbedsTextOnce(t *testing.T) {
	p := BuildPrompt("merhaba dunya")
	if strings.Count(p, "merhaba dunya") != 1 {
		t.Fatalf("prompt should contain the text once: %q", p)
	}
	if strings.Contains(p, "{{TEXT}}") {
		t.Fatalf("placeholder left in prompt")
	}
	if !strings.Contains(p, "yalnızca düzeltilmiş metni döndür") {
		t.Fatalf("prompt missing output constraint")
	}
}

func TestGenerationConfig(t *testing.T) {
	cfg := generationConfig()
	if cfg.Temperature == nil || *cfg.Temperature != 0.2 {
		t.Fatalf("Temperature = %v, want 0.2", cfg.Temperature)
	}
	if cfg.TopK == nil || *cfg.TopK != 1 || cfg.TopP == nil || *cfg.TopP != 1 {
		t.Fatalf("TopK/TopP = %v/%v, want 1/1", cfg.TopK, cfg.TopP)
	}
	if cfg.MaxOutputTokens != 2048 {
		t.Fatalf("MaxOutputTokens = %d, want 2048", cfg.MaxOutputTokens)
	}
	if len(cfg.SafetySettings) != 4 {
		t.Fatalf("len(SafetySettings) = %d, want 4", len(cfg.SafetySettings))
	}
}

func TestNewGeminiCleanerRequiresKey(t *testing.T) {
	if _, err := NewGeminiCleaner(context.Background(), GeminiOptions{APIKey: "  "}); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("NewGeminiCleaner() error = %v, want ErrMissingCredential", err)
	}
}

func TestGeminiCleanerReturnsModelText(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.Unmarshal(raw, &req)
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Merhaba, dünya."}]}}]}`)
	}))
	defer srv.Close()

	c, err := NewGeminiCleaner(context.Background(), GeminiOptions{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewGeminiCleaner() error = %v", err)
	}
	out, err := c.Clean(context.Background(), "merhaba dünya")
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if out != "Merhaba, dünya." {
		t.Fatalf("Clean() = %q", out)
	}
	if !strings.Contains(gotPrompt, "merhaba dünya") {
		t.Fatalf("prompt sent = %q", gotPrompt)
	}
}

func TestGeminiCleanerProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	c, err := NewGeminiCleaner(context.Background(), GeminiOptions{APIKey: "bad", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewGeminiCleaner() error = %v", err)
	}
	if _, err := c.Clean(context.Background(), "x"); err == nil {
		t.Fatalf("Clean() error = nil, want provider error")
	}
}
