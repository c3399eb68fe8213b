package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testAnthropic(srvURL string) *Anthropic {
	p := NewAnthropic("claude-sonnet-4-5", "key-test")
	p.baseURL = srvURL
	return p
}

func TestAnthropicComplete(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %s, want /messages", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "key-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("missing anthropic-version header")
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "be brief" {
			t.Errorf("system = %q", req.System)
		}
		if req.MaxTokens <= 0 {
			t.Errorf("max_tokens = %d, must be positive", req.MaxTokens)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "part one "},
				{"type": "text", "text": "part two"},
			},
		})
	}))
	defer srv.Close()

	got, err := testAnthropic(srv.URL).Complete(context.Background(), "hello", "be brief", 0.5, 0)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "part one part two" {
		t.Errorf("content = %q, want concatenated text blocks", got)
	}
}

func TestAnthropicAPIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "authentication_error", "message": "bad key"},
		})
	}))
	defer srv.Close()

	if _, err := testAnthropic(srv.URL).Complete(context.Background(), "q", "", 0, 0); err == nil {
		t.Fatal("expected error for API error response")
	}
}

func TestAnthropicNoTextContent(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"content": []any{}})
	}))
	defer srv.Close()

	if _, err := testAnthropic(srv.URL).Complete(context.Background(), "q", "", 0, 0); err == nil {
		t.Fatal("expected error when no text blocks returned")
	}
}
