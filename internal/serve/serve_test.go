package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/output"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

// stubThinker records the last Think call and returns a canned result.
type stubThinker struct {
	calls    atomic.Int64
	lastMode atomic.Value
	fused    thought.FusedThought
}

func (s *stubThinker) Think(_ context.Context, _ string, mode thought.ThinkingMode, _ *string, _ *thought.FusionStrategy) thought.FusedThought {
	s.calls.Add(1)
	s.lastMode.Store(mode)
	return s.fused
}

func (s *stubThinker) Stats() thought.Stats {
	return thought.Stats{TotalCalls: 7, ByMode: map[string]int{"code": 7}, ByStrategy: map[string]int{"majority": 7}}
}

func (s *stubThinker) Status() thought.Status {
	return thought.Status{DefaultStrategy: "synthesis", ModesAvailable: map[string][]string{"code": {"openai/gpt-4o"}}}
}

func (s *stubThinker) Records(n int) []thought.ThinkingRecord {
	recs := []thought.ThinkingRecord{
		{Mode: "code", Strategy: "majority", ModelsQueried: 2, ModelsSucceeded: 2, Confidence: 0.9, Timestamp: time.Now()},
	}
	if n > 0 && n < len(recs) {
		recs = recs[:n]
	}
	return recs
}

func testServer(t *testing.T) (*httptest.Server, *stubThinker) {
	t.Helper()
	stub := &stubThinker{
		fused: thought.FusedThought{
			Content:        "fused answer",
			Strategy:       thought.StrategyMajority,
			Confidence:     0.95,
			AgreementScore: 0.9,
			Sources: []thought.ModelResponse{
				{Backend: "openai", Model: "gpt-4o", Content: "fused answer", LatencyMs: 20},
			},
		},
	}
	s := New(stub, nil)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return srv, stub
}

func postThink(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url+"/api/v1/think", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post think: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestThinkEndpoint(t *testing.T) {
	t.Parallel()
	srv, stub := testServer(t)

	resp := postThink(t, srv.URL, ThinkRequest{Prompt: "question", Mode: "code"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body output.ThinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Content != "fused answer" || body.Mode != "code" {
		t.Errorf("body = %+v", body)
	}
	if body.Route != nil {
		t.Error("explicit mode should not include a route decision")
	}
	if stub.calls.Load() != 1 {
		t.Errorf("think called %d times", stub.calls.Load())
	}
}

func TestThinkEndpointAutoRoutes(t *testing.T) {
	t.Parallel()
	srv, stub := testServer(t)

	resp := postThink(t, srv.URL, ThinkRequest{Prompt: "Fix the bug in auth.py where tokens expire"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body output.ThinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Route == nil {
		t.Fatal("auto-routed request should include the route decision")
	}
	if body.Route.Mode != "code" {
		t.Errorf("routed mode = %s, want code", body.Route.Mode)
	}
	if got := stub.lastMode.Load().(thought.ThinkingMode); got != thought.ModeCode {
		t.Errorf("orchestra saw mode %s, want code", got)
	}
}

func TestThinkEndpointRejectsBadInput(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t)

	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{"empty prompt", ThinkRequest{Prompt: ""}, ErrCodeInvalidRequest},
		{"bad mode", ThinkRequest{Prompt: "q", Mode: "telepathy"}, ErrCodeInvalidMode},
		{"bad strategy", ThinkRequest{Prompt: "q", Mode: "code", Strategy: "vibes"}, ErrCodeInvalidStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postThink(t, srv.URL, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var errResp output.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if errResp.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", errResp.Code, tt.wantCode)
			}
		})
	}
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body output.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalCalls != 7 || body.ByMode["code"] != 7 {
		t.Errorf("body = %+v", body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body output.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.DefaultStrategy != "synthesis" {
		t.Errorf("body = %+v", body)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/history?limit=10")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body output.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Records) != 1 {
		t.Errorf("body = %+v", body)
	}

	bad, err := http.Get(srv.URL + "/api/v1/history?limit=-1")
	if err != nil {
		t.Fatal(err)
	}
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", bad.StatusCode)
	}
}

func TestSwapServesNewOrchestra(t *testing.T) {
	t.Parallel()
	stub := &stubThinker{fused: thought.FusedThought{Content: "old"}}
	s := New(stub, nil)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})

	next := &stubThinker{fused: thought.FusedThought{Content: "new"}}
	s.Swap(next)

	raw, _ := json.Marshal(ThinkRequest{Prompt: "q", Mode: "code"})
	resp, err := http.Post(srv.URL+"/api/v1/think", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body output.ThinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Content != "new" {
		t.Errorf("content = %q, want the swapped orchestra's answer", body.Content)
	}
	if stub.calls.Load() != 0 {
		t.Error("old orchestra should no longer receive requests")
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
