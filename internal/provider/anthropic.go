package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// Anthropic speaks the Anthropic messages wire format. Safe for
// concurrent use.
type Anthropic struct {
	model   string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAnthropic builds a messages-API client for the given model.
func NewAnthropic(model, apiKey string) *Anthropic {
	return &Anthropic{
		model:   model,
		baseURL: anthropicBaseURL,
		apiKey:  apiKey,
		client:  sharedClient,
	}
}

func (p *Anthropic) Name() string  { return "anthropic" }
func (p *Anthropic) Model() string { return p.model }

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete runs one messages call and returns the concatenated text blocks.
func (p *Anthropic) Complete(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body, err := json.Marshal(anthropicRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		System:      system,
		Temperature: temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("anthropic returned status %d with unparseable body: %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("anthropic API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("anthropic returned status %d", resp.StatusCode)
	}

	var b strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return b.String(), nil
}

func (p *Anthropic) Close(context.Context) error { return nil }
