package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// OpenAICompatible speaks the OpenAI chat-completions wire format, which
// several backends expose (OpenAI, Groq, xAI, Ollama). One instance per
// (backend, model) pair; safe for concurrent use.
type OpenAICompatible struct {
	backend string
	model   string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAICompatible builds a chat-completions client. baseURL is the API
// root without the trailing /chat/completions path. apiKey may be empty
// for backends that need none (local Ollama).
func NewOpenAICompatible(backend, model, baseURL, apiKey string) *OpenAICompatible {
	return &OpenAICompatible{
		backend: backend,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  sharedClient,
	}
}

func (p *OpenAICompatible) Name() string  { return p.backend }
func (p *OpenAICompatible) Model() string { return p.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete runs one chat completion and returns the first choice's text.
func (p *OpenAICompatible) Complete(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (string, error) {
	msgs := make([]chatMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", p.backend, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%s returned status %d with unparseable body: %w", p.backend, resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%s API error (%s): %s", p.backend, parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s returned status %d", p.backend, resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.backend)
	}
	return parsed.Choices[0].Message.Content, nil
}

func (p *OpenAICompatible) Close(context.Context) error { return nil }

// DefaultFactory builds the production HTTP provider for each known
// backend, reading credentials from the environment. Unknown backends get
// a provider whose calls fail, keeping pool lookups total.
func DefaultFactory(backend, model string) Provider {
	switch backend {
	case "openai":
		return NewOpenAICompatible(backend, model, "https://api.openai.com/v1", os.Getenv("OPENAI_API_KEY"))
	case "groq":
		return NewOpenAICompatible(backend, model, "https://api.groq.com/openai/v1", os.Getenv("GROQ_API_KEY"))
	case "xai":
		return NewOpenAICompatible(backend, model, "https://api.x.ai/v1", os.Getenv("XAI_API_KEY"))
	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOpenAICompatible(backend, model, strings.TrimRight(host, "/")+"/v1", "")
	case "anthropic":
		return NewAnthropic(model, os.Getenv("ANTHROPIC_API_KEY"))
	default:
		return unknownProvider{backend: backend, model: model}
	}
}
