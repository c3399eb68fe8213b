// Package output defines the JSON/YAML response shapes shared by the CLI
// and the HTTP API, and renders styled terminal output for humans.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

// ErrorResponse is the standard error format.
type ErrorResponse struct {
	Error string `json:"error" yaml:"error"`
	Code  string `json:"code,omitempty" yaml:"code,omitempty"`
}

// NewError creates a new error response.
func NewError(msg string) ErrorResponse {
	return ErrorResponse{Error: msg}
}

// NewErrorWithCode creates a new error response with a code.
func NewErrorWithCode(code, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Code: code}
}

// TimestampedResponse adds a timestamp to any response.
type TimestampedResponse struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}

// NewTimestamped creates a timestamped response base.
func NewTimestamped() TimestampedResponse {
	return TimestampedResponse{GeneratedAt: time.Now().UTC()}
}

// SourceResponse summarizes one fan-out leg for machine output. Raw
// content is included only for successful legs.
type SourceResponse struct {
	Backend   string  `json:"backend" yaml:"backend"`
	Model     string  `json:"model" yaml:"model"`
	OK        bool    `json:"ok" yaml:"ok"`
	LatencyMs float64 `json:"latency_ms" yaml:"latency_ms"`
	Tokens    int     `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// ThinkResponse is the output format of the think command and the
// /api/v1/think endpoint.
type ThinkResponse struct {
	TimestampedResponse `yaml:",inline"`
	Content             string                 `json:"content" yaml:"content"`
	Mode                string                 `json:"mode" yaml:"mode"`
	Strategy            string                 `json:"strategy" yaml:"strategy"`
	Confidence          float64                `json:"confidence" yaml:"confidence"`
	Agreement           float64                `json:"agreement" yaml:"agreement"`
	Sources             []SourceResponse       `json:"sources" yaml:"sources"`
	Route               *RouteResponse         `json:"route,omitempty" yaml:"route,omitempty"`
	Meta                map[string]any         `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// NewThinkResponse converts a fused thought into the wire shape.
func NewThinkResponse(mode thought.ThinkingMode, fused thought.FusedThought) ThinkResponse {
	sources := make([]SourceResponse, len(fused.Sources))
	for i, src := range fused.Sources {
		sources[i] = SourceResponse{
			Backend:   src.Backend,
			Model:     src.Model,
			OK:        src.OK(),
			LatencyMs: src.LatencyMs,
			Tokens:    src.TokenCount,
			Error:     src.ErrorString(),
		}
	}
	return ThinkResponse{
		TimestampedResponse: NewTimestamped(),
		Content:             fused.Content,
		Mode:                mode.String(),
		Strategy:            fused.Strategy.String(),
		Confidence:          fused.Confidence,
		Agreement:           fused.AgreementScore,
		Sources:             sources,
		Meta:                fused.Meta,
	}
}

// RouteResponse is the output format of the route command.
type RouteResponse struct {
	Mode       string             `json:"mode" yaml:"mode"`
	Confidence float64            `json:"confidence" yaml:"confidence"`
	Signals    map[string]float64 `json:"signals" yaml:"signals"`
	Reason     string             `json:"reason" yaml:"reason"`
}

// NewRouteResponse converts a routing decision into the wire shape.
func NewRouteResponse(d thought.RouteDecision) RouteResponse {
	return RouteResponse{
		Mode:       d.Mode.String(),
		Confidence: d.Confidence,
		Signals:    d.Signals,
		Reason:     d.Reason,
	}
}

// HistoryResponse is the output format of the history command.
type HistoryResponse struct {
	TimestampedResponse `yaml:",inline"`
	Records             []thought.ThinkingRecord `json:"records" yaml:"records"`
	Count               int                      `json:"count" yaml:"count"`
}

// StatsResponse is the output format of the stats surfaces.
type StatsResponse struct {
	TimestampedResponse `yaml:",inline"`
	thought.Stats       `yaml:",inline"`
}

// StatusResponse is the output format of the status command.
type StatusResponse struct {
	TimestampedResponse `yaml:",inline"`
	thought.Status      `yaml:",inline"`
}

// EncodeJSON writes v as indented JSON.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// EncodeYAML writes v as YAML.
func EncodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return nil
}
