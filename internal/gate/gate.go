// Package gate forces free-form model output into a typed shape: it calls
// a generator, extracts the structured payload from whatever prose or
// fencing surrounds it, unmarshals and validates it, and retries the whole
// loop on failure. Callers get a value or a typed *ValidationError, never
// a partially-parsed result.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationError reports that every attempt to obtain schema-valid output
// failed. LastOutput preserves the final raw generation for diagnostics.
type ValidationError struct {
	Attempts   int
	LastOutput string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("output failed validation after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Enforce repeatedly calls generate until its output parses into T and
// passes validate, up to maxRetries+1 attempts. validate may be nil when
// parsing alone is the contract. Context cancellation between attempts
// aborts early with the context error wrapped in the ValidationError.
func Enforce[T any](ctx context.Context, generate func(context.Context) (string, error), validate func(T) error, maxRetries int) (T, error) {
	var zero T
	var lastOut string
	var lastErr error

	attempts := maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, &ValidationError{Attempts: attempt, LastOutput: lastOut, Err: err}
		}
		out, err := generate(ctx)
		if err != nil {
			lastOut, lastErr = out, fmt.Errorf("generate: %w", err)
			continue
		}
		lastOut = out

		var v T
		if err := Unmarshal(out, &v); err != nil {
			lastErr = err
			continue
		}
		if validate != nil {
			if err := validate(v); err != nil {
				lastErr = fmt.Errorf("validate: %w", err)
				continue
			}
		}
		return v, nil
	}
	return zero, &ValidationError{Attempts: attempts, LastOutput: lastOut, Err: lastErr}
}

// Unmarshal extracts the structured payload from raw model output and
// decodes it into v. JSON is tried first, then YAML, on the extracted
// block and then on the raw text.
func Unmarshal(raw string, v any) error {
	candidates := []string{ExtractBlock(raw)}
	if candidates[0] != strings.TrimSpace(raw) {
		candidates = append(candidates, strings.TrimSpace(raw))
	}
	var lastErr error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if err := yaml.Unmarshal([]byte(c), v); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("empty output")
	}
	return fmt.Errorf("parse output: %w", lastErr)
}

// ExtractBlock pulls the payload out of model output: the body of the
// first fenced code block when one exists, else the substring from the
// first '{' to the last '}', else the trimmed text.
func ExtractBlock(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if start := strings.Index(trimmed, "```"); start != -1 {
		rest := trimmed[start+3:]
		// Drop the language tag on the opening fence line.
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			tag := strings.TrimSpace(rest[:nl])
			if len(tag) <= 10 && !strings.ContainsAny(tag, "{}:") {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	}

	if open := strings.IndexByte(trimmed, '{'); open != -1 {
		if close := strings.LastIndexByte(trimmed, '}'); close > open {
			return strings.TrimSpace(trimmed[open : close+1])
		}
	}
	return trimmed
}
