package thought

import (
	"os"
	"strings"
)

// credentialEnv maps each backend to the environment variable whose
// presence marks the backend as configured. Routing resolution consults
// nothing else.
var credentialEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"groq":      "GROQ_API_KEY",
	"xai":       "XAI_API_KEY",
	"ollama":    "OLLAMA_HOST",
}

// BackendConfigured reports whether the backend's credential variable is
// set and non-empty. Unknown backends are never configured.
func BackendConfigured(backend string) bool {
	env, ok := credentialEnv[backend]
	if !ok {
		return false
	}
	return strings.TrimSpace(os.Getenv(env)) != ""
}

// CredentialEnvVar returns the environment variable gating a backend,
// empty for unknown backends.
func CredentialEnvVar(backend string) string {
	return credentialEnv[backend]
}

// RoutingTable maps each thinking mode to its ordered candidate models and
// its canned system prompt. It is read-only after construction.
type RoutingTable struct {
	Models  map[ThinkingMode][]ModelRef
	Prompts map[ThinkingMode]string
}

// genericSystemPrompt is the fallback when mode prompts are disabled or a
// mode has no entry.
const genericSystemPrompt = "You are a careful, precise assistant. Answer the question directly and completely."

// DefaultRoutingTable returns the stock mode routing. Order within a mode
// is preference order; resolution preserves it.
func DefaultRoutingTable() RoutingTable {
	return RoutingTable{
		Models: map[ThinkingMode][]ModelRef{
			ModeCode: {
				{Backend: "anthropic", Model: "claude-sonnet-4-5"},
				{Backend: "openai", Model: "gpt-4o"},
				{Backend: "xai", Model: "grok-3"},
				{Backend: "ollama", Model: "qwen2.5-coder:32b"},
			},
			ModeCreative: {
				{Backend: "anthropic", Model: "claude-opus-4-1"},
				{Backend: "openai", Model: "gpt-4o"},
				{Backend: "groq", Model: "llama-3.3-70b-versatile"},
			},
			ModeDeepReasoning: {
				{Backend: "openai", Model: "o3"},
				{Backend: "anthropic", Model: "claude-opus-4-1"},
				{Backend: "xai", Model: "grok-3"},
				{Backend: "ollama", Model: "deepseek-r1:70b"},
			},
			ModeSpeed: {
				{Backend: "groq", Model: "llama-3.1-8b-instant"},
				{Backend: "openai", Model: "gpt-4o-mini"},
				{Backend: "anthropic", Model: "claude-haiku-4-5"},
			},
		},
		Prompts: map[ThinkingMode]string{
			ModeCode: "You are an expert software engineer. Read the problem carefully, " +
				"reason about edge cases, and answer with correct, idiomatic code and a " +
				"brief explanation of the non-obvious parts.",
			ModeCreative: "You are a skilled writer. Produce vivid, original prose that " +
				"serves the request; take stylistic risks where they pay off.",
			ModeDeepReasoning: "You are a rigorous analyst. Work through the problem " +
				"step by step, state your assumptions, and only then give the conclusion.",
			ModeSpeed: "Answer as directly and briefly as accuracy allows. No preamble.",
		},
	}
}

// ResolveModels filters the table's candidates for mode down to backends
// whose credentials are present, truncated to maxModels. An empty result
// is not an error; the caller decides what to do.
func (t RoutingTable) ResolveModels(mode ThinkingMode, maxModels int) []ModelRef {
	candidates := t.Models[mode]
	resolved := make([]ModelRef, 0, len(candidates))
	for _, ref := range candidates {
		if !BackendConfigured(ref.Backend) {
			continue
		}
		resolved = append(resolved, ref)
		if maxModels > 0 && len(resolved) == maxModels {
			break
		}
	}
	return resolved
}

// ResolveSystemPrompt returns the override when given, else the mode's
// canned prompt when useModePrompts is set, else the generic fallback.
func (t RoutingTable) ResolveSystemPrompt(mode ThinkingMode, override *string, useModePrompts bool) string {
	if override != nil {
		return *override
	}
	if useModePrompts {
		if p, ok := t.Prompts[mode]; ok && p != "" {
			return p
		}
	}
	return genericSystemPrompt
}
