package thought

import "testing"

func clearCredentials(t *testing.T) {
	t.Helper()
	for _, env := range credentialEnv {
		t.Setenv(env, "")
	}
}

func TestResolveModelsFiltersByCredentials(t *testing.T) {
	clearCredentials(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GROQ_API_KEY", "gsk-test")

	table := DefaultRoutingTable()
	refs := table.ResolveModels(ModeSpeed, 4)

	if len(refs) != 2 {
		t.Fatalf("resolved %d models, want 2: %v", len(refs), refs)
	}
	// Table order preserved: groq before openai for speed.
	if refs[0].Backend != "groq" || refs[1].Backend != "openai" {
		t.Errorf("order = %v, want groq then openai", refs)
	}
}

func TestResolveModelsTruncatesToMax(t *testing.T) {
	clearCredentials(t)
	t.Setenv("OPENAI_API_KEY", "x")
	t.Setenv("ANTHROPIC_API_KEY", "x")
	t.Setenv("GROQ_API_KEY", "x")

	table := DefaultRoutingTable()
	refs := table.ResolveModels(ModeSpeed, 2)
	if len(refs) != 2 {
		t.Errorf("resolved %d models, want max 2", len(refs))
	}
}

func TestResolveModelsEmptyWithoutCredentials(t *testing.T) {
	clearCredentials(t)
	table := DefaultRoutingTable()
	for _, mode := range AllModes() {
		if refs := table.ResolveModels(mode, 4); len(refs) != 0 {
			t.Errorf("mode %s resolved %v with no credentials set", mode, refs)
		}
	}
}

func TestResolveModelsUnknownMode(t *testing.T) {
	clearCredentials(t)
	t.Setenv("OPENAI_API_KEY", "x")
	table := DefaultRoutingTable()
	if refs := table.ResolveModels(ThinkingMode("bogus"), 4); len(refs) != 0 {
		t.Errorf("unknown mode resolved %v, want none", refs)
	}
}

func TestBackendConfigured(t *testing.T) {
	clearCredentials(t)
	t.Setenv("XAI_API_KEY", "  ")
	if BackendConfigured("xai") {
		t.Error("whitespace-only credential should not count as configured")
	}
	t.Setenv("XAI_API_KEY", "xai-test")
	if !BackendConfigured("xai") {
		t.Error("set credential should count as configured")
	}
	if BackendConfigured("nonexistent") {
		t.Error("unknown backend should never be configured")
	}
}

func TestResolveSystemPrompt(t *testing.T) {
	t.Parallel()
	table := DefaultRoutingTable()
	override := "custom instructions"

	if got := table.ResolveSystemPrompt(ModeCode, &override, true); got != override {
		t.Errorf("override ignored: %q", got)
	}
	if got := table.ResolveSystemPrompt(ModeCode, nil, true); got == genericSystemPrompt || got == "" {
		t.Errorf("mode prompt not used: %q", got)
	}
	if got := table.ResolveSystemPrompt(ModeCode, nil, false); got != genericSystemPrompt {
		t.Errorf("disabled mode prompts should fall back to generic, got %q", got)
	}
	if got := table.ResolveSystemPrompt(ThinkingMode("bogus"), nil, true); got != genericSystemPrompt {
		t.Errorf("unknown mode should fall back to generic, got %q", got)
	}
}

func TestParseModeAndStrategy(t *testing.T) {
	t.Parallel()
	if m, ok := ParseMode(" DEEP-REASONING "); !ok || m != ModeDeepReasoning {
		t.Errorf("ParseMode deep-reasoning = (%v, %v)", m, ok)
	}
	if _, ok := ParseMode("telepathy"); ok {
		t.Error("unknown mode should not parse")
	}
	if s, ok := ParseStrategy("best-of-n"); !ok || s != StrategyBestOfN {
		t.Errorf("ParseStrategy best-of-n = (%v, %v)", s, ok)
	}
	if s, ok := ParseStrategy("weighted"); !ok || s != StrategyWeighted {
		t.Errorf("ParseStrategy weighted = (%v, %v)", s, ok)
	}
	if _, ok := ParseStrategy("vibes"); ok {
		t.Error("unknown strategy should not parse")
	}
}
