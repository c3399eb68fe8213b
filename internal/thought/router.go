package thought

import (
	"fmt"
	"regexp"
	"strings"
)

// Classification thresholds. Code is checked first: code-bearing prompts
// otherwise false-positive on reasoning keywords ("why does this fail").
const (
	codeThreshold      = 0.3
	creativeThreshold  = 0.25
	reasoningThreshold = 0.2
	speedThreshold     = 0.5
)

// Per-signal scoring weights.
const (
	codeKeywordWeight = 0.15
	fileExtWeight     = 0.3
	fencedBlockWeight = 0.4
	syntaxWeight      = 0.2
)

var codeKeywords = []string{
	"fix", "bug", "error", "debug", "function", "class", "code",
	"compile", "implement", "refactor", "api", "test", "exception",
	"stacktrace", "regex", "syntax",
}

var creativeKeywords = []string{
	"story", "poem", "write", "imagine", "creative", "character",
	"plot", "song", "fiction", "brainstorm", "metaphor", "lyrics",
	"narrative", "haiku",
}

var reasoningKeywords = []string{
	"why", "analyze", "explain", "compare", "evaluate", "reason",
	"implications", "tradeoff", "tradeoffs", "prove", "derive",
	"philosophy", "ethics", "argue", "justify", "critique",
}

var (
	fileExtRe  = regexp.MustCompile(`\.[a-zA-Z][a-zA-Z0-9]{0,3}\b`)
	directQxRe = regexp.MustCompile(`(?i)^\s*(what|who|when|where|which|is|are|was|were|does|do|did|can|will|define|how (many|much))\b`)
)

// Substrings that mark program text regardless of keyword hits.
var syntaxMarkers = []string{"def ", "class ", "func ", "=>", "() ->", "#include", "import ", "};"}

// Classify maps a raw prompt to a thinking mode with a confidence score.
// Pure heuristic: no I/O, no model calls, O(n) in prompt length.
func Classify(prompt string) RouteDecision {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return RouteDecision{
			Mode:       ModeSpeed,
			Confidence: 0.5,
			Signals:    map[string]float64{"code": 0, "creative": 0, "reasoning": 0, "speed": 0},
			Reason:     "empty prompt",
		}
	}

	lower := strings.ToLower(trimmed)
	words := tokenSet(trimmed)
	wordCount := len(strings.Fields(trimmed))

	signals := map[string]float64{
		"code":      scoreCode(lower, words),
		"creative":  scoreKeywords(words, creativeKeywords, wordCount),
		"reasoning": scoreReasoning(trimmed, words, wordCount),
		"speed":     scoreSpeed(trimmed, wordCount),
	}

	code, creative, reasoning, speed := signals["code"], signals["creative"], signals["reasoning"], signals["speed"]

	switch {
	case code >= codeThreshold && code >= creative && code >= reasoning:
		return decision(ModeCode, code, signals, "code signals dominate")
	case creative >= creativeThreshold && creative > reasoning:
		return decision(ModeCreative, creative, signals, "creative signals dominate")
	case reasoning >= reasoningThreshold:
		return decision(ModeDeepReasoning, reasoning, signals, "reasoning signals dominate")
	case speed >= speedThreshold:
		return decision(ModeSpeed, speed, signals, "short direct question")
	default:
		return RouteDecision{
			Mode:       ModeDeepReasoning,
			Confidence: 0.5,
			Signals:    signals,
			Reason:     "no dominant signal",
		}
	}
}

func decision(mode ThinkingMode, score float64, signals map[string]float64, reason string) RouteDecision {
	conf := 0.5 + score
	if conf > 1.0 {
		conf = 1.0
	}
	return RouteDecision{
		Mode:       mode,
		Confidence: conf,
		Signals:    signals,
		Reason:     fmt.Sprintf("%s (score %.2f)", reason, score),
	}
}

func scoreCode(lower string, words map[string]struct{}) float64 {
	var score float64
	for _, kw := range codeKeywords {
		if _, ok := words[kw]; ok {
			score += codeKeywordWeight
		}
	}
	if fileExtRe.MatchString(lower) {
		score += fileExtWeight
	}
	if strings.Contains(lower, "```") {
		score += fencedBlockWeight
	}
	for _, marker := range syntaxMarkers {
		if strings.Contains(lower, marker) {
			score += syntaxWeight
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func scoreKeywords(words map[string]struct{}, keywords []string, wordCount int) float64 {
	hits := 0
	for _, kw := range keywords {
		if _, ok := words[kw]; ok {
			hits++
		}
	}
	if hits == 0 || wordCount == 0 {
		return 0
	}
	score := float64(hits) * 3.0 / float64(wordCount)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func scoreReasoning(prompt string, words map[string]struct{}, wordCount int) float64 {
	score := scoreKeywords(words, reasoningKeywords, wordCount)
	bonus := float64(len(prompt)) / 5000.0
	if bonus > 0.2 {
		bonus = 0.2
	}
	score += bonus
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func scoreSpeed(prompt string, wordCount int) float64 {
	short := wordCount <= 8
	direct := directQxRe.MatchString(prompt)
	switch {
	case short && direct:
		return 0.8
	case short:
		return 0.4
	case direct:
		return 0.3
	default:
		return 0
	}
}
