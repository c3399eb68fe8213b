package thought

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/gate"
)

// Fuser merges a set of independent model answers into one FusedThought.
// It is stateless apart from configuration and safe for concurrent use.
type Fuser struct {
	cfg   OrchestraConfig
	judge Completer
	log   *slog.Logger
}

// NewFuser builds a Fuser. judge may be nil, in which case every strategy
// degrades to majority selection. A nil logger falls back to slog.Default.
func NewFuser(cfg OrchestraConfig, judge Completer, log *slog.Logger) *Fuser {
	if log == nil {
		log = slog.Default()
	}
	return &Fuser{cfg: cfg, judge: judge, log: log}
}

// scoreCard is the fixed schema the judge must produce when scoring one
// response. Each dimension is rated 0-10.
type scoreCard struct {
	Accuracy     float64 `json:"accuracy" yaml:"accuracy"`
	Completeness float64 `json:"completeness" yaml:"completeness"`
	Clarity      float64 `json:"clarity" yaml:"clarity"`
	Depth        float64 `json:"depth" yaml:"depth"`
}

// total normalizes the card to [0,1].
func (s scoreCard) total() float64 {
	return (s.Accuracy + s.Completeness + s.Clarity + s.Depth) / 40.0
}

func (s scoreCard) validate() error {
	for name, v := range map[string]float64{
		"accuracy": s.Accuracy, "completeness": s.Completeness,
		"clarity": s.Clarity, "depth": s.Depth,
	} {
		if v < 0 || v > 10 {
			return fmt.Errorf("%s %g outside [0,10]", name, v)
		}
	}
	return nil
}

// neutralScore is assigned to a response whose scoring call failed; one
// bad judge round must never abort the batch.
const neutralScore = 0.5

// Fuse merges responses into a single answer using the requested strategy.
// It always returns a FusedThought; failure surfaces as confidence 0, not
// as an error. Sources always carries every input leg, failures included.
func (f *Fuser) Fuse(ctx context.Context, responses []ModelResponse, originalPrompt string, strategy FusionStrategy) FusedThought {
	valid := make([]ModelResponse, 0, len(responses))
	for _, r := range responses {
		if r.OK() {
			valid = append(valid, r)
		}
	}

	if len(valid) == 0 {
		return FusedThought{
			Content:    "all models failed to produce a response",
			Strategy:   strategy,
			Confidence: 0,
			Sources:    responses,
			Meta:       map[string]any{"failed": len(responses)},
		}
	}

	if len(valid) == 1 {
		return FusedThought{
			Content:        valid[0].Content,
			Strategy:       strategy,
			Confidence:     0.5,
			Sources:        responses,
			AgreementScore: 1.0,
			Meta: map[string]any{
				"single_source": true,
				"winner":        valid[0].ID(),
			},
		}
	}

	agreement := agreementScore(valid)
	f.log.Debug("fusing responses",
		"valid", len(valid),
		"failed", len(responses)-len(valid),
		"agreement", agreement,
		"strategy", strategy)

	// Near-identical answers never need a judge: take the fastest.
	if agreement > f.cfg.NearIdenticalThreshold {
		fastest := valid[0]
		for _, r := range valid[1:] {
			if r.LatencyMs < fastest.LatencyMs {
				fastest = r
			}
		}
		return FusedThought{
			Content:        fastest.Content,
			Strategy:       StrategyMajority,
			Confidence:     capAt1(agreement + 0.05),
			Sources:        responses,
			AgreementScore: agreement,
			Meta: map[string]any{
				"short_circuit": true,
				"winner":        fastest.ID(),
			},
		}
	}

	if agreement > f.cfg.HighAgreementThreshold || strategy == StrategyMajority || f.judge == nil {
		return f.fuseMajority(valid, responses, agreement, nil)
	}

	switch strategy {
	case StrategySynthesis:
		return f.fuseSynthesis(ctx, valid, responses, originalPrompt, agreement)
	case StrategyBestOfN:
		return f.fuseBestOfN(ctx, valid, responses, originalPrompt, agreement)
	case StrategyWeighted:
		return f.fuseWeighted(ctx, valid, responses, originalPrompt, agreement)
	default:
		return f.fuseMajority(valid, responses, agreement, nil)
	}
}

// fuseMajority selects the response closest to the group consensus using a
// composite of token overlap, answer length, and speed. Ties keep the
// earliest candidate in routing order.
func (f *Fuser) fuseMajority(valid, all []ModelResponse, agreement float64, extraMeta map[string]any) FusedThought {
	means := pairwiseMeans(valid)
	var maxLatency float64
	for _, r := range valid {
		if r.LatencyMs > maxLatency {
			maxLatency = r.LatencyMs
		}
	}

	scores := make(map[string]float64, len(valid))
	best := 0
	bestScore := -1.0
	for i, r := range valid {
		lengthScore := float64(len(r.Content)) / 2000.0
		if lengthScore > 1.0 {
			lengthScore = 1.0
		}
		speedScore := 1.0
		if maxLatency > 0 {
			speedScore = 1.0 - r.LatencyMs/maxLatency
		}
		score := 0.6*means[i] + 0.2*lengthScore + 0.2*speedScore
		scores[r.ID()] = score
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	meta := map[string]any{
		"winner": valid[best].ID(),
		"scores": scores,
	}
	for k, v := range extraMeta {
		meta[k] = v
	}
	return FusedThought{
		Content:        valid[best].Content,
		Strategy:       StrategyMajority,
		Confidence:     capAt1(agreement + 0.2),
		Sources:        all,
		AgreementScore: agreement,
		Meta:           meta,
	}
}

// fuseSynthesis asks the judge for one answer combining the strongest
// parts of every response. Judge failure falls back to majority selection.
func (f *Fuser) fuseSynthesis(ctx context.Context, valid, all []ModelResponse, prompt string, agreement float64) FusedThought {
	judgePrompt := buildSynthesisPrompt(prompt, valid, nil)
	answer, ok := f.CallJudge(ctx, judgePrompt, synthesisSystemPrompt)
	if !ok {
		f.log.Warn("judge unavailable for synthesis, selecting by majority")
		return f.fuseMajority(valid, all, agreement, map[string]any{"fallback_from": string(StrategySynthesis)})
	}
	return FusedThought{
		Content:        answer,
		Strategy:       StrategySynthesis,
		Confidence:     capAt1(agreement + 0.3),
		Sources:        all,
		AgreementScore: agreement,
		Meta: map[string]any{
			"judge":       f.cfg.JudgeBackend + "/" + f.cfg.JudgeModel,
			"synthesized": len(valid),
		},
	}
}

// fuseBestOfN scores every response with the judge in parallel and returns
// the highest-scoring one verbatim.
func (f *Fuser) fuseBestOfN(ctx context.Context, valid, all []ModelResponse, prompt string, agreement float64) FusedThought {
	scores := f.scoreResponses(ctx, prompt, valid)

	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}

	byID := make(map[string]float64, len(valid))
	for i, r := range valid {
		byID[r.ID()] = scores[i]
	}
	return FusedThought{
		Content:        valid[best].Content,
		Strategy:       StrategyBestOfN,
		Confidence:     scores[best],
		Sources:        all,
		AgreementScore: agreement,
		Meta: map[string]any{
			"winner": valid[best].ID(),
			"scores": byID,
			"judge":  f.cfg.JudgeBackend + "/" + f.cfg.JudgeModel,
		},
	}
}

// fuseWeighted scores every response, then synthesizes with the judge
// weighting toward the higher-scored answers. Judge failure falls back to
// the highest-scored raw response.
func (f *Fuser) fuseWeighted(ctx context.Context, valid, all []ModelResponse, prompt string, agreement float64) FusedThought {
	scores := f.scoreResponses(ctx, prompt, valid)

	judgePrompt := buildSynthesisPrompt(prompt, valid, scores)
	answer, ok := f.CallJudge(ctx, judgePrompt, weightedSystemPrompt)

	byID := make(map[string]float64, len(valid))
	var sum float64
	for i, r := range valid {
		byID[r.ID()] = scores[i]
		sum += scores[i]
	}
	avg := sum / float64(len(scores))

	if !ok {
		f.log.Warn("judge unavailable for weighted synthesis, returning top-scored response")
		best := 0
		for i, s := range scores {
			if s > scores[best] {
				best = i
			}
		}
		return FusedThought{
			Content:        valid[best].Content,
			Strategy:       StrategyBestOfN,
			Confidence:     scores[best],
			Sources:        all,
			AgreementScore: agreement,
			Meta: map[string]any{
				"winner":        valid[best].ID(),
				"scores":        byID,
				"fallback_from": string(StrategyWeighted),
			},
		}
	}

	return FusedThought{
		Content:        answer,
		Strategy:       StrategyWeighted,
		Confidence:     capAt1(avg + 0.2),
		Sources:        all,
		AgreementScore: agreement,
		Meta: map[string]any{
			"scores": byID,
			"judge":  f.cfg.JudgeBackend + "/" + f.cfg.JudgeModel,
		},
	}
}

// scoreResponses rates every response concurrently through the validation
// gate. A failed scoring round degrades that response to the neutral score
// instead of aborting the batch. Result order matches input order.
func (f *Fuser) scoreResponses(ctx context.Context, prompt string, valid []ModelResponse) []float64 {
	scores := make([]float64, len(valid))
	var wg sync.WaitGroup
	for i, r := range valid {
		wg.Add(1)
		go func(i int, r ModelResponse) {
			defer wg.Done()
			scores[i] = f.scoreOne(ctx, prompt, r)
		}(i, r)
	}
	wg.Wait()
	return scores
}

func (f *Fuser) scoreOne(ctx context.Context, prompt string, r ModelResponse) float64 {
	generate := func(ctx context.Context) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.JudgeTimeout)
		defer cancel()
		return f.judge.Complete(attemptCtx, buildScorePrompt(prompt, r), scoreSystemPrompt, 0.0, 512)
	}
	card, err := gate.Enforce(ctx, generate, scoreCard.validate, f.cfg.JudgeMaxRetries)
	if err != nil {
		f.log.Debug("scoring failed, using neutral score", "model", r.ID(), "error", err)
		return neutralScore
	}
	return card.total()
}

const synthesisSystemPrompt = "You are an expert editor merging multiple AI answers into one. " +
	"Produce a single superior answer. Output only the answer, no commentary about the merge."

const weightedSystemPrompt = "You are an expert editor merging multiple scored AI answers into one. " +
	"Weight your synthesis toward the higher-scored answers, but extract any valid insight the " +
	"lower-scored ones add. Output only the answer, no commentary about the merge."

const scoreSystemPrompt = "You are a strict evaluator. Respond with only a JSON object with numeric " +
	`fields "accuracy", "completeness", "clarity", and "depth", each 0-10. No other text.`

// buildSynthesisPrompt enumerates every response labeled by backend and
// latency. When scores is non-nil each response carries its judge score.
func buildSynthesisPrompt(original string, valid []ModelResponse, scores []float64) string {
	var b strings.Builder
	b.WriteString("Original question:\n")
	b.WriteString(original)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%d independent answers follow. Combine their strongest parts and resolve contradictions into one superior answer.\n", len(valid))
	for i, r := range valid {
		fmt.Fprintf(&b, "\n--- Answer %d (%s, %.0fms", i+1, r.ID(), r.LatencyMs)
		if scores != nil {
			fmt.Fprintf(&b, ", score %.2f", scores[i])
		}
		b.WriteString(") ---\n")
		b.WriteString(r.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// buildScorePrompt asks the judge to rate one response on the fixed
// four-dimension card.
func buildScorePrompt(original string, r ModelResponse) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(original)
	b.WriteString("\n\nCandidate answer:\n")
	b.WriteString(r.Content)
	b.WriteString("\n\nRate the candidate answer for accuracy, completeness, clarity, and depth, each 0-10.")
	return b.String()
}

func capAt1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
