package thought

import (
	"context"
	"time"
)

// Completer is the slice of a provider the engine needs: one blocking,
// concurrency-safe completion call. Transport failures come back as
// errors, never panics.
type Completer interface {
	Complete(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (string, error)
}

// CallJudge runs one judge completion under a bounded retry and timeout
// budget: at most maxRetries+1 attempts, each capped by timeout, with
// exponential backoff (backoffBase * 2^attempt) between attempts. A nil
// judge returns immediately. Total failure is signaled only through the
// boolean so every fusion strategy keeps a pure fallback path.
func (f *Fuser) CallJudge(ctx context.Context, prompt, system string) (string, bool) {
	if f.judge == nil {
		return "", false
	}
	attempts := f.cfg.JudgeMaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.JudgeTimeout)
		answer, err := f.judge.Complete(attemptCtx, prompt, system, f.cfg.Temperature, f.cfg.MaxTokens)
		cancel()
		if err == nil {
			return answer, true
		}
		f.log.Debug("judge attempt failed",
			"attempt", attempt+1,
			"max_attempts", attempts,
			"error", err)
		if attempt == attempts-1 {
			break
		}
		backoff := f.cfg.JudgeBackoffBase * (1 << attempt)
		if !sleepCtx(ctx, backoff) {
			break
		}
	}
	return "", false
}

// sleepCtx sleeps for d unless ctx is cancelled first. Reports whether the
// full sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
