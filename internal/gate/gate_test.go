package gate

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type score struct {
	Accuracy float64 `json:"accuracy" yaml:"accuracy"`
	Clarity  float64 `json:"clarity" yaml:"clarity"`
}

func validScore(s score) error {
	if s.Accuracy < 0 || s.Accuracy > 10 || s.Clarity < 0 || s.Clarity > 10 {
		return fmt.Errorf("score out of range: %+v", s)
	}
	return nil
}

func TestEnforceFirstAttempt(t *testing.T) {
	t.Parallel()
	calls := 0
	got, err := Enforce(context.Background(), func(context.Context) (string, error) {
		calls++
		return `{"accuracy": 8, "clarity": 9}`, nil
	}, validScore, 2)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if got.Accuracy != 8 || got.Clarity != 9 {
		t.Errorf("got %+v", got)
	}
	if calls != 1 {
		t.Errorf("generate ran %d times, want 1", calls)
	}
}

func TestEnforceRetriesOnInvalidOutput(t *testing.T) {
	t.Parallel()
	calls := 0
	got, err := Enforce(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "I think the answer deserves top marks!", nil
		}
		return `{"accuracy": 7, "clarity": 7}`, nil
	}, validScore, 2)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if got.Accuracy != 7 {
		t.Errorf("got %+v", got)
	}
	if calls != 3 {
		t.Errorf("generate ran %d times, want 3", calls)
	}
}

func TestEnforceExhaustionReturnsTypedError(t *testing.T) {
	t.Parallel()
	calls := 0
	_, err := Enforce(context.Background(), func(context.Context) (string, error) {
		calls++
		return `{"accuracy": 99, "clarity": 99}`, nil
	}, validScore, 2)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if verr.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", verr.Attempts)
	}
	if verr.LastOutput == "" {
		t.Error("expected last raw output preserved")
	}
	if calls != 3 {
		t.Errorf("generate ran %d times, want exactly maxRetries+1 = 3", calls)
	}
}

func TestEnforceGenerateErrorCountsAsAttempt(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	calls := 0
	_, err := Enforce(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", boom
	}, validScore, 1)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if !errors.Is(err, boom) {
		t.Error("generate error should be wrapped in the validation error")
	}
	if calls != 2 {
		t.Errorf("generate ran %d times, want 2", calls)
	}
}

func TestEnforceCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Enforce(ctx, func(context.Context) (string, error) {
		t.Fatal("generate must not run under a cancelled context")
		return "", nil
	}, validScore, 3)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestExtractBlock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"fenced json", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced no tag", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced yaml", "```yaml\naccuracy: 5\n```", "accuracy: 5"},
		{"prose around object", `Sure! Here it is: {"a": 1} hope that helps`, `{"a": 1}`},
		{"plain text", "just words", "just words"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractBlock(tt.in); got != tt.want {
				t.Errorf("ExtractBlock(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUnmarshalYAMLFallback(t *testing.T) {
	t.Parallel()
	var s score
	if err := Unmarshal("accuracy: 6\nclarity: 7\n", &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s.Accuracy != 6 || s.Clarity != 7 {
		t.Errorf("got %+v", s)
	}
}
