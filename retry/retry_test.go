package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

func newTestHandler(maxRetries uint64, opts ...Option) *Handler {
	opts = append([]Option{WithInitialDelay(time.Millisecond)}, opts...)
	return NewHandler(zerolog.Nop(), maxRetries, opts...)
}

func TestDoRetriesRetryable(t *testing.T) {
	var retries []int
	h := newTestHandler(3, WithCallback(func(attempt int, _ time.Duration, _ error) {
		retries = append(retries, attempt)
	}))

	calls := 0
	err := h.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return llm.NewStatusError(llm.ProviderOpenAI, 503, "", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(retries) != 2 || retries[1] != 2 {
		t.Errorf("retries = %v", retries)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	h := newTestHandler(3)
	calls := 0
	err := h.Do(context.Background(), func(context.Context) error {
		calls++
		return llm.NewStatusError(llm.ProviderOpenAI, 401, "", nil)
	})
	if !errors.Is(err, llm.ErrAuthorization) {
		t.Errorf("error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	h := newTestHandler(2)
	calls := 0
	err := h.Do(context.Background(), func(context.Context) error {
		calls++
		return llm.NewStatusError(llm.ProviderGoogle, 429, "", nil)
	})
	if !errors.Is(err, llm.ErrRateLimit) {
		t.Errorf("error = %v, want wrapped rate limit", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoZeroRetries(t *testing.T) {
	h := newTestHandler(0)
	calls := 0
	_ = h.Do(context.Background(), func(context.Context) error {
		calls++
		return llm.NewStatusError(llm.ProviderGoogle, 500, "", nil)
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoHonoursContext(t *testing.T) {
	h := NewHandler(zerolog.Nop(), 5, WithInitialDelay(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.Do(ctx, func(context.Context) error {
		return llm.NewStatusError(llm.ProviderAnthropic, 500, "", nil)
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestCreateBackoffUsesRetryAfter(t *testing.T) {
	h := newTestHandler(1)
	b := h.CreateBackoff(10 * time.Second)
	delay := b.NextBackOff()
	if delay < 9*time.Second || delay > 11*time.Second {
		t.Errorf("first delay = %v, want about 10s", delay)
	}
}

func TestCreateBackoffBeyondElapsedBudget(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		retryAfter time.Duration
	}{
		{"retry after longer than budget", nil, 5 * time.Minute},
		{"initial delay longer than budget", []Option{WithInitialDelay(time.Hour)}, 0},
		{"custom budget", []Option{WithMaxElapsedTime(time.Second)}, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(zerolog.Nop(), 3, tt.opts...)
			if delay := h.CreateBackoff(tt.retryAfter).NextBackOff(); delay == backoff.Stop {
				t.Error("first NextBackOff() = Stop, want a delay")
			}
		})
	}
}

func TestDoWaitsOnLongRetryAfter(t *testing.T) {
	h := NewHandler(zerolog.Nop(), 2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	wait := 5 * time.Minute
	calls := 0
	err := h.Do(ctx, func(context.Context) error {
		calls++
		e := llm.NewStatusError(llm.ProviderOpenAI, 429, "", nil)
		e.RetryAfter = &wait
		return e
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
