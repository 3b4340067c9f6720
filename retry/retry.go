// Package retry re-issues retryable provider calls with exponential backoff.
// Adapters never retry on their own; callers opt in here.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

const (
	// DefaultMaxElapsedTime is the default maximum elapsed time for backoff
	DefaultMaxElapsedTime = 2 * time.Minute
	// DefaultMaxInterval is the default maximum interval for backoff
	DefaultMaxInterval = 30 * time.Second
	// DefaultInitialDelay is the default initial delay for exponential backoff
	DefaultInitialDelay = 1 * time.Second
	// RetryAfterMultiplier is the multiplier for retry-after based backoff
	RetryAfterMultiplier = 1.5
	// RetryAfterRandomizationFactor is the randomization factor for retry-after based backoff
	RetryAfterRandomizationFactor = 0.1
	// StandardMultiplier is the multiplier for standard exponential backoff
	StandardMultiplier = 2.0
	// StandardRandomizationFactor is the randomization factor for standard exponential backoff
	StandardRandomizationFactor = 0.2
)

// Callback is called before each retry.
type Callback func(attempt int, delay time.Duration, err error)

// Handler retries operations that fail with a retryable *llm.Error.
type Handler struct {
	maxRetries     uint64
	maxElapsedTime time.Duration
	initialDelay   time.Duration
	onRetry        Callback
	logger         zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithInitialDelay sets the first delay when the provider gave no Retry-After.
func WithInitialDelay(d time.Duration) Option {
	return func(h *Handler) { h.initialDelay = d }
}

// WithMaxElapsedTime bounds the total time spent retrying.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(h *Handler) { h.maxElapsedTime = d }
}

// WithCallback registers a function called before each retry.
func WithCallback(cb Callback) Option {
	return func(h *Handler) { h.onRetry = cb }
}

// NewHandler creates a handler that retries at most maxRetries times.
func NewHandler(logger zerolog.Logger, maxRetries uint64, opts ...Option) *Handler {
	h := &Handler{
		maxRetries:     maxRetries,
		maxElapsedTime: DefaultMaxElapsedTime,
		initialDelay:   DefaultInitialDelay,
		logger:         logger.With().Str("component", "retryHandler").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateBackoff creates a backoff configuration for retries.
// If retryAfter is provided, it uses that as the initial delay, otherwise uses exponential backoff
func (h *Handler) CreateBackoff(retryAfter time.Duration) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()

	if retryAfter > 0 {
		eb.InitialInterval = retryAfter
		eb.Multiplier = RetryAfterMultiplier
		eb.RandomizationFactor = RetryAfterRandomizationFactor
	} else {
		eb.InitialInterval = h.initialDelay
		eb.Multiplier = StandardMultiplier
		eb.RandomizationFactor = StandardRandomizationFactor
	}

	eb.MaxInterval = DefaultMaxInterval
	eb.MaxElapsedTime = h.maxElapsedTime
	// A seeded delay longer than the budget must still allow one retry;
	// the context bounds the wait from there.
	if first := firstIntervalCeiling(eb); eb.MaxElapsedTime > 0 && first >= eb.MaxElapsedTime {
		eb.MaxElapsedTime = first + time.Second
	}
	eb.Reset()

	return backoff.WithMaxRetries(eb, h.maxRetries)
}

// firstIntervalCeiling is the largest delay NextBackOff can return first.
func firstIntervalCeiling(eb *backoff.ExponentialBackOff) time.Duration {
	return time.Duration(float64(eb.InitialInterval) * (1 + eb.RandomizationFactor))
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// retry budget is spent.
func (h *Handler) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var b backoff.BackOff
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil || !llm.IsRetryableError(err) {
			return err
		}

		// The first failure decides the schedule
		if b == nil {
			var retryAfter time.Duration
			if ra := llm.ExtractRetryAfter(err); ra != nil {
				retryAfter = *ra
			}
			b = h.CreateBackoff(retryAfter)
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			h.logger.Error().Uint64("max_retries", h.maxRetries).Msg("Max retries or elapsed time exceeded")
			return fmt.Errorf("max retries or elapsed time exceeded: %w", err)
		}
		if ra := llm.ExtractRetryAfter(err); ra != nil && *ra > delay {
			delay = *ra
		}

		h.logger.Warn().
			Int("attempt", attempt+1).
			Uint64("max_retries", h.maxRetries).
			Err(err).
			Dur("next_delay", delay).
			Msg("Retryable provider error. Retrying after delay")

		if h.onRetry != nil {
			h.onRetry(attempt+1, delay, err)
		}

		if err := waitForRetry(ctx, delay); err != nil {
			return err
		}
	}
}

// Generate calls adapter.GenerateChatAnswer through Do.
func (h *Handler) Generate(ctx context.Context, adapter llm.ChatAdapter, messages []llm.Message, opts ...llm.GenerateOption) (*llm.ChatResponse, error) {
	var resp *llm.ChatResponse
	err := h.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = adapter.GenerateChatAnswer(ctx, messages, opts...)
		return err
	})
	return resp, err
}

// waitForRetry waits for the specified delay, respecting context cancellation
func waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
