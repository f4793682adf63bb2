// Package publisher delivers formatted messages to the team channel in order.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/retry"
)

// DefaultInterval is the minimum gap between two sends (Slack webhooks allow ~1 msg/s).
const DefaultInterval = time.Second

// Config controls pacing and retries.
type Config struct {
	// Interval between sends; zero or negative disables pacing.
	Interval time.Duration
	Retry    retry.Policy
}

// DefaultConfig returns one message per second with the shared retry policy.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Retry:    retry.DefaultPolicy(),
	}
}

// Result counts delivered messages.
type Result struct {
	Sent  int
	Total int
}

// Complete reports whether every message was delivered.
func (r Result) Complete() bool {
	return r.Sent == r.Total
}

// Publisher sends messages one at a time through a Messenger.
type Publisher struct {
	messenger ports.Messenger
	limiter   *rate.Limiter
	policy    retry.Policy
	logger    *slog.Logger
}

// New wires a messenger with pacing and retry.
func New(messenger ports.Messenger, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	return &Publisher{
		messenger: messenger,
		limiter:   rate.NewLimiter(limit, 1),
		policy:    cfg.Retry,
		logger:    logger,
	}
}

// Publish sends messages strictly in order. It stops at the first message that
// cannot be delivered, so a later message is never sent ahead of an earlier
// one, and returns a PublishFailed error with the count already delivered.
func (p *Publisher) Publish(ctx context.Context, messages []domain.Message) (Result, error) {
	result := Result{Total: len(messages)}

	for i, msg := range messages {
		if err := p.limiter.Wait(ctx); err != nil {
			return result, domain.NewError(domain.KindPublishFailed, "",
				fmt.Errorf("message %d/%d: wait for send slot: %w", i+1, len(messages), err))
		}

		policy := p.policy
		policy.OnRetry = func(attempt int, err error, wait time.Duration) {
			p.logger.Warn("send failed, retrying",
				"message", i+1,
				"total", len(messages),
				"attempt", attempt,
				"backoff", wait,
				"kind", domain.KindPublishTransient,
				"error", err)
		}

		attempts, err := policy.Do(ctx, func(ctx context.Context) error {
			return p.messenger.Send(ctx, msg)
		})
		if err != nil {
			p.logger.Error("message not delivered",
				"message", i+1,
				"total", len(messages),
				"attempts", attempts,
				"sent", result.Sent,
				"error", err)
			return result, domain.NewError(domain.KindPublishFailed, "",
				fmt.Errorf("message %d/%d after %d attempt(s): %w", i+1, len(messages), attempts, err))
		}

		result.Sent++
		p.logger.Debug("message delivered", "message", i+1, "total", len(messages), "blocks", len(msg.Blocks))
	}

	return result, nil
}
