// Package slack delivers digest messages and run reports through Slack incoming webhooks.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	slackgo "github.com/slack-go/slack"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/retry"
)

// Webhook posts Block Kit messages to one incoming-webhook URL.
type Webhook struct {
	url    string
	client *http.Client
}

var _ ports.Messenger = (*Webhook)(nil)

// NewWebhook registers the webhook target.
func NewWebhook(webhookURL string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Webhook{url: webhookURL, client: client}
}

// Send posts one message. Rate limits, 5xx responses and network failures are
// transient; any other rejection is permanent.
func (w *Webhook) Send(ctx context.Context, msg domain.Message) error {
	if err := validateURL(w.url); err != nil {
		return retry.Permanent(err)
	}

	err := slackgo.PostWebhookCustomHTTPContext(ctx, w.url, w.client, toWebhookMessage(msg))
	if err == nil {
		return nil
	}

	var rateLimited *slackgo.RateLimitedError
	if errors.As(err, &rateLimited) {
		return retry.Transient(fmt.Errorf("slack webhook rate limited (retry after %s): %w", rateLimited.RetryAfter, err))
	}
	var status slackgo.StatusCodeError
	if errors.As(err, &status) {
		if status.Code >= http.StatusInternalServerError || status.Code == http.StatusTooManyRequests {
			return retry.Transient(fmt.Errorf("slack webhook: %w", err))
		}
		return retry.Permanent(fmt.Errorf("slack webhook: %w", err))
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return retry.Transient(fmt.Errorf("slack webhook: %w", err))
	}
	return retry.Permanent(fmt.Errorf("slack webhook: %w", err))
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("slack webhook url is not configured")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid slack webhook url: %w", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("invalid slack webhook url %q", u.Redacted())
	}
	return nil
}

// toWebhookMessage maps each block onto exactly one Slack block so the
// formatter's per-message block bound carries over unchanged.
func toWebhookMessage(msg domain.Message) *slackgo.WebhookMessage {
	blocks := make([]slackgo.Block, 0, len(msg.Blocks))
	for _, b := range msg.Blocks {
		text := slackgo.NewTextBlockObject(slackgo.MarkdownType, b.Text, false, false)
		switch b.Kind {
		case domain.BlockPageLabel, domain.BlockFooter:
			blocks = append(blocks, slackgo.NewContextBlock("", text))
		default:
			blocks = append(blocks, slackgo.NewSectionBlock(text, nil, nil))
		}
	}

	fallback := ""
	if len(msg.Blocks) > 0 {
		fallback = msg.Blocks[0].Text
	}
	return &slackgo.WebhookMessage{
		Text:   fallback,
		Blocks: &slackgo.Blocks{BlockSet: blocks},
	}
}
