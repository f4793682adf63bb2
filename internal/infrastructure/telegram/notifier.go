package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PaperDigest/internal/digest"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/retry"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends run outcomes to a Telegram chat via bot API.
type Notifier struct {
	botToken      string
	chatID        string
	apiBase       string
	reportSuccess bool
	location      *time.Location
	client        *http.Client
}

var _ ports.OutcomeReporter = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string, reportSuccess bool, loc *time.Location) *Notifier {
	return &Notifier{
		botToken:      botToken,
		chatID:        chatID,
		apiBase:       defaultAPIBase,
		reportSuccess: reportSuccess,
		location:      loc,
		client:        &http.Client{Timeout: 5 * time.Second},
	}
}

// Report posts failed runs, and successful ones when configured, as plain text.
func (n *Notifier) Report(ctx context.Context, outcome domain.RunOutcome) error {
	if !outcome.Aborted() && !n.reportSuccess {
		return nil
	}
	text := strings.ReplaceAll(digest.OutcomeText(outcome, n.location), "*", "")
	return n.send(ctx, text)
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return retry.Permanent(fmt.Errorf("telegram notifier misconfigured"))
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimSuffix(n.apiBase, "/"), n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		// The bot token is part of the URL; keep it out of logs.
		return retry.Transient(fmt.Errorf("telegram request failed: %s", redact(err.Error(), n.botToken)))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("telegram error: %s: %s", resp.Status, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return retry.Transient(err)
		}
		return retry.Permanent(err)
	}

	return nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "<redacted>")
}
