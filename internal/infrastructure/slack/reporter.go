package slack

import (
	"context"
	"time"

	"PaperDigest/internal/digest"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// Reporter posts run outcomes to the error-notification webhook.
type Reporter struct {
	messenger     ports.Messenger
	reportSuccess bool
	location      *time.Location
}

var _ ports.OutcomeReporter = (*Reporter)(nil)

// NewReporter posts failures always and successful runs only when reportSuccess is set.
func NewReporter(messenger ports.Messenger, reportSuccess bool, loc *time.Location) *Reporter {
	return &Reporter{messenger: messenger, reportSuccess: reportSuccess, location: loc}
}

// Report sends one message describing the outcome.
func (r *Reporter) Report(ctx context.Context, outcome domain.RunOutcome) error {
	if !outcome.Aborted() && !r.reportSuccess {
		return nil
	}
	msg := domain.Message{Blocks: []domain.Block{{
		Kind: domain.BlockNotice,
		Text: digest.OutcomeText(outcome, r.location),
	}}}
	return r.messenger.Send(ctx, msg)
}
