package ports

import (
	"context"
	"time"

	"PaperDigest/internal/domain"
)

// FetchRequest bounds a feed query.
type FetchRequest struct {
	DaysBack   int
	MaxResults int
	Now        time.Time
}

// FeedClient pulls recently published papers from the preprint feed.
type FeedClient interface {
	Fetch(ctx context.Context, req FetchRequest) ([]domain.Paper, error)
}

// CompletionRequest is a single prompt sent to a language model.
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Completer sends prompts to language-model APIs (OpenAI, Anthropic).
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Messenger delivers one formatted message to the team channel.
type Messenger interface {
	Send(ctx context.Context, msg domain.Message) error
}

// OutcomeReporter streams run outcomes to the error-notification channel.
type OutcomeReporter interface {
	Report(ctx context.Context, outcome domain.RunOutcome) error
}

// MetricsSink records run metrics.
type MetricsSink interface {
	Observe(ctx context.Context, outcome domain.RunOutcome) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
