// Package summarizer turns ranked papers into structured summaries via a language model.
//
// Every paper is summarized independently: a failure is recorded on that
// paper's result and never aborts the batch. Transient failures (timeouts,
// rate limits, 5xx) are retried with the shared backoff policy; everything
// else fails the paper immediately.
package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/retry"
)

// ErrMalformedResponse is returned when the model answers with no text at all.
var ErrMalformedResponse = errors.New("language model returned an empty response")

// Config controls prompting, output bounds and the worker pool.
type Config struct {
	Language        string
	MaxSectionChars int
	MaxTokens       int
	Concurrency     int
	CallTimeout     time.Duration
	Retry           retry.Policy
}

// DefaultConfig mirrors the defaults documented in the configuration file.
func DefaultConfig() Config {
	return Config{
		Language:        "English",
		MaxSectionChars: 400,
		MaxTokens:       1000,
		Concurrency:     3,
		CallTimeout:     60 * time.Second,
		Retry:           retry.DefaultPolicy(),
	}
}

// Summarizer calls the language model once per paper.
type Summarizer struct {
	completer ports.Completer
	cfg       Config
	logger    *slog.Logger
}

// New wires a completer; zero config fields fall back to DefaultConfig.
func New(completer ports.Completer, cfg Config, logger *slog.Logger) *Summarizer {
	def := DefaultConfig()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.MaxSectionChars <= 0 {
		cfg.MaxSectionChars = def.MaxSectionChars
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{completer: completer, cfg: cfg, logger: logger}
}

// Summarize produces a summary or a summary error for one paper. It never returns an error.
func (s *Summarizer) Summarize(ctx context.Context, paper domain.ScoredPaper) domain.SummarizedPaper {
	result := domain.SummarizedPaper{ScoredPaper: paper}

	prompt, err := buildPrompt(paper.Paper, s.cfg.Language, s.cfg.MaxSectionChars)
	if err != nil {
		result.Err = &domain.SummaryError{Kind: domain.KindSummaryFatal, Message: err.Error()}
		return result
	}
	req := ports.CompletionRequest{
		System:    systemPrompt,
		Prompt:    prompt,
		MaxTokens: s.cfg.MaxTokens,
	}

	policy := s.cfg.Retry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		s.logger.Warn("summary attempt failed, retrying",
			"paper_id", paper.Paper.ID,
			"attempt", attempt,
			"backoff", wait,
			"error", err)
	}

	var text string
	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if s.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
			defer cancel()
		}

		out, err := s.completer.Complete(callCtx, req)
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return ErrMalformedResponse
		}
		text = out
		return nil
	})
	if err != nil {
		kind := domain.KindSummaryFatal
		if retry.IsTransient(err) {
			kind = domain.KindSummaryTransient
		}
		s.logger.Warn("summary failed",
			"paper_id", paper.Paper.ID,
			"kind", kind,
			"attempts", attempts,
			"error", err)
		result.Err = &domain.SummaryError{Kind: kind, Message: err.Error(), Attempts: attempts}
		return result
	}

	summary := parseSummary(text, s.cfg.MaxSectionChars)
	if summary.Empty() {
		s.logger.Debug("summary response had no labeled sections", "paper_id", paper.Paper.ID)
	}
	result.Summary = &summary
	return result
}

// SummarizeAll summarizes papers on a bounded pool. The result has one entry per
// input, in input order, whatever order the calls complete in.
func (s *Summarizer) SummarizeAll(ctx context.Context, papers []domain.ScoredPaper) []domain.SummarizedPaper {
	results := make([]domain.SummarizedPaper, len(papers))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, paper := range papers {
		i, paper := i, paper
		g.Go(func() error {
			results[i] = s.Summarize(ctx, paper)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
