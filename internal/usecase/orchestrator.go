package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"PaperDigest/internal/digest"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/publisher"
	"PaperDigest/internal/ranking"
	"PaperDigest/internal/relevance"
	"PaperDigest/internal/retry"
	"PaperDigest/internal/summarizer"
	"PaperDigest/internal/trends"
)

// Policy decides what a run does when there is nothing to publish.
type Policy string

const (
	// PolicyAbort ends the run in Aborted without publishing.
	PolicyAbort Policy = "abort"
	// PolicyNotice publishes a short notice and ends the run in Done.
	PolicyNotice Policy = "notice"
)

const reportTimeout = 30 * time.Second

// Settings are the run parameters injected from configuration.
type Settings struct {
	DaysBack   int
	MaxResults int
	TopN       int
	Keywords   []domain.Keyword
	MinScore   float64

	Trends     bool
	TrendLimit int

	NoPapers    Policy
	EmptyDigest Policy

	// FeedRetry applies to FeedUnavailable only; MaxAttempts 1 disables it.
	FeedRetry retry.Policy
}

// Deps wires all driven adapters into the orchestrator.
type Deps struct {
	Feed       ports.FeedClient
	Summarizer *summarizer.Summarizer
	Formatter  *digest.Formatter
	Publisher  *publisher.Publisher
	Reporter   ports.OutcomeReporter
	Metrics    ports.MetricsSink
	Logger     *slog.Logger
	Now        func() time.Time
}

// Orchestrator runs the fetch, filter, rank, summarize, format and publish stages once per call.
type Orchestrator struct {
	settings   Settings
	feed       ports.FeedClient
	summarizer *summarizer.Summarizer
	formatter  *digest.Formatter
	publisher  *publisher.Publisher
	reporter   ports.OutcomeReporter
	metrics    ports.MetricsSink
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(settings Settings, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if settings.NoPapers == "" {
		settings.NoPapers = PolicyAbort
	}
	if settings.EmptyDigest == "" {
		settings.EmptyDigest = PolicyAbort
	}
	if settings.FeedRetry.MaxAttempts <= 0 {
		settings.FeedRetry.MaxAttempts = 1
	}
	return &Orchestrator{
		settings:   settings,
		feed:       deps.Feed,
		summarizer: deps.Summarizer,
		formatter:  deps.Formatter,
		publisher:  deps.Publisher,
		reporter:   deps.Reporter,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
	}
}

// Run executes one digest run and reports its outcome. It never panics on
// adapter errors; every failure ends in an Aborted outcome.
func (o *Orchestrator) Run(ctx context.Context) domain.RunOutcome {
	out := domain.RunOutcome{
		RunID:     uuid.NewString(),
		State:     domain.StageFetching,
		Publish:   domain.PublishNotAttempted,
		StartedAt: o.now(),
	}
	log := o.logger.With("run_id", out.RunID)
	log.Info("run started", "days_back", o.settings.DaysBack, "max_results", o.settings.MaxResults, "top_n", o.settings.TopN)

	o.execute(ctx, &out, log)

	out.FinishedAt = o.now()
	o.finish(ctx, out, log)
	return out
}

func (o *Orchestrator) execute(ctx context.Context, out *domain.RunOutcome, log *slog.Logger) {
	papers, err := o.fetch(ctx, log)
	if err != nil {
		kind := domain.KindOf(err)
		if kind == "" {
			kind = domain.KindFeedUnavailable
		}
		abort(out, domain.StageFetching, kind, err)
		return
	}
	out.Fetched = len(papers)
	log.Info("stage complete", "stage", domain.StageFetching, "papers", out.Fetched)
	if len(papers) == 0 {
		o.nothingToPublish(ctx, out, log, domain.StageFetching, domain.KindNoPapersFound, o.settings.NoPapers)
		return
	}

	out.State = domain.StageFiltering
	scored := relevance.Filter(papers, o.settings.Keywords, o.settings.MinScore)
	out.Filtered = len(scored)
	log.Info("stage complete", "stage", domain.StageFiltering, "papers", out.Filtered)

	out.State = domain.StageRanking
	ranked := ranking.Rank(scored, o.settings.TopN)
	out.Ranked = len(ranked)
	log.Info("stage complete", "stage", domain.StageRanking, "papers", out.Ranked)
	if len(ranked) == 0 {
		o.nothingToPublish(ctx, out, log, domain.StageFiltering, domain.KindEmptyDigest, o.settings.EmptyDigest)
		return
	}

	out.State = domain.StageSummarizing
	summarized := o.summarizer.SummarizeAll(ctx, ranked)
	for _, p := range summarized {
		if p.OK() {
			out.SummarizedOK++
		} else {
			out.SummarizedFailed++
		}
	}
	log.Info("stage complete", "stage", domain.StageSummarizing, "ok", out.SummarizedOK, "failed", out.SummarizedFailed)
	if out.SummarizedOK == 0 {
		abort(out, domain.StageSummarizing, domain.KindAllSummariesFailed,
			fmt.Errorf("all %d summaries failed", len(summarized)))
		return
	}

	out.State = domain.StageFormatting
	d := domain.Digest{
		Papers:      summarized,
		GeneratedAt: out.StartedAt,
		Window:      o.settings.DaysBack,
	}
	if o.settings.Trends {
		report := trends.Analyze(papers, o.settings.Keywords, o.settings.TrendLimit)
		d.Trends = &report
	}
	messages := o.formatter.Format(d)
	log.Info("stage complete", "stage", domain.StageFormatting, "messages", len(messages))

	o.publish(ctx, out, log, messages)
}

func (o *Orchestrator) fetch(ctx context.Context, log *slog.Logger) ([]domain.Paper, error) {
	req := ports.FetchRequest{
		DaysBack:   o.settings.DaysBack,
		MaxResults: o.settings.MaxResults,
		Now:        o.now(),
	}

	policy := o.settings.FeedRetry
	policy.Retryable = func(err error) bool {
		return domain.KindOf(err) == domain.KindFeedUnavailable
	}
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn("feed unavailable, retrying", "attempt", attempt, "backoff", wait, "error", err)
	}

	var papers []domain.Paper
	_, err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		papers, err = o.feed.Fetch(ctx, req)
		return err
	})
	return papers, err
}

// nothingToPublish applies the no-papers or empty-digest policy.
func (o *Orchestrator) nothingToPublish(ctx context.Context, out *domain.RunOutcome, log *slog.Logger, stage domain.Stage, kind domain.ErrorKind, policy Policy) {
	if policy != PolicyNotice {
		abort(out, stage, kind, fmt.Errorf("nothing to publish for the last %d day(s)", o.settings.DaysBack))
		return
	}
	log.Info("publishing notice instead of digest", "kind", kind)
	out.Notice = kind
	o.publish(ctx, out, log, o.formatter.FormatNotice(kind, out.StartedAt, o.settings.DaysBack))
}

func (o *Orchestrator) publish(ctx context.Context, out *domain.RunOutcome, log *slog.Logger, messages []domain.Message) {
	out.State = domain.StagePublishing
	out.MessagesTotal = len(messages)

	res, err := o.publisher.Publish(ctx, messages)
	out.MessagesSent = res.Sent
	if err != nil {
		out.Publish = domain.PublishFailedStatus
		if res.Sent > 0 {
			out.Publish = domain.PublishPartial
		}
		abort(out, domain.StagePublishing, domain.KindPublishFailed, err)
		return
	}

	out.Publish = domain.PublishDelivered
	out.State = domain.StageDone
	log.Info("stage complete", "stage", domain.StagePublishing, "messages", res.Sent)
}

func abort(out *domain.RunOutcome, stage domain.Stage, kind domain.ErrorKind, cause error) {
	out.State = domain.StageAborted
	out.FailedStage = stage
	out.ErrorKind = kind
	if de, ok := cause.(*domain.Error); ok && de.Kind == kind && de.Stage == "" {
		staged := *de
		staged.Stage = stage
		out.Err = &staged
		return
	}
	out.Err = domain.NewError(kind, stage, cause)
}

// finish logs the outcome, records metrics and notifies the reporter. Reporting
// outlives a cancelled run context so the failure still gets out.
func (o *Orchestrator) finish(ctx context.Context, out domain.RunOutcome, log *slog.Logger) {
	attrs := []any{
		"state", out.State,
		"fetched", out.Fetched,
		"filtered", out.Filtered,
		"ranked", out.Ranked,
		"summarized", out.SummarizedOK,
		"summary_failed", out.SummarizedFailed,
		"publish", out.Publish,
		"messages_sent", out.MessagesSent,
		"messages_total", out.MessagesTotal,
		"duration", out.Duration(),
	}
	if out.Aborted() {
		log.Error("run aborted", append(attrs, "stage", out.FailedStage, "kind", out.ErrorKind, "error", out.Err)...)
	} else {
		log.Info("run finished", append(attrs, "notice", out.Notice)...)
	}

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if o.metrics != nil {
		if err := o.metrics.Observe(reportCtx, out); err != nil {
			log.Warn("record metrics failed", "error", err)
		}
	}
	if o.reporter != nil {
		if err := o.reporter.Report(reportCtx, out); err != nil {
			log.Warn("report outcome failed", "error", err)
		}
	}
}

// SelfTest sends one minimal message through the publisher.
func (o *Orchestrator) SelfTest(ctx context.Context) error {
	msg := o.formatter.SelfTestMessage(o.now())
	if _, err := o.publisher.Publish(ctx, []domain.Message{msg}); err != nil {
		return fmt.Errorf("self-test: %w", err)
	}
	o.logger.Info("self-test message delivered")
	return nil
}
