package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"PaperDigest/internal/config"
	"PaperDigest/internal/digest"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/infrastructure/arxiv"
	"PaperDigest/internal/infrastructure/llm"
	"PaperDigest/internal/infrastructure/scheduler"
	"PaperDigest/internal/infrastructure/slack"
	"PaperDigest/internal/infrastructure/telegram"
	"PaperDigest/internal/logging"
	"PaperDigest/internal/metrics"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/publisher"
	"PaperDigest/internal/retry"
	"PaperDigest/internal/scanner"
	"PaperDigest/internal/summarizer"
	"PaperDigest/internal/usecase"
)

const shutdownTimeout = 2 * time.Minute

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	orchestrator *usecase.Orchestrator
}

// New builds the runnable application. Only the messaging settings are
// required here so the self-test works without feed or model credentials;
// Run and Schedule validate the rest.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	registry := scanner.NewRegistry(
		arxiv.NewAPIClient(cfg.Feed.APIURL, cfg.Feed.Categories,
			&http.Client{Timeout: cfg.Feed.Timeout}, baseLogger.With("component", "arxiv.api")),
		arxiv.NewListingClient(cfg.Feed.ListingURL, cfg.Feed.Categories,
			&http.Client{Timeout: cfg.Feed.Timeout}, baseLogger.With("component", "arxiv.listing")),
	)
	feed, err := registry.Resolve(cfg.Feed.Source)
	if err != nil {
		return nil, domain.NewError(domain.KindConfig, "", err)
	}

	retryPolicy := retryPolicy(cfg.Retry)
	loc := cfg.Scheduler.Location()

	summarizerSvc := summarizer.New(newCompleter(cfg.LLM), summarizer.Config{
		Language:        cfg.LLM.Language,
		MaxSectionChars: cfg.LLM.MaxSectionChars,
		MaxTokens:       cfg.LLM.MaxTokens,
		Concurrency:     cfg.LLM.Concurrency,
		CallTimeout:     cfg.LLM.Timeout,
		Retry:           retryPolicy,
	}, baseLogger.With("component", "summarizer"))

	formatter := digest.NewFormatter(cfg.Digest.Title, digest.Limits{
		MaxMessageChars:     cfg.Slack.MaxMessageChars,
		MaxBlocksPerMessage: cfg.Slack.MaxBlocksPerMessage,
		MaxBlockChars:       cfg.Slack.MaxBlockChars,
	}, loc)

	webhookClient := &http.Client{Timeout: cfg.Slack.Timeout}
	pub := publisher.New(slack.NewWebhook(cfg.Slack.WebhookURL, webhookClient), publisher.Config{
		Interval: cfg.Slack.Interval,
		Retry:    retryPolicy,
	}, baseLogger.With("component", "publisher"))

	feedRetry := retryPolicy
	feedRetry.MaxAttempts = cfg.Feed.Attempts

	orchestrator := usecase.NewOrchestrator(usecase.Settings{
		DaysBack:    cfg.Feed.DaysBack,
		MaxResults:  cfg.Feed.MaxResults,
		TopN:        cfg.Relevance.TopN,
		Keywords:    cfg.Relevance.Keywords,
		MinScore:    cfg.Relevance.MinScore,
		Trends:      cfg.Digest.Trends,
		TrendLimit:  cfg.Digest.TrendLimit,
		NoPapers:    usecase.Policy(cfg.Policy.NoPapers),
		EmptyDigest: usecase.Policy(cfg.Policy.EmptyDigest),
		FeedRetry:   feedRetry,
	}, usecase.Deps{
		Feed:       feed,
		Summarizer: summarizerSvc,
		Formatter:  formatter,
		Publisher:  pub,
		Reporter:   newReporter(cfg, webhookClient, loc),
		Metrics:    metrics.NewRecorder(cfg.Metrics.PushgatewayURL),
		Logger:     baseLogger.With("component", "orchestrator"),
	})

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		orchestrator: orchestrator,
	}, nil
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.BaseDelay = cfg.BaseDelay
	policy.Multiplier = cfg.Multiplier
	policy.MaxDelay = cfg.MaxDelay
	return policy
}

func newCompleter(cfg config.LLMConfig) ports.Completer {
	if strings.EqualFold(cfg.Provider, "anthropic") {
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
		})
	}
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
	})
}

func newReporter(cfg config.Config, client *http.Client, loc *time.Location) ports.OutcomeReporter {
	n := cfg.Notifications
	switch n.Channel {
	case "telegram":
		return telegram.NewNotifier(n.Telegram.BotToken, n.Telegram.ChatID, n.ReportSuccess, loc)
	case "none":
		return nil
	default:
		return slack.NewReporter(slack.NewWebhook(cfg.ErrorWebhookURL(), client), n.ReportSuccess, loc)
	}
}

// Run performs a single digest run and returns its outcome.
func (a *Application) Run(ctx context.Context) (domain.RunOutcome, error) {
	if err := a.cfg.Validate(); err != nil {
		return domain.RunOutcome{}, err
	}
	return a.orchestrator.Run(ctx), nil
}

// SelfTest posts one message to the digest webhook.
func (a *Application) SelfTest(ctx context.Context) error {
	if err := a.cfg.ValidateMessaging(); err != nil {
		return domain.NewError(domain.KindConfig, "", err)
	}
	return a.orchestrator.SelfTest(ctx)
}

// Schedule runs the digest on the configured cron expression until ctx ends,
// then waits for an in-flight run to finish.
func (a *Application) Schedule(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if err := scheduler.Validate(a.cfg.Scheduler.CronExpression); err != nil {
		return domain.NewError(domain.KindConfig, "", err)
	}

	driver := scheduler.NewCronScheduler(scheduler.Options{
		Spec:       a.cfg.Scheduler.CronExpression,
		Location:   a.cfg.Scheduler.Location(),
		RunOnStart: a.cfg.Scheduler.RunOnStart,
	}, a.logger.With("component", "scheduler"))

	// Runs get their own context so a shutdown signal lets the current run finish.
	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()

	sched := usecase.NewScheduler(driver, a.orchestrator)
	if err := sched.Start(runCtx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	a.logger.Info("shutdown requested, waiting for in-flight run")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}
