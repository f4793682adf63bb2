package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"PaperDigest/internal/domain"
)

const (
	defaultTimezone = "UTC"

	configPathEnv       = "PAPERDIGEST_CONFIG"
	logLevelEnv         = "PAPERDIGEST_LOG_LEVEL"
	openAIKeyEnv        = "OPENAI_API_KEY"
	anthropicKeyEnv     = "ANTHROPIC_API_KEY"
	slackWebhookEnv     = "SLACK_WEBHOOK_URL"
	slackErrorHookEnv   = "SLACK_ERROR_WEBHOOK_URL"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	providerOpenAI      = "openai"
	providerAnthropic   = "anthropic"
	channelSlack        = "slack"
	channelTelegram     = "telegram"
	channelNone         = "none"
	policyAbort         = "abort"
	policyNotice        = "notice"
	feedSourceAPI       = "api"
	feedSourceListing   = "listing"
	defaultCronSchedule = "0 6 * * *"
)

// Config holds high-level settings required across the application.
type Config struct {
	Feed          FeedConfig         `yaml:"feed"`
	Relevance     RelevanceConfig    `yaml:"relevance"`
	LLM           LLMConfig          `yaml:"llm"`
	Retry         RetryConfig        `yaml:"retry"`
	Slack         SlackConfig        `yaml:"slack"`
	Digest        DigestConfig       `yaml:"digest"`
	Policy        PolicyConfig       `yaml:"policy"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// FeedConfig selects the arXiv source and the fetch window.
type FeedConfig struct {
	Source     string        `yaml:"source"`
	APIURL     string        `yaml:"apiUrl"`
	ListingURL string        `yaml:"listingUrl"`
	Categories []string      `yaml:"categories"`
	DaysBack   int           `yaml:"daysBack"`
	MaxResults int           `yaml:"maxResults"`
	Attempts   int           `yaml:"attempts"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RelevanceConfig holds the keyword set and selection bounds.
type RelevanceConfig struct {
	Keywords KeywordList `yaml:"keywords"`
	MinScore float64     `yaml:"minScore"`
	TopN     int         `yaml:"topN"`
}

// KeywordList accepts plain strings or {term, weight} mappings.
type KeywordList []domain.Keyword

// UnmarshalYAML decodes each entry either as a bare term or a weighted keyword.
func (k *KeywordList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: keywords must be a list", node.Line)
	}
	out := make(KeywordList, 0, len(node.Content))
	for _, item := range node.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, domain.Keyword{Term: item.Value, Weight: 1})
		case yaml.MappingNode:
			var kw domain.Keyword
			if err := item.Decode(&kw); err != nil {
				return err
			}
			if kw.Weight == 0 {
				kw.Weight = 1
			}
			out = append(out, kw)
		default:
			return fmt.Errorf("line %d: keyword must be a string or a mapping", item.Line)
		}
	}
	*k = out
	return nil
}

// LLMConfig defines how to contact the language model and shape summaries.
// Language is any name the model understands, e.g. English or Japanese.
type LLMConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"apiKey"`
	BaseURL         string        `yaml:"baseUrl"`
	Temperature     float64       `yaml:"temperature"`
	MaxTokens       int           `yaml:"maxTokens"`
	Language        string        `yaml:"language"`
	MaxSectionChars int           `yaml:"maxSectionChars"`
	Concurrency     int           `yaml:"concurrency"`
	Timeout         time.Duration `yaml:"timeout"`
}

// RetryConfig is the backoff shared by language-model and webhook calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
}

// SlackConfig describes the digest webhook and its payload limits.
type SlackConfig struct {
	WebhookURL          string        `yaml:"webhookUrl"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxMessageChars     int           `yaml:"maxMessageChars"`
	MaxBlocksPerMessage int           `yaml:"maxBlocksPerMessage"`
	MaxBlockChars       int           `yaml:"maxBlockChars"`
}

// DigestConfig controls rendering.
type DigestConfig struct {
	Title      string `yaml:"title"`
	Trends     bool   `yaml:"trends"`
	TrendLimit int    `yaml:"trendLimit"`
}

// PolicyConfig decides what happens when there is nothing to publish.
type PolicyConfig struct {
	NoPapers    string `yaml:"noPapers"`
	EmptyDigest string `yaml:"emptyDigest"`
}

// NotificationConfig encapsulates the error-notification channel.
type NotificationConfig struct {
	Channel         string         `yaml:"channel"`
	ReportSuccess   bool           `yaml:"reportSuccess"`
	SlackWebhookURL string         `yaml:"slackWebhookUrl"`
	Telegram        TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SchedulerConfig defines when the schedule command runs the digest.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	RunOnStart     bool           `yaml:"runOnStart"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// MetricsConfig points at an optional Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgatewayUrl"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration over the defaults and applies environment
// overrides. An empty path falls back to PAPERDIGEST_CONFIG; with neither set
// only defaults and environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	switch strings.ToLower(c.LLM.Provider) {
	case providerAnthropic:
		if v := os.Getenv(anthropicKeyEnv); v != "" {
			c.LLM.APIKey = v
		}
	default:
		if v := os.Getenv(openAIKeyEnv); v != "" {
			c.LLM.APIKey = v
		}
	}

	if v := os.Getenv(slackWebhookEnv); v != "" {
		c.Slack.WebhookURL = v
	}
	if v := os.Getenv(slackErrorHookEnv); v != "" {
		c.Notifications.SlackWebhookURL = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("unknown scheduler timezone %q: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

// ErrorWebhookURL is the Slack webhook for run reports; it defaults to the digest webhook.
func (c Config) ErrorWebhookURL() string {
	if c.Notifications.SlackWebhookURL != "" {
		return c.Notifications.SlackWebhookURL
	}
	return c.Slack.WebhookURL
}

// ValidateMessaging checks only what the self-test needs.
func (c Config) ValidateMessaging() error {
	if c.Slack.WebhookURL == "" {
		return fmt.Errorf("slack.webhookUrl is required (or set %s)", slackWebhookEnv)
	}
	if err := checkURL("slack.webhookUrl", c.Slack.WebhookURL); err != nil {
		return err
	}
	return nil
}

// Validate reports every missing credential and out-of-range value at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if err := c.ValidateMessaging(); err != nil {
		errs = append(errs, err)
	}

	switch c.Feed.Source {
	case feedSourceAPI, feedSourceListing:
	default:
		add("feed.source must be %q or %q, got %q", feedSourceAPI, feedSourceListing, c.Feed.Source)
	}
	if c.Feed.DaysBack < 1 {
		add("feed.daysBack must be >= 1, got %d", c.Feed.DaysBack)
	}
	if c.Feed.MaxResults < 1 {
		add("feed.maxResults must be >= 1, got %d", c.Feed.MaxResults)
	}
	if c.Feed.Attempts < 1 {
		add("feed.attempts must be >= 1, got %d", c.Feed.Attempts)
	}

	if len(c.Relevance.Keywords) == 0 {
		add("relevance.keywords must not be empty")
	}
	if c.Relevance.MinScore < 0 {
		add("relevance.minScore must be >= 0, got %v", c.Relevance.MinScore)
	}
	if c.Relevance.TopN < 1 {
		add("relevance.topN must be >= 1, got %d", c.Relevance.TopN)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case providerOpenAI, providerAnthropic:
	default:
		add("llm.provider must be %q or %q, got %q", providerOpenAI, providerAnthropic, c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		add("llm.apiKey is required (or set %s / %s)", openAIKeyEnv, anthropicKeyEnv)
	}
	if c.LLM.Concurrency < 1 {
		add("llm.concurrency must be >= 1, got %d", c.LLM.Concurrency)
	}
	if c.LLM.MaxSectionChars < 1 {
		add("llm.maxSectionChars must be >= 1, got %d", c.LLM.MaxSectionChars)
	}

	if c.Retry.MaxAttempts < 1 {
		add("retry.maxAttempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}

	for name, value := range map[string]string{
		"policy.noPapers":    c.Policy.NoPapers,
		"policy.emptyDigest": c.Policy.EmptyDigest,
	} {
		if value != policyAbort && value != policyNotice {
			add("%s must be %q or %q, got %q", name, policyAbort, policyNotice, value)
		}
	}

	switch c.Notifications.Channel {
	case channelSlack, channelNone:
	case channelTelegram:
		if c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "" {
			add("notifications.telegram requires botToken and chatId (or set %s and %s)", telegramTokenEnv, telegramChatIDEnv)
		}
	default:
		add("notifications.channel must be slack, telegram or none, got %q", c.Notifications.Channel)
	}

	if c.Metrics.PushgatewayURL != "" {
		if err := checkURL("metrics.pushgatewayUrl", c.Metrics.PushgatewayURL); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return domain.NewError(domain.KindConfig, "", errors.Join(errs...))
}

func checkURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s is not a valid http(s) url", field)
	}
	return nil
}

// DefaultKeywords are the relevance terms used when none are configured.
func DefaultKeywords() KeywordList {
	terms := []string{
		"transformer", "attention", "llm", "large language model",
		"gpt", "bert", "diffusion", "generative", "multimodal",
		"reinforcement learning", "deep learning", "neural network",
		"computer vision", "natural language processing", "nlp",
		"few-shot", "zero-shot", "in-context learning", "fine-tuning",
		"benchmark", "sota", "state-of-the-art", "breakthrough",
	}
	out := make(KeywordList, len(terms))
	for i, term := range terms {
		out[i] = domain.Keyword{Term: term, Weight: 1}
	}
	return out
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Feed: FeedConfig{
			Source:     feedSourceAPI,
			APIURL:     "https://export.arxiv.org/api/query",
			ListingURL: "https://export.arxiv.org",
			Categories: []string{"cs.AI", "cs.LG", "cs.CL", "cs.CV", "cs.NE"},
			DaysBack:   1,
			MaxResults: 50,
			Attempts:   1,
			Timeout:    30 * time.Second,
		},
		Relevance: RelevanceConfig{
			Keywords: DefaultKeywords(),
			MinScore: 1,
			TopN:     5,
		},
		LLM: LLMConfig{
			Provider:        providerOpenAI,
			Temperature:     0.3,
			MaxTokens:       1000,
			Language:        "English",
			MaxSectionChars: 400,
			Concurrency:     3,
			Timeout:         60 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			Multiplier:  2,
			MaxDelay:    30 * time.Second,
		},
		Slack: SlackConfig{
			Interval:            time.Second,
			Timeout:             30 * time.Second,
			MaxMessageChars:     3500,
			MaxBlocksPerMessage: 50,
			MaxBlockChars:       3000,
		},
		Digest: DigestConfig{
			Title:      "AI Research Digest",
			Trends:     true,
			TrendLimit: 5,
		},
		Policy: PolicyConfig{
			NoPapers:    policyAbort,
			EmptyDigest: policyAbort,
		},
		Notifications: NotificationConfig{
			Channel: channelSlack,
		},
		Scheduler: SchedulerConfig{
			CronExpression: defaultCronSchedule,
			Timezone:       defaultTimezone,
			location:       time.UTC,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
