package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Tavily     TavilyConfig     `yaml:"tavily" mapstructure:"tavily"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Cohere     CohereConfig     `yaml:"cohere" mapstructure:"cohere"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Generate   GenerateConfig   `yaml:"generate" mapstructure:"generate"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Rank       RankConfig       `yaml:"rank" mapstructure:"rank"`
	Distill    DistillConfig    `yaml:"distill" mapstructure:"distill"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// TavilyConfig holds Tavily search API settings.
type TavilyConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CohereConfig holds Cohere rerank settings.
type CohereConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	RerankModel string `yaml:"rerank_model" mapstructure:"rerank_model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI-compatible API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// GenerateConfig selects the language model backend for distillation
// and synthesis.
type GenerateConfig struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"` // anthropic, openai, perplexity
	SummaryModel  string  `yaml:"summary_model" mapstructure:"summary_model"`
	ArticleModel  string  `yaml:"article_model" mapstructure:"article_model"`
	SummaryTokens int     `yaml:"summary_tokens" mapstructure:"summary_tokens"`
	ArticleTokens int     `yaml:"article_tokens" mapstructure:"article_tokens"`
	Temperature   float64 `yaml:"temperature" mapstructure:"temperature"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SearchConfig configures discovery.
type SearchConfig struct {
	MinScore    float64 `yaml:"min_score" mapstructure:"min_score"`
	MaxResults  int     `yaml:"max_results" mapstructure:"max_results"`
	Depth       string  `yaml:"depth" mapstructure:"depth"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ScrapeConfig configures document acquisition.
type ScrapeConfig struct {
	BatchSize            int      `yaml:"batch_size" mapstructure:"batch_size"`
	MaxConcurrentBatches int      `yaml:"max_concurrent_batches" mapstructure:"max_concurrent_batches"`
	TimeoutSecs          int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	HostRPS              float64  `yaml:"host_rps" mapstructure:"host_rps"`
	MinContentChars      int      `yaml:"min_content_chars" mapstructure:"min_content_chars"`
	ExcludePaths         []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	UserAgent            string   `yaml:"user_agent" mapstructure:"user_agent"`
}

// RankConfig configures relevance scoring.
type RankConfig struct {
	TopK   int    `yaml:"top_k" mapstructure:"top_k"`
	Scorer string `yaml:"scorer" mapstructure:"scorer"` // cohere, lexical
}

// DistillConfig configures brief construction.
type DistillConfig struct {
	MaxChars int `yaml:"max_chars" mapstructure:"max_chars"`
}

// RetryConfig configures transport retries for outbound API calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic  map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
	Perplexity PerRequestPricing       `yaml:"perplexity" mapstructure:"perplexity"`
	Tavily     PerRequestPricing       `yaml:"tavily" mapstructure:"tavily"`
	Cohere     PerRequestPricing       `yaml:"cohere" mapstructure:"cohere"`
	Jina       JinaPricing             `yaml:"jina" mapstructure:"jina"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// PerRequestPricing holds a flat per-call price.
type PerRequestPricing struct {
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// JinaPricing holds Jina Reader pricing.
type JinaPricing struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// StoreConfig configures the run checkpoint backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, none
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RunTimeoutSecs int      `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
}

// MonitoringConfig configures run health alerts.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	DegradedThreshold    float64 `yaml:"degraded_threshold" mapstructure:"degraded_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// NotionConfig configures publishing finished articles to a Notion database.
type NotionConfig struct {
	Token      string  `yaml:"token" mapstructure:"token"`
	DatabaseID string  `yaml:"database_id" mapstructure:"database_id"`
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Timeout converts a seconds setting to a duration.
func Timeout(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

// Load reads configuration from .env, file, and environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("WRITER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys with no default still need registering so the environment and
	// .env can supply them.
	for _, key := range []string{
		"tavily.key",
		"jina.key",
		"firecrawl.key",
		"cohere.key",
		"anthropic.key",
		"openai.key",
		"perplexity.key",
		"generate.summary_model",
		"generate.article_model",
		"monitoring.webhook_url",
		"notion.token",
		"notion.database_id",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("cohere.rerank_model", "rerank-v3.5")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")

	v.SetDefault("generate.provider", "anthropic")
	v.SetDefault("generate.summary_tokens", 1024)
	v.SetDefault("generate.article_tokens", 4096)
	v.SetDefault("generate.temperature", 0.2)
	v.SetDefault("generate.timeout_secs", 120)

	v.SetDefault("search.min_score", 0.5)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.depth", "advanced")
	v.SetDefault("search.timeout_secs", 30)

	v.SetDefault("scrape.batch_size", 5)
	v.SetDefault("scrape.max_concurrent_batches", 3)
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.host_rps", 2.0)
	v.SetDefault("scrape.min_content_chars", 50)
	v.SetDefault("scrape.exclude_paths", []string{"/*.pdf", "/*.zip", "/login/*", "/cart/*"})
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; ResearchWriter/1.0)")

	v.SetDefault("rank.top_k", 5)
	v.SetDefault("rank.scorer", "cohere")
	v.SetDefault("distill.max_chars", 3000)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("pricing.perplexity.per_request", 0.005)
	v.SetDefault("pricing.tavily.per_request", 0.008)
	v.SetDefault("pricing.cohere.per_request", 0.002)
	v.SetDefault("pricing.jina.per_mtok", 0.02)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "file:research-writer?mode=memory&cache=shared")
	v.SetDefault("store.retention_days", 7)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.run_timeout_secs", 600)

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.degraded_threshold", 0.5)
	v.SetDefault("monitoring.cost_threshold_usd", 50.0)

	v.SetDefault("notion.rate_limit", 3.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Generate.Provider {
	case "anthropic", "openai", "perplexity":
	default:
		return eris.Errorf("config: unknown generate.provider %q", c.Generate.Provider)
	}
	switch c.Rank.Scorer {
	case "cohere", "lexical":
	default:
		return eris.Errorf("config: unknown rank.scorer %q", c.Rank.Scorer)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Rank.TopK <= 0 {
		return eris.New("config: rank.top_k must be positive")
	}
	if c.Scrape.BatchSize <= 0 || c.Scrape.MaxConcurrentBatches <= 0 {
		return eris.New("config: scrape batch settings must be positive")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
