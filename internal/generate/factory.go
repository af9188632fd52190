package generate

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/research-writer/internal/config"
	"github.com/sells-group/research-writer/internal/cost"
	"github.com/sells-group/research-writer/internal/resilience"
	"github.com/sells-group/research-writer/pkg/anthropic"
	"github.com/sells-group/research-writer/pkg/perplexity"
)

// NewFromConfig builds the Generator selected by cfg.Generate.Provider.
func NewFromConfig(cfg *config.Config, calc *cost.Calculator) (Generator, error) {
	policy := resilience.PolicyFromConfig(cfg.Retry)

	switch cfg.Generate.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("generate: anthropic.key is required")
		}
		client := anthropic.NewClient(cfg.Anthropic.Key, anthropic.WithMaxRetries(policy.MaxAttempts-1))
		return NewAnthropicGenerator(client, cfg.Anthropic.Model, calc), nil
	case "openai":
		if cfg.OpenAI.Key == "" {
			return nil, eris.New("generate: openai.key is required")
		}
		client := NewOpenAIClient(cfg.OpenAI.Key, cfg.OpenAI.BaseURL)
		return NewOpenAIGenerator(client, cfg.OpenAI.Model, calc, policy), nil
	case "perplexity":
		if cfg.Perplexity.Key == "" {
			return nil, eris.New("generate: perplexity.key is required")
		}
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		return NewPerplexityGenerator(client, cfg.Perplexity.Model, calc, policy), nil
	default:
		return nil, eris.Errorf("generate: unknown provider %q", cfg.Generate.Provider)
	}
}
