// Package cost estimates the USD cost of a run from its API usage.
package cost

import (
	"github.com/sells-group/research-writer/internal/config"
)

// Calculator computes costs for API usage.
type Calculator struct {
	pricing config.PricingConfig
}

// NewCalculator creates a Calculator. Models missing from pricing fall
// back to the built-in rates.
func NewCalculator(pricing config.PricingConfig) *Calculator {
	d := DefaultPricing()
	pricing.Anthropic = merge(d.Anthropic, pricing.Anthropic)
	pricing.OpenAI = merge(d.OpenAI, pricing.OpenAI)
	return &Calculator{pricing: pricing}
}

func merge(base, override map[string]config.ModelPricing) map[string]config.ModelPricing {
	out := make(map[string]config.ModelPricing, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Tokens computes the cost of a language model call. Perplexity bills per
// request on top of tokens; unknown models cost zero.
func (c *Calculator) Tokens(provider, model string, input, output int) float64 {
	var rates map[string]config.ModelPricing
	switch provider {
	case "anthropic":
		rates = c.pricing.Anthropic
	case "openai":
		rates = c.pricing.OpenAI
	case "perplexity":
		return c.pricing.Perplexity.PerRequest
	}
	rate, ok := rates[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Search returns the cost of n search requests.
func (c *Calculator) Search(n int) float64 {
	return float64(n) * c.pricing.Tavily.PerRequest
}

// Rerank returns the cost of n rerank requests.
func (c *Calculator) Rerank(n int) float64 {
	return float64(n) * c.pricing.Cohere.PerRequest
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.pricing.Jina.PerMTok
}

// DefaultPricing returns the built-in rates (USD per million tokens).
func DefaultPricing() config.PricingConfig {
	return config.PricingConfig{
		Anthropic: map[string]config.ModelPricing{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		OpenAI: map[string]config.ModelPricing{
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
			"gpt-4o":      {Input: 2.50, Output: 10.00},
		},
		Perplexity: config.PerRequestPricing{PerRequest: 0.005},
		Tavily:     config.PerRequestPricing{PerRequest: 0.008},
		Cohere:     config.PerRequestPricing{PerRequest: 0.002},
		Jina:       config.JinaPricing{PerMTok: 0.02},
	}
}
