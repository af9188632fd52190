package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/research-writer/internal/config"
	"github.com/sells-group/research-writer/internal/cost"
	"github.com/sells-group/research-writer/internal/model"
)

func TestUsage(t *testing.T) {
	t.Parallel()

	calc := cost.NewCalculator(config.PricingConfig{
		Anthropic: map[string]config.ModelPricing{
			"claude-haiku": {Input: 1.0, Output: 5.0},
		},
	})

	got := usage(calc, "anthropic", "claude-haiku", 1_000_000, 200_000)
	assert.Equal(t, 1_000_000, got.InputTokens)
	assert.Equal(t, 200_000, got.OutputTokens)
	assert.Equal(t, 1, got.Requests)
	assert.InDelta(t, 2.0, got.Cost, 1e-9)

	assert.Equal(t, model.TokenUsage{InputTokens: 10, OutputTokens: 2, Requests: 1}, usage(nil, "anthropic", "claude-haiku", 10, 2))
}
