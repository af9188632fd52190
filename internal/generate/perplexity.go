package generate

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-writer/internal/cost"
	"github.com/sells-group/research-writer/internal/resilience"
	"github.com/sells-group/research-writer/pkg/perplexity"
)

// PerplexityGenerator runs completions on Perplexity's chat API.
type PerplexityGenerator struct {
	client perplexity.Client
	model  string
	calc   *cost.Calculator
	policy resilience.Policy
}

// NewPerplexityGenerator creates a PerplexityGenerator.
func NewPerplexityGenerator(client perplexity.Client, model string, calc *cost.Calculator, policy resilience.Policy) *PerplexityGenerator {
	return &PerplexityGenerator{
		client: client,
		model:  model,
		calc:   calc,
		policy: policy.Named("perplexity", "chat_completion"),
	}
}

// Provider implements Generator.
func (g *PerplexityGenerator) Provider() string { return "perplexity" }

// Generate implements Generator.
func (g *PerplexityGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = g.model
	}

	preq := perplexity.ChatCompletionRequest{
		Model:       modelName,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		preq.Messages = append(preq.Messages, perplexity.Message{Role: "system", Content: req.System})
	}
	preq.Messages = append(preq.Messages, perplexity.Message{Role: "user", Content: req.Prompt})
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		preq.MaxTokens = &maxTokens
	}

	resp, err := resilience.DoVal(ctx, g.policy, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return g.client.ChatCompletion(ctx, preq)
	})
	if err != nil {
		return nil, eris.Wrap(err, "generate: perplexity")
	}

	return &Response{
		Text:  resp.Text(),
		Model: modelName,
		Usage: usage(g.calc, g.Provider(), modelName, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}
