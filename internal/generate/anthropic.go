package generate

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-writer/internal/cost"
	"github.com/sells-group/research-writer/pkg/anthropic"
)

// AnthropicGenerator runs completions on Claude. Retries happen inside
// the SDK client.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
	calc   *cost.Calculator
}

// NewAnthropicGenerator creates an AnthropicGenerator. model is used when
// a Request leaves Model empty.
func NewAnthropicGenerator(client anthropic.Client, model string, calc *cost.Calculator) *AnthropicGenerator {
	return &AnthropicGenerator{client: client, model: model, calc: calc}
}

// Provider implements Generator.
func (g *AnthropicGenerator) Provider() string { return "anthropic" }

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = g.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       modelName,
		MaxTokens:   int64(maxTokens),
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, eris.Wrap(err, "generate: anthropic")
	}

	return &Response{
		Text:  resp.Text(),
		Model: modelName,
		Usage: usage(g.calc, g.Provider(), modelName, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)),
	}, nil
}
