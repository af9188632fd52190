// Package generate drafts document summaries and articles with a large
// language model.
package generate

import (
	"context"

	"github.com/sells-group/research-writer/internal/cost"
	"github.com/sells-group/research-writer/internal/model"
)

// Request is one single-turn completion.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// Response is the model's reply.
type Response struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Generator runs a completion against one provider. Implementations are
// safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Provider() string
}

// usage builds the token usage of one call, priced when calc is set.
func usage(calc *cost.Calculator, provider, modelName string, in, out int) model.TokenUsage {
	u := model.TokenUsage{InputTokens: in, OutputTokens: out, Requests: 1}
	if calc != nil {
		u.Cost = calc.Tokens(provider, modelName, in, out)
	}
	return u
}
