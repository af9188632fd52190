package generate

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"

	"github.com/sells-group/research-writer/internal/cost"
	"github.com/sells-group/research-writer/internal/resilience"
)

// ChatCompleter is the part of *openai.Client the generator uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient builds a go-openai client. An empty baseURL keeps the
// library default.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// OpenAIGenerator runs completions on an OpenAI-compatible chat API.
type OpenAIGenerator struct {
	client ChatCompleter
	model  string
	calc   *cost.Calculator
	policy resilience.Policy
}

// NewOpenAIGenerator creates an OpenAIGenerator.
func NewOpenAIGenerator(client ChatCompleter, model string, calc *cost.Calculator, policy resilience.Policy) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: client,
		model:  model,
		calc:   calc,
		policy: policy.Named("openai", "chat_completion"),
	}
}

// Provider implements Generator.
func (g *OpenAIGenerator) Provider() string { return "openai" }

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = g.model
	}

	creq := openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: make([]openai.ChatCompletionMessage, 0, 2),
	}
	if req.System != "" {
		creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: req.System,
		})
	}
	creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: req.Prompt,
	})
	if req.MaxTokens > 0 {
		creq.MaxCompletionTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		creq.Temperature = float32(*req.Temperature)
	}

	resp, err := resilience.DoVal(ctx, g.policy, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		r, err := g.client.CreateChatCompletion(ctx, creq)
		return r, classifyOpenAI(err)
	})
	if err != nil {
		return nil, eris.Wrap(err, "generate: openai")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("generate: openai returned no choices")
	}

	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: modelName,
		Usage: usage(g.calc, g.Provider(), modelName, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}

// classifyOpenAI marks retryable API statuses as transient.
func classifyOpenAI(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.HTTPStatusCode) {
		return resilience.NewTransientError(err, apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && resilience.IsTransientHTTPStatus(reqErr.HTTPStatusCode) {
		return resilience.NewTransientError(err, reqErr.HTTPStatusCode)
	}
	return err
}
