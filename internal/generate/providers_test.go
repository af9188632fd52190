package generate

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-writer/internal/config"
	"github.com/sells-group/research-writer/internal/cost"
	"github.com/sells-group/research-writer/internal/resilience"
	"github.com/sells-group/research-writer/pkg/anthropic"
	"github.com/sells-group/research-writer/pkg/perplexity"
)

func fastPolicy() resilience.Policy {
	return resilience.Policy{MaxAttempts: 3, InitialBackoff: 1, MaxBackoff: 1}
}

func calc() *cost.Calculator {
	return cost.NewCalculator(config.PricingConfig{
		Anthropic:  map[string]config.ModelPricing{"claude-test": {Input: 1, Output: 2}},
		OpenAI:     map[string]config.ModelPricing{"gpt-test": {Input: 1, Output: 1}},
		Perplexity: config.PerRequestPricing{PerRequest: 0.005},
	})
}

func TestAnthropicGenerator(t *testing.T) {
	t.Parallel()

	temp := 0.2
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, anthropic.MessageRequest{
		Model:       "claude-test",
		MaxTokens:   512,
		System:      "sys",
		Messages:    []anthropic.Message{{Role: "user", Content: "hello"}},
		Temperature: &temp,
	}).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "hi there"}},
		Usage:   anthropic.TokenUsage{InputTokens: 1000000, OutputTokens: 500000},
	}, nil)

	g := NewAnthropicGenerator(client, "claude-test", calc())
	resp, err := g.Generate(context.Background(), Request{System: "sys", Prompt: "hello", MaxTokens: 512, Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text)
	assert.Equal(t, 1000000, resp.Usage.InputTokens)
	assert.Equal(t, 1, resp.Usage.Requests)
	assert.InDelta(t, 2.0, resp.Usage.Cost, 1e-9)
	assert.Equal(t, "anthropic", g.Provider())
	client.AssertExpectations(t)
}

func TestAnthropicGenerator_Error(t *testing.T) {
	t.Parallel()

	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	_, err := NewAnthropicGenerator(client, "m", nil).Generate(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate: anthropic")
}

func TestOpenAIGenerator(t *testing.T) {
	t.Parallel()

	client := &mockChat{}
	client.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == "gpt-test" &&
			len(req.Messages) == 2 &&
			req.Messages[0].Role == openai.ChatMessageRoleSystem &&
			req.Messages[1].Content == "prompt" &&
			req.MaxCompletionTokens == 100
	})).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "answer"}}},
		Usage:   openai.Usage{PromptTokens: 1000000, CompletionTokens: 1000000},
	}, nil)

	g := NewOpenAIGenerator(client, "gpt-test", calc(), fastPolicy())
	resp, err := g.Generate(context.Background(), Request{System: "s", Prompt: "prompt", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Text)
	assert.InDelta(t, 2.0, resp.Usage.Cost, 1e-9)
	client.AssertExpectations(t)
}

func TestOpenAIGenerator_RetriesRateLimit(t *testing.T) {
	t.Parallel()

	client := &mockChat{}
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}).Once()
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
		}, nil).Once()

	resp, err := NewOpenAIGenerator(client, "gpt-test", nil, fastPolicy()).Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 2)
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	t.Parallel()

	client := &mockChat{}
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, nil)

	_, err := NewOpenAIGenerator(client, "gpt-test", nil, fastPolicy()).Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestClassifyOpenAI(t *testing.T) {
	t.Parallel()

	assert.NoError(t, classifyOpenAI(nil))
	assert.True(t, resilience.IsTransient(classifyOpenAI(&openai.APIError{HTTPStatusCode: 503})))
	assert.True(t, resilience.IsTransient(classifyOpenAI(&openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")})))
	assert.False(t, resilience.IsTransient(classifyOpenAI(&openai.APIError{HTTPStatusCode: 401})))
}

func TestPerplexityGenerator(t *testing.T) {
	t.Parallel()

	client := &mockPerplexity{}
	client.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
		return req.Model == "sonar" && len(req.Messages) == 1 && req.MaxTokens != nil && *req.MaxTokens == 64
	})).Return(&perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: "pplx"}}},
		Usage:   perplexity.Usage{PromptTokens: 10, CompletionTokens: 20},
	}, nil)

	resp, err := NewPerplexityGenerator(client, "sonar", calc(), fastPolicy()).Generate(context.Background(), Request{Prompt: "p", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "pplx", resp.Text)
	assert.Equal(t, 20, resp.Usage.OutputTokens)
	assert.InDelta(t, 0.005, resp.Usage.Cost, 1e-9)
}

func TestPerplexityGenerator_RetriesServerError(t *testing.T) {
	t.Parallel()

	client := &mockPerplexity{}
	client.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(nil, &perplexity.APIError{StatusCode: http.StatusBadGateway}).Times(3)

	_, err := NewPerplexityGenerator(client, "sonar", nil, fastPolicy()).Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	client.AssertNumberOfCalls(t, "ChatCompletion", 3)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      config.Config
		provider string
		wantErr  string
	}{
		{name: "anthropic", cfg: config.Config{Generate: config.GenerateConfig{Provider: "anthropic"}, Anthropic: config.AnthropicConfig{Key: "k", Model: "m"}}, provider: "anthropic"},
		{name: "openai", cfg: config.Config{Generate: config.GenerateConfig{Provider: "openai"}, OpenAI: config.OpenAIConfig{Key: "k", Model: "m"}}, provider: "openai"},
		{name: "perplexity", cfg: config.Config{Generate: config.GenerateConfig{Provider: "perplexity"}, Perplexity: config.PerplexityConfig{Key: "k", Model: "sonar"}}, provider: "perplexity"},
		{name: "missing key", cfg: config.Config{Generate: config.GenerateConfig{Provider: "openai"}}, wantErr: "openai.key is required"},
		{name: "unknown", cfg: config.Config{Generate: config.GenerateConfig{Provider: "llama"}}, wantErr: "unknown provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := NewFromConfig(&tt.cfg, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, g.Provider())
		})
	}
}
