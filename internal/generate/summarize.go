package generate

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-writer/internal/model"
)

// Summary is the distilled content of one document. A blank Text means
// the document had nothing usable.
type Summary struct {
	Text  string           `json:"summary"`
	Usage model.TokenUsage `json:"-"`
}

// Summarizer distills one document for a query.
type Summarizer interface {
	Summarize(ctx context.Context, query, text string) (Summary, error)
}

// LLMSummarizer asks a Generator for a JSON {"summary": ...} object.
type LLMSummarizer struct {
	gen         Generator
	model       string
	maxTokens   int
	temperature *float64
}

// NewLLMSummarizer creates an LLMSummarizer. An empty model uses the
// generator's default.
func NewLLMSummarizer(gen Generator, modelName string, maxTokens int, temperature float64) *LLMSummarizer {
	return &LLMSummarizer{gen: gen, model: modelName, maxTokens: maxTokens, temperature: &temperature}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, query, text string) (Summary, error) {
	resp, err := s.gen.Generate(ctx, Request{
		Model:       s.model,
		System:      editorSystem,
		Prompt:      editorPrompt(query, text),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return Summary{}, eris.Wrap(err, "generate: summarize")
	}

	summary, err := parseSummary(resp.Text)
	if err != nil {
		return Summary{Usage: resp.Usage}, err
	}
	return Summary{Text: summary, Usage: resp.Usage}, nil
}

// parseSummary reads the summary field from a model reply. Models often
// wrap JSON in prose or code fences. Prose that merely contains braces is
// taken as the summary itself; a reply that is a JSON object must carry
// the summary field.
func parseSummary(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	obj := cleanJSON(raw)
	if obj == "" {
		return raw, nil
	}
	structured := strings.HasPrefix(stripFence(raw), "{")

	var out struct {
		Summary *string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		if structured {
			return "", eris.Wrap(err, "generate: parse summary")
		}
		return raw, nil
	}
	if out.Summary == nil {
		if structured {
			return "", eris.New("generate: summary field missing")
		}
		return raw, nil
	}
	return strings.TrimSpace(*out.Summary), nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// cleanJSON strips code fences and surrounding text, returning the
// outermost JSON object or "" when there is none.
func cleanJSON(s string) string {
	s = stripFence(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
