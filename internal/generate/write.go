package generate

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-writer/internal/model"
)

// Output is what a Writer produces: either PlainText or a
// StructuredArticle.
type Output interface {
	output()
}

// PlainText is an article returned as bare text.
type PlainText string

// StructuredArticle is an article returned inside a structured object.
type StructuredArticle struct {
	Article string `json:"article"`
}

func (PlainText) output()         {}
func (StructuredArticle) output() {}

// Writer drafts an article from a brief. Callers never pass a blank brief.
type Writer interface {
	Write(ctx context.Context, brief string) (Output, model.TokenUsage, error)
}

// LLMWriter drafts Markdown articles with a Generator.
type LLMWriter struct {
	gen         Generator
	model       string
	maxTokens   int
	temperature *float64
}

// NewLLMWriter creates an LLMWriter.
func NewLLMWriter(gen Generator, modelName string, maxTokens int, temperature float64) *LLMWriter {
	return &LLMWriter{gen: gen, model: modelName, maxTokens: maxTokens, temperature: &temperature}
}

// Write implements Writer. A reply that is a JSON object with an article
// field comes back as StructuredArticle; anything else is PlainText.
func (w *LLMWriter) Write(ctx context.Context, brief string) (Output, model.TokenUsage, error) {
	if strings.TrimSpace(brief) == "" {
		return nil, model.TokenUsage{}, eris.New("generate: write called with blank brief")
	}

	resp, err := w.gen.Generate(ctx, Request{
		Model:       w.model,
		System:      writerSystem,
		Prompt:      writerPrompt(brief),
		MaxTokens:   w.maxTokens,
		Temperature: w.temperature,
	})
	if err != nil {
		return nil, model.TokenUsage{}, eris.Wrap(err, "generate: write article")
	}

	text := strings.TrimSpace(resp.Text)
	if strings.HasPrefix(text, "{") {
		var sa struct {
			Article *string `json:"article"`
		}
		if json.Unmarshal([]byte(text), &sa) == nil && sa.Article != nil {
			return StructuredArticle{Article: *sa.Article}, resp.Usage, nil
		}
	}
	return PlainText(text), resp.Usage, nil
}

// Text returns the article text of o. Output values of any other type are
// a contract violation.
func Text(o Output) (string, error) {
	switch v := o.(type) {
	case PlainText:
		return strings.TrimSpace(string(v)), nil
	case StructuredArticle:
		return strings.TrimSpace(v.Article), nil
	case *StructuredArticle:
		if v == nil {
			return "", eris.New("generate: nil structured article")
		}
		return strings.TrimSpace(v.Article), nil
	default:
		return "", eris.Errorf("generate: unexpected writer output %T", o)
	}
}
