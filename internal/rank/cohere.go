package rank

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-writer/internal/resilience"
	"github.com/sells-group/research-writer/pkg/cohere"
)

// CohereScorer scores documents with Cohere's cross-encoder rerank model.
type CohereScorer struct {
	client  cohere.Client
	model   string
	policy  resilience.Policy
	breaker *resilience.Breaker
}

// CohereOption configures a CohereScorer.
type CohereOption func(*CohereScorer)

// WithRerankModel sets the rerank model.
func WithRerankModel(model string) CohereOption {
	return func(s *CohereScorer) {
		if model != "" {
			s.model = model
		}
	}
}

// WithRetryPolicy sets the retry policy for rerank calls.
func WithRetryPolicy(p resilience.Policy) CohereOption {
	return func(s *CohereScorer) {
		s.policy = p
	}
}

// NewCohereScorer creates a CohereScorer.
func NewCohereScorer(client cohere.Client, opts ...CohereOption) *CohereScorer {
	s := &CohereScorer{
		client:  client,
		policy:  resilience.DefaultPolicy(),
		breaker: resilience.NewBreaker("cohere", 3, time.Minute, 2*time.Minute),
	}
	for _, o := range opts {
		o(s)
	}
	s.policy = s.policy.Named("cohere", "rerank")
	return s
}

// Score implements Scorer.
func (s *CohereScorer) Score(ctx context.Context, query, text string) (float64, error) {
	scores, err := s.ScoreAll(ctx, query, []string{text})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// ScoreAll implements BatchScorer with one rerank request.
func (s *CohereScorer) ScoreAll(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := resilience.Call(ctx, s.breaker, func(ctx context.Context) (*cohere.RerankResponse, error) {
		return resilience.DoVal(ctx, s.policy, func(ctx context.Context) (*cohere.RerankResponse, error) {
			return s.client.Rerank(ctx, cohere.RerankRequest{
				Model:     s.model,
				Query:     query,
				Documents: texts,
			})
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "rank: cohere rerank")
	}

	scores := make([]float64, len(texts))
	got := make([]bool, len(texts))
	for _, r := range resp.Results {
		scores[r.Index] = r.RelevanceScore
		got[r.Index] = true
	}
	for i, ok := range got {
		if !ok {
			return nil, eris.Errorf("rank: cohere returned no score for document %d", i)
		}
	}

	zap.L().Debug("rank: cohere rerank complete",
		zap.String("rerank_id", resp.ID),
		zap.Int("documents", len(texts)),
	)
	return scores, nil
}
