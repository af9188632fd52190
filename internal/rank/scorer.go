package rank

import (
	"context"

	"github.com/rotisserie/eris"
)

// Scorer rates how relevant one document is to a query. Higher is more
// relevant; scores are only comparable within a single call site.
type Scorer interface {
	Score(ctx context.Context, query, text string) (float64, error)
}

// BatchScorer scores many documents against one query in a single call.
// The result is parallel to texts.
type BatchScorer interface {
	ScoreAll(ctx context.Context, query string, texts []string) ([]float64, error)
}

// ScoreAll scores texts with s, using one batched call when s supports it.
func ScoreAll(ctx context.Context, s Scorer, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if bs, ok := s.(BatchScorer); ok {
		scores, err := bs.ScoreAll(ctx, query, texts)
		if err != nil {
			return nil, err
		}
		if len(scores) != len(texts) {
			return nil, eris.Errorf("rank: scorer returned %d scores for %d documents", len(scores), len(texts))
		}
		return scores, nil
	}

	scores := make([]float64, len(texts))
	for i, text := range texts {
		score, err := s.Score(ctx, query, text)
		if err != nil {
			return nil, eris.Wrapf(err, "rank: score document %d", i)
		}
		scores[i] = score
	}
	return scores, nil
}
