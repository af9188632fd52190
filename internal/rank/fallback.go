package rank

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FallbackScorer uses Primary and switches to Secondary for a call when
// Primary fails. Scores from one call always come from one scorer.
type FallbackScorer struct {
	Primary   Scorer
	Secondary Scorer
}

// Score implements Scorer.
func (f *FallbackScorer) Score(ctx context.Context, query, text string) (float64, error) {
	scores, err := f.ScoreAll(ctx, query, []string{text})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// ScoreAll implements BatchScorer.
func (f *FallbackScorer) ScoreAll(ctx context.Context, query string, texts []string) ([]float64, error) {
	scores, err := ScoreAll(ctx, f.Primary, query, texts)
	if err == nil {
		return scores, nil
	}
	if f.Secondary == nil || ctx.Err() != nil {
		return nil, err
	}
	zap.L().Warn("rank: primary scorer failed, using fallback", zap.Error(err))

	scores, ferr := ScoreAll(ctx, f.Secondary, query, texts)
	if ferr != nil {
		return nil, eris.Wrap(ferr, "rank: fallback scorer failed")
	}
	return scores, nil
}
