package rank

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-writer/internal/model"
)

// DefaultTopK is the number of documents kept for distillation.
const DefaultTopK = 5

// TopK returns at most k documents ordered by descending score. Equal
// scores keep their input order. Each returned document carries its score.
func TopK(docs []model.Document, scores []float64, k int) ([]model.Document, error) {
	if len(docs) != len(scores) {
		return nil, eris.Errorf("rank: %d documents but %d scores", len(docs), len(scores))
	}
	if k < 0 {
		return nil, eris.Errorf("rank: negative k %d", k)
	}

	scored := make([]model.Document, len(docs))
	for i, d := range docs {
		d.Score = scores[i]
		scored[i] = d
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
