package rank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-writer/internal/resilience"
	"github.com/sells-group/research-writer/pkg/cohere"
)

type mockCohere struct {
	mock.Mock
}

func (m *mockCohere) Rerank(ctx context.Context, req cohere.RerankRequest) (*cohere.RerankResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*cohere.RerankResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type failingScorer struct{ err error }

func (f failingScorer) Score(context.Context, string, string) (float64, error) {
	return 0, f.err
}

type shortBatch struct{}

func (shortBatch) Score(context.Context, string, string) (float64, error) { return 1, nil }
func (shortBatch) ScoreAll(context.Context, string, []string) ([]float64, error) {
	return []float64{1}, nil
}

func noRetry() resilience.Policy {
	return resilience.Policy{MaxAttempts: 1}
}

func TestLexicalScorer_RanksRelevantHigher(t *testing.T) {
	t.Parallel()

	s := NewLexicalScorer()
	ctx := context.Background()
	query := "heat pump efficiency in cold climates"

	relevant, err := s.Score(ctx, query, "Cold climate heat pump efficiency stays high. The heat pump keeps working.")
	require.NoError(t, err)
	unrelated, err := s.Score(ctx, query, "A recipe for sourdough bread with a long fermentation.")
	require.NoError(t, err)

	assert.Greater(t, relevant, unrelated)
	assert.Zero(t, unrelated)
}

func TestLexicalScorer_Deterministic(t *testing.T) {
	t.Parallel()

	s := NewLexicalScorer()
	text := strings.Repeat("solar storage battery ", 30)
	a, _ := s.Score(context.Background(), "solar battery", text)
	b, _ := s.Score(context.Background(), "solar battery", text)
	assert.Equal(t, a, b)
}

func TestLexicalScorer_StopwordQuery(t *testing.T) {
	t.Parallel()

	got, err := NewLexicalScorer().Score(context.Background(), "what is the", "anything at all")
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestScoreAll_Sequential(t *testing.T) {
	t.Parallel()

	scores, err := ScoreAll(context.Background(), NewLexicalScorer(), "go", []string{"go go", "rust"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Greater(t, scores[0], scores[1])
}

func TestScoreAll_LengthMismatch(t *testing.T) {
	t.Parallel()

	_, err := ScoreAll(context.Background(), shortBatch{}, "q", []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 scores for 2 documents")
}

func TestCohereScorer_MapsIndices(t *testing.T) {
	t.Parallel()

	client := &mockCohere{}
	client.On("Rerank", mock.Anything, cohere.RerankRequest{
		Model:     "rerank-v3.5",
		Query:     "q",
		Documents: []string{"a", "b", "c"},
	}).Return(&cohere.RerankResponse{ID: "r1", Results: []cohere.RerankResult{
		{Index: 2, RelevanceScore: 0.9},
		{Index: 0, RelevanceScore: 0.5},
		{Index: 1, RelevanceScore: 0.1},
	}}, nil)

	s := NewCohereScorer(client, WithRerankModel("rerank-v3.5"), WithRetryPolicy(noRetry()))
	scores, err := s.ScoreAll(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.1, 0.9}, scores)
	client.AssertExpectations(t)
}

func TestCohereScorer_MissingScore(t *testing.T) {
	t.Parallel()

	client := &mockCohere{}
	client.On("Rerank", mock.Anything, mock.Anything).Return(&cohere.RerankResponse{
		Results: []cohere.RerankResult{{Index: 0, RelevanceScore: 0.5}},
	}, nil)

	_, err := NewCohereScorer(client, WithRetryPolicy(noRetry())).ScoreAll(context.Background(), "q", []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no score for document 1")
}

func TestCohereScorer_Error(t *testing.T) {
	t.Parallel()

	client := &mockCohere{}
	client.On("Rerank", mock.Anything, mock.Anything).Return(nil, errors.New("invalid api key"))

	_, err := NewCohereScorer(client, WithRetryPolicy(noRetry())).Score(context.Background(), "q", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cohere rerank")
}

func TestFallbackScorer(t *testing.T) {
	t.Parallel()

	f := &FallbackScorer{
		Primary:   failingScorer{err: errors.New("cohere down")},
		Secondary: NewLexicalScorer(),
	}
	scores, err := f.ScoreAll(context.Background(), "battery", []string{"battery storage", "bread"})
	require.NoError(t, err)
	assert.Greater(t, scores[0], scores[1])
}

func TestFallbackScorer_BothFail(t *testing.T) {
	t.Parallel()

	f := &FallbackScorer{
		Primary:   failingScorer{err: errors.New("cohere down")},
		Secondary: failingScorer{err: errors.New("also down")},
	}
	_, err := f.Score(context.Background(), "q", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback scorer failed")
}

func TestFallbackScorer_NoSecondary(t *testing.T) {
	t.Parallel()

	f := &FallbackScorer{Primary: failingScorer{err: errors.New("cohere down")}}
	_, err := f.ScoreAll(context.Background(), "q", []string{"t"})
	require.Error(t, err)
}
