package acquire

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-writer/internal/model"
)

// fakeLoader serves canned bodies and drops URLs marked unreachable.
type fakeLoader struct {
	bodies      map[string]string
	unreachable map[string]bool
	panicOn     string
	delay       time.Duration

	mu       sync.Mutex
	batches  [][]string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeLoader) Load(_ context.Context, urls []string) []model.Document {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), urls...))
	f.mu.Unlock()

	time.Sleep(f.delay)

	var out []model.Document
	for _, u := range urls {
		if u == f.panicOn {
			panic("loader exploded")
		}
		if f.unreachable[u] {
			continue
		}
		out = append(out, model.Document{Text: f.bodies[u], SourceURL: u})
	}
	return out
}

func body(i int) string {
	return fmt.Sprintf("Document %d body.   %s", i, strings.Repeat("Useful sentence about the topic. ", 3))
}

func candidates(n int) ([]string, map[string]string) {
	urls := make([]string, n)
	bodies := make(map[string]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://src.example/d%d", i+1)
		bodies[urls[i]] = body(i + 1)
	}
	return urls, bodies
}

func sourceSet(docs []model.Document) map[string]bool {
	out := make(map[string]bool, len(docs))
	for _, d := range docs {
		out[d.SourceURL] = true
	}
	return out
}

func TestAcquire_DropsUnreachable(t *testing.T) {
	t.Parallel()

	urls, bodies := candidates(10)
	loader := &fakeLoader{bodies: bodies, unreachable: map[string]bool{
		urls[2]: true, urls[5]: true, urls[8]: true,
	}}

	docs, stats := New(loader).Acquire(context.Background(), urls)
	require.Len(t, docs, 7)
	got := sourceSet(docs)
	for i, u := range urls {
		assert.Equal(t, !loader.unreachable[u], got[u], "url %d", i)
	}
	assert.Equal(t, 10, stats.Requested)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 7, stats.Usable)
	assert.Zero(t, stats.FailedBatches)
}

func TestAcquire_NormalizesAndFiltersShort(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{bodies: map[string]string{
		"https://a.example": "  spaced\n\n  out\ttext " + strings.Repeat("x", 60),
		"https://b.example": "too short",
		"https://c.example": "   \n  ",
	}}

	docs, stats := New(loader).Acquire(context.Background(), []string{
		"https://a.example", "https://b.example", "https://c.example",
	})
	require.Len(t, docs, 1)
	assert.Equal(t, "spaced out text "+strings.Repeat("x", 60), docs[0].Text)
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 2, stats.Unusable)
}

func TestAcquire_BatchesAndConcurrency(t *testing.T) {
	t.Parallel()

	urls, bodies := candidates(23)
	loader := &fakeLoader{bodies: bodies, delay: 20 * time.Millisecond}

	docs, stats := New(loader, WithBatchSize(5), WithMaxConcurrentBatches(3)).Acquire(context.Background(), urls)
	assert.Len(t, docs, 23)
	assert.Equal(t, 5, stats.Batches)
	for _, b := range loader.batches {
		assert.LessOrEqual(t, len(b), 5)
	}
	assert.LessOrEqual(t, loader.peak.Load(), int32(3))
}

func TestAcquire_PanickingBatchIsolated(t *testing.T) {
	t.Parallel()

	urls, bodies := candidates(10)
	loader := &fakeLoader{bodies: bodies, panicOn: urls[1]}

	docs, stats := New(loader).Acquire(context.Background(), urls)
	assert.Equal(t, 1, stats.FailedBatches)
	got := sourceSet(docs)
	for _, u := range urls[5:] {
		assert.True(t, got[u], u)
	}
	for _, u := range urls[:5] {
		assert.False(t, got[u], u)
	}
}

func TestAcquire_Empty(t *testing.T) {
	t.Parallel()

	docs, stats := New(&fakeLoader{}).Acquire(context.Background(), nil)
	assert.Empty(t, docs)
	assert.Zero(t, stats.Batches)
}

func TestAcquire_DropsMissingSource(t *testing.T) {
	t.Parallel()

	loader := loaderFunc(func(context.Context, []string) []model.Document {
		return []model.Document{{Text: strings.Repeat("long enough text ", 5)}}
	})
	docs, stats := New(loader).Acquire(context.Background(), []string{"https://a.example"})
	assert.Empty(t, docs)
	assert.Equal(t, 1, stats.Unusable)
}

type loaderFunc func(ctx context.Context, urls []string) []model.Document

func (f loaderFunc) Load(ctx context.Context, urls []string) []model.Document { return f(ctx, urls) }

func TestBatches(t *testing.T) {
	t.Parallel()

	urls, _ := candidates(12)
	got := Batches(urls, 5)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 5)
	assert.Len(t, got[1], 5)
	assert.Len(t, got[2], 2)
	assert.Equal(t, urls[10:], got[2])

	assert.Empty(t, Batches(nil, 5))
	assert.Len(t, Batches(urls, 0), 3)
}
