// Package acquire turns candidate URLs into usable documents, fetching in
// small concurrent batches and dropping whatever fails to load.
package acquire

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/research-writer/internal/model"
	"github.com/sells-group/research-writer/internal/rank"
)

// Defaults for batching and the usable-content threshold.
const (
	DefaultBatchSize            = 5
	DefaultMaxConcurrentBatches = 3
)

// Loader fetches a batch of URLs. It returns the documents that loaded and
// silently omits the rest; partial failure is never an error.
type Loader interface {
	Load(ctx context.Context, urls []string) []model.Document
}

// Stats summarizes one Acquire call.
type Stats struct {
	Requested     int `json:"requested"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failed_batches"`
	Loaded        int `json:"loaded"`
	Unusable      int `json:"unusable"`
	Usable        int `json:"usable"`
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithBatchSize sets how many URLs go to the loader at once.
func WithBatchSize(n int) Option {
	return func(a *Acquirer) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithMaxConcurrentBatches bounds how many batches load at the same time.
func WithMaxConcurrentBatches(n int) Option {
	return func(a *Acquirer) {
		if n > 0 {
			a.maxConcurrent = n
		}
	}
}

// WithMinContentChars sets the shortest cleaned text kept.
func WithMinContentChars(n int) Option {
	return func(a *Acquirer) {
		if n > 0 {
			a.minChars = n
		}
	}
}

// Acquirer loads documents through a Loader in bounded parallel batches.
type Acquirer struct {
	loader        Loader
	batchSize     int
	maxConcurrent int
	minChars      int
}

// New creates an Acquirer.
func New(loader Loader, opts ...Option) *Acquirer {
	a := &Acquirer{
		loader:        loader,
		batchSize:     DefaultBatchSize,
		maxConcurrent: DefaultMaxConcurrentBatches,
		minChars:      rank.MinContentChars,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Acquire loads every URL and returns the usable documents, with text
// whitespace-normalized. Order is unspecified. A failing batch, even one
// whose loader panics, only loses its own documents.
func (a *Acquirer) Acquire(ctx context.Context, urls []string) ([]model.Document, Stats) {
	batches := Batches(urls, a.batchSize)
	stats := Stats{Requested: len(urls), Batches: len(batches)}

	var (
		mu     sync.Mutex
		loaded []model.Document
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrent)

	for i, batch := range batches {
		g.Go(func() error {
			docs, err := a.loadBatch(gCtx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FailedBatches++
				zap.L().Warn("acquire: batch failed",
					zap.Int("batch", i),
					zap.Strings("urls", batch),
					zap.Error(err),
				)
				return nil
			}
			loaded = append(loaded, docs...)
			return nil
		})
	}
	_ = g.Wait()

	stats.Loaded = len(loaded)
	usable := make([]model.Document, 0, len(loaded))
	for _, d := range loaded {
		text := rank.Clean(d.Text, a.minChars)
		if text == "" || d.SourceURL == "" {
			stats.Unusable++
			continue
		}
		d.Text = text
		usable = append(usable, d)
	}
	stats.Usable = len(usable)

	zap.L().Debug("acquire: complete",
		zap.Int("requested", stats.Requested),
		zap.Int("loaded", stats.Loaded),
		zap.Int("usable", stats.Usable),
		zap.Int("failed_batches", stats.FailedBatches),
	)
	return usable, stats
}

func (a *Acquirer) loadBatch(ctx context.Context, urls []string) (docs []model.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("acquire: loader panic: %v", r)
		}
	}()
	return a.loader.Load(ctx, urls), nil
}

// Batches splits urls into consecutive chunks of at most size.
func Batches(urls []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	for start := 0; start < len(urls); start += size {
		end := min(start+size, len(urls))
		out = append(out, urls[start:end])
	}
	return out
}
