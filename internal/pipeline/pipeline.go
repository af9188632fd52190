// Package pipeline drives one article run through discovery, acquisition,
// distillation and synthesis over a single evolving record.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-writer/internal/acquire"
	"github.com/sells-group/research-writer/internal/cost"
	"github.com/sells-group/research-writer/internal/generate"
	"github.com/sells-group/research-writer/internal/model"
	"github.com/sells-group/research-writer/internal/monitoring"
	"github.com/sells-group/research-writer/internal/rank"
	"github.com/sells-group/research-writer/internal/search"
	"github.com/sells-group/research-writer/internal/store"
)

// DefaultMaxChars caps how much of each selected document is summarized.
const DefaultMaxChars = 3000

// Acquirer fetches and cleans candidate documents.
type Acquirer interface {
	Acquire(ctx context.Context, urls []string) ([]model.Document, acquire.Stats)
}

// Pipeline runs article generation. It holds no per-run state and is safe
// for concurrent use.
type Pipeline struct {
	searcher   search.Searcher
	acquirer   Acquirer
	scorer     rank.Scorer
	summarizer generate.Summarizer
	writer     generate.Writer

	store   store.Store
	metrics *monitoring.Metrics
	calc    *cost.Calculator

	minScore float64
	topK     int
	maxChars int
	newID    func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore records runs and per-stage checkpoints. Store failures are
// logged and never fail a run.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.store = st }
}

// WithMetrics records stage and run metrics.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithCostCalculator prices search calls into the record's usage.
func WithCostCalculator(c *cost.Calculator) Option {
	return func(p *Pipeline) { p.calc = c }
}

// WithMinScore sets the search score a hit must exceed.
func WithMinScore(s float64) Option {
	return func(p *Pipeline) { p.minScore = s }
}

// WithTopK sets how many documents survive reranking.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithMaxChars sets the per-document cap applied before summarizing.
func WithMaxChars(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxChars = n
		}
	}
}

// New creates a Pipeline from its collaborators.
func New(
	searcher search.Searcher,
	acquirer Acquirer,
	scorer rank.Scorer,
	summarizer generate.Summarizer,
	writer generate.Writer,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		searcher:   searcher,
		acquirer:   acquirer,
		scorer:     scorer,
		summarizer: summarizer,
		writer:     writer,
		minScore:   search.DefaultMinScore,
		topK:       rank.DefaultTopK,
		maxChars:   DefaultMaxChars,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type stageFunc func(ctx context.Context, rec *model.Record) (model.StageResult, error)

type stage struct {
	name model.Stage
	run  stageFunc
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{model.StageDiscovery, p.discover},
		{model.StageAcquisition, p.acquireAndRank},
		{model.StageDistillation, p.distill},
		{model.StageSynthesis, p.synthesize},
	}
}

// Run executes every stage in order for query under a fresh run ID. Soft
// conditions are reported in the returned record; a fatal fault returns a
// *FatalError and no record. obs may be nil.
func (p *Pipeline) Run(ctx context.Context, query string, obs Observer) (*model.Record, error) {
	rec := model.NewRecord(p.newID(), query)
	log := zap.L().With(zap.String("run_id", rec.RunID))
	log.Info("pipeline: starting run", zap.String("query", query))

	if err := rec.Validate("", p.topK); err != nil {
		return nil, &FatalError{Message: "invalid run", Err: err}
	}
	p.createRun(ctx, rec)

	for _, s := range p.stages() {
		if err := ctx.Err(); err != nil {
			return nil, p.abort(ctx, rec, &FatalError{Stage: s.name, Message: "run cancelled", Err: err})
		}

		p.setStatus(ctx, rec.RunID, s.name.RunStatus())
		next, err := p.runStage(ctx, s, rec)
		if err != nil {
			return nil, p.abort(ctx, rec, err)
		}
		rec = next

		if obs != nil {
			obs.StageDone(s.name, rec.Clone())
		}
	}

	p.finishRun(ctx, rec, model.RunStatusComplete, "")
	p.metrics.ObserveRun(model.RunStatusComplete, rec.Usage)
	log.Info("pipeline: run complete",
		zap.Int("sources", len(rec.SelectedDocuments)),
		zap.Int("article_chars", len(rec.Article)),
		zap.String("soft_error", rec.Error),
		zap.Float64("cost_usd", rec.Usage.Cost),
	)
	return rec, nil
}

// runStage executes one stage on a copy of prev and checks the hand-off.
func (p *Pipeline) runStage(ctx context.Context, s stage, prev *model.Record) (*model.Record, error) {
	log := zap.L().With(zap.String("run_id", prev.RunID), zap.String("stage", string(s.name)))
	next := prev.Clone()

	start := time.Now()
	res, err := s.run(ctx, next)
	elapsed := time.Since(start)
	res.Name = s.name
	res.Duration = elapsed.Milliseconds()

	if err == nil && ctx.Err() != nil {
		err = fatal("run cancelled", ctx.Err())
	}
	if err != nil {
		p.metrics.ObserveStage(s.name, model.StageStatusFailed, elapsed)
		fe := asFatal(s.name, err)
		log.Error("pipeline: stage failed",
			zap.Int64("duration_ms", res.Duration),
			zap.Error(fe),
		)
		return nil, fe
	}

	res.Status = model.StageStatusComplete
	if res.Error != "" {
		res.Status = model.StageStatusDegraded
		next.Fail(res.Error)
	}
	next.Stages = append(next.Stages, res)
	next.Usage.Add(res.TokenUsage)

	if err := next.Validate(s.name, p.topK); err != nil {
		return nil, &FatalError{Stage: s.name, Message: "stage broke the record contract", Err: err}
	}
	if err := model.CheckCarried(prev, next, s.name); err != nil {
		return nil, &FatalError{Stage: s.name, Message: "stage broke the record contract", Err: err}
	}

	p.metrics.ObserveStage(s.name, res.Status, elapsed)
	p.checkpoint(ctx, next, s.name)

	fields := []zap.Field{
		zap.Int64("duration_ms", res.Duration),
		zap.String("status", string(res.Status)),
	}
	if res.Error != "" {
		log.Warn("pipeline: stage degraded", append(fields, zap.String("reason", res.Error))...)
	} else {
		log.Info("pipeline: stage complete", fields...)
	}
	return next, nil
}

func asFatal(stage model.Stage, err error) *FatalError {
	var fe *FatalError
	if errors.As(err, &fe) {
		if fe.Stage == "" {
			fe.Stage = stage
		}
		return fe
	}
	return &FatalError{Stage: stage, Message: "unexpected stage error", Err: err}
}

func (p *Pipeline) abort(ctx context.Context, rec *model.Record, err error) error {
	fe := asFatal(rec.LastStage(), err)
	p.finishRun(context.WithoutCancel(ctx), rec, model.RunStatusFailed, fe.Error())
	p.metrics.ObserveRun(model.RunStatusFailed, rec.Usage)
	return fe
}

func (p *Pipeline) createRun(ctx context.Context, rec *model.Record) {
	if p.store == nil {
		return
	}
	if _, err := p.store.CreateRun(ctx, rec.RunID, rec.Query); err != nil {
		zap.L().Warn("pipeline: failed to create run", zap.String("run_id", rec.RunID), zap.Error(err))
	}
}

func (p *Pipeline) setStatus(ctx context.Context, runID string, status model.RunStatus) {
	if p.store == nil {
		return
	}
	if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("pipeline: failed to update status", zap.String("run_id", runID), zap.Error(err))
	}
}

func (p *Pipeline) checkpoint(ctx context.Context, rec *model.Record, stage model.Stage) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveCheckpoint(ctx, rec.RunID, stage, rec); err != nil {
		zap.L().Warn("pipeline: failed to save checkpoint",
			zap.String("run_id", rec.RunID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) finishRun(ctx context.Context, rec *model.Record, status model.RunStatus, errMsg string) {
	if p.store == nil {
		return
	}
	result := rec
	if status == model.RunStatusFailed {
		result = nil
	}
	if err := p.store.FinishRun(ctx, rec.RunID, status, result, errMsg); err != nil {
		zap.L().Warn("pipeline: failed to finish run", zap.String("run_id", rec.RunID), zap.Error(eris.Wrap(err, "finish run")))
	}
}
