package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-writer/internal/acquire"
	"github.com/sells-group/research-writer/internal/config"
	"github.com/sells-group/research-writer/internal/cost"
	"github.com/sells-group/research-writer/internal/generate"
	"github.com/sells-group/research-writer/internal/monitoring"
	"github.com/sells-group/research-writer/internal/pipeline"
	"github.com/sells-group/research-writer/internal/rank"
	"github.com/sells-group/research-writer/internal/resilience"
	"github.com/sells-group/research-writer/internal/scrape"
	"github.com/sells-group/research-writer/internal/search"
	"github.com/sells-group/research-writer/internal/store"
	"github.com/sells-group/research-writer/pkg/cohere"
	"github.com/sells-group/research-writer/pkg/firecrawl"
	"github.com/sells-group/research-writer/pkg/jina"
	"github.com/sells-group/research-writer/pkg/tavily"
)

// pipelineEnv holds the pipeline and the resources it owns.
type pipelineEnv struct {
	Store    store.Store // nil when store.driver is "none"
	Pipeline *pipeline.Pipeline
	Registry *prometheus.Registry
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline builds every collaborator from cfg. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, cfg *config.Config) (*pipelineEnv, error) {
	calc := cost.NewCalculator(cfg.Pricing)
	policy := resilience.PolicyFromConfig(cfg.Retry)

	gen, err := generate.NewFromConfig(cfg, calc)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	p := pipeline.New(
		buildSearcher(cfg, policy),
		acquire.New(buildLoader(cfg),
			acquire.WithBatchSize(cfg.Scrape.BatchSize),
			acquire.WithMaxConcurrentBatches(cfg.Scrape.MaxConcurrentBatches),
			acquire.WithMinContentChars(cfg.Scrape.MinContentChars),
		),
		buildScorer(cfg, policy),
		generate.NewLLMSummarizer(gen, cfg.Generate.SummaryModel, cfg.Generate.SummaryTokens, cfg.Generate.Temperature),
		generate.NewLLMWriter(gen, cfg.Generate.ArticleModel, cfg.Generate.ArticleTokens, cfg.Generate.Temperature),
		pipeline.WithMinScore(cfg.Search.MinScore),
		pipeline.WithTopK(cfg.Rank.TopK),
		pipeline.WithMaxChars(cfg.Distill.MaxChars),
		pipeline.WithCostCalculator(calc),
		pipeline.WithMetrics(metrics),
		pipeline.WithStore(st),
	)

	zap.L().Info("pipeline ready",
		zap.String("provider", gen.Provider()),
		zap.String("scorer", cfg.Rank.Scorer),
		zap.String("store", cfg.Store.Driver),
	)
	return &pipelineEnv{Store: st, Pipeline: p, Registry: reg}, nil
}

func buildSearcher(cfg *config.Config, policy resilience.Policy) *search.Tavily {
	client := tavily.NewClient(cfg.Tavily.Key, tavily.WithBaseURL(cfg.Tavily.BaseURL))
	return search.NewTavily(client,
		search.WithDepth(cfg.Search.Depth),
		search.WithMaxResults(cfg.Search.MaxResults),
		search.WithRetryPolicy(policy),
	)
}

// buildLoader chains local HTTP, then Jina Reader, then Firecrawl when a
// key is configured.
func buildLoader(cfg *config.Config) *scrape.Chain {
	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(
			scrape.WithTimeout(config.Timeout(cfg.Scrape.TimeoutSecs)),
			scrape.WithUserAgent(cfg.Scrape.UserAgent),
			scrape.WithHostRate(cfg.Scrape.HostRPS),
		),
		scrape.NewJinaAdapter(jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))),
	}

	var fc firecrawl.Client
	if cfg.Firecrawl.Key != "" {
		fc = firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(fc))
	}

	chain := scrape.NewChain(scrape.NewPathMatcher(cfg.Scrape.ExcludePaths), scrapers...)
	if fc != nil {
		chain.WithFirecrawlClient(fc)
	}
	return chain
}

// buildScorer prefers Cohere when configured and always falls back to the
// offline lexical scorer.
func buildScorer(cfg *config.Config, policy resilience.Policy) rank.Scorer {
	lexical := rank.NewLexicalScorer()
	if cfg.Rank.Scorer != "cohere" || cfg.Cohere.Key == "" {
		if cfg.Rank.Scorer == "cohere" {
			zap.L().Warn("cohere.key not set, using lexical scorer")
		}
		return lexical
	}
	client := cohere.NewClient(cfg.Cohere.Key, cohere.WithModel(cfg.Cohere.RerankModel))
	return &rank.FallbackScorer{
		Primary:   rank.NewCohereScorer(client, rank.WithRerankModel(cfg.Cohere.RerankModel), rank.WithRetryPolicy(policy)),
		Secondary: lexical,
	}
}
