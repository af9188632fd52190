package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/research-writer/internal/generate"
	"github.com/sells-group/research-writer/internal/model"
	"github.com/sells-group/research-writer/internal/rank"
	"github.com/sells-group/research-writer/internal/search"
)

// Soft diagnostics surfaced on the record.
const (
	msgEmptyQuery        = "Empty query provided"
	msgNoSearchResults   = "No high-quality search results found (score > 0.5)"
	msgNoLinks           = "No links available for document loading"
	msgNothingLoaded     = "Failed to load any documents from provided URLs"
	msgNoValidContent    = "No valid document content found for reranking"
	msgNoDocuments       = "No reranked documents available for editing"
	msgNoSummaries       = "Failed to edit any documents successfully"
	msgNoContext         = "No context available for article generation"
	msgEmptyArticle      = "Article generation returned empty content"
	placeholderNoContext = "Unable to generate article: No relevant content found from the search results."
	placeholderEmpty     = "Unable to generate article: The article generation process returned empty content."
)

// discover turns the query into candidate URLs.
func (p *Pipeline) discover(ctx context.Context, rec *model.Record) (model.StageResult, error) {
	var res model.StageResult
	rec.CandidateURLs = []string{}

	if strings.TrimSpace(rec.Query) == "" {
		res.Error = msgEmptyQuery
		return res, nil
	}

	resp, err := p.searcher.Search(ctx, rec.Query)
	if err != nil {
		return res, fatal("Search engine error", err)
	}
	if resp == nil {
		return res, fatal("No search results returned", nil)
	}
	res.TokenUsage.Requests = 1
	if p.calc != nil {
		res.TokenUsage.Cost = p.calc.Search(1)
	}

	rec.CandidateURLs = search.Candidates(resp, p.minScore)
	res.Metadata = map[string]any{
		"hits":       len(resp.Results),
		"candidates": len(rec.CandidateURLs),
	}
	if len(rec.CandidateURLs) == 0 {
		res.Error = msgNoSearchResults
	}
	return res, nil
}

// acquireAndRank fetches the candidates, scores them against the query and
// keeps the top K.
func (p *Pipeline) acquireAndRank(ctx context.Context, rec *model.Record) (model.StageResult, error) {
	var res model.StageResult
	rec.SelectedDocuments = []model.Document{}

	if len(rec.CandidateURLs) == 0 {
		res.Error = msgNoLinks
		return res, nil
	}

	docs, stats := p.acquirer.Acquire(ctx, rec.CandidateURLs)
	res.Metadata = map[string]any{
		"requested":      stats.Requested,
		"batches":        stats.Batches,
		"failed_batches": stats.FailedBatches,
		"loaded":         stats.Loaded,
		"unusable":       stats.Unusable,
	}
	p.metrics.ObserveDocuments("loaded", stats.Loaded)
	p.metrics.ObserveDocuments("unusable", stats.Unusable)

	if stats.Loaded == 0 {
		res.Error = msgNothingLoaded
		return res, nil
	}
	if len(docs) == 0 {
		res.Error = msgNoValidContent
		return res, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	scores, err := rank.ScoreAll(ctx, p.scorer, rec.Query, texts)
	if err != nil {
		return res, fatal("Document loading/reranking error", err)
	}
	selected, err := rank.TopK(docs, scores, p.topK)
	if err != nil {
		return res, fatal("Document loading/reranking error", err)
	}

	rec.SelectedDocuments = selected
	res.Metadata["selected"] = len(selected)
	p.metrics.ObserveDocuments("selected", len(selected))
	return res, nil
}

// distill summarizes each selected document and numbers the survivors into
// the brief.
func (p *Pipeline) distill(ctx context.Context, rec *model.Record) (model.StageResult, error) {
	var res model.StageResult

	if len(rec.SelectedDocuments) == 0 {
		res.Error = msgNoDocuments
		return res, nil
	}

	log := zap.L().With(zap.String("run_id", rec.RunID))
	var summaries []string
	for i, d := range rec.SelectedDocuments {
		content := rank.Clean(rank.Truncate(d.Text, p.maxChars), 0)
		if content == "" {
			log.Warn("pipeline: document has no content", zap.Int("document", i+1), zap.String("url", d.SourceURL))
			continue
		}

		sum, err := p.summarizer.Summarize(ctx, rec.Query, content)
		res.TokenUsage.Add(sum.Usage)
		if err != nil {
			if ctx.Err() != nil {
				return res, fatal("Document editing error", ctx.Err())
			}
			log.Warn("pipeline: summarize failed", zap.Int("document", i+1), zap.String("url", d.SourceURL), zap.Error(err))
			continue
		}
		text := strings.TrimSpace(sum.Text)
		if text == "" {
			log.Warn("pipeline: empty summary", zap.Int("document", i+1), zap.String("url", d.SourceURL))
			continue
		}
		summaries = append(summaries, text)
	}

	res.Metadata = map[string]any{
		"summarized": len(summaries),
		"skipped":    len(rec.SelectedDocuments) - len(summaries),
	}
	if len(summaries) == 0 {
		res.Error = msgNoSummaries
		return res, nil
	}
	rec.Brief = Brief(summaries)
	return res, nil
}

// Brief numbers summaries from 1 and joins them with blank lines.
func Brief(summaries []string) string {
	parts := make([]string, len(summaries))
	for i, s := range summaries {
		parts[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	return strings.Join(parts, "\n\n")
}

// synthesize writes the article from the brief.
func (p *Pipeline) synthesize(ctx context.Context, rec *model.Record) (model.StageResult, error) {
	var res model.StageResult

	if strings.TrimSpace(rec.Brief) == "" {
		rec.Article = placeholderNoContext
		res.Error = msgNoContext
		return res, nil
	}

	out, usage, err := p.writer.Write(ctx, rec.Brief)
	res.TokenUsage = usage
	if err != nil {
		return res, fatal("Article generation error", err)
	}
	text, err := generate.Text(out)
	if err != nil {
		return res, fatal("Invalid article format returned", err)
	}

	res.Metadata = map[string]any{"output": outputKind(out)}
	text = strings.TrimSpace(text)
	if text == "" {
		rec.Article = placeholderEmpty
		res.Error = msgEmptyArticle
		return res, nil
	}
	rec.Article = text
	return res, nil
}

func outputKind(o generate.Output) string {
	switch o.(type) {
	case generate.StructuredArticle, *generate.StructuredArticle:
		return "structured"
	default:
		return "plain"
	}
}
