package rank

import (
	"context"
	"strings"
	"unicode"
)

// BM25 parameters. avgDocTokens stands in for the corpus average so a
// score depends only on its own (query, document) pair.
const (
	bm25K1       = 1.2
	bm25B        = 0.75
	avgDocTokens = 400.0
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"why": {}, "with": {},
}

// LexicalScorer scores documents with BM25 term saturation over the
// query's content words. It needs no network and is the offline fallback
// for the cross-encoder.
type LexicalScorer struct{}

// NewLexicalScorer returns a LexicalScorer.
func NewLexicalScorer() *LexicalScorer { return &LexicalScorer{} }

// Score implements Scorer.
func (LexicalScorer) Score(_ context.Context, query, text string) (float64, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return 0, nil
	}
	docTokens := tokenize(text)
	if len(docTokens) == 0 {
		return 0, nil
	}

	tf := make(map[string]int, len(docTokens))
	for _, tok := range docTokens {
		tf[tok]++
	}

	norm := bm25K1 * (1 - bm25B + bm25B*float64(len(docTokens))/avgDocTokens)
	seen := make(map[string]struct{}, len(terms))
	var score float64
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		score += f * (bm25K1 + 1) / (f + norm)
	}
	return score / float64(len(seen)), nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}
