package reranker

import (
	"context"
	"sort"

	"github.com/fyrsmithlabs/verifyd/internal/embeddings"
)

// SimpleReranker re-ranks candidates by term overlap with the query,
// blended with the incoming retrieval score. It needs no model and runs
// deterministically, which makes it the default for offline deployments.
type SimpleReranker struct{}

// NewSimpleReranker creates a new SimpleReranker.
func NewSimpleReranker() *SimpleReranker {
	return &SimpleReranker{}
}

// Rerank blends the original score (50%) with the fraction of query
// terms present in each candidate (50%) and sorts descending.
func (r *SimpleReranker) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = len(candidates)
	}
	if len(candidates) == 0 {
		return []Scored{}, nil
	}

	queryTerms := significantTerms(query)
	if len(queryTerms) == 0 {
		return fallbackRank(candidates, topK), nil
	}

	scored := make([]Scored, len(candidates))
	combined := make([]float64, len(candidates))
	for i, c := range candidates {
		overlap := termOverlap(queryTerms, significantTerms(c.Content))
		scored[i] = Scored{
			Candidate:    c,
			RerankScore:  overlap,
			OriginalRank: i,
		}
		combined[i] = 0.5*c.Score + 0.5*overlap
	}

	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return combined[order[a]] > combined[order[b]]
	})

	if topK > len(order) {
		topK = len(order)
	}
	out := make([]Scored, topK)
	for i := 0; i < topK; i++ {
		out[i] = scored[order[i]]
	}
	return out, nil
}

// Close is a no-op for SimpleReranker.
func (r *SimpleReranker) Close() error {
	return nil
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"what": true, "which": true, "who": true, "when": true, "where": true,
	"why": true, "how": true,
}

// significantTerms tokenizes text and drops stopwords and very short
// terms.
func significantTerms(text string) []string {
	terms := embeddings.Tokenize(text)
	out := terms[:0]
	for _, t := range terms {
		if len(t) > 2 && !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}

// termOverlap returns the fraction of unique query terms present in the
// document terms.
func termOverlap(queryTerms, docTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	docSet := make(map[string]bool, len(docTerms))
	for _, t := range docTerms {
		docSet[t] = true
	}
	matched := make(map[string]bool)
	for _, t := range queryTerms {
		if docSet[t] {
			matched[t] = true
		}
	}
	unique := make(map[string]bool)
	for _, t := range queryTerms {
		unique[t] = true
	}
	return float64(len(matched)) / float64(len(unique))
}

// fallbackRank orders candidates by their incoming score when the query
// yields no significant terms.
func fallbackRank(candidates []Candidate, topK int) []Scored {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].Score > candidates[order[b]].Score
	})
	if topK > len(order) {
		topK = len(order)
	}
	out := make([]Scored, topK)
	for i := 0; i < topK; i++ {
		idx := order[i]
		out[i] = Scored{
			Candidate:    candidates[idx],
			RerankScore:  candidates[idx].Score,
			OriginalRank: idx,
		}
	}
	return out
}

var _ Reranker = (*SimpleReranker)(nil)
