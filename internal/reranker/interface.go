// Package reranker provides candidate re-ranking for improving
// retrieval quality.
package reranker

import "context"

// Candidate is a retrieved chunk to be re-ranked.
type Candidate struct {
	ID      string
	Content string
	// Score is the fused retrieval score in [0, 1].
	Score float64
}

// Scored is a candidate with its re-ranking result.
type Scored struct {
	Candidate
	// RerankScore is the re-ranker's relevance estimate in [0, 1].
	RerankScore float64
	// OriginalRank is the candidate's position before re-ranking.
	OriginalRank int
}

// Reranker re-orders candidates by query relevance.
type Reranker interface {
	// Rerank returns candidates sorted by relevance descending, limited
	// to topK. A topK of 0 keeps all candidates.
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Scored, error)

	// Close releases resources held by the reranker.
	Close() error
}
