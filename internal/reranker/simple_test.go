package reranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerankBoostsTermOverlap(t *testing.T) {
	r := NewSimpleReranker()
	defer r.Close()

	candidates := []Candidate{
		{ID: "c1", Content: "General overview of anticoagulant therapy options.", Score: 0.9},
		{ID: "c2", Content: "Apixaban reduced the risk of stroke by 21% compared to warfarin.", Score: 0.6},
	}

	scored, err := r.Rerank(context.Background(), "apixaban stroke risk reduction", candidates, 0)
	require.NoError(t, err)
	require.Len(t, scored, 2)

	assert.Equal(t, "c2", scored[0].ID)
	assert.Equal(t, 1, scored[0].OriginalRank)
	assert.Greater(t, scored[0].RerankScore, scored[1].RerankScore)
}

func TestRerankTopK(t *testing.T) {
	r := NewSimpleReranker()

	candidates := []Candidate{
		{ID: "c1", Content: "alpha", Score: 0.3},
		{ID: "c2", Content: "beta", Score: 0.2},
		{ID: "c3", Content: "gamma", Score: 0.1},
	}

	scored, err := r.Rerank(context.Background(), "alpha", candidates, 2)
	require.NoError(t, err)
	assert.Len(t, scored, 2)
}

func TestRerankEmptyInputs(t *testing.T) {
	r := NewSimpleReranker()

	scored, err := r.Rerank(context.Background(), "query", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, scored)
}

func TestRerankStopwordOnlyQueryFallsBack(t *testing.T) {
	r := NewSimpleReranker()

	candidates := []Candidate{
		{ID: "low", Content: "one", Score: 0.1},
		{ID: "high", Content: "two", Score: 0.9},
	}

	scored, err := r.Rerank(context.Background(), "the and of", candidates, 0)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, "high", scored[0].ID)
	assert.Equal(t, 0.9, scored[0].RerankScore)
}

func TestTermOverlap(t *testing.T) {
	tests := []struct {
		name  string
		query string
		doc   string
		want  float64
	}{
		{name: "full", query: "apixaban stroke", doc: "apixaban cut stroke rates", want: 1.0},
		{name: "half", query: "apixaban warfarin", doc: "apixaban monotherapy", want: 0.5},
		{name: "none", query: "lecanemab", doc: "apixaban monotherapy", want: 0.0},
		{name: "duplicate query terms", query: "stroke stroke stroke", doc: "stroke", want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := termOverlap(significantTerms(tt.query), significantTerms(tt.doc))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
