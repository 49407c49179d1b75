package lexical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := NewIndex(Config{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func seedIndex(t *testing.T, ix *Index, collection string) {
	t.Helper()
	err := ix.IndexChunks(context.Background(), collection, []Document{
		{
			ChunkID:  "doc-1-chunk-0",
			DocID:    "doc-1",
			Text:     "Apixaban reduced the risk of stroke by 21% compared to warfarin.",
			Metadata: map[string]string{"doc_id": "doc-1", "domain": "cardiology"},
		},
		{
			ChunkID:  "doc-2-chunk-0",
			DocID:    "doc-2",
			Text:     "CAR-T therapy achieved an 83% complete remission rate in refractory leukemia.",
			Metadata: map[string]string{"doc_id": "doc-2", "domain": "oncology"},
		},
		{
			ChunkID:  "doc-3-chunk-0",
			DocID:    "doc-3",
			Text:     "Lecanemab targets amyloid-beta plaques in early Alzheimer's disease.",
			Metadata: map[string]string{"doc_id": "doc-3", "domain": "neurology"},
		},
	})
	require.NoError(t, err)
}

func TestIndexAndSearch(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix, "trials")

	results, err := ix.Search(context.Background(), "trials", "apixaban stroke risk", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc-1-chunk-0", results[0].ChunkID)
	assert.Equal(t, "doc-1", results[0].DocID)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.Less(t, r.Score, 1.0)
	}
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearchScopedToCollection(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix, "trials")

	results, err := ix.Search(context.Background(), "other", "apixaban", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchWithFilters(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix, "trials")

	results, err := ix.Search(context.Background(), "trials", "trial remission rate stroke", 5,
		map[string]string{"domain": "oncology"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-2-chunk-0", results[0].ChunkID)
}

func TestSearchQuerySyntaxIsInert(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix, "trials")

	// FTS5 operators and punctuation must not produce syntax errors.
	_, err := ix.Search(context.Background(), "trials", `apixaban AND (stroke OR "risk") NEAR/3 -warfarin`, 5, nil)
	assert.NoError(t, err)

	results, err := ix.Search(context.Background(), "trials", "!!! ???", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteByDocID(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix, "trials")

	ctx := context.Background()
	require.NoError(t, ix.DeleteByDocID(ctx, "trials", "doc-1"))

	count, err := ix.Count(ctx, "trials")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := ix.Search(ctx, "trials", "apixaban", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexChunksValidation(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	assert.ErrorIs(t, ix.IndexChunks(ctx, "trials", nil), ErrEmptyChunks)
	assert.Error(t, ix.IndexChunks(ctx, "trials", []Document{{DocID: "doc-1", Text: "no chunk id"}}))

	_, err := ix.Search(ctx, "trials", "query", 0, nil)
	assert.Error(t, err)
}

func TestPersistentIndex(t *testing.T) {
	path := t.TempDir() + "/lexical.db"

	ix, err := NewIndex(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	seedIndex(t, ix, "trials")
	require.NoError(t, ix.Close())

	reopened, err := NewIndex(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(context.Background(), "trials")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
