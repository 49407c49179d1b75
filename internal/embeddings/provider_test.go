package embeddings

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		config  ProviderConfig
		wantErr bool
	}{
		{name: "default is local", config: ProviderConfig{}, wantErr: false},
		{name: "local", config: ProviderConfig{Provider: "local", Dimension: 64}, wantErr: false},
		{name: "tei", config: ProviderConfig{Provider: "tei", BaseURL: "http://localhost:8080"}, wantErr: false},
		{name: "tei without url", config: ProviderConfig{Provider: "tei"}, wantErr: true},
		{name: "unknown", config: ProviderConfig{Provider: "onnx"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Positive(t, p.Dimension())
			assert.NoError(t, p.Close())
		})
	}
}

func TestTokenize(t *testing.T) {
	terms := Tokenize("Apixaban reduced the risk of stroke by 21%, versus warfarin.")
	assert.Contains(t, terms, "apixaban")
	assert.Contains(t, terms, "21")
	assert.Contains(t, terms, "warfarin")
	assert.NotContains(t, terms, "")
}

func TestLocalProviderDeterministic(t *testing.T) {
	p, err := NewLocalProvider(128)
	require.NoError(t, err)

	ctx := context.Background()
	a, err := p.EmbedQuery(ctx, "apixaban stroke risk")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "apixaban stroke risk")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 128)
}

func TestLocalProviderNormalized(t *testing.T) {
	p, err := NewLocalProvider(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLocalDimension, p.Dimension())

	vec, err := p.EmbedQuery(context.Background(), "complete remission rate in CAR-T therapy trials")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestLocalProviderSimilarityOrdering(t *testing.T) {
	p, err := NewLocalProvider(256)
	require.NoError(t, err)
	ctx := context.Background()

	query, err := p.EmbedQuery(ctx, "Does apixaban reduce stroke risk?")
	require.NoError(t, err)
	docs, err := p.EmbedDocuments(ctx, []string{
		"Apixaban reduced the risk of stroke by 21% compared to warfarin.",
		"Lecanemab targets amyloid-beta plaques in early Alzheimer's disease.",
	})
	require.NoError(t, err)

	assert.Greater(t, cosine(query, docs[0]), cosine(query, docs[1]))
}

func TestLocalProviderEmptyInput(t *testing.T) {
	p, err := NewLocalProvider(64)
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	vec, err := p.EmbedQuery(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, 64)
}

func TestTEIProviderEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)
		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs := req.Inputs.([]interface{})
		vecs := make([][]float32, len(inputs))
		for i := range vecs {
			vecs[i] = []float32{0.1, 0.2, 0.3}
		}
		require.NoError(t, json.NewEncoder(w).Encode(vecs))
	}))
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Model: "BAAI/bge-small-en-v1.5"})
	require.NoError(t, err)
	assert.Equal(t, 384, p.Dimension())

	vecs, err := p.EmbedDocuments(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vecs[0])

	vec, err := p.EmbedQuery(context.Background(), "one")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestTEIProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"one"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
