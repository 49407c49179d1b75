package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultLocalDimension is the vector size used when none is configured.
const DefaultLocalDimension = 256

// LocalProvider generates deterministic embeddings without any external
// model. Each text is tokenized, terms are hashed into a fixed number of
// buckets, and the resulting count vector is L2-normalized. Texts that
// share vocabulary land near each other under cosine distance, which is
// enough for offline and demonstration retrieval.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a local hashing provider with the given
// dimension. A dimension of 0 selects DefaultLocalDimension.
func NewLocalProvider(dimension int) (*LocalProvider, error) {
	if dimension == 0 {
		dimension = DefaultLocalDimension
	}
	if dimension < 8 {
		return nil, fmt.Errorf("%w: dimension %d too small", ErrInvalidConfig, dimension)
	}
	return &LocalProvider{dimension: dimension}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *LocalProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embed(text)
	}
	return out, nil
}

// EmbedQuery generates an embedding for a single query text.
func (p *LocalProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

// Dimension returns the embedding dimension.
func (p *LocalProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op for the local provider.
func (p *LocalProvider) Close() error {
	return nil
}

func (p *LocalProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimension)
	for _, term := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(term))
		vec[int(h.Sum32())%p.dimension]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Tokenize lowercases text and splits it into alphanumeric terms.
// Terms of a single rune are dropped as noise.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}

var _ Provider = (*LocalProvider)(nil)
