// Package retrieval builds Grounding Packs via staged hybrid search:
// semantic similarity, optional BM25 keyword ranking, weighted fusion
// and an optional rerank pass.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/verifyd/internal/contract"
	"github.com/fyrsmithlabs/verifyd/internal/lexical"
	"github.com/fyrsmithlabs/verifyd/internal/reranker"
	"github.com/fyrsmithlabs/verifyd/internal/vectorstore"
)

var retrievalTracer = otel.Tracer("verifyd.retrieval")

// Config holds configuration for the retrieval service.
type Config struct {
	// TopK is the number of chunks returned in the Grounding Pack.
	TopK int
	// SemanticK is the candidate count from the semantic stage.
	SemanticK int
	// BM25K is the candidate count from the lexical stage.
	BM25K int
	// SemanticWeight weighs semantic scores in fusion; lexical scores
	// get the complement.
	SemanticWeight float64
	// EnableBM25 turns the lexical stage on.
	EnableBM25 bool
	// EnableRerank turns the rerank stage on.
	EnableRerank bool
	// DefaultCollection is used when requests carry no collection.
	DefaultCollection string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.SemanticK == 0 {
		c.SemanticK = 20
	}
	if c.BM25K == 0 {
		c.BM25K = 20
	}
	if c.SemanticWeight == 0 {
		c.SemanticWeight = 0.7
	}
	if c.DefaultCollection == "" {
		c.DefaultCollection = "verifyd_default"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.TopK <= 0 || c.SemanticK <= 0 || c.BM25K <= 0 {
		return fmt.Errorf("candidate counts must be positive")
	}
	if c.SemanticWeight < 0 || c.SemanticWeight > 1 {
		return fmt.Errorf("semantic weight %.2f must be in [0, 1]", c.SemanticWeight)
	}
	return nil
}

// Request is one retrieval invocation.
type Request struct {
	// Query is the search text. Must be non-empty.
	Query string
	// Collection scopes the search. Empty selects the default.
	Collection string
	// TopK overrides the configured result count when positive.
	TopK int
	// Filters restrict candidates by exact metadata match before
	// scoring.
	Filters map[string]string
}

// Service runs staged hybrid retrieval.
type Service struct {
	config  Config
	store   vectorstore.Store
	lexical *lexical.Index
	rerank  reranker.Reranker
	logger  *zap.Logger
}

// NewService creates a retrieval service. The lexical index and reranker
// are optional; nil disables their stages regardless of configuration.
func NewService(config Config, store vectorstore.Store, lex *lexical.Index, rr reranker.Reranker, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &Service{
		config:  config,
		store:   store,
		lexical: lex,
		rerank:  rr,
		logger:  logger,
	}, nil
}

// candidate accumulates stage scores for one chunk during fusion.
type candidate struct {
	chunkID  string
	docID    string
	text     string
	metadata map[string]string
	semantic float64
	lexic    float64
}

// Retrieve runs the staged search and returns a normalized Grounding
// Pack. Existing-but-empty collections and zero-overlap queries yield
// an empty, non-error pack; an unknown collection is an error.
func (s *Service) Retrieve(ctx context.Context, req Request) (contract.GroundingPack, error) {
	ctx, span := retrievalTracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()

	if req.Query == "" {
		return contract.GroundingPack{}, fmt.Errorf("query cannot be empty")
	}
	collection := req.Collection
	if collection == "" {
		collection = s.config.DefaultCollection
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", topK),
	)

	// The semantic and lexical stages are independent reads and run
	// concurrently; fusion waits for both.
	var semanticHits []vectorstore.SearchResult
	var lexicalHits []lexical.Result
	runBM25 := s.config.EnableBM25 && s.lexical != nil

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semanticHits, err = s.store.Search(gctx, collection, req.Query, s.config.SemanticK, req.Filters)
		if err != nil {
			return fmt.Errorf("semantic stage: %w", err)
		}
		return nil
	})
	if runBM25 {
		g.Go(func() error {
			var err error
			lexicalHits, err = s.lexical.Search(gctx, collection, req.Query, s.config.BM25K, req.Filters)
			if err != nil {
				return fmt.Errorf("lexical stage: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return contract.GroundingPack{}, err
	}

	trace := contract.RetrievalTrace{Stages: []contract.StageTrace{
		{Name: contract.StageSemantic, Candidates: len(semanticHits)},
	}}
	if runBM25 {
		trace.Stages = append(trace.Stages, contract.StageTrace{
			Name: contract.StageBM25, Candidates: len(lexicalHits),
		})
	}

	fused := s.fuse(semanticHits, lexicalHits)
	fused = s.applyRerank(ctx, req.Query, fused, topK, &trace)

	pack := s.buildPack(fused, trace, topK)
	span.SetAttributes(attribute.Int("chunks", len(pack.Chunks)))

	s.logger.Debug("retrieval complete",
		zap.String("collection", collection),
		zap.Int("semantic_candidates", len(semanticHits)),
		zap.Int("lexical_candidates", len(lexicalHits)),
		zap.Int("returned", len(pack.Chunks)),
	)
	return pack, nil
}

// fuse merges stage candidates, scoring each chunk as
// semanticWeight*semantic + (1-semanticWeight)*lexical with missing
// stage scores treated as zero, then orders by score descending with a
// chunk-id tie-break.
func (s *Service) fuse(semanticHits []vectorstore.SearchResult, lexicalHits []lexical.Result) []candidate {
	byID := make(map[string]*candidate, len(semanticHits)+len(lexicalHits))
	for _, hit := range semanticHits {
		byID[hit.ID] = &candidate{
			chunkID:  hit.ID,
			docID:    hit.Metadata["doc_id"],
			text:     hit.Content,
			metadata: hit.Metadata,
			semantic: clamp01(hit.Score),
		}
	}
	for _, hit := range lexicalHits {
		c, ok := byID[hit.ChunkID]
		if !ok {
			c = &candidate{
				chunkID:  hit.ChunkID,
				docID:    hit.DocID,
				text:     hit.Text,
				metadata: hit.Metadata,
			}
			byID[hit.ChunkID] = c
		}
		c.lexic = clamp01(hit.Score)
	}

	fused := make([]candidate, 0, len(byID))
	for _, c := range byID {
		fused = append(fused, *c)
	}
	sort.Slice(fused, func(i, j int) bool {
		si, sj := s.finalScore(fused[i]), s.finalScore(fused[j])
		if si != sj {
			return si > sj
		}
		return fused[i].chunkID < fused[j].chunkID
	})
	return fused
}

func (s *Service) finalScore(c candidate) float64 {
	return s.config.SemanticWeight*c.semantic + (1-s.config.SemanticWeight)*c.lexic
}

// applyRerank lets the reranker pick the final topK subset out of the
// fused top 2*topK window. The emitted pack stays ordered by fused
// score, so reranking changes selection, never the ordering contract.
// Rerank failure degrades to the fused order rather than failing the
// request.
func (s *Service) applyRerank(ctx context.Context, query string, fused []candidate, topK int, trace *contract.RetrievalTrace) []candidate {
	if !s.config.EnableRerank || s.rerank == nil || len(fused) == 0 {
		return fused
	}

	window := 2 * topK
	if window > len(fused) {
		window = len(fused)
	}

	in := make([]reranker.Candidate, window)
	byID := make(map[string]candidate, window)
	for i := 0; i < window; i++ {
		in[i] = reranker.Candidate{
			ID:      fused[i].chunkID,
			Content: fused[i].text,
			Score:   s.finalScore(fused[i]),
		}
		byID[fused[i].chunkID] = fused[i]
	}

	scored, err := s.rerank.Rerank(ctx, query, in, topK)
	if err != nil {
		s.logger.Warn("rerank stage failed, keeping fused order", zap.Error(err))
		return fused
	}

	out := make([]candidate, 0, len(scored))
	for _, sc := range scored {
		out = append(out, byID[sc.ID])
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := s.finalScore(out[i]), s.finalScore(out[j])
		if si != sj {
			return si > sj
		}
		return out[i].chunkID < out[j].chunkID
	})

	trace.Stages = append(trace.Stages, contract.StageTrace{
		Name: contract.StageRerank, Candidates: len(scored),
	})
	return out
}

// buildPack converts ordered candidates into a Grounding Pack with one
// citation per returned chunk.
func (s *Service) buildPack(fused []candidate, trace contract.RetrievalTrace, topK int) contract.GroundingPack {
	if len(fused) > topK {
		fused = fused[:topK]
	}

	pack := contract.GroundingPack{
		Chunks:    make([]contract.RetrievedChunk, len(fused)),
		Citations: make([]contract.Citation, len(fused)),
		Trace:     trace,
	}
	for i, c := range fused {
		pack.Chunks[i] = contract.RetrievedChunk{
			ChunkID: c.chunkID,
			DocID:   c.docID,
			Text:    c.text,
			Score:   s.finalScore(c),
		}
		pack.Citations[i] = contract.Citation{
			ChunkID: c.chunkID,
			DocID:   c.docID,
			Source:  c.metadata["source"],
			Title:   c.metadata["title"],
		}
	}

	for i := range pack.Chunks {
		pack.Chunks[i].Score = clamp01(pack.Chunks[i].Score)
	}
	return pack
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
