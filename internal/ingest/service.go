// Package ingest turns documents into stored, searchable chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verifyd/internal/chunker"
	"github.com/fyrsmithlabs/verifyd/internal/contract"
	"github.com/fyrsmithlabs/verifyd/internal/embeddings"
	"github.com/fyrsmithlabs/verifyd/internal/lexical"
	"github.com/fyrsmithlabs/verifyd/internal/vectorstore"
)

var ingestTracer = otel.Tracer("verifyd.ingest")

// ErrStorageUnavailable indicates the chunk store rejected writes for a
// reason other than a single document's embedding.
var ErrStorageUnavailable = errors.New("chunk storage unavailable")

// Request is one ingest invocation.
type Request struct {
	// Collection is the target collection. Empty selects the service's
	// default collection.
	Collection string
	// Documents are the documents to ingest.
	Documents []contract.Document
}

// DocError records a single document's failure. The message never
// contains document text.
type DocError struct {
	DocID   string `json:"doc_id"`
	Message string `json:"message"`
}

// Result summarizes one ingest invocation.
type Result struct {
	// IngestedCount is the number of documents fully chunked, embedded
	// and stored.
	IngestedCount int `json:"ingested_count"`
	// ChunkCount is the total number of chunks written.
	ChunkCount int `json:"chunk_count"`
	// ChunkIDs lists every chunk id written, in document order.
	ChunkIDs []string `json:"chunk_ids"`
	// Collection is the collection written to.
	Collection string `json:"collection"`
	// DocIDs lists the ids of fully ingested documents.
	DocIDs []string `json:"doc_ids"`
	// Errors lists per-document failures. Non-empty Errors with a
	// non-zero IngestedCount means a partial ingest.
	Errors []DocError `json:"errors,omitempty"`
}

// Config holds configuration for the ingest service.
type Config struct {
	// DefaultCollection is used when requests carry no collection.
	DefaultCollection string
	// Chunker bounds the chunk windows.
	Chunker chunker.Config
}

// Service ingests documents: split, embed, upsert into the vector store
// and, when present, the lexical index. Embedding happens before any
// write so a storage failure leaves nothing half-ingested.
type Service struct {
	config   Config
	chunks   *chunker.Chunker
	store    vectorstore.Store
	lexical  *lexical.Index
	embedder embeddings.Provider
	logger   *zap.Logger
}

// NewService creates an ingest service. The lexical index is optional;
// nil disables keyword indexing.
func NewService(config Config, store vectorstore.Store, lex *lexical.Index, embedder embeddings.Provider, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultCollection == "" {
		config.DefaultCollection = "verifyd_default"
	}

	ch, err := chunker.New(config.Chunker)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	return &Service{
		config:   config,
		chunks:   ch,
		store:    store,
		lexical:  lex,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// preparedDoc is one document chunked and embedded, ready to write.
type preparedDoc struct {
	docID     string
	chunkIDs  []string
	storeDocs []vectorstore.Document
	lexDocs   []lexical.Document
}

// Ingest processes every document in the request in two phases: first
// every document is chunked and embedded (a single document's embedding
// failure is recorded in Result.Errors without aborting the rest), then
// the prepared documents are written in one pass. A storage failure
// aborts the whole call before any chunk of this request is persisted.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	ctx, span := ingestTracer.Start(ctx, "ingest.Ingest")
	defer span.End()

	collection := req.Collection
	if collection == "" {
		collection = s.config.DefaultCollection
	}
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(req.Documents)),
	)

	result := Result{
		Collection: collection,
		ChunkIDs:   []string{},
		DocIDs:     []string{},
	}

	// Phase one: chunk and embed, no writes yet.
	var prepared []preparedDoc
	for _, doc := range req.Documents {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if doc.DocID == "" {
			result.Errors = append(result.Errors, DocError{Message: "document has no id"})
			continue
		}

		p, err := s.prepare(ctx, doc)
		if err != nil {
			if errors.Is(err, vectorstore.ErrEmbeddingFailed) {
				s.logger.Warn("embedding failed for document",
					zap.String("collection", collection),
					zap.String("doc_id", doc.DocID),
				)
				result.Errors = append(result.Errors, DocError{
					DocID:   doc.DocID,
					Message: "embedding failed",
				})
				continue
			}
			span.RecordError(err)
			return Result{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		prepared = append(prepared, p)
	}

	// Phase two: replace stale chunks and write everything. The vector
	// upsert is one call across all documents; a store error here means
	// no chunk of this request was persisted.
	if len(prepared) > 0 {
		if err := s.commit(ctx, collection, prepared); err != nil {
			span.RecordError(err)
			return Result{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	for _, p := range prepared {
		result.IngestedCount++
		result.ChunkCount += len(p.chunkIDs)
		result.ChunkIDs = append(result.ChunkIDs, p.chunkIDs...)
		result.DocIDs = append(result.DocIDs, p.docID)
	}

	s.logger.Info("ingest complete",
		zap.String("collection", collection),
		zap.Int("documents", result.IngestedCount),
		zap.Int("chunks", result.ChunkCount),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}

// prepare chunks and embeds one document without touching storage, so a
// failing document never destroys its previously stored version.
func (s *Service) prepare(ctx context.Context, doc contract.Document) (preparedDoc, error) {
	chunks, err := s.chunks.Split(doc)
	if err != nil {
		return preparedDoc{}, fmt.Errorf("chunking document %s: %w", doc.DocID, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return preparedDoc{}, fmt.Errorf("%w: %v", vectorstore.ErrEmbeddingFailed, err)
	}

	p := preparedDoc{
		docID:     doc.DocID,
		chunkIDs:  make([]string, len(chunks)),
		storeDocs: make([]vectorstore.Document, len(chunks)),
		lexDocs:   make([]lexical.Document, len(chunks)),
	}
	for i, c := range chunks {
		p.chunkIDs[i] = c.ChunkID
		p.storeDocs[i] = vectorstore.Document{
			ID:        c.ChunkID,
			Content:   c.Text,
			Metadata:  c.Metadata,
			Embedding: vectors[i],
		}
		p.lexDocs[i] = lexical.Document{
			ChunkID:  c.ChunkID,
			DocID:    c.DocID,
			Text:     c.Text,
			Metadata: c.Metadata,
		}
	}
	return p, nil
}

// commit replaces every prepared document's chunks so re-ingesting
// converges to one stored copy per chunk id.
func (s *Service) commit(ctx context.Context, collection string, prepared []preparedDoc) error {
	var storeDocs []vectorstore.Document
	var lexDocs []lexical.Document
	for _, p := range prepared {
		// Stale chunks from a previous, longer version of the document
		// would otherwise survive the upsert.
		if err := s.store.DeleteWhere(ctx, collection, map[string]string{"doc_id": p.docID}); err != nil {
			return fmt.Errorf("removing stale chunks for %s: %w", p.docID, err)
		}
		if s.lexical != nil {
			if err := s.lexical.DeleteByDocID(ctx, collection, p.docID); err != nil {
				return fmt.Errorf("removing stale keyword entries for %s: %w", p.docID, err)
			}
		}
		storeDocs = append(storeDocs, p.storeDocs...)
		lexDocs = append(lexDocs, p.lexDocs...)
	}

	if _, err := s.store.AddDocuments(ctx, collection, storeDocs); err != nil {
		return err
	}
	if s.lexical != nil {
		if err := s.lexical.IndexChunks(ctx, collection, lexDocs); err != nil {
			return fmt.Errorf("indexing keywords: %w", err)
		}
	}
	return nil
}
