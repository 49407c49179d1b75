package vectorstore

import (
	"context"
	"fmt"
	"os"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("verifyd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded vector
// database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty selects a
	// purely in-memory database.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// DefaultCollection is the collection used when callers pass an
	// empty collection name.
	DefaultCollection string

	// VectorSize is the expected embedding dimension. Must match the
	// embedder's output dimension.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.DefaultCollection == "" {
		c.DefaultCollection = "verifyd_default"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 256
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements the Store interface using chromem-go, an
// embeddable pure-Go vector database. Persistence is optional; without a
// path all data lives in memory, which is what tests and demonstration
// deployments use.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	store := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.Int("vector_size", config.VectorSize),
		zap.String("default_collection", config.DefaultCollection),
	)

	return store, nil
}

// createEmbeddingFunc adapts the Embedder to chromem's embedding hook.
func (s *ChromemStore) createEmbeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) collectionName(name string) string {
	if name == "" {
		return s.config.DefaultCollection
	}
	return name
}

// AddDocuments adds documents to the vector store.
func (s *ChromemStore) AddDocuments(ctx context.Context, collection string, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()

	collection = s.collectionName(collection)
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	col, err := s.db.GetOrCreateCollection(collection, nil, s.createEmbeddingFunc())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("getting/creating collection %s: %w", collection, err)
	}

	ids := make([]string, len(docs))
	var missing []int
	var texts []string
	for i, doc := range docs {
		if doc.ID == "" {
			return nil, fmt.Errorf("document at index %d has no ID", i)
		}
		ids[i] = doc.ID
		if len(doc.Embedding) == 0 {
			missing = append(missing, i)
			texts = append(texts, doc.Content)
		}
	}

	// Precomputed embeddings are respected; only the rest are embedded.
	vectors := make([][]float32, len(docs))
	for i, doc := range docs {
		vectors[i] = doc.Embedding
	}
	if len(missing) > 0 {
		start := time.Now()
		embedded, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		EmbedDuration.Observe(time.Since(start).Seconds())
		for j, i := range missing {
			vectors[i] = embedded[j]
		}
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: vectors[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := col.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	DocumentsAdded.Add(float64(len(ids)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added documents to chromem",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// Search performs similarity search in a collection.
func (s *ChromemStore) Search(ctx context.Context, collection string, query string, k int, filters map[string]string) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	collection = s.collectionName(collection)
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	col := s.db.GetCollection(collection, s.createEmbeddingFunc())
	if col == nil {
		span.SetStatus(codes.Error, ErrCollectionNotFound.Error())
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// chromem requires nResults <= document count.
	docCount := col.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	start := time.Now()
	results, err := col.Query(ctx, query, k, filters, nil)
	SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		SearchesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}
	SearchesTotal.WithLabelValues("success").Inc()

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")

	return searchResults, nil
}

// DeleteDocuments deletes documents by their IDs.
func (s *ChromemStore) DeleteDocuments(ctx context.Context, collection string, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteDocuments")
	defer span.End()

	collection = s.collectionName(collection)
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("id_count", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	col := s.db.GetCollection(collection, s.createEmbeddingFunc())
	if col == nil {
		return ErrCollectionNotFound
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting documents: %w", err)
	}

	DocumentsDeleted.Add(float64(len(ids)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteWhere deletes all documents whose metadata matches the filters.
func (s *ChromemStore) DeleteWhere(ctx context.Context, collection string, filters map[string]string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteWhere")
	defer span.End()

	collection = s.collectionName(collection)
	span.SetAttributes(attribute.String("collection", collection))

	if len(filters) == 0 {
		return fmt.Errorf("filters cannot be empty")
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	col := s.db.GetCollection(collection, s.createEmbeddingFunc())
	if col == nil {
		return nil
	}

	if err := col.Delete(ctx, filters, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting by filter: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the number of documents stored in a collection.
func (s *ChromemStore) Count(ctx context.Context, collection string) (int, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Count")
	defer span.End()

	collection = s.collectionName(collection)
	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}

	col := s.db.GetCollection(collection, s.createEmbeddingFunc())
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

// Close closes the ChromemStore. chromem persists writes as they happen,
// so there is nothing to flush.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

var _ Store = (*ChromemStore)(nil)
