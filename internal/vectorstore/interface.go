// Package vectorstore defines the interface for vector storage operations.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Document represents a text unit to be stored in the vector store.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Content is the text content of the document.
	Content string

	// Metadata contains additional key-value pairs for filtering.
	Metadata map[string]string

	// Embedding optionally carries a precomputed vector. When empty the
	// store embeds Content itself.
	Embedding []float32
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the document text content.
	Content string

	// Score is the similarity score in [0, 1], higher is more similar.
	Score float64

	// Metadata contains the document metadata.
	Metadata map[string]string
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for vector storage operations.
//
// The interface is transport-agnostic. Collections namespace documents;
// an empty collection name selects the implementation's configured
// default.
type Store interface {
	// AddDocuments embeds and stores documents in a collection, creating
	// the collection if needed. Returns the IDs of stored documents.
	AddDocuments(ctx context.Context, collection string, docs []Document) ([]string, error)

	// Search performs similarity search and returns up to k results
	// ordered by score descending. Filters match document metadata
	// exactly; only documents matching ALL filters are returned.
	// A missing collection returns ErrCollectionNotFound; an existing
	// but empty collection yields no results.
	Search(ctx context.Context, collection string, query string, k int, filters map[string]string) ([]SearchResult, error)

	// DeleteDocuments deletes documents by their IDs.
	DeleteDocuments(ctx context.Context, collection string, ids []string) error

	// DeleteWhere deletes all documents whose metadata matches the
	// given filters.
	DeleteWhere(ctx context.Context, collection string, filters map[string]string) error

	// Count returns the number of documents stored in a collection.
	// A missing collection counts as zero.
	Count(ctx context.Context, collection string) (int, error)

	// Close closes the vector store and releases resources.
	Close() error
}

var collectionNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,62}$`)

// ValidateCollectionName checks that a collection name is safe to use as
// a storage namespace.
func ValidateCollectionName(name string) error {
	if !collectionNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}
