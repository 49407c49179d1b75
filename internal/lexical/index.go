// Package lexical provides keyword search over chunk text using SQLite
// FTS5 with BM25 ranking.
package lexical

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/fyrsmithlabs/verifyd/internal/embeddings"
)

var (
	// ErrEmptyChunks indicates empty or nil chunks.
	ErrEmptyChunks = errors.New("empty or nil chunks")
)

// Document is a chunk to be indexed for keyword search.
type Document struct {
	ChunkID  string
	DocID    string
	Text     string
	Metadata map[string]string
}

// Result is a keyword search hit.
type Result struct {
	ChunkID  string
	DocID    string
	Text     string
	Metadata map[string]string

	// Score is the BM25 relevance normalized into [0, 1) via s/(s+1).
	Score float64
}

// Config holds configuration for the lexical index.
type Config struct {
	// Path is the SQLite database file. Empty selects an in-memory
	// database.
	Path string
}

// Index is a BM25 keyword index over chunk text.
type Index struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIndex opens (or creates) the lexical index.
func NewIndex(config Config, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := ":memory:"
	if config.Path != "" {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = config.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps the in-memory database alive and
	// serializes FTS writes.
	db.SetMaxOpenConns(1)

	schema := `CREATE VIRTUAL TABLE IF NOT EXISTS chunks USING fts5(
		text,
		chunk_id UNINDEXED,
		doc_id UNINDEXED,
		collection UNINDEXED,
		metadata UNINDEXED
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating fts5 table: %w", err)
	}

	return &Index{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// IndexChunks adds chunks to the index. Existing rows for the same doc
// IDs are not touched; callers replacing a document should call
// DeleteByDocID first.
func (ix *Index) IndexChunks(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyChunks
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (text, chunk_id, doc_id, collection, metadata) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if doc.ChunkID == "" {
			return fmt.Errorf("chunk has no ID (doc %s)", doc.DocID)
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for chunk %s: %w", doc.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx, doc.Text, doc.ChunkID, doc.DocID, collection, string(meta)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", doc.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	ix.logger.Debug("indexed chunks for keyword search",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// DeleteByDocID removes all chunks of a document from the index.
func (ix *Index) DeleteByDocID(ctx context.Context, collection, docID string) error {
	_, err := ix.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE doc_id = ? AND collection = ?`, docID, collection)
	if err != nil {
		return fmt.Errorf("deleting chunks for doc %s: %w", docID, err)
	}
	return nil
}

// Count returns the number of chunks indexed for a collection.
func (ix *Index) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Search runs a BM25 keyword query and returns up to k results ordered
// by relevance. Filters match chunk metadata exactly. Queries that
// contain no indexable terms return no results.
func (ix *Index) Search(ctx context.Context, collection, query string, k int, filters map[string]string) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	match := buildMatchQuery(query)
	if match == "" {
		return []Result{}, nil
	}

	// Over-fetch when filtering so post-filter results can still fill k.
	limit := k
	if len(filters) > 0 {
		limit = k * 4
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT chunk_id, doc_id, text, metadata, bm25(chunks) AS rank
		 FROM chunks
		 WHERE chunks MATCH ? AND collection = ?
		 ORDER BY rank
		 LIMIT ?`,
		match, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, k)
	for rows.Next() {
		var r Result
		var meta string
		var rank float64
		if err := rows.Scan(&r.ChunkID, &r.DocID, &r.Text, &meta, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for chunk %s: %w", r.ChunkID, err)
			}
		}
		if !matchesFilters(r.Metadata, filters) {
			continue
		}
		// bm25() negates scores so better matches sort first; flip back
		// and squash into [0, 1).
		s := -rank
		if s < 0 {
			s = 0
		}
		r.Score = s / (s + 1)
		results = append(results, r)
		if len(results) == k {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return results, nil
}

// buildMatchQuery converts free text into a safe FTS5 MATCH expression.
// Each term is double-quoted so user input cannot inject FTS5 syntax,
// and terms are OR-joined so partial matches still rank.
func buildMatchQuery(query string) string {
	terms := embeddings.Tokenize(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, ``) + `"`
	}
	return strings.Join(quoted, " OR ")
}

func matchesFilters(metadata, filters map[string]string) bool {
	for k, want := range filters {
		if metadata[k] != want {
			return false
		}
	}
	return true
}
