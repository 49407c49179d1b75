// Package chunker splits documents into bounded, overlapping chunks.
//
// Splitting prefers the strongest boundary available inside the size
// budget: paragraph breaks first, then line breaks, then sentence ends,
// then word boundaries, falling back to a hard character split only when
// no boundary fits.
package chunker

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/verifyd/internal/contract"
)

// separators order the boundary preference for the recursive splitter.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunk is one contiguous slice of a document's text.
type Chunk struct {
	// ChunkID is derived deterministically as {docID}-chunk-{N} with N
	// zero-based and contiguous per document.
	ChunkID  string
	DocID    string
	Text     string
	Metadata map[string]string
}

// Config bounds the chunk windows.
type Config struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int
	// ChunkOverlap is the number of characters shared between adjacent
	// chunks.
	ChunkOverlap int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = c.ChunkSize / 10
	}
}

// Chunker splits documents into retrievable chunks.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
	config   Config
}

// New creates a Chunker with the given configuration.
func New(config Config) (*Chunker, error) {
	config.ApplyDefaults()
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, chunk size)", config.ChunkOverlap)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
		textsplitter.WithSeparators(separators),
	)

	return &Chunker{splitter: splitter, config: config}, nil
}

// ChunkID derives the stable chunk id for the n-th chunk of a document.
func ChunkID(docID string, n int) string {
	return fmt.Sprintf("%s-chunk-%d", docID, n)
}

// Split splits one document into chunks. Every document yields at least
// one chunk; a document whose text is empty yields a single empty chunk
// so ingestion stays total over its input.
func (c *Chunker) Split(doc contract.Document) ([]Chunk, error) {
	pieces, err := c.splitter.SplitText(doc.Text)
	if err != nil {
		return nil, fmt.Errorf("splitting document %s: %w", doc.DocID, err)
	}
	if len(pieces) == 0 {
		pieces = []string{doc.Text}
	}

	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		metadata := make(map[string]string, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		metadata["doc_id"] = doc.DocID
		if doc.Source != "" {
			metadata["source"] = doc.Source
		}
		if doc.Title != "" {
			metadata["title"] = doc.Title
		}

		chunks[i] = Chunk{
			ChunkID:  ChunkID(doc.DocID, i),
			DocID:    doc.DocID,
			Text:     piece,
			Metadata: metadata,
		}
	}
	return chunks, nil
}
