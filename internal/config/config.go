// Package config provides configuration loading for verifyd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_HTTP_PORT, RETRIEVAL_TOP_K, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/verifyd/internal/logging"
	"github.com/fyrsmithlabs/verifyd/internal/telemetry"
)

// Config holds the complete verifyd configuration.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Logging   logging.Config   `koanf:"logging"`
	Agent     AgentConfig      `koanf:"agent"`
	Chunker   ChunkerConfig    `koanf:"chunker"`
	Retrieval RetrievalConfig  `koanf:"retrieval"`
	Store     StoreConfig      `koanf:"store"`
	Lexical   LexicalConfig    `koanf:"lexical"`
	Embedder  EmbedderConfig   `koanf:"embedder"`
	Bridge    BridgeConfig     `koanf:"bridge"`
	Events    EventsConfig     `koanf:"events"`
	Telemetry telemetry.Config `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AgentConfig declares which task types this process serves and related
// defaults.
type AgentConfig struct {
	// TaskTypes lists the task types served by this process. An empty
	// list means all pipeline task types.
	TaskTypes []string `koanf:"task_types"`

	// DefaultCollection is used when a request carries no collection.
	DefaultCollection string `koanf:"default_collection"`
}

// ChunkerConfig bounds document splitting.
type ChunkerConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// RetrievalConfig tunes the staged retrieval pipeline.
type RetrievalConfig struct {
	TopK           int     `koanf:"top_k"`
	SemanticK      int     `koanf:"semantic_k"`
	BM25K          int     `koanf:"bm25_k"`
	SemanticWeight float64 `koanf:"semantic_weight"`
	EnableBM25     bool    `koanf:"enable_bm25"`
	EnableRerank   bool    `koanf:"enable_rerank"`
}

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory.
	Path       string `koanf:"path"`
	VectorSize int    `koanf:"vector_size"`
}

// LexicalConfig holds the BM25 index configuration.
type LexicalConfig struct {
	// Path is the SQLite database path. Empty means in-memory.
	Path string `koanf:"path"`
}

// EmbedderConfig selects the embedding provider.
type EmbedderConfig struct {
	// Provider is "local" (deterministic hashed bag-of-words) or "tei"
	// (HTTP text-embeddings-inference endpoint).
	Provider  string `koanf:"provider"`
	BaseURL   string `koanf:"base_url"`
	Model     string `koanf:"model"`
	Dimension int    `koanf:"dimension"`
}

// BridgeConfig selects the language bridge.
type BridgeConfig struct {
	// Provider is "stub" (deterministic) or "openai" (any
	// OpenAI-compatible endpoint via langchaingo).
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
}

// EventsConfig configures the optional NATS mirror for progress events.
type EventsConfig struct {
	// NATSURL enables event mirroring when non-empty.
	NATSURL string `koanf:"nats_url"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9300,
			ShutdownTimeout: 10 * time.Second,
		},
		Agent: AgentConfig{
			DefaultCollection: "verifyd_default",
		},
		Chunker: ChunkerConfig{
			ChunkSize:    1000,
			ChunkOverlap: 100,
		},
		Retrieval: RetrievalConfig{
			TopK:           5,
			SemanticK:      20,
			BM25K:          20,
			SemanticWeight: 0.7,
			EnableBM25:     true,
			EnableRerank:   false,
		},
		Store: StoreConfig{
			VectorSize: 256,
		},
		Embedder: EmbedderConfig{
			Provider:  "local",
			Dimension: 256,
		},
		Bridge: BridgeConfig{
			Provider: "stub",
		},
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Chunker.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be in [0, chunk size)", c.Chunker.ChunkOverlap)
	}
	if c.Retrieval.TopK <= 0 || c.Retrieval.SemanticK <= 0 || c.Retrieval.BM25K <= 0 {
		return errors.New("retrieval top_k, semantic_k and bm25_k must be positive")
	}
	if c.Retrieval.SemanticWeight < 0 || c.Retrieval.SemanticWeight > 1 {
		return fmt.Errorf("semantic weight %v must be in [0, 1]", c.Retrieval.SemanticWeight)
	}
	if c.Store.VectorSize <= 0 {
		return errors.New("store vector size must be positive")
	}
	switch c.Embedder.Provider {
	case "local", "tei":
	default:
		return fmt.Errorf("unknown embedder provider %q", c.Embedder.Provider)
	}
	switch c.Bridge.Provider {
	case "stub", "openai":
	default:
		return fmt.Errorf("unknown bridge provider %q", c.Bridge.Provider)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
