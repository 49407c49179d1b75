// Package bridge connects claim verification to a language model. A
// deterministic stub serves offline and demonstration deployments; the
// OpenAI-compatible bridge serves live ones.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/verifyd/internal/contract"
)

var (
	// ErrBridgeUnavailable indicates the language bridge could not be
	// reached.
	ErrBridgeUnavailable = errors.New("language bridge unavailable")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Judgment is the bridge's assessment of one claim against a set of
// chunks.
type Judgment struct {
	Verdict   contract.Verdict
	Evidence  []contract.Evidence
	Rationale string
}

// Bridge judges claims against retrieved chunk text.
type Bridge interface {
	// JudgeClaim assesses one claim against the given chunks. An empty
	// chunk list yields an unclear judgment rather than an error.
	JudgeClaim(ctx context.Context, claim contract.Claim, chunks []contract.RetrievedChunk) (Judgment, error)

	// Close releases resources held by the bridge.
	Close() error
}

// Config holds configuration for creating a bridge.
type Config struct {
	// Provider is the bridge type: "stub" or "openai".
	Provider string
	// BaseURL is the API endpoint (openai only). Empty selects the
	// provider's default endpoint.
	BaseURL string
	// Model is the model name (openai only).
	Model string
}

// New creates a bridge based on the configuration.
func New(cfg Config) (Bridge, error) {
	switch cfg.Provider {
	case "stub", "":
		return NewStubBridge(), nil
	case "openai":
		return NewOpenAIBridge(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// NewLive creates the bridge used for LIVE-mode judging, or nil when no
// model-backed provider is configured. The deterministic stub must
// never act as an authoritative judge, so "stub" yields no live bridge
// and LIVE requests stay fail-closed.
func NewLive(cfg Config) (Bridge, error) {
	switch cfg.Provider {
	case "stub", "":
		return nil, nil
	case "openai":
		return NewOpenAIBridge(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
