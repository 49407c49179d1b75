package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/verifyd/internal/contract"
)

// OpenAIBridge judges claims using an OpenAI-compatible chat model via
// langchaingo. Any endpoint speaking the OpenAI API works, including
// local inference servers.
type OpenAIBridge struct {
	llm   llms.Model
	model string
}

// NewOpenAIBridge creates a bridge against an OpenAI-compatible endpoint.
func NewOpenAIBridge(cfg Config) (*OpenAIBridge, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required for openai bridge", ErrInvalidConfig)
	}

	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	return &OpenAIBridge{llm: llm, model: cfg.Model}, nil
}

// judgmentResponse is the JSON shape the model is instructed to emit.
type judgmentResponse struct {
	Verdict   string `json:"verdict"`
	ChunkID   string `json:"chunk_id"`
	Quote     string `json:"quote"`
	Rationale string `json:"rationale"`
}

// JudgeClaim assesses one claim against the given chunks.
func (b *OpenAIBridge) JudgeClaim(ctx context.Context, claim contract.Claim, chunks []contract.RetrievedChunk) (Judgment, error) {
	if len(chunks) == 0 {
		return Judgment{
			Verdict:   contract.VerdictUnclear,
			Rationale: "no evidence available to assess the claim",
		}, nil
	}

	prompt := buildPrompt(claim, chunks)
	raw, err := llms.GenerateFromSinglePrompt(ctx, b.llm, prompt,
		llms.WithTemperature(0),
		llms.WithJSONMode(),
	)
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: %v", ErrBridgeUnavailable, err)
	}

	var resp judgmentResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return Judgment{}, fmt.Errorf("%w: unparsable model response", ErrBridgeUnavailable)
	}

	verdict := contract.Verdict(resp.Verdict)
	switch verdict {
	case contract.VerdictPass, contract.VerdictFail, contract.VerdictUnclear:
	default:
		return Judgment{}, fmt.Errorf("%w: unknown verdict %q", ErrBridgeUnavailable, resp.Verdict)
	}

	j := Judgment{Verdict: verdict, Rationale: resp.Rationale}
	if verdict == contract.VerdictPass && resp.ChunkID != "" {
		j.Evidence = []contract.Evidence{{ChunkID: resp.ChunkID, Quote: resp.Quote}}
	}
	return j, nil
}

// Close is a no-op; the underlying client uses plain HTTP.
func (b *OpenAIBridge) Close() error {
	return nil
}

func buildPrompt(claim contract.Claim, chunks []contract.RetrievedChunk) string {
	var sb strings.Builder
	sb.WriteString("You are a strict scientific fact checker. Judge the claim against the evidence chunks only; do not use outside knowledge.\n\n")
	sb.WriteString("Claim: ")
	sb.WriteString(claim.Text)
	sb.WriteString("\n\nEvidence chunks:\n")
	for _, c := range chunks {
		fmt.Fprintf(&sb, "[%s] %s\n", c.ChunkID, c.Text)
	}
	sb.WriteString("\nRespond with a single JSON object: {\"verdict\": \"pass\"|\"fail\"|\"unclear\", \"chunk_id\": \"<id of supporting chunk, empty unless pass>\", \"quote\": \"<verbatim supporting excerpt, empty unless pass>\", \"rationale\": \"<one sentence>\"}. ")
	sb.WriteString("Use \"pass\" only when a chunk directly entails the claim, \"fail\" when a chunk contradicts it, and \"unclear\" otherwise.")
	return sb.String()
}

// extractJSON tolerates models that wrap JSON in code fences or prose.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

var _ Bridge = (*OpenAIBridge)(nil)
