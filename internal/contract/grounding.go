package contract

import "sort"

// Retrieval stage names recorded in a Grounding Pack's trace. Stages are
// appended additively as the retrieval pipeline evolves; existing names
// are never renamed or removed.
const (
	StageSemantic = "semantic"
	StageBM25     = "bm25"
	StageRerank   = "rerank"
)

// Document is a unit of source text submitted for ingestion. Immutable
// once ingested; re-ingesting the same DocID is an upsert.
type Document struct {
	DocID    string            `json:"doc_id"`
	Title    string            `json:"title,omitempty"`
	Source   string            `json:"source,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RetrievedChunk is one scored chunk in a Grounding Pack. Score is always
// within [0, 1].
type RetrievedChunk struct {
	ChunkID string  `json:"chunk_id"`
	DocID   string  `json:"doc_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// Citation references the source document of a returned chunk. Retrieve
// emits at least one citation per chunk.
type Citation struct {
	ChunkID string `json:"chunk_id"`
	DocID   string `json:"doc_id"`
	Source  string `json:"source,omitempty"`
	Title   string `json:"title,omitempty"`
}

// StageTrace records one executed retrieval stage and the candidate count
// it contributed.
type StageTrace struct {
	Name       string `json:"name"`
	Candidates int    `json:"candidates"`
}

// RetrievalTrace describes which stages ran, in execution order.
type RetrievalTrace struct {
	Stages []StageTrace `json:"stages"`
}

// GroundingPack is the output of a retrieval operation: ordered chunks,
// one citation per chunk, and the trace of executed stages.
type GroundingPack struct {
	Chunks    []RetrievedChunk `json:"chunks"`
	Citations []Citation       `json:"citations"`
	Trace     RetrievalTrace   `json:"retrieval_trace"`
}

// Normalize enforces the pack invariants: scores clamped to [0, 1],
// chunks sorted by descending score with chunk-id tie-break, and the list
// truncated to topK when topK > 0.
func (p *GroundingPack) Normalize(topK int) {
	for i := range p.Chunks {
		if p.Chunks[i].Score < 0 {
			p.Chunks[i].Score = 0
		}
		if p.Chunks[i].Score > 1 {
			p.Chunks[i].Score = 1
		}
	}
	sort.SliceStable(p.Chunks, func(i, j int) bool {
		if p.Chunks[i].Score != p.Chunks[j].Score {
			return p.Chunks[i].Score > p.Chunks[j].Score
		}
		return p.Chunks[i].ChunkID < p.Chunks[j].ChunkID
	})
	if topK > 0 && len(p.Chunks) > topK {
		p.Chunks = p.Chunks[:topK]
	}
}

// HasChunk reports whether the pack contains a chunk with the given id.
func (p *GroundingPack) HasChunk(chunkID string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.Chunks {
		if c.ChunkID == chunkID {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the pack is nil or contains no chunks.
func (p *GroundingPack) IsEmpty() bool {
	return p == nil || len(p.Chunks) == 0
}

// Claim is a natural-language assertion submitted for verification.
type Claim struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Verdict is the outcome for one claim.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictUnclear Verdict = "unclear"
)

// Evidence references a chunk that a verdict relied on. Evidence citing a
// chunk absent from the Grounding Pack never counts toward a pass.
type Evidence struct {
	ChunkID string `json:"chunk_id"`
	Quote   string `json:"quote,omitempty"`
}

// ClaimVerdict is the result for one claim. Evidence is non-empty
// whenever Verdict is pass.
type ClaimVerdict struct {
	ClaimID   string     `json:"claim_id"`
	Verdict   Verdict    `json:"verdict"`
	Evidence  []Evidence `json:"evidence,omitempty"`
	Rationale string     `json:"rationale,omitempty"`
}
