package bridge

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/verifyd/internal/contract"
	"github.com/fyrsmithlabs/verifyd/internal/embeddings"
)

// supportThreshold is the minimum fraction of claim terms that must
// appear in a chunk before the stub considers the chunk topically
// relevant to the claim.
const supportThreshold = 0.5

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// StubBridge is a deterministic, model-free judge. It finds the chunk
// with the highest claim-term overlap, then checks that every number
// stated in the claim also appears in that chunk. High overlap with
// agreeing numbers supports the claim; high overlap with a conflicting
// number contradicts it; low overlap leaves it unclear.
//
// The stub is intentionally conservative and non-authoritative. It
// exists so demonstration and test deployments behave deterministically
// without a language model.
type StubBridge struct{}

// NewStubBridge creates a new StubBridge.
func NewStubBridge() *StubBridge {
	return &StubBridge{}
}

// JudgeClaim assesses one claim against the given chunks.
func (b *StubBridge) JudgeClaim(ctx context.Context, claim contract.Claim, chunks []contract.RetrievedChunk) (Judgment, error) {
	if err := ctx.Err(); err != nil {
		return Judgment{}, err
	}

	claimTerms := significantTerms(claim.Text)
	if len(chunks) == 0 || len(claimTerms) == 0 {
		return Judgment{
			Verdict:   contract.VerdictUnclear,
			Rationale: "no evidence available to assess the claim",
		}, nil
	}

	best := -1
	bestOverlap := 0.0
	for i, chunk := range chunks {
		overlap := termOverlap(claimTerms, significantTerms(chunk.Text))
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = i
		}
	}

	if best < 0 || bestOverlap < supportThreshold {
		return Judgment{
			Verdict:   contract.VerdictUnclear,
			Rationale: fmt.Sprintf("best term overlap %.2f below support threshold %.2f", bestOverlap, supportThreshold),
		}, nil
	}

	chunk := chunks[best]
	claimNumbers := numberRe.FindAllString(claim.Text, -1)
	chunkNumbers := toSet(numberRe.FindAllString(chunk.Text, -1))
	for _, n := range claimNumbers {
		if !chunkNumbers[n] {
			return Judgment{
				Verdict:   contract.VerdictFail,
				Rationale: "a quantity stated in the claim conflicts with the best-matching evidence",
			}, nil
		}
	}

	return Judgment{
		Verdict: contract.VerdictPass,
		Evidence: []contract.Evidence{{
			ChunkID: chunk.ChunkID,
			Quote:   quoteFrom(chunk.Text, claimTerms),
		}},
		Rationale: fmt.Sprintf("claim terms overlap evidence at %.2f with agreeing quantities", bestOverlap),
	}, nil
}

// Close is a no-op for StubBridge.
func (b *StubBridge) Close() error {
	return nil
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "have": true, "has": true, "had": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"per": true, "via": true, "through": true,
}

func significantTerms(text string) []string {
	terms := embeddings.Tokenize(text)
	out := terms[:0]
	for _, t := range terms {
		if len(t) > 2 && !stopwords[t] && !numberRe.MatchString(t) {
			out = append(out, t)
		}
	}
	return out
}

func termOverlap(claimTerms, chunkTerms []string) float64 {
	unique := toSet(claimTerms)
	if len(unique) == 0 {
		return 0
	}
	chunkSet := toSet(chunkTerms)
	matched := 0
	for t := range unique {
		if chunkSet[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(unique))
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

// quoteFrom returns the first sentence of the chunk containing a claim
// term, falling back to a bounded prefix of the chunk.
func quoteFrom(text string, claimTerms []string) string {
	terms := toSet(claimTerms)
	for _, sentence := range strings.SplitAfter(text, ". ") {
		for _, t := range significantTerms(sentence) {
			if terms[t] {
				return strings.TrimSpace(sentence)
			}
		}
	}
	const maxQuote = 200
	if len(text) > maxQuote {
		return strings.TrimSpace(text[:maxQuote])
	}
	return strings.TrimSpace(text)
}

var _ Bridge = (*StubBridge)(nil)
