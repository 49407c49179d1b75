// Package verify assigns evidence-backed verdicts to claims. The policy
// is fail-closed: without real evidence a claim can never pass, and a
// broken language bridge demotes claims to unclear instead of erroring.
package verify

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verifyd/internal/bridge"
	"github.com/fyrsmithlabs/verifyd/internal/contract"
)

var verifyTracer = otel.Tracer("verifyd.verify")

// Request is one verification invocation.
type Request struct {
	// Mode selects the stub (DEMO) or live (LIVE) judging policy.
	Mode contract.Mode
	// Claims are the statements to verify, in caller order.
	Claims []contract.Claim
	// Pack is the grounding evidence. May be empty.
	Pack contract.GroundingPack
}

// Result is the outcome of one verification invocation.
type Result struct {
	// ClaimVerdicts holds exactly one verdict per input claim, in input
	// order.
	ClaimVerdicts []contract.ClaimVerdict `json:"claim_verdicts"`
	// OverallPass is true iff every claim passed. An empty claim list
	// passes vacuously.
	OverallPass bool `json:"overall_pass"`
	// Authoritative is false when verdicts came from the deterministic
	// stub rather than a language model.
	Authoritative bool `json:"authoritative"`
}

// Service verifies claims against grounding packs.
type Service struct {
	live   bridge.Bridge
	stub   bridge.Bridge
	logger *zap.Logger
}

// NewService creates a verify service. The live bridge may be nil, in
// which case LIVE requests demote every claim to unclear.
func NewService(live bridge.Bridge, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		live:   live,
		stub:   bridge.NewStubBridge(),
		logger: logger,
	}
}

// Verify judges every claim. It always returns a well-formed result with
// one verdict per claim; bridge failures surface as unclear verdicts,
// never as an error.
func (s *Service) Verify(ctx context.Context, req Request) (Result, error) {
	ctx, span := verifyTracer.Start(ctx, "verify.Verify")
	defer span.End()

	mode := req.Mode
	if mode == "" {
		mode = contract.ModeDemo
	}
	span.SetAttributes(
		attribute.String("mode", string(mode)),
		attribute.Int("claims", len(req.Claims)),
		attribute.Int("chunks", len(req.Pack.Chunks)),
	)

	judge, authoritative := s.selectBridge(mode)

	result := Result{
		ClaimVerdicts: make([]contract.ClaimVerdict, len(req.Claims)),
		OverallPass:   true,
		Authoritative: authoritative,
	}

	for i, claim := range req.Claims {
		verdict := s.judgeClaim(ctx, judge, mode, claim, req.Pack)
		result.ClaimVerdicts[i] = verdict
		if verdict.Verdict != contract.VerdictPass {
			result.OverallPass = false
		}
	}

	s.logger.Info("verification complete",
		zap.String("mode", string(mode)),
		zap.Int("claims", len(req.Claims)),
		zap.Bool("overall_pass", result.OverallPass),
		zap.Bool("authoritative", result.Authoritative),
	)
	return result, nil
}

// selectBridge picks the judge for the request mode. LIVE without a
// configured live bridge returns nil, which demotes claims to unclear.
func (s *Service) selectBridge(mode contract.Mode) (bridge.Bridge, bool) {
	if mode == contract.ModeLive {
		return s.live, s.live != nil
	}
	return s.stub, false
}

func (s *Service) judgeClaim(ctx context.Context, judge bridge.Bridge, mode contract.Mode, claim contract.Claim, pack contract.GroundingPack) contract.ClaimVerdict {
	out := contract.ClaimVerdict{ClaimID: claim.ID, Verdict: contract.VerdictUnclear}

	if pack.IsEmpty() {
		out.Rationale = "no grounding evidence supplied"
		return out
	}
	if judge == nil {
		out.Rationale = "language bridge unavailable"
		return out
	}

	judgment, err := judge.JudgeClaim(ctx, claim, pack.Chunks)
	if err != nil {
		s.logger.Warn("bridge failed for claim",
			zap.String("claim_id", claim.ID),
			zap.Error(err),
		)
		out.Rationale = "language bridge unavailable"
		return out
	}

	out.Verdict = judgment.Verdict
	out.Rationale = judgment.Rationale
	out.Evidence = judgment.Evidence

	// A pass needs evidence that resolves to the supplied pack. Evidence
	// citing unknown chunks stays attached as best-effort but cannot
	// carry a pass.
	if out.Verdict == contract.VerdictPass {
		resolved := out.Evidence[:0]
		for _, ev := range out.Evidence {
			if pack.HasChunk(ev.ChunkID) {
				resolved = append(resolved, ev)
			}
		}
		if len(resolved) == 0 {
			out.Verdict = contract.VerdictUnclear
			out.Evidence = nil
			out.Rationale = "supporting evidence did not resolve to supplied chunks"
		} else {
			out.Evidence = resolved
		}
	}
	return out
}
