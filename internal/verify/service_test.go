package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verifyd/internal/bridge"
	"github.com/fyrsmithlabs/verifyd/internal/contract"
)

// scriptedBridge returns canned judgments keyed by claim id.
type scriptedBridge struct {
	judgments map[string]bridge.Judgment
	err       error
}

func (b *scriptedBridge) JudgeClaim(ctx context.Context, claim contract.Claim, chunks []contract.RetrievedChunk) (bridge.Judgment, error) {
	if b.err != nil {
		return bridge.Judgment{}, b.err
	}
	return b.judgments[claim.ID], nil
}

func (b *scriptedBridge) Close() error { return nil }

func groundingPack() contract.GroundingPack {
	return contract.GroundingPack{
		Chunks: []contract.RetrievedChunk{
			{
				ChunkID: "smoke-001-chunk-0",
				DocID:   "smoke-001",
				Text:    "DOAC therapy with apixaban reduces stroke risk by approximately 70% in patients with atrial fibrillation (AFib), per the ARISTOTLE trial.",
				Score:   0.9,
			},
			{
				ChunkID: "smoke-002-chunk-0",
				DocID:   "smoke-002",
				Text:    "CAR-T cell therapy achieves greater than 80% complete remission rates in children with relapsed ALL.",
				Score:   0.5,
			},
			{
				ChunkID: "smoke-003-chunk-0",
				DocID:   "smoke-003",
				Text:    "Lecanemab reduces the rate of cognitive decline by 27% through an anti-amyloid-beta mechanism in early Alzheimer's disease.",
				Score:   0.4,
			},
		},
	}
}

func TestVerifyDemoSmokeClaims(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	result, err := svc.Verify(context.Background(), Request{
		Mode: contract.ModeDemo,
		Claims: []contract.Claim{
			{ID: "c1", Text: "Apixaban reduces stroke risk by approximately 70% in AFib patients"},
			{ID: "c2", Text: "CAR-T therapy achieves 95% remission in ALL"},
			{ID: "c3", Text: "Lecanemab targets tau protein tangles"},
		},
		Pack: groundingPack(),
	})
	require.NoError(t, err)
	require.Len(t, result.ClaimVerdicts, 3)

	assert.Equal(t, contract.VerdictPass, result.ClaimVerdicts[0].Verdict)
	require.NotEmpty(t, result.ClaimVerdicts[0].Evidence)
	assert.Equal(t, "smoke-001-chunk-0", result.ClaimVerdicts[0].Evidence[0].ChunkID)

	assert.Contains(t, []contract.Verdict{contract.VerdictFail, contract.VerdictUnclear}, result.ClaimVerdicts[1].Verdict)
	assert.Contains(t, []contract.Verdict{contract.VerdictFail, contract.VerdictUnclear}, result.ClaimVerdicts[2].Verdict)

	assert.False(t, result.OverallPass)
	assert.False(t, result.Authoritative)
}

func TestVerifyEmptyPackIsUnclear(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	for _, mode := range []contract.Mode{contract.ModeDemo, contract.ModeLive} {
		result, err := svc.Verify(context.Background(), Request{
			Mode:   mode,
			Claims: []contract.Claim{{ID: "c1", Text: "Anything"}},
		})
		require.NoError(t, err)
		require.Len(t, result.ClaimVerdicts, 1)
		assert.Equal(t, contract.VerdictUnclear, result.ClaimVerdicts[0].Verdict, "mode %s", mode)
		assert.False(t, result.OverallPass)
	}
}

func TestVerifyEmptyClaimsPassVacuously(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	result, err := svc.Verify(context.Background(), Request{Pack: groundingPack()})
	require.NoError(t, err)
	assert.Empty(t, result.ClaimVerdicts)
	assert.True(t, result.OverallPass)
}

func TestVerifyLiveWithoutBridgeDemotesToUnclear(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	result, err := svc.Verify(context.Background(), Request{
		Mode:   contract.ModeLive,
		Claims: []contract.Claim{{ID: "c1", Text: "Apixaban reduces stroke risk"}},
		Pack:   groundingPack(),
	})
	require.NoError(t, err)
	assert.Equal(t, contract.VerdictUnclear, result.ClaimVerdicts[0].Verdict)
	assert.False(t, result.OverallPass)
	assert.False(t, result.Authoritative)
}

func TestVerifyLiveBridgeErrorDemotesToUnclear(t *testing.T) {
	svc := NewService(&scriptedBridge{err: errors.New("connection refused")}, zap.NewNop())

	result, err := svc.Verify(context.Background(), Request{
		Mode: contract.ModeLive,
		Claims: []contract.Claim{
			{ID: "c1", Text: "First claim"},
			{ID: "c2", Text: "Second claim"},
		},
		Pack: groundingPack(),
	})
	require.NoError(t, err)
	require.Len(t, result.ClaimVerdicts, 2)
	for _, v := range result.ClaimVerdicts {
		assert.Equal(t, contract.VerdictUnclear, v.Verdict)
	}
	assert.False(t, result.OverallPass)
}

func TestVerifyLivePassRequiresResolvableEvidence(t *testing.T) {
	svc := NewService(&scriptedBridge{judgments: map[string]bridge.Judgment{
		"c1": {
			Verdict:  contract.VerdictPass,
			Evidence: []contract.Evidence{{ChunkID: "not-in-pack", Quote: "fabricated"}},
		},
		"c2": {
			Verdict: contract.VerdictPass,
			Evidence: []contract.Evidence{
				{ChunkID: "not-in-pack", Quote: "fabricated"},
				{ChunkID: "smoke-001-chunk-0", Quote: "apixaban reduces stroke risk"},
			},
		},
	}}, zap.NewNop())

	result, err := svc.Verify(context.Background(), Request{
		Mode: contract.ModeLive,
		Claims: []contract.Claim{
			{ID: "c1", Text: "Unsupported claim"},
			{ID: "c2", Text: "Supported claim"},
		},
		Pack: groundingPack(),
	})
	require.NoError(t, err)

	assert.Equal(t, contract.VerdictUnclear, result.ClaimVerdicts[0].Verdict)
	assert.Empty(t, result.ClaimVerdicts[0].Evidence)

	assert.Equal(t, contract.VerdictPass, result.ClaimVerdicts[1].Verdict)
	require.Len(t, result.ClaimVerdicts[1].Evidence, 1)
	assert.Equal(t, "smoke-001-chunk-0", result.ClaimVerdicts[1].Evidence[0].ChunkID)

	assert.False(t, result.OverallPass)
}

func TestVerifyOrderPreservedUnderPartialFailure(t *testing.T) {
	svc := NewService(&scriptedBridge{judgments: map[string]bridge.Judgment{
		"a": {Verdict: contract.VerdictPass, Evidence: []contract.Evidence{{ChunkID: "smoke-001-chunk-0"}}},
		"b": {Verdict: contract.VerdictFail},
		"c": {Verdict: contract.VerdictUnclear},
	}}, zap.NewNop())

	result, err := svc.Verify(context.Background(), Request{
		Mode: contract.ModeLive,
		Claims: []contract.Claim{
			{ID: "a", Text: "first"},
			{ID: "b", Text: "second"},
			{ID: "c", Text: "third"},
		},
		Pack: groundingPack(),
	})
	require.NoError(t, err)
	require.Len(t, result.ClaimVerdicts, 3)
	assert.Equal(t, "a", result.ClaimVerdicts[0].ClaimID)
	assert.Equal(t, "b", result.ClaimVerdicts[1].ClaimID)
	assert.Equal(t, "c", result.ClaimVerdicts[2].ClaimID)
	assert.False(t, result.OverallPass)
}

func TestVerifyAllPass(t *testing.T) {
	svc := NewService(&scriptedBridge{judgments: map[string]bridge.Judgment{
		"a": {Verdict: contract.VerdictPass, Evidence: []contract.Evidence{{ChunkID: "smoke-001-chunk-0"}}},
	}}, zap.NewNop())

	result, err := svc.Verify(context.Background(), Request{
		Mode:   contract.ModeLive,
		Claims: []contract.Claim{{ID: "a", Text: "first"}},
		Pack:   groundingPack(),
	})
	require.NoError(t, err)
	assert.True(t, result.OverallPass)
	assert.True(t, result.Authoritative)
}
