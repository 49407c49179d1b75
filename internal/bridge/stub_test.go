package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/verifyd/internal/contract"
)

func trialChunks() []contract.RetrievedChunk {
	return []contract.RetrievedChunk{
		{
			ChunkID: "smoke-001-chunk-0",
			DocID:   "smoke-001",
			Text:    "DOAC therapy with apixaban reduces stroke risk by approximately 70% in patients with atrial fibrillation (AFib), per the ARISTOTLE trial.",
			Score:   0.91,
		},
		{
			ChunkID: "smoke-002-chunk-0",
			DocID:   "smoke-002",
			Text:    "CAR-T cell therapy achieves greater than 80% complete remission rates in children with relapsed ALL.",
			Score:   0.44,
		},
		{
			ChunkID: "smoke-003-chunk-0",
			DocID:   "smoke-003",
			Text:    "Lecanemab reduces the rate of cognitive decline by 27% through an anti-amyloid-beta mechanism in early Alzheimer's disease.",
			Score:   0.32,
		},
	}
}

func TestStubSupportedClaim(t *testing.T) {
	b := NewStubBridge()
	defer b.Close()

	j, err := b.JudgeClaim(context.Background(),
		contract.Claim{ID: "c1", Text: "Apixaban reduces stroke risk by approximately 70% in AFib patients"},
		trialChunks())
	require.NoError(t, err)

	assert.Equal(t, contract.VerdictPass, j.Verdict)
	require.NotEmpty(t, j.Evidence)
	assert.Equal(t, "smoke-001-chunk-0", j.Evidence[0].ChunkID)
	assert.Contains(t, j.Evidence[0].Quote, "apixaban")
}

func TestStubConflictingQuantity(t *testing.T) {
	b := NewStubBridge()

	j, err := b.JudgeClaim(context.Background(),
		contract.Claim{ID: "c2", Text: "CAR-T therapy achieves 95% remission in ALL"},
		trialChunks())
	require.NoError(t, err)

	assert.Equal(t, contract.VerdictFail, j.Verdict)
	assert.Empty(t, j.Evidence)
}

func TestStubLowOverlapIsUnclear(t *testing.T) {
	b := NewStubBridge()

	j, err := b.JudgeClaim(context.Background(),
		contract.Claim{ID: "c3", Text: "Lecanemab targets tau protein tangles"},
		trialChunks())
	require.NoError(t, err)

	assert.Equal(t, contract.VerdictUnclear, j.Verdict)
	assert.Empty(t, j.Evidence)
}

func TestStubNoChunks(t *testing.T) {
	b := NewStubBridge()

	j, err := b.JudgeClaim(context.Background(),
		contract.Claim{ID: "c4", Text: "Anything at all"}, nil)
	require.NoError(t, err)
	assert.Equal(t, contract.VerdictUnclear, j.Verdict)
}

func TestStubRationaleOmitsChunkText(t *testing.T) {
	b := NewStubBridge()

	for _, claim := range []string{
		"Apixaban reduces stroke risk by approximately 70% in AFib patients",
		"CAR-T therapy achieves 95% remission in ALL",
		"Lecanemab targets tau protein tangles",
	} {
		j, err := b.JudgeClaim(context.Background(), contract.Claim{ID: "c", Text: claim}, trialChunks())
		require.NoError(t, err)
		assert.NotContains(t, j.Rationale, "ARISTOTLE")
		assert.NotContains(t, j.Rationale, "remission")
	}
}

func TestNewBridge(t *testing.T) {
	b, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &StubBridge{}, b)

	_, err = New(Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{Provider: "anthropic"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewLiveDefaultsToNoBridge(t *testing.T) {
	// The stub never judges authoritatively: the default configuration
	// yields no live bridge at all.
	b, err := NewLive(Config{})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = NewLive(Config{Provider: "stub"})
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = NewLive(Config{Provider: "anthropic"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
