package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewValidatesLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	assert.Error(t, err)

	logger, err := New(Config{})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestRedactingEncoderFields(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc := NewRedactingEncoder(base, []string{"text", "claim"})

	assert.True(t, enc.shouldRedact("text"))
	assert.True(t, enc.shouldRedact("Claim"), "matching is case-insensitive")
	assert.False(t, enc.shouldRedact("collection"))

	clone := enc.Clone()
	redacting, ok := clone.(*RedactingEncoder)
	require.True(t, ok)
	assert.True(t, redacting.shouldRedact("text"))
}

func TestRedactingEncoderOutput(t *testing.T) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = ""
	enc := NewRedactingEncoder(zapcore.NewJSONEncoder(encoderCfg), DefaultRedactFields)

	buf, err := enc.EncodeEntry(zapcore.Entry{Level: zapcore.InfoLevel, Message: "ingested"}, []zapcore.Field{
		zap.String("text", "the patient received apixaban"),
		zap.String("collection", "trials"),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "apixaban", "document content never reaches logs")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "trials")
}

func TestRedactedString(t *testing.T) {
	f := RedactedString("text", "sensitive content")
	assert.Equal(t, "[REDACTED:17]", f.String)
}
