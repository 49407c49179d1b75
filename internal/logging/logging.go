// Package logging builds the structured zap logger used across verifyd.
//
// The logger redacts configured field names so ingested document text,
// chunk content and claim text never appear in log output.
package logging

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level: debug, info, warn or error.
	Level string `koanf:"level"`

	// Format selects the encoder: "json" or "console".
	Format string `koanf:"format"`

	// RedactFields lists field names whose values are replaced with
	// "[REDACTED]". Matching is case-insensitive.
	RedactFields []string `koanf:"redact_fields"`
}

// DefaultRedactFields covers every field under which source content could
// reach a log statement.
var DefaultRedactFields = []string{"text", "content", "chunk_text", "claim", "document", "quote"}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
	if c.RedactFields == nil {
		c.RedactFields = DefaultRedactFields
	}
}

// New creates a zap logger from config.
func New(cfg Config) (*zap.Logger, error) {
	cfg.ApplyDefaults()

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(
		NewRedactingEncoder(encoder, cfg.RedactFields),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core), nil
}

// RedactedString creates a field carrying only the value's length.
// Use it when the length of sensitive content is worth logging.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder wraps a zapcore.Encoder to redact sensitive fields by
// name.
type RedactingEncoder struct {
	zapcore.Encoder
	redactFields map[string]bool
}

// NewRedactingEncoder wraps base so that any field whose lowercased name
// appears in fields is written as "[REDACTED]".
func NewRedactingEncoder(base zapcore.Encoder, fields []string) *RedactingEncoder {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[strings.ToLower(f)] = true
	}
	return &RedactingEncoder{Encoder: base, redactFields: m}
}

func (e *RedactingEncoder) shouldRedact(key string) bool {
	return e.redactFields[strings.ToLower(key)]
}

// AddString redacts sensitive field names.
func (e *RedactingEncoder) AddString(key, val string) {
	if e.shouldRedact(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return
	}
	e.Encoder.AddString(key, val)
}

// AddByteString redacts sensitive field names.
func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.shouldRedact(key) {
		e.Encoder.AddByteString(key, []byte("[REDACTED]"))
		return
	}
	e.Encoder.AddByteString(key, val)
}

// AddReflected redacts sensitive field names.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.shouldRedact(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddArray redacts sensitive field names.
func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.shouldRedact(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

// AddObject redacts sensitive field names.
func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.shouldRedact(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone creates a copy of the encoder.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:      e.Encoder.Clone(),
		redactFields: e.redactFields,
	}
}

// EncodeEntry applies per-call fields through the redacting methods
// before delegating to the wrapped encoder. Without this, fields passed
// at the log call site would bypass redaction.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	clone := e.Clone().(*RedactingEncoder)
	for i := range fields {
		fields[i].AddTo(clone)
	}
	return clone.Encoder.EncodeEntry(ent, nil)
}
