package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9300, cfg.Server.Port)
	assert.Equal(t, 0.7, cfg.Retrieval.SemanticWeight)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "local", cfg.Embedder.Provider)
	assert.Equal(t, "stub", cfg.Bridge.Provider)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "overlap exceeds chunk size",
			mutate:  func(c *Config) { c.Chunker.ChunkOverlap = c.Chunker.ChunkSize },
			wantErr: "chunk overlap",
		},
		{
			name:    "semantic weight out of range",
			mutate:  func(c *Config) { c.Retrieval.SemanticWeight = 1.5 },
			wantErr: "semantic weight",
		},
		{
			name:    "unknown embedder provider",
			mutate:  func(c *Config) { c.Embedder.Provider = "cohere" },
			wantErr: "unknown embedder provider",
		},
		{
			name:    "unknown bridge provider",
			mutate:  func(c *Config) { c.Bridge.Provider = "bard" },
			wantErr: "unknown bridge provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  http_port: 9400
retrieval:
  top_k: 8
  semantic_weight: 0.6
bridge:
  provider: stub
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("RETRIEVAL_TOP_K", "3")
	t.Setenv("EMBEDDER_PROVIDER", "local")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9400, cfg.Server.Port, "file overrides default")
	assert.Equal(t, 3, cfg.Retrieval.TopK, "env overrides file")
	assert.Equal(t, 0.6, cfg.Retrieval.SemanticWeight)
	assert.Equal(t, 20, cfg.Retrieval.SemanticK, "defaults survive partial files")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "server.http_port", envTransform("SERVER_HTTP_PORT"))
	assert.Equal(t, "retrieval.top_k", envTransform("RETRIEVAL_TOP_K"))
	assert.Equal(t, "events.nats_url", envTransform("EVENTS_NATS_URL"))
	assert.Equal(t, "", envTransform("PATH"), "unrelated variables are skipped")
}
