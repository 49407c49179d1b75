package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from an optional YAML file, then overrides
// with environment variables.
//
// Environment variables use underscore separators and are uppercased;
// the first segment selects the section:
//
//	SERVER_HTTP_PORT        -> server.http_port
//	RETRIEVAL_TOP_K         -> retrieval.top_k
//	EMBEDDER_PROVIDER       -> embedder.provider
//	EVENTS_NATS_URL         -> events.nats_url
//
// An empty configPath skips the file layer entirely.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// sections are the known top-level config groups used to split
// environment variable names.
var sections = []string{
	"SERVER", "LOGGING", "AGENT", "CHUNKER", "RETRIEVAL",
	"STORE", "LEXICAL", "EMBEDDER", "BRIDGE", "EVENTS", "TELEMETRY",
}

// envTransform maps an environment variable name to a koanf key, or ""
// to skip it.
func envTransform(s string) string {
	for _, section := range sections {
		if strings.HasPrefix(s, section+"_") {
			rest := strings.TrimPrefix(s, section+"_")
			if rest == "" {
				return ""
			}
			return strings.ToLower(section) + "." + strings.ToLower(rest)
		}
	}
	return ""
}

// readConfigFile opens and validates the config file before reading it.
// The file must not exceed maxConfigFileSize and must not be a symlink
// target outside the caller's control; validation uses the opened file
// descriptor to avoid a stat/open race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return content, nil
}
