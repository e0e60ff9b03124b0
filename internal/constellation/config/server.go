package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ServerConfig holds the static defaults the constellationd binary loads
// from an optional TOML file, grounded on the teacher's config.Loader
// (internal/runner/config/loader.go) which also loads a single TOML
// document into a typed struct via pelletier/go-toml/v2.
type ServerConfig struct {
	Shell             string        `toml:"shell"`
	KeepAliveInterval time.Duration `toml:"keep_alive_interval"`
	OperationTimeout  time.Duration `toml:"operation_timeout"`
	MaxOutputLength   int           `toml:"max_output_length"`
	AuthToken         string        `toml:"auth_token"`
	DebugLogging      bool          `toml:"debug_logging"`
}

// DefaultServerConfig returns the baseline used when no TOML file is given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		KeepAliveInterval: 30 * time.Second,
		OperationTimeout:  120 * time.Second,
		MaxOutputLength:   0, // 0 == unlimited, matching the teacher's ResolveOutputSizeLimit nil-means-default convention inverted for "off by default"
	}
}

// LoadServerConfig reads and decodes a TOML server config file, overlaying
// it onto DefaultServerConfig.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read server config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse server config %s: %w", path, err)
	}
	return cfg, nil
}
