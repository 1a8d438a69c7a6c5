package testsupport

import (
	"path/filepath"
	"testing"

	"tramita/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithPushEndpoint points the push channel at the given endpoint.
func WithPushEndpoint(endpoint string) ConfigOption {
	return func(c *config.Config) {
		c.Notifications.PushEndpoint = endpoint
	}
}

// WithAPIToken sets the HTTP API bearer token.
func WithAPIToken(token string) ConfigOption {
	return func(c *config.Config) {
		c.Paths.APIToken = token
	}
}
