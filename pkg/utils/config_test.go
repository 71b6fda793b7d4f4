package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data/cards-manifest.json", cfg.ManifestPath)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":7070", cfg.Sync.Addr)
	assert.Equal(t, ":9090", cfg.GRPC.Addr)
	assert.Equal(t, "ja", cfg.Locale)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTDuration)
	assert.False(t, cfg.Preview)
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
manifest: https://cards.test/manifest.json
preview: true
concurrency: 4
http:
  addr: ":8181"
  allow_origins: ["https://a.test"]
auth:
  jwt_duration: 2h
logging:
  level: debug
`), 0o644))

	t.Setenv("CARDHUB_HTTP_ADDR", ":9999")
	t.Setenv("CARDHUB_LOCALE", "en")
	t.Setenv("CARDHUB_HTTP_ALLOW_ORIGINS", "https://b.test,https://c.test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://cards.test/manifest.json", cfg.ManifestPath)
	assert.True(t, cfg.Preview)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, []string{"https://b.test", "https://c.test"}, cfg.HTTP.AllowOrigins)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, 2*time.Hour, cfg.Auth.JWTDuration)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":7070", cfg.Sync.Addr, "untouched defaults survive")
}

func TestLoadConfig_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	t.Setenv("CARDHUB_CONCURRENCY", "many")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(LoggingConfig{Level: "warn"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = NewLogger(LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
