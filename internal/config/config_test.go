package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("CONFIG_PATH", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "redis://localhost:6379", cfg.Store.URL)
	assert.Equal(t, cfg.Store.URL, cfg.BusURL())
	assert.Equal(t, "chatsync", cfg.Bus.Namespace)
	assert.Equal(t, 2000, cfg.MaxMessageLength)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_addr: ":9090"
max_message_length: 500
store:
  url: redis://store:6379
  token: secret
bus:
  url: redis://bus:6379
  namespace: staging
`), 0o600))
	t.Setenv("APP_ENV", "production")
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("MESSAGE_MAX_LENGTH", "300")
	t.Setenv("BUS_TOKEN", "")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, 300, cfg.MaxMessageLength)
	assert.Equal(t, "secret", cfg.Store.Token)
	assert.Equal(t, "redis://bus:6379", cfg.BusURL())
	assert.Equal(t, "staging", cfg.Bus.Namespace)
	assert.Equal(t, "secret", cfg.BusToken(), "bus falls back to the store token")

	t.Setenv("BUS_TOKEN", "bus-secret")
	cfg = Load()
	assert.Equal(t, "bus-secret", cfg.BusToken())
	assert.Equal(t, "secret", cfg.Store.Token)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BUS_NAMESPACE=from-dotenv\n"), 0o600))
	sub := filepath.Join(dir, "services", "api")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	chdir(t, sub)
	t.Setenv("APP_ENV", "")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("BUS_NAMESPACE", "")
	os.Unsetenv("BUS_NAMESPACE")

	cfg := Load()
	assert.Equal(t, "from-dotenv", cfg.Bus.Namespace)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
