package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9997", cfg.API.URL)
	require.Equal(t, "http://localhost:9998", cfg.Realtime.URL)
	require.Equal(t, "/api/ws", cfg.Realtime.WSPath)
	require.Equal(t, 3*time.Second, cfg.Reconnect.Delay)
	require.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	require.Equal(t, 50, cfg.Notifications.Limit)

	sdk := cfg.SDK()
	require.Equal(t, "ws://localhost:9998/api/ws", sdk.WebSocketURL())
	require.Equal(t, 5, sdk.MaxReconnectAttempts)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
api:
  url: https://shop.example.com
realtime:
  url: https://rt.example.com
reconnect:
  delay: 5s
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("STOREFRONT_REALTIME_URL", "https://rt2.example.com")
	t.Setenv("STOREFRONT_ADMIN_KEY", "super-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://shop.example.com", cfg.API.URL)
	require.Equal(t, "https://rt2.example.com", cfg.Realtime.URL)
	require.Equal(t, 5*time.Second, cfg.Reconnect.Delay)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "super-secret", cfg.Admin.Key)
	require.Equal(t, "wss://rt2.example.com/api/ws", cfg.SDK().WebSocketURL())

	require.NotContains(t, cfg.String(), "super-secret")
	require.Contains(t, cfg.String(), "[REDACTED]")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("STOREFRONT_API_URL", "ftp://nope")
	t.Setenv("STOREFRONT_RECONNECT_MAX_ATTEMPTS", "0")
	t.Setenv("STOREFRONT_LOGGING_LEVEL", "loud")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "api.url must use http or https")
	require.Contains(t, err.Error(), "reconnect.max_attempts")
	require.Contains(t, err.Error(), "logging.level")
}
