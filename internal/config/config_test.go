package config

import (
	"encoding/base64"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// allConfigKeys lists every OPSCENTER_ env var that Load() reads.
var allConfigKeys = []string{
	"OPSCENTER_MASTER_KEY_B64",
	"OPSCENTER_KEY_CACHE_TTL",
	"OPSCENTER_PTERO_URL",
	"OPSCENTER_PTERO_SERVER_ID",
	"OPSCENTER_LISTEN_ADDR",
	"OPSCENTER_DB_PATH",
	"OPSCENTER_STATE_BACKEND",
	"OPSCENTER_REDIS_ADDR",
	"OPSCENTER_REDIS_PASSWORD",
	"OPSCENTER_REDIS_DB",
	"OPSCENTER_REDIS_KEY",
	"OPSCENTER_MC_QUERY_HOST",
	"OPSCENTER_MC_QUERY_PORT",
	"OPSCENTER_MC_QUERY_TIMEOUT",
	"OPSCENTER_IDENTITY_ISSUER",
	"OPSCENTER_IDENTITY_AUDIENCE",
	"OPSCENTER_IDENTITY_HMAC_SECRET",
	"OPSCENTER_IDENTITY_PUBLIC_KEY_PEM",
	"OPSCENTER_IDENTITY_LEEWAY",
	"OPSCENTER_DISCORD_BOT_TOKEN",
	"OPSCENTER_DISCORD_CHANNEL_ID",
	"OPSCENTER_CORS_ORIGINS",
	"OPSCENTER_LOG_LEVEL",
}

// isolateConfigEnv saves and unsets all OPSCENTER_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

var testMasterKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

// setRequired sets the minimum environment for a valid config.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPSCENTER_MASTER_KEY_B64", testMasterKey)
	t.Setenv("OPSCENTER_PTERO_URL", "https://panel.example.com/")
	t.Setenv("OPSCENTER_PTERO_SERVER_ID", "abcd1234")
	t.Setenv("OPSCENTER_IDENTITY_HMAC_SECRET", "hush")
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Len(t, cfg.MasterKey, 32)
	assert.Equal(t, 5*time.Minute, cfg.KeyCacheTTL)
	assert.Equal(t, "https://panel.example.com", cfg.PteroURL)
	assert.Equal(t, "127.0.0.1:3001", cfg.ListenAddr)
	assert.Equal(t, "opscenter.db", cfg.DBPath)
	assert.Equal(t, BackendSQLite, cfg.StateBackend)
	assert.Equal(t, "127.0.0.1", cfg.Query.Host)
	assert.Equal(t, 25565, cfg.Query.Port)
	assert.Equal(t, 1200*time.Millisecond, cfg.Query.Timeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.HasDiscord())
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("OPSCENTER_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("OPSCENTER_DB_PATH", "/tmp/test.db")
	t.Setenv("OPSCENTER_STATE_BACKEND", "redis")
	t.Setenv("OPSCENTER_REDIS_ADDR", "redis:6379")
	t.Setenv("OPSCENTER_REDIS_DB", "2")
	t.Setenv("OPSCENTER_MC_QUERY_HOST", "mc.internal")
	t.Setenv("OPSCENTER_MC_QUERY_PORT", "25575")
	t.Setenv("OPSCENTER_MC_QUERY_TIMEOUT", "2s")
	t.Setenv("OPSCENTER_DISCORD_BOT_TOKEN", "bot")
	t.Setenv("OPSCENTER_DISCORD_CHANNEL_ID", "123")
	t.Setenv("OPSCENTER_CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("OPSCENTER_LOG_LEVEL", "debug")
	t.Setenv("OPSCENTER_KEY_CACHE_TTL", "90s")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, BackendRedis, cfg.StateBackend)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "mc.internal", cfg.Query.Host)
	assert.Equal(t, 25575, cfg.Query.Port)
	assert.Equal(t, 2*time.Second, cfg.Query.Timeout)
	assert.True(t, cfg.HasDiscord())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.KeyCacheTTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing master key", env: map[string]string{"OPSCENTER_MASTER_KEY_B64": ""}},
		{name: "master key not base64", env: map[string]string{"OPSCENTER_MASTER_KEY_B64": "!!!"}},
		{name: "master key wrong size", env: map[string]string{"OPSCENTER_MASTER_KEY_B64": base64.StdEncoding.EncodeToString([]byte("short"))}},
		{name: "zero key cache ttl", env: map[string]string{"OPSCENTER_KEY_CACHE_TTL": "0s"}},
		{name: "missing panel url", env: map[string]string{"OPSCENTER_PTERO_URL": ""}},
		{name: "relative panel url", env: map[string]string{"OPSCENTER_PTERO_URL": "panel.example.com"}},
		{name: "missing server id", env: map[string]string{"OPSCENTER_PTERO_SERVER_ID": ""}},
		{name: "unknown backend", env: map[string]string{"OPSCENTER_STATE_BACKEND": "firestore"}},
		{name: "bad query port", env: map[string]string{"OPSCENTER_MC_QUERY_PORT": "70000"}},
		{name: "bad query timeout", env: map[string]string{"OPSCENTER_MC_QUERY_TIMEOUT": "soon"}},
		{name: "no identity key", env: map[string]string{"OPSCENTER_IDENTITY_HMAC_SECRET": ""}},
		{name: "both identity keys", env: map[string]string{"OPSCENTER_IDENTITY_PUBLIC_KEY_PEM": "pem"}},
		{name: "discord token without channel", env: map[string]string{"OPSCENTER_DISCORD_BOT_TOKEN": "bot"}},
		{name: "bad log level", env: map[string]string{"OPSCENTER_LOG_LEVEL": "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, model.IsKind(err, model.KindConfig))
		})
	}
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("OPSCENTER_DISCORD_BOT_TOKEN", "super-secret-bot")
	t.Setenv("OPSCENTER_DISCORD_CHANNEL_ID", "123")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.String()
	assert.NotContains(t, s, testMasterKey)
	assert.NotContains(t, s, "super-secret-bot")
	assert.NotContains(t, s, "hush")
}
