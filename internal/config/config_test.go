package config_test

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/duzhibot/internal/config"
	"github.com/aretw0/duzhibot/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func key(b byte) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat(string(b), 32)))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, world.DefaultOptions(), cfg.World.Options())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "duzhibot.yaml", `
port: 9000
log_level: debug
line:
  channel_secret: from-file
store:
  driver: sqlite
  path: /tmp/duzhi.db
  ttl: 24h
security:
  pii_keys: [nick]
world:
  desk_password: "1234"
  max_body_temp: 38
`)
	cfg, err := config.Load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "from-file", cfg.Line.ChannelSecret)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, []string{"nick"}, cfg.Security.PIIKeys)
	assert.Equal(t, "1234", cfg.World.DeskPassword)
	assert.Equal(t, 38.0, cfg.World.MaxBodyTemp)
	assert.Equal(t, 35.0, cfg.World.MinBodyTemp, "unset keys keep their default")
	assert.Equal(t, 30*time.Second, cfg.Store.LockTTL)
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "duzhibot.json", `{"port": 7000, "store": {"driver": "file", "path": "sessions"}}`)
	cfg, err := config.Load(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, config.DriverFile, cfg.Store.Driver)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := writeFile(t, "duzhibot.yaml", "port: 9000\nline:\n  channel_secret: from-file\n")
	cfg, err := config.Load(path, env(map[string]string{
		"PORT":                      "8080",
		"LINE_CHANNEL_SECRET":       "from-env",
		"LINE_CHANNEL_ACCESS_TOKEN": "token",
		"DUZHIBOT_STORE":            "redis",
		"DUZHIBOT_STORE_LOCK":       "true",
		"DUZHIBOT_STORE_TTL":        "90m",
		"REDIS_ADDR":                "redis:6379",
		"REDIS_DB":                  "2",
		"DUZHIBOT_ENCRYPTION_KEY":   key('a'),
		"DUZHIBOT_FALLBACK_KEYS":    key('b') + "," + key('c'),
		"DUZHIBOT_PII_KEYS":         "nick,^warp$",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "from-env", cfg.Line.ChannelSecret)
	assert.Equal(t, "token", cfg.Line.ChannelAccessToken)
	assert.Equal(t, config.DriverRedis, cfg.Store.Driver)
	assert.True(t, cfg.Store.Lock)
	assert.Equal(t, 90*time.Minute, cfg.Store.TTL)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 2, cfg.Store.RedisDB)
	assert.Equal(t, []string{"nick", "^warp$"}, cfg.Security.PIIKeys)

	active, fallback, err := cfg.Security.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Len(t, fallback, 2)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{"unknown key", "prot: 80\n", nil},
		{"bad port", "", map[string]string{"PORT": "70000"}},
		{"not a number", "", map[string]string{"PORT": "eighty"}},
		{"unknown driver", "", map[string]string{"DUZHIBOT_STORE": "postgres"}},
		{"lock without redis", "", map[string]string{"DUZHIBOT_STORE_LOCK": "1"}},
		{"short key", "", map[string]string{"DUZHIBOT_ENCRYPTION_KEY": base64.StdEncoding.EncodeToString([]byte("short"))}},
		{"key not base64", "", map[string]string{"DUZHIBOT_ENCRYPTION_KEY": "%%%"}},
		{"inverted temperatures", "world:\n  min_body_temp: 40\n", nil},
		{"bad duration", "", map[string]string{"DUZHIBOT_STORE_TTL": "soon"}},
		{"bad pii pattern", "", map[string]string{"DUZHIBOT_PII_KEYS": "(nick"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "duzhibot.yaml", tt.file)
			_, err := config.Load(path, env(tt.env))
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestLoad_Unparsable(t *testing.T) {
	path := writeFile(t, "duzhibot.yaml", "port: [")
	_, err := config.Load(path, env(nil))
	assert.Error(t, err)
}

func TestLineConfig_CheckWebhook(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	require.NoError(t, err)
	err = cfg.Line.CheckWebhook()
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.ErrorIs(t, err, config.ErrNoChannelSecret)

	cfg, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"), env(map[string]string{"LINE_CHANNEL_SECRET": "s"}))
	require.NoError(t, err)
	assert.NoError(t, cfg.Line.CheckWebhook())

	cfg, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"), env(map[string]string{"DUZHIBOT_INSECURE_WEBHOOK": "true"}))
	require.NoError(t, err)
	assert.True(t, cfg.Line.InsecureWebhook)
	assert.NoError(t, cfg.Line.CheckWebhook())
}
