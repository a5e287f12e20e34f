// Package config loads the service settings from an optional duzhibot.yaml (or .json) file and
// the environment. The environment wins.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/duzhibot/pkg/world"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when none is named.
const DefaultPath = "duzhibot.yaml"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the full service configuration.
type Config struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// ImageURL is sent with the fallback reply.
	ImageURL string         `mapstructure:"image_url"`
	Line     LineConfig     `mapstructure:"line"`
	Store    StoreConfig    `mapstructure:"store"`
	Security SecurityConfig `mapstructure:"security"`
	World    WorldConfig    `mapstructure:"world"`
}

// LineConfig holds the Messaging API channel credentials.
type LineConfig struct {
	ChannelSecret      string `mapstructure:"channel_secret"`
	ChannelAccessToken string `mapstructure:"channel_access_token"`
	BaseURL            string `mapstructure:"base_url"`
	// InsecureWebhook serves /callback without a channel secret, skipping signature checks.
	InsecureWebhook bool `mapstructure:"insecure_webhook"`
}

// ErrNoChannelSecret is returned by CheckWebhook when the webhook could not verify requests.
var ErrNoChannelSecret = errors.New("line.channel_secret is required to serve the webhook (set DUZHIBOT_INSECURE_WEBHOOK to run without it)")

// CheckWebhook reports whether the webhook can be served: a channel secret is set, or the
// insecure mode was asked for explicitly.
func (l LineConfig) CheckWebhook() error {
	if l.ChannelSecret == "" && !l.InsecureWebhook {
		return fmt.Errorf("%w: %w", ErrInvalid, ErrNoChannelSecret)
	}
	return nil
}

// StoreConfig selects and tunes the session store.
type StoreConfig struct {
	Driver        string        `mapstructure:"driver"`
	Path          string        `mapstructure:"path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
	// Lock serializes a session across replicas. It needs the redis driver.
	Lock    bool          `mapstructure:"lock"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// SecurityConfig protects session data at rest.
type SecurityConfig struct {
	// EncryptionKey is a base64 32-byte AES key. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`
	// FallbackKeys decrypt sessions written before a key rotation.
	FallbackKeys []string `mapstructure:"fallback_keys"`
	// PIIKeys are regular expressions over Data keys whose values are masked before saving.
	PIIKeys []string `mapstructure:"pii_keys"`
}

// WorldConfig tunes the game.
type WorldConfig struct {
	DeskPassword string  `mapstructure:"desk_password"`
	MinBodyTemp  float64 `mapstructure:"min_body_temp"`
	MaxBodyTemp  float64 `mapstructure:"max_body_temp"`
}

// Options converts to world settings.
func (w WorldConfig) Options() world.Options {
	return world.Options{DeskPassword: w.DeskPassword, MinBodyTemp: w.MinBodyTemp, MaxBodyTemp: w.MaxBodyTemp}
}

// envKeys maps environment variables to dotted config keys.
var envKeys = map[string]string{
	"PORT":                      "port",
	"DUZHIBOT_LOG_LEVEL":        "log_level",
	"DUZHIBOT_IMAGE_URL":        "image_url",
	"LINE_CHANNEL_SECRET":       "line.channel_secret",
	"LINE_CHANNEL_ACCESS_TOKEN": "line.channel_access_token",
	"LINE_API_BASE_URL":         "line.base_url",
	"DUZHIBOT_INSECURE_WEBHOOK": "line.insecure_webhook",
	"DUZHIBOT_STORE":            "store.driver",
	"DUZHIBOT_STORE_PATH":       "store.path",
	"DUZHIBOT_STORE_TTL":        "store.ttl",
	"DUZHIBOT_STORE_LOCK":       "store.lock",
	"REDIS_ADDR":                "store.redis_addr",
	"REDIS_PASSWORD":            "store.redis_password",
	"REDIS_DB":                  "store.redis_db",
	"DUZHIBOT_ENCRYPTION_KEY":   "security.encryption_key",
	"DUZHIBOT_FALLBACK_KEYS":    "security.fallback_keys",
	"DUZHIBOT_PII_KEYS":         "security.pii_keys",
	"DUZHIBOT_DESK_PASSWORD":    "world.desk_password",
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	opts := world.DefaultOptions()
	return Config{
		Port:     8000,
		LogLevel: "info",
		Store: StoreConfig{
			Driver:    DriverMemory,
			RedisAddr: "localhost:6379",
			LockTTL:   30 * time.Second,
		},
		World: WorldConfig{
			DeskPassword: opts.DeskPassword,
			MinBodyTemp:  opts.MinBodyTemp,
			MaxBodyTemp:  opts.MaxBodyTemp,
		},
	}
}

// Load reads path, then applies the environment through getenv (os.Getenv when nil). A missing
// file is not an error; an empty path reads DefaultPath.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if path == "" {
		path = DefaultPath
	}

	raw, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	for env, key := range envKeys {
		if v := getenv(env); v != "" {
			set(raw, key, v)
		}
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, cfg.Validate()
}

func readFile(path string) (map[string]any, error) {
	raw := make(map[string]any)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return raw, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	return raw, nil
}

// set stores v under a dotted key, creating sections as needed.
func set(m map[string]any, key, v string) {
	section, rest, nested := strings.Cut(key, ".")
	if !nested {
		m[key] = v
		return
	}
	sub, ok := m[section].(map[string]any)
	if !ok {
		sub = make(map[string]any)
		m[section] = sub
	}
	set(sub, rest, v)
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverRedis, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.Lock && c.Store.Driver != DriverRedis {
		errs = append(errs, errors.New("store.lock needs the redis driver"))
	}
	if c.Security.EncryptionKey != "" {
		if _, _, err := c.Security.Keys(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.Security.PIIKeys {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("pii_keys: %w", err))
		}
	}
	if c.World.MinBodyTemp > c.World.MaxBodyTemp {
		errs = append(errs, fmt.Errorf("min_body_temp %.1f above max_body_temp %.1f", c.World.MinBodyTemp, c.World.MaxBodyTemp))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Keys decodes the active and fallback encryption keys.
func (s SecurityConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if active, err = decodeKey(s.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("not base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("want 32 bytes, got %d", len(key))
	}
	return key, nil
}
