// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "OPSCENTER_"

// State backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	MasterKeyB64 string        `env:"MASTER_KEY_B64"`
	MasterKey    []byte
	KeyCacheTTL  time.Duration `env:"KEY_CACHE_TTL" envDefault:"5m"`

	PteroURL      string `env:"PTERO_URL"`
	PteroServerID string `env:"PTERO_SERVER_ID"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:"127.0.0.1:3001"`
	DBPath     string `env:"DB_PATH" envDefault:"opscenter.db"`

	StateBackend string `env:"STATE_BACKEND" envDefault:"sqlite"`
	Redis        Redis  `envPrefix:"REDIS_"`

	Query    Query    `envPrefix:"MC_QUERY_"`
	Identity Identity `envPrefix:"IDENTITY_"`
	Discord  Discord  `envPrefix:"DISCORD_"`

	CORSOrigins []string   `env:"CORS_ORIGINS" envSeparator:","`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Redis holds the optional Redis state backend connection.
type Redis struct {
	Addr     string `env:"ADDR" envDefault:"127.0.0.1:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Key      string `env:"KEY" envDefault:"opscenter:maintenance:global"`
}

// Query holds the game server query protocol endpoint.
type Query struct {
	Host    string        `env:"HOST" envDefault:"127.0.0.1"`
	Port    int           `env:"PORT" envDefault:"25565"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"1200ms"`
}

// Identity holds identity token verification settings.
type Identity struct {
	Issuer       string        `env:"ISSUER"`
	Audience     string        `env:"AUDIENCE"`
	HMACSecret   string        `env:"HMAC_SECRET"`
	PublicKeyPEM string        `env:"PUBLIC_KEY_PEM"`
	Leeway       time.Duration `env:"LEEWAY" envDefault:"30s"`
}

// Discord holds the optional announcement channel.
type Discord struct {
	BotToken  string `env:"BOT_TOKEN"`
	ChannelID string `env:"CHANNEL_ID"`
}

// HasDiscord reports whether a chat channel is configured.
func (c *Config) HasDiscord() bool {
	return c.Discord.BotToken != "" && c.Discord.ChannelID != ""
}

// Load reads OPSCENTER_* environment variables and returns a validated
// Config. Every validation failure is a Config error.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, model.ConfigError("parse environment: %v", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MasterKeyB64 == "" {
		return model.ConfigError("%sMASTER_KEY_B64 is required", EnvPrefix)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.MasterKeyB64))
	if err != nil {
		return model.ConfigError("%sMASTER_KEY_B64 is not valid base64: %v", EnvPrefix, err)
	}
	if len(key) != 32 {
		return model.ConfigError("%sMASTER_KEY_B64 must decode to 32 bytes, got %d", EnvPrefix, len(key))
	}
	c.MasterKey = key

	if c.KeyCacheTTL <= 0 {
		return model.ConfigError("%sKEY_CACHE_TTL must be positive", EnvPrefix)
	}

	if c.PteroURL == "" {
		return model.ConfigError("%sPTERO_URL is required", EnvPrefix)
	}
	u, err := url.Parse(c.PteroURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.ConfigError("%sPTERO_URL must be an absolute http(s) URL, got %q", EnvPrefix, c.PteroURL)
	}
	c.PteroURL = strings.TrimRight(c.PteroURL, "/")

	if c.PteroServerID == "" {
		return model.ConfigError("%sPTERO_SERVER_ID is required", EnvPrefix)
	}

	switch c.StateBackend {
	case BackendSQLite, BackendRedis:
	default:
		return model.ConfigError("%sSTATE_BACKEND must be %q or %q, got %q", EnvPrefix, BackendSQLite, BackendRedis, c.StateBackend)
	}

	if c.Query.Port <= 0 || c.Query.Port > 65535 {
		return model.ConfigError("%sMC_QUERY_PORT out of range: %d", EnvPrefix, c.Query.Port)
	}
	if c.Query.Timeout <= 0 {
		return model.ConfigError("%sMC_QUERY_TIMEOUT must be positive", EnvPrefix)
	}

	hasHMAC := c.Identity.HMACSecret != ""
	hasPEM := c.Identity.PublicKeyPEM != ""
	if hasHMAC == hasPEM {
		return model.ConfigError("exactly one of %sIDENTITY_HMAC_SECRET or %sIDENTITY_PUBLIC_KEY_PEM must be set", EnvPrefix, EnvPrefix)
	}

	if (c.Discord.BotToken == "") != (c.Discord.ChannelID == "") {
		return model.ConfigError("%sDISCORD_BOT_TOKEN and %sDISCORD_CHANNEL_ID must be set together", EnvPrefix, EnvPrefix)
	}

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins

	return nil
}

// String renders the config for startup logs with secrets redacted.
func (c *Config) String() string {
	return fmt.Sprintf("listen=%s db=%s backend=%s panel=%s server=%s query=%s:%d key_cache=%s discord=%t cors=%v",
		c.ListenAddr, c.DBPath, c.StateBackend, c.PteroURL, c.PteroServerID,
		c.Query.Host, c.Query.Port, c.KeyCacheTTL, c.HasDiscord(), c.CORSOrigins)
}
