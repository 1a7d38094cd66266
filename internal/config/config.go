// Package config loads mood-mixer configuration.
//
// Values are layered: struct defaults, then an optional YAML file, then
// MIXER_ environment variables. A double underscore separates sections, so
// MIXER_JELLYFIN__API_KEY sets jellyfin.api_key.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MIXER_"

// PathEnvVar overrides the config file path when no explicit path is given.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are searched in order when no path is configured.
var DefaultPaths = []string{
	"mood-mixer.yaml",
	"mood-mixer.yml",
	"/etc/mood-mixer/config.yaml",
}

// ErrMissingSpotifyCredentials is returned when Spotify is enabled without a client ID and secret.
var ErrMissingSpotifyCredentials = errors.New("spotify enabled but client_id or client_secret is empty")

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Jellyfin JellyfinConfig `koanf:"jellyfin"`
	Spotify  SpotifyConfig  `koanf:"spotify"`
	LastFM   LastFMConfig   `koanf:"lastfm"`
	Sync     SyncConfig     `koanf:"sync"`
	Logging  logging.Config `koanf:"logging"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxConns        int32         `koanf:"max_conns" validate:"gte=0"`
	MinConns        int32         `koanf:"min_conns" validate:"gte=0"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime" validate:"gte=0"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"gte=0"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"`
	RateWindow      time.Duration `koanf:"rate_window" validate:"gt=0"`
}

// JellyfinConfig configures the media server client.
type JellyfinConfig struct {
	URL              string        `koanf:"url" validate:"required,url"`
	APIKey           string        `koanf:"api_key"`
	UserID           string        `koanf:"user_id"`
	IncludeItemTypes []string      `koanf:"include_item_types" validate:"min=1"`
	PageSize         int           `koanf:"page_size" validate:"gt=0,lte=1000"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	RequestsPerSec   float64       `koanf:"requests_per_sec" validate:"gt=0"`
}

// SpotifyConfig configures the optional Spotify catalog.
type SpotifyConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url" validate:"omitempty,url"`
	TokenPath    string `koanf:"token_path"`
}

// LastFMConfig configures genre enrichment. An empty API key disables it.
type LastFMConfig struct {
	APIKey         string        `koanf:"api_key"`
	RequestsPerSec float64       `koanf:"requests_per_sec" validate:"gt=0"`
	Concurrency    int           `koanf:"concurrency" validate:"gte=1,lte=32"`
	MinCount       int           `koanf:"min_count" validate:"gte=0,lte=100"`
	MaxGenres      int           `koanf:"max_genres" validate:"gte=1"`
	CacheTTL       time.Duration `koanf:"cache_ttl" validate:"gt=0"`
}

// SyncConfig configures catalog synchronization.
type SyncConfig struct {
	Cooldown time.Duration `koanf:"cooldown" validate:"gte=0"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/mood_mixer?sslmode=disable",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			ConnectTimeout:  5 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       100,
			RateWindow:      time.Minute,
		},
		Jellyfin: JellyfinConfig{
			URL:              "http://localhost:8096",
			IncludeItemTypes: []string{"Movie", "Episode", "Audio"},
			PageSize:         200,
			Timeout:          30 * time.Second,
			RequestsPerSec:   10,
		},
		Spotify: SpotifyConfig{
			RedirectURL: "http://127.0.0.1:8888/callback",
			TokenPath:   ".spotify_token.json",
		},
		LastFM: LastFMConfig{
			RequestsPerSec: 5,
			Concurrency:    5,
			MinCount:       50,
			MaxGenres:      3,
			CacheTTL:       30 * 24 * time.Hour,
		},
		Sync: SyncConfig{
			Cooldown: time.Hour,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads configuration from path (or CONFIG_PATH, or DefaultPaths) and
// the environment, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := splitListValues(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Spotify.Enabled && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "") {
		return ErrMissingSpotifyCredentials
	}
	return nil
}

// LastFMEnabled reports whether genre enrichment is configured.
func (c *Config) LastFMEnabled() bool {
	return c.LastFM.APIKey != ""
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// listKeys accept comma-separated strings from the environment.
var listKeys = []string{
	"server.cors_origins",
	"jellyfin.include_item_types",
}

// splitListValues turns comma-separated list values into string slices.
func splitListValues(k *koanf.Koanf) error {
	for _, key := range listKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}

		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if err := k.Set(key, items); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	return nil
}

// envTransform maps MIXER_JELLYFIN__API_KEY to jellyfin.api_key.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}
