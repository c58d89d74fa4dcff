package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/plexist/internal/models"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	defaultWaitSeconds    = 86400
	defaultRequestTimeout = 30
	defaultRateLimit      = 5.0
)

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Plex     PlexConfig     `toml:"plex"`
	Sync     SyncConfig     `toml:"sync"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Deezer   DeezerConfig   `toml:"deezer"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// PlexConfig contains the media server endpoint and credentials.
type PlexConfig struct {
	URL       string `toml:"url"`
	Token     string `toml:"token"`
	SectionID int    `toml:"section_id"`
}

// SyncConfig contains the behavior toggles and pacing of sync passes.
type SyncConfig struct {
	WriteMissingAsCSV      bool    `toml:"write_missing_as_csv"`
	AddPlaylistPoster      bool    `toml:"add_playlist_poster"`
	AddPlaylistDescription bool    `toml:"add_playlist_description"`
	AppendInsteadOfSync    bool    `toml:"append_instead_of_sync"`
	WaitSeconds            int     `toml:"wait_seconds"`
	Workers                int     `toml:"workers"`
	RequestTimeoutSeconds  int     `toml:"request_timeout_seconds"`
	RateLimit              float64 `toml:"rate_limit"`
	MissingDir             string  `toml:"missing_dir"`
}

// SpotifyConfig contains Spotify API credentials and playlist selection.
type SpotifyConfig struct {
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	UserID         string `toml:"user_id"`
	PlaylistSuffix string `toml:"playlist_suffix"`
}

// DeezerConfig contains Deezer playlist selection. The public API needs no credentials.
type DeezerConfig struct {
	UserID         string   `toml:"user_id"`
	PlaylistIDs    []string `toml:"playlist_ids"`
	PlaylistSuffix string   `toml:"playlist_suffix"`
}

// DatabaseConfig contains the run history database location.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveConfig builds the process configuration snapshot and validates it.
//
// The TOML file at path is optional (defaults are used when it does not exist).
// Values from envFile (a .env file, also optional) and then the process environment override it.
func ResolveConfig(path, envFile string) (*Config, error) {
	config, err := ReadConfig(path, envFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ReadConfig merges the config file, envFile and the environment like [ResolveConfig] without validating.
func ReadConfig(path, envFile string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			values, err := godotenv.Read(envFile)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidConfig, envFile, err)
			}
			dotenv = values
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := config.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides configuration values with the environment variables named in config.example.toml.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := parseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("PLEX_URL", &c.Plex.URL)
	str("PLEX_TOKEN", &c.Plex.Token)
	integer("PLEX_SECTION_ID", &c.Plex.SectionID)

	boolean("WRITE_MISSING_AS_CSV", &c.Sync.WriteMissingAsCSV)
	boolean("ADD_PLAYLIST_POSTER", &c.Sync.AddPlaylistPoster)
	boolean("ADD_PLAYLIST_DESCRIPTION", &c.Sync.AddPlaylistDescription)
	boolean("APPEND_INSTEAD_OF_SYNC", &c.Sync.AppendInsteadOfSync)
	integer("SECONDS_TO_WAIT", &c.Sync.WaitSeconds)

	str("SPOTIFY_CLIENT_ID", &c.Spotify.ClientID)
	str("SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret)
	str("SPOTIFY_USER_ID", &c.Spotify.UserID)
	str("SPOTIFY_PLAYLIST_SUFFIX", &c.Spotify.PlaylistSuffix)

	str("DEEZER_USER_ID", &c.Deezer.UserID)
	str("DEEZER_PLAYLIST_SUFFIX", &c.Deezer.PlaylistSuffix)
	if v, ok := lookup("DEEZER_PLAYLIST_ID"); ok {
		c.Deezer.PlaylistIDs = splitList(v)
	}

	str("LOG_LEVEL", &c.Log.Level)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks required values and fills in defaults for pacing values left at zero.
func (c *Config) Validate() error {
	if c.Plex.URL == "" || c.Plex.Token == "" {
		return fmt.Errorf("%w: plex url and token are required", ErrMissingCredentials)
	}
	c.Plex.URL = strings.TrimRight(c.Plex.URL, "/")

	if c.Sync.WaitSeconds <= 0 {
		c.Sync.WaitSeconds = defaultWaitSeconds
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = 1
	}
	if c.Sync.RequestTimeoutSeconds <= 0 {
		c.Sync.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if c.Sync.RateLimit <= 0 {
		c.Sync.RateLimit = defaultRateLimit
	}
	return nil
}

// Options returns the per-pass sync toggles.
func (c *Config) Options() models.SyncOptions {
	return models.SyncOptions{
		AppendInsteadOfSync:    c.Sync.AppendInsteadOfSync,
		AddPlaylistPoster:      c.Sync.AddPlaylistPoster,
		AddPlaylistDescription: c.Sync.AddPlaylistDescription,
		WriteMissingAsCSV:      c.Sync.WriteMissingAsCSV,
	}
}

// WaitInterval returns the delay between passes.
func (c *Config) WaitInterval() time.Duration {
	return time.Duration(c.Sync.WaitSeconds) * time.Second
}

// RequestTimeout returns the per-call timeout for provider and media server requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Sync.RequestTimeoutSeconds) * time.Second
}

// SpotifyEnabled reports whether every Spotify credential is present.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != "" && c.Spotify.UserID != ""
}

// DeezerEnabled reports whether a Deezer user or playlist is configured.
func (c *Config) DeezerEnabled() bool {
	return c.Deezer.UserID != "" || len(c.Deezer.PlaylistIDs) > 0
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("%w: not a boolean: %q", ErrInvalidInput, v)
}

func splitList(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
