package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Sources   SourcesConfig   `toml:"sources"`
	Spotify   SpotifyConfig   `toml:"spotify"`
	Sink      SinkConfig      `toml:"sink"`
	Database  DatabaseConfig  `toml:"database"`
	Fetch     FetchConfig     `toml:"fetch"`
	Aggregate AggregateConfig `toml:"aggregate"`
	Cache     CacheConfig     `toml:"cache"`
	Log       LogConfig       `toml:"log"`
}

// SourcesConfig points at the customer id list and the profile API.
type SourcesConfig struct {
	CustomerIDsURL string `toml:"customer_ids_url"`
	ProfileURL     string `toml:"profile_url"`
	ProfileAuth    string `toml:"profile_auth"`
}

// SpotifyConfig contains Spotify catalog API credentials (client credentials flow).
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url"`
	BaseURL      string `toml:"base_url"`
}

// SinkConfig selects where published documents go.
//
// Kind is one of couch, sqlite, s3 or none.
type SinkConfig struct {
	Kind string   `toml:"kind"`
	URL  string   `toml:"url"`
	Auth string   `toml:"auth"`
	S3   S3Config `toml:"s3"`
}

// S3Config holds object storage settings for the s3 sink.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	UseSSL    bool   `toml:"use_ssl"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// FetchConfig tunes the batched fetch/retry driver.
type FetchConfig struct {
	Timeout           Duration `toml:"timeout"`
	RetryAfter        Duration `toml:"retry_after"`
	RetryMaxLevel     int      `toml:"retry_max_level"`
	OnetimeAPILimit   int      `toml:"onetime_api_limit"`
	CatalogBunchCount int      `toml:"catalog_bunch_count"`
	CatalogAPILimit   int      `toml:"catalog_api_limit"`
	CatalogRateLimit  float64  `toml:"catalog_rate_limit"`
	Parallelism       int      `toml:"parallelism"`
}

// AggregateConfig holds the fan and compaction thresholds.
type AggregateConfig struct {
	ArtistThreshold  int `toml:"artist_threshold"`
	CompactThreshold int `toml:"compact_threshold"`
}

// CacheConfig locates the sharded track and artist caches.
type CacheConfig struct {
	TracksPath    string `toml:"tracks_path"`
	ArtistsPath   string `toml:"artists_path"`
	IndexFile     string `toml:"index_file"`
	FilesInFolder int    `toml:"files_in_folder"`
	MemoryEntries int    `toml:"memory_entries"`
}

// LogConfig controls log level and the per-run log file.
type LogConfig struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"`
	File  bool   `toml:"file"`
}

// Duration wraps [time.Duration] so TOML strings like "5s" decode.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(b), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Unset keys keep the embedded defaults.
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

// SaveConfig encodes config as TOML at path.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Close()
}

// ApplyEnv overrides secrets with environment variables when they are set.
func (c *Config) ApplyEnv() {
	for env, target := range map[string]*string{
		"FANX_PROFILE_AUTH":     &c.Sources.ProfileAuth,
		"FANX_SINK_AUTH":        &c.Sink.Auth,
		"SPOTIFY_CLIENT_ID":     &c.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Spotify.ClientSecret,
		"FANX_S3_ACCESS_KEY":    &c.Sink.S3.AccessKey,
		"FANX_S3_SECRET_KEY":    &c.Sink.S3.SecretKey,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*target = v
		}
	}
}

// Validate checks the numeric knobs the pipeline depends on.
func (c *Config) Validate() error {
	f := c.Fetch
	switch {
	case f.OnetimeAPILimit <= 0:
		return fmt.Errorf("%w: fetch.onetime_api_limit must be positive", ErrInvalidConfig)
	case f.CatalogBunchCount <= 0 || f.CatalogBunchCount > 50:
		return fmt.Errorf("%w: fetch.catalog_bunch_count must be within 1..50", ErrInvalidConfig)
	case f.CatalogAPILimit <= 0:
		return fmt.Errorf("%w: fetch.catalog_api_limit must be positive", ErrInvalidConfig)
	case f.RetryMaxLevel < 0:
		return fmt.Errorf("%w: fetch.retry_max_level cannot be negative", ErrInvalidConfig)
	case f.Timeout.Duration <= 0:
		return fmt.Errorf("%w: fetch.timeout must be positive", ErrInvalidConfig)
	}

	if c.Cache.FilesInFolder <= 0 {
		return fmt.Errorf("%w: cache.files_in_folder must be positive", ErrInvalidConfig)
	}
	if c.Aggregate.ArtistThreshold <= 0 {
		return fmt.Errorf("%w: aggregate.artist_threshold must be positive", ErrInvalidConfig)
	}

	switch c.Sink.Kind {
	case "couch", "sqlite", "s3", "none", "":
	default:
		return fmt.Errorf("%w: unknown sink kind %q", ErrInvalidConfig, c.Sink.Kind)
	}
	return nil
}
