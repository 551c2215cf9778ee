package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/oauth2"
)

// EnvPrefix prefixes every environment override, e.g. SOUNDLINK_BACKEND_URL.
const EnvPrefix = "SOUNDLINK"

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	User      UserConfig       `toml:"user"`
	Backend   BackendConfig    `toml:"backend"`
	Device    DeviceConfig     `toml:"device"`
	Init      InitConfig       `toml:"init"`
	Log       LogConfig        `toml:"log"`
	Database  DatabaseConfig   `toml:"database"`
	Spotify   SpotifyConfig    `toml:"spotify"`
	Providers []ProviderConfig `toml:"providers" ignored:"true"`
}

// UserConfig is the default identity used when no flags are given.
type UserConfig struct {
	ID    string `toml:"id"`
	Email string `toml:"email"`
}

// BackendConfig points at the onboarding backend.
type BackendConfig struct {
	URL               string  `toml:"url"`
	RequestsPerSecond float64 `toml:"requests_per_second" split_words:"true"`
	Token             string  `toml:"token"`
}

// DeviceConfig tunes the device flow controller.
type DeviceConfig struct {
	// MinInterval is the poll interval floor in seconds.
	MinInterval int `toml:"min_interval" split_words:"true"`
}

// InitConfig tunes the initialization gate.
type InitConfig struct {
	Model      string        `toml:"model"`
	RetryDelay time.Duration `toml:"retry_delay" split_words:"true"`
	// Timeout bounds each backend call; zero leaves it unbounded.
	Timeout time.Duration `toml:"timeout"`
}

// LogConfig controls the level and the optional rotating log file.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" split_words:"true"`
	MaxBackups int    `toml:"max_backups" split_words:"true"`
	MaxAgeDays int    `toml:"max_age_days" split_words:"true"`
	Compress   bool   `toml:"compress"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `toml:"max_idle_conns" split_words:"true"`
}

// SpotifyConfig contains Spotify API credentials for direct linking.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" split_words:"true"`
	ClientSecret string `toml:"client_secret" split_words:"true"`
	RedirectURI  string `toml:"redirect_uri" split_words:"true"`
}

// Configured reports whether both client credentials are set.
func (s SpotifyConfig) Configured() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// ProviderConfig declares one linkable provider.
//
// Device providers with a client_id and both endpoints are linked against the
// provider directly; otherwise the backend brokers the grant.
type ProviderConfig struct {
	ID            string              `toml:"id"`
	Kind          models.ProviderKind `toml:"kind"`
	ClientID      string              `toml:"client_id"`
	ClientSecret  string              `toml:"client_secret"`
	DeviceAuthURL string              `toml:"device_auth_url"`
	TokenURL      string              `toml:"token_url"`
	Scopes        []string            `toml:"scopes"`
}

// Provider returns the linking descriptor.
func (p ProviderConfig) Provider() models.Provider {
	return models.Provider{ID: p.ID, Kind: p.Kind}
}

// DirectOAuth reports whether the provider speaks RFC 8628 without the backend.
func (p ProviderConfig) DirectOAuth() bool {
	return p.Kind == models.KindDevice && p.ClientID != "" && p.DeviceAuthURL != "" && p.TokenURL != ""
}

// OAuth2Config builds the OAuth2 client configuration for a direct provider.
func (p ProviderConfig) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Scopes:       p.Scopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: p.DeviceAuthURL,
			TokenURL:      p.TokenURL,
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

// Provider looks up a configured provider by id.
func (c *Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// Validate checks provider declarations and numeric settings.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if err := p.Provider().Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate provider %q", ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = true
	}
	if c.Backend.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: backend.requests_per_second must not be negative", ErrInvalidConfig)
	}
	if c.Device.MinInterval < 0 {
		return fmt.Errorf("%w: device.min_interval must not be negative", ErrInvalidConfig)
	}
	if c.Init.Timeout < 0 || c.Init.RetryDelay < 0 {
		return fmt.Errorf("%w: init durations must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a TOML file on top of the defaults, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	defaults := config.Providers
	config.Providers = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}
	if len(config.Providers) == 0 {
		config.Providers = defaults
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	return config, config.Validate()
}

// ApplyEnv overrides config fields from SOUNDLINK_* environment variables.
func ApplyEnv(config *Config) error {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
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
