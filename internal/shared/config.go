package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Generator   GeneratorConfig   `toml:"generator"`
	Clients     ClientsConfig     `toml:"clients"`
}

// CredentialsConfig contains provider-specific credentials.
type CredentialsConfig struct {
	SetlistFM SetlistFMConfig `toml:"setlistfm"`
	Spotify   SpotifyConfig   `toml:"spotify"`
}

// SetlistFMConfig contains setlist.fm API credentials.
type SetlistFMConfig struct {
	APIKey string `toml:"api_key"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DatabaseConfig contains match-cache database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// GeneratorConfig contains playlist generation policy knobs.
type GeneratorConfig struct {
	EventsFile      string `toml:"events_file"`
	OpenerTopTracks int    `toml:"opener_top_tracks"`
	PlaylistOrder   string `toml:"playlist_order"` // openers_first or headliner_first
	MinConfidence   int    `toml:"min_confidence"` // usability floor for track matches, 0-100
}

// ClientsConfig contains outbound request pacing for the API clients.
type ClientsConfig struct {
	SetlistIntervalMS int `toml:"setlist_interval_ms"`
	CatalogIntervalMS int `toml:"catalog_interval_ms"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes the configuration back to a TOML file.
func SaveConfig(path string, config *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
