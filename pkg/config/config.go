package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// DefaultBaseURL is the upstream used when nothing else is configured.
const DefaultBaseURL = "https://www.omdbapi.com/"

// Environment variables consulted for upstream settings. For each setting
// the first non-empty variable wins and overrides the config file.
var (
	APIKeyEnv  = []string{"OMDB_API_KEY", "VITE_API_KEY"}
	BaseURLEnv = []string{"OMDB_BASE_URL", "VITE_BASE_URL"}
)

type Config struct {
	Listen   string         `toml:"listen"`
	Upstream UpstreamConfig `toml:"upstream"`
	Proxy    ProxyConfig    `toml:"proxy"`
	Search   SearchConfig   `toml:"search"`
	Auth     AuthConfig     `toml:"auth"`
}

type UpstreamConfig struct {
	APIKey    string   `toml:"api_key"`
	BaseURL   string   `toml:"base_url"`
	Timeout   Duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"`
	Burst     int      `toml:"burst"`
}

type ProxyConfig struct {
	CacheMaxAge Duration `toml:"cache_max_age"`
	DefaultType string   `toml:"default_type"`
	// AllowedOrigins restricts which browser origins may open the live
	// search socket. Empty allows any origin.
	AllowedOrigins []string `toml:"allowed_origins"`
}

type SearchConfig struct {
	Debounce    Duration `toml:"debounce"`
	InitialTerm string   `toml:"initial_term"`
	Type        string   `toml:"type"`
	// RevalidateFirstPage also refetches page 1 when a client revalidates.
	RevalidateFirstPage bool `toml:"revalidate_first_page"`
}

// AuthConfig holds the demo login accepted by the placeholder verifier.
type AuthConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Email    string `toml:"email"`
	Name     string `toml:"name"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = "localhost:8080"
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultBaseURL
	}
	if c.Upstream.Timeout.Duration == 0 {
		c.Upstream.Timeout = Duration{10 * time.Second}
	}
	if c.Upstream.Burst <= 0 {
		c.Upstream.Burst = 1
	}
	if c.Proxy.CacheMaxAge.Duration == 0 {
		c.Proxy.CacheMaxAge = Duration{5 * time.Minute}
	}
	if c.Proxy.DefaultType == "" {
		c.Proxy.DefaultType = "movie"
	}
	if c.Search.Debounce.Duration == 0 {
		c.Search.Debounce = Duration{500 * time.Millisecond}
	}
	if c.Search.Type == "" {
		c.Search.Type = "movie"
	}
	if c.Auth.Username == "" && c.Auth.Password == "" {
		c.Auth = AuthConfig{
			Username: "admin",
			Password: "123",
			Email:    "admin@example.com",
			Name:     "Admin User",
		}
	}
}

// LoadConfig reads configPath (a missing file yields the defaults) and then
// applies environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	config.applyDefaults()
	config.ApplyEnv()
	return &config, nil
}

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment. Variables already set are left alone and a missing file is
// not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides upstream settings from the environment.
func (c *Config) ApplyEnv() {
	if v := firstEnv(APIKeyEnv...); v != "" {
		c.Upstream.APIKey = v
	}
	if v := firstEnv(BaseURLEnv...); v != "" {
		c.Upstream.BaseURL = v
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// SaveTemplateConfig writes the commented sample configuration.
func SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(configPath, []byte(configTemplate), 0600)
}

// GetConfigDir returns the configuration directory for movieei
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "movieei"), nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
