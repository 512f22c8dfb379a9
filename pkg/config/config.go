// Package config loads client settings from a YAML file and applies
// defaults for anything unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Storage backend names accepted in the credentials.backend field.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
	BackendMemory  = "memory"
)

// Config is the full client configuration.
type Config struct {
	// Model is the default model for generation requests that leave the
	// model field empty.
	Model string `yaml:"model"`

	// BaseURL overrides the Anthropic API origin, for proxies and tests.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests when no OAuth credential exists. The
	// ANTHROPIC_API_KEY environment variable is consulted as a fallback at
	// request time, not here.
	APIKey string `yaml:"api_key"`

	// RequestsPerSecond throttles outbound API calls. Zero means
	// unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	OAuth       OAuthConfig       `yaml:"oauth"`
	Credentials CredentialsConfig `yaml:"credentials"`
}

// OAuthConfig overrides the OAuth endpoints, for proxies and tests. Empty
// fields use the Anthropic defaults.
type OAuthConfig struct {
	ClientID    string `yaml:"client_id"`
	AuthURL     string `yaml:"auth_url"`
	TokenURL    string `yaml:"token_url"`
	RedirectURI string `yaml:"redirect_uri"`
}

// CredentialsConfig selects where OAuth credentials are persisted.
type CredentialsConfig struct {
	// Backend is one of "file", "keyring", or "memory".
	Backend string `yaml:"backend"`

	// Dir is the credential directory for the file backend. Empty uses
	// ~/.claudebridge.
	Dir string `yaml:"dir"`

	// Service is the keychain service name for the keyring backend.
	Service string `yaml:"service"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Model: "claude-sonnet-4-20250514",
		Credentials: CredentialsConfig{
			Backend: BackendFile,
		},
	}
}

// Load reads a YAML config file and merges it over the defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Credentials.Backend {
	case "", BackendFile, BackendKeyring, BackendMemory:
	default:
		return fmt.Errorf("unknown credentials backend %q", c.Credentials.Backend)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	return nil
}
