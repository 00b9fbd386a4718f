// Package config defines the taskflow application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/taskflow/provider"
)

// Config is the top-level taskflow configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server" toml:"server"`
	Auth       AuthConfig       `json:"auth" yaml:"auth" toml:"auth"`
	Storage    StorageConfig    `json:"storage" yaml:"storage" toml:"storage"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier" toml:"classifier"`
	Log        LogConfig        `json:"log" yaml:"log" toml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"` // listen address, e.g., ":8080"
}

// AuthConfig controls API authentication.
type AuthConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled" toml:"enabled"`
	JWTSecret string        `json:"jwt_secret" yaml:"jwt_secret" toml:"jwt_secret"`
	AdminUser string        `json:"admin_user" yaml:"admin_user" toml:"admin_user"`
	AdminPass string        `json:"admin_pass" yaml:"admin_pass" toml:"admin_pass"` // bcrypt hash
	TokenTTL  time.Duration `json:"token_ttl" yaml:"token_ttl" toml:"token_ttl"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `json:"path" yaml:"path" toml:"path"`
}

// ClassifierConfig selects and tunes the language-model backend.
type ClassifierConfig struct {
	Provider          string              `json:"provider" yaml:"provider" toml:"provider"` // "mock" or "openai"
	Model             string              `json:"model,omitempty" yaml:"model" toml:"model"`
	Endpoints         []provider.Endpoint `json:"endpoints,omitempty" yaml:"endpoints" toml:"endpoints"`
	Timeout           time.Duration       `json:"timeout" yaml:"timeout" toml:"timeout"`
	DefaultRetryAfter time.Duration       `json:"default_retry_after" yaml:"default_retry_after" toml:"default_retry_after"`
	MaxWait           time.Duration       `json:"max_wait,omitempty" yaml:"max_wait" toml:"max_wait"`
	MaxTokens         int                 `json:"max_tokens,omitempty" yaml:"max_tokens" toml:"max_tokens"`
	Mock              MockConfig          `json:"mock" yaml:"mock" toml:"mock"`
}

// MockConfig holds the replies of the offline mock provider, one per prompt
// kind. Tags and sub-task titles are returned to the gateway as JSON arrays.
type MockConfig struct {
	Priority string   `json:"priority" yaml:"priority" toml:"priority"`
	Tags     []string `json:"tags" yaml:"tags" toml:"tags"`
	Subtasks []string `json:"subtasks" yaml:"subtasks" toml:"subtasks"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`    // debug, info, warn, error
	Format string `json:"format" yaml:"format" toml:"format"` // text or json
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Auth: AuthConfig{
			AdminUser: "admin",
			TokenTTL:  24 * time.Hour,
		},
		Storage: StorageConfig{
			Path: "./data/taskflow.db",
		},
		Classifier: ClassifierConfig{
			Provider:          "mock",
			Timeout:           300 * time.Second,
			DefaultRetryAfter: 10 * time.Second,
			Mock: MockConfig{
				Priority: "Medium",
				Tags:     []string{"Work", "Urgent"},
				Subtasks: []string{
					"Research mountain destinations",
					"Check team availability",
					"Book accommodations",
					"Plan transportation",
					"Create itinerary",
				},
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a config file over the defaults. Files ending in .toml are
// decoded as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports configuration that cannot start the service.
func (c *Config) Validate() error {
	var errs []error
	switch c.Classifier.Provider {
	case "mock":
		if c.Classifier.Mock.Priority == "" {
			errs = append(errs, errors.New("classifier.mock.priority is empty"))
		}
	case "openai":
		if len(c.Classifier.Endpoints) == 0 {
			errs = append(errs, errors.New("classifier.endpoints: at least one endpoint is required for provider openai"))
		}
		for i, ep := range c.Classifier.Endpoints {
			if ep.URL == "" {
				errs = append(errs, fmt.Errorf("classifier.endpoints[%d].url is empty", i))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("classifier.provider: unknown provider %q", c.Classifier.Provider))
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required when auth is enabled"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is empty"))
	}
	return errors.Join(errs...)
}
