// Package config loads the respcache configuration from a YAML or JSON
// file with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Redis describes the backing store connection: either a single
// connection string or the structured host/port form.
type Redis struct {
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// Config is the full respcache configuration.
type Config struct {
	Enabled              bool     `json:"enabled" yaml:"enabled"`
	Redis                Redis    `json:"redis" yaml:"redis"`
	KeyPrefix            string   `json:"key_prefix" yaml:"key_prefix"`
	DefaultTTLSeconds    int      `json:"default_ttl_seconds" yaml:"default_ttl_seconds"`
	ExcludeRoutes        []string `json:"exclude_routes,omitempty" yaml:"exclude_routes,omitempty"`
	ExcludeAuthenticated bool     `json:"exclude_authenticated" yaml:"exclude_authenticated"`
	CachePrivate         bool     `json:"cache_private" yaml:"cache_private"`
	PathPrefix           string   `json:"path_prefix" yaml:"path_prefix"`
	ListenAddr           string   `json:"listen_addr" yaml:"listen_addr"`
	UpstreamURL          string   `json:"upstream_url" yaml:"upstream_url"`
	AdminToken           string   `json:"admin_token,omitempty" yaml:"admin_token,omitempty"`
	LogLevel             string   `json:"log_level" yaml:"log_level"`
	LogPretty            bool     `json:"log_pretty" yaml:"log_pretty"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Enabled:              true,
		Redis:                Redis{Host: "localhost", Port: 6379},
		KeyPrefix:            "respcache",
		DefaultTTLSeconds:    300,
		ExcludeAuthenticated: true,
		PathPrefix:           "/api",
		ListenAddr:           ":8080",
		LogLevel:             "info",
	}
}

// Load reads and parses a config file, then applies environment
// overrides. An empty path yields the defaults plus overrides.
// Supported formats: YAML (.yaml, .yml) and JSON (.json).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config: %w", err)
			}
		case ".json":
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing JSON config: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
		}
	}

	cfg.applyEnv()
	return &cfg, nil
}

// applyEnv overlays recognized environment variables on the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		c.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis = Redis{URL: v}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("UPSTREAM_URL"); v != "" {
		c.UpstreamURL = v
	}
	if v := os.Getenv("CACHE_KEY_PREFIX"); v != "" {
		c.KeyPrefix = v
	}
	if v := os.Getenv("CACHE_DEFAULT_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DefaultTTLSeconds = n
		}
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.AdminToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration for correctness.
func (c Config) Validate() error {
	if c.DefaultTTLSeconds < 0 {
		return fmt.Errorf("default_ttl_seconds must be >= 0")
	}
	if c.UpstreamURL != "" {
		u, err := url.Parse(c.UpstreamURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("upstream_url %q is not a valid absolute URL", c.UpstreamURL)
		}
	}
	for _, pattern := range c.ExcludeRoutes {
		if _, err := path.Match(pattern, "/"); err != nil {
			return fmt.Errorf("exclude_routes pattern %q is invalid: %w", pattern, err)
		}
	}
	return nil
}
