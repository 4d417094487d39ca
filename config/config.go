package config

import (
	"fmt"
	"time"
)

// Config represents a railstream.yaml configuration file.
// All values are optional and act as defaults for CLI flags.
// CLI flags always override config values.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Stations StationsConfig `yaml:"stations"`
	History  HistoryConfig  `yaml:"history"`
	Client   ClientConfig   `yaml:"client"`
}

// ServerConfig holds producer server defaults.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// UpstreamConfig holds HSP API defaults. Credentials normally come from the
// environment via ${RAIL_EMAIL} / ${RAIL_PWORD} expansion.
type UpstreamConfig struct {
	BaseURL  string   `yaml:"base_url"`
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	Timeout  Duration `yaml:"timeout,omitempty"`
}

// CacheConfig holds Redis cache defaults.
type CacheConfig struct {
	URL       string   `yaml:"url"`
	TTL       Duration `yaml:"ttl,omitempty"`
	KeyPrefix string   `yaml:"key_prefix,omitempty"`
}

// StationsConfig points at a station-codes file. Empty means the built-in
// directory.
type StationsConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig holds analysis history sink defaults.
type HistoryConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// ClientConfig holds stream consumer defaults.
type ClientConfig struct {
	ServerURL string            `yaml:"server_url"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
