package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Database DatabaseConfig `toml:"database"`
	Paths    PathsConfig    `toml:"paths"`
	Worker   WorkerConfig   `toml:"worker"`
	Server   ServerConfig   `toml:"server"`
	Quality  QualityConfig  `toml:"quality"`
}

// ProviderConfig contains settings for the upstream content provider.
type ProviderConfig struct {
	BaseURL string `toml:"base_url"`
	// DownloadHost is the canonical host that direct-download URLs derived
	// from resource-info lookups are re-hosted under.
	DownloadHost string `toml:"download_host"`
	// HeadersPath optionally points at a captured cURL command whose headers
	// are replayed on every upstream request.
	HeadersPath    string  `toml:"headers_path"`
	ProbeTimeoutS  int     `toml:"probe_timeout_seconds"`
	StreamTimeoutS int     `toml:"stream_timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PathsConfig contains the staging and library directories.
type PathsConfig struct {
	StagingDir string `toml:"staging_dir"`
	LibraryDir string `toml:"library_dir"`
}

// WorkerConfig contains settings for the background download worker.
type WorkerConfig struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// QualityConfig contains the default quality preferences applied to tasks
// that do not declare their own.
type QualityConfig struct {
	Preferred    string   `toml:"preferred"`
	AllowDegrade bool     `toml:"allow_degrade"`
	DegradeOrder []string `toml:"degrade_order"`
}

// ProbeTimeout returns the resolution probe timeout as a [time.Duration].
func (p ProviderConfig) ProbeTimeout() time.Duration {
	if p.ProbeTimeoutS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.ProbeTimeoutS) * time.Second
}

// StreamTimeout returns the content stream timeout as a [time.Duration].
func (p ProviderConfig) StreamTimeout() time.Duration {
	if p.StreamTimeoutS <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.StreamTimeoutS) * time.Second
}

// PollInterval returns the worker poll interval as a [time.Duration].
func (w WorkerConfig) PollInterval() time.Duration {
	if w.PollIntervalMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(w.PollIntervalMS) * time.Millisecond
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

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
