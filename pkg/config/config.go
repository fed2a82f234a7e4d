// Package config loads the uascope configuration and bookmark files
// from ~/.uascope. Missing files yield defaults, not errors.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uascope/uascope/pkg/client"
	"github.com/uascope/uascope/pkg/crawl"
)

// Config is the uascope configuration file.
type Config struct {
	// Connection holds the default connection parameters; flags and the
	// connect form override them.
	Connection client.Config `yaml:"connection"`
	// PublishInterval is the subscription publishing interval.
	PublishInterval time.Duration `yaml:"publish_interval"`
	// Crawl holds the default crawl limits.
	Crawl crawl.Config `yaml:"crawl"`
	// PKIDir is the certificate trust store root.
	PKIDir string `yaml:"pki_dir"`
	// LogFile is where zap writes; empty disables logging for headless
	// commands and defaults to ~/.uascope/uascope.log for the TUI.
	LogFile string `yaml:"log_file"`
	// OutputFormat is the default formatter: table, json, or yaml.
	OutputFormat string `yaml:"output_format"`
}

// Dir returns the uascope configuration directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".uascope"
	}
	return filepath.Join(home, ".uascope")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Connection: client.Config{
			EndpointURL:    "opc.tcp://localhost:4840",
			SecurityPolicy: "None",
			SecurityMode:   "None",
			Auth:           client.AuthMethod{Type: "anonymous"},
		},
		PublishInterval: 500 * time.Millisecond,
		Crawl:           crawl.DefaultConfig(),
		PKIDir:          filepath.Join(Dir(), "pki"),
		OutputFormat:    "table",
	}
}

// Load reads the config at path, filling unset fields with defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 500 * time.Millisecond
	}
	if cfg.Crawl.StartNode == "" {
		cfg.Crawl.StartNode = client.ObjectsFolder
	}
	if cfg.Crawl.MaxDepth <= 0 {
		cfg.Crawl.MaxDepth = crawl.DefaultConfig().MaxDepth
	}
	if cfg.Crawl.MaxNodes <= 0 {
		cfg.Crawl.MaxNodes = crawl.DefaultConfig().MaxNodes
	}
	if cfg.PKIDir == "" {
		cfg.PKIDir = filepath.Join(Dir(), "pki")
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "table"
	}
	return cfg, nil
}

// Save writes the config to path, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
