// Package node wires the consensus graph core (package consensus) into a
// runnable program: configuration loading, health/lifecycle management, and
// the websocket/bootstrap surface a syncing peer or light client talks to.
package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/praizmiky/massa/consensus"
)

// Config holds all configuration for a massa-node process: every option
// consensus.Config recognizes (spec.md §6), inlined so a single config file
// sets them at the top level, plus the ambient fields the node binary
// itself needs.
type Config struct {
	consensus.Config `yaml:",inline" mapstructure:",squash"`

	// DataDir is the root directory for all data storage.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`

	// LogFile is decoded from log_file, but nothing reads it; logs always go
	// to stderr.
	LogFile string `yaml:"log_file" mapstructure:"log_file"`

	// WSListenAddr is the address the websocket server (ws_enabled) binds
	// to. Empty disables it regardless of ws_enabled.
	WSListenAddr string `yaml:"ws_listen_addr" mapstructure:"ws_listen_addr"`
}

// defaultDataDir returns the platform-specific default data directory.
// Falls back to ".massa-node" in the current directory if the home
// directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".massa-node"
	}
	return filepath.Join(home, ".massa-node")
}

// DefaultConfig returns a Config with sensible single-node defaults,
// layering the ambient fields over consensus.DefaultConfig().
func DefaultConfig() Config {
	return Config{
		Config:       *consensus.DefaultConfig(),
		DataDir:      defaultDataDir(),
		LogLevel:     "info",
		WSListenAddr: "127.0.0.1:8080",
	}
}

// Validate checks the consensus options and the ambient fields.
func (c *Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	if c.Config.WsEnabled && c.WSListenAddr == "" {
		return errors.New("config: ws_enabled requires ws_listen_addr")
	}
	return nil
}

// dataDirSubdirs lists subdirectories created inside the data directory.
var dataDirSubdirs = []string{
	"blocks",
	"keystore",
}

// InitDataDir creates the data directory and its standard subdirectories
// if they do not already exist. Returns an error if directory creation fails.
func (c *Config) InitDataDir() error {
	if c.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}

	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return fmt.Errorf("config: create datadir: %w", err)
	}

	for _, sub := range dataDirSubdirs {
		dir := filepath.Join(c.DataDir, sub)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("config: create %s: %w", sub, err)
		}
	}
	return nil
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}
