package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures runtime configuration for the escrow daemon.
type Config struct {
	ListenAddress      string `toml:"ListenAddress"`
	DataDir            string `toml:"DataDir"`
	Env                string `toml:"Env"`
	LogLevel           string `toml:"LogLevel"`
	OpsToken           string `toml:"OpsToken"`
	AdminAddress       string `toml:"AdminAddress"`
	TokenAddress       string `toml:"TokenAddress"`
	RequestsPerMinute  float64 `toml:"RequestsPerMinute"`
	RequestBurst       int     `toml:"RequestBurst"`
	ShutdownTimeoutSec int     `toml:"ShutdownTimeoutSec"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./bountyvault-data"
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "local"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 600
	}
	if cfg.RequestBurst <= 0 {
		cfg.RequestBurst = 20
	}
	if cfg.ShutdownTimeoutSec <= 0 {
		cfg.ShutdownTimeoutSec = 10
	}
}

// Validate checks the address fields that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := parseOptionalAddress(c.AdminAddress); err != nil {
		return fmt.Errorf("AdminAddress: %w", err)
	}
	if _, err := parseOptionalAddress(c.TokenAddress); err != nil {
		return fmt.Errorf("TokenAddress: %w", err)
	}
	return nil
}

// Admin returns the configured admin address. The boolean reports whether the
// field was set.
func (c *Config) Admin() ([20]byte, bool, error) {
	return parseConfiguredAddress(c.AdminAddress)
}

// Token returns the configured token contract address. The boolean reports
// whether the field was set.
func (c *Config) Token() ([20]byte, bool, error) {
	return parseConfiguredAddress(c.TokenAddress)
}

func parseConfiguredAddress(raw string) ([20]byte, bool, error) {
	addr, err := parseOptionalAddress(raw)
	if err != nil {
		return [20]byte{}, false, err
	}
	return addr, strings.TrimSpace(raw) != "", nil
}

func parseOptionalAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return addr, nil
	}
	trimmed = strings.TrimPrefix(trimmed, "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, err
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("expected %d bytes, got %d", len(addr), len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
