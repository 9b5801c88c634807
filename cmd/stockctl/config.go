package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CLIConfig is the persistent CLI configuration.
type CLIConfig struct {
	Address   string        `yaml:"address"`
	Timeout   time.Duration `yaml:"timeout"`
	TLSCACert string        `yaml:"tls_ca_cert"`
}

var cfg CLIConfig

// configDir returns the directory holding the config and the durable session.
func configDir() string {
	if v := os.Getenv("STOCKDESK_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stockdesk")
}

func configPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// loadConfig reads .env, then the config file, then applies env overrides.
func loadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg = CLIConfig{
		Address: "http://127.0.0.1:8080",
		Timeout: 30 * time.Second,
	}
	if data, err := os.ReadFile(configPath()); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return err
		}
	}

	if v := os.Getenv("STOCKDESK_ADDR"); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv("STOCKDESK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("STOCKDESK_CACERT"); v != "" {
		cfg.TLSCACert = v
	}
	return nil
}

// saveConfig persists the CLI config to disk.
func saveConfig() error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
