// Package config loads the backend configuration.
// Layers, lowest to highest: defaults, optional yaml file, STOCKDESK_* env.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STOCKDESK_"

// Config is the backend runtime configuration.
type Config struct {
	Listen           string        `koanf:"listen" validate:"required,listen_addr"`
	LogLevel         string        `koanf:"log_level" validate:"oneof=trace debug info warn error"`
	Storage          string        `koanf:"storage" validate:"oneof=memory postgres"`
	DatabaseURL      string        `koanf:"database_url" validate:"required_if=Storage postgres"`
	MigrationsDir    string        `koanf:"migrations_dir" validate:"required"`
	RateLimit        int           `koanf:"rate_limit" validate:"gte=0"`
	ProcessInterval  time.Duration `koanf:"process_interval" validate:"gt=0"`
	ProcessBatch     int           `koanf:"process_batch" validate:"gt=0"`
	MaxDownloadBytes int64         `koanf:"max_download_bytes" validate:"gte=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	AdminEmail       string        `koanf:"admin_email" validate:"omitempty,email"`
	AdminPassword    string        `koanf:"admin_password" validate:"required_with=AdminEmail"`
}

// DefaultConfig holds the values used when nothing overrides them.
var DefaultConfig = Config{
	Listen:           ":8080",
	LogLevel:         "info",
	Storage:          "memory",
	MigrationsDir:    "migrations",
	RateLimit:        20,
	ProcessInterval:  2 * time.Second,
	ProcessBatch:     10,
	MaxDownloadBytes: 512 << 20,
	ShutdownTimeout:  10 * time.Second,
}

var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultConfig, "koanf"), nil)
}

var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil)
}

var registerValidators = func(v *validator.Validate) error {
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load builds the configuration from defaults and the environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with a yaml file layered between the defaults and the
// environment. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(yamlFile(path), nil); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	v := validator.New()
	if err := registerValidators(v); err != nil {
		return nil, fmt.Errorf("registering validators: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// validListenAddr accepts host:port or :port with a port in 1..65535.
func validListenAddr(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) != s {
		return false
	}
	_, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}

// yamlFile is a koanf provider for a flat yaml document.
type yamlFile string

func (f yamlFile) ReadBytes() ([]byte, error) {
	return os.ReadFile(string(f))
}

func (f yamlFile) Read() (map[string]any, error) {
	b, err := f.ReadBytes()
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
