package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	LogLevel string `koanf:"log_level"`

	Cipher struct {
		Backend     string        `koanf:"backend"`
		ScheduleTTL time.Duration `koanf:"schedule_ttl"`
	} `koanf:"cipher"`

	Decrypt struct {
		StrictSubsamples bool `koanf:"strict_subsamples"`
		Workers          int  `koanf:"workers"`
	} `koanf:"decrypt"`

	Keystore struct {
		Service string `koanf:"service"`
	} `koanf:"keystore"`

	License struct {
		URL        string        `koanf:"url"`
		Timeout    time.Duration `koanf:"timeout"`
		MaxRetries int           `koanf:"max_retries"`
	} `koanf:"license"`

	Server struct {
		Address string `koanf:"address"`
	} `koanf:"server"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log_level":                 "info",
		"cipher.backend":            string(crypto.BackendSoftware),
		"cipher.schedule_ttl":       crypto.DefaultScheduleTTL,
		"decrypt.strict_subsamples": false,
		"decrypt.workers":           4,
		"keystore.service":          keystore.DefaultService,
		"license.url":               "",
		"license.timeout":           30 * time.Second,
		"license.max_retries":       3,
		"server.address":            "127.0.0.1:8787",
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"config":      "",
	"log-level":   "log_level",
	"backend":     "cipher.backend",
	"strict":      "decrypt.strict_subsamples",
	"workers":     "decrypt.workers",
	"service":     "keystore.service",
	"license-url": "license.url",
	"addr":        "server.address",
}

// RegisterFlags adds the flags that override configuration values.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to a YAML configuration file")
	fs.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	fs.String("backend", string(crypto.BackendSoftware), "block cipher backend (software, enclave)")
	fs.Bool("strict", false, "reject subsamples with zero clear and encrypted length")
	fs.Int("workers", 4, "samples decrypted in parallel")
	fs.String("service", keystore.DefaultService, "keychain service name")
	fs.String("license-url", "", "ClearKey license server URL")
	fs.String("addr", "127.0.0.1:8787", "decrypt service listen address")
}

// Load builds the configuration from defaults, the YAML file at path (if
// any) and the flags in fs that were set explicitly. Either argument may be
// empty.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed reading config file %s: %w", path, err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed decoding configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	switch crypto.Backend(c.Cipher.Backend) {
	case crypto.BackendSoftware, crypto.BackendEnclave:
	default:
		return fmt.Errorf("%w: unknown cipher backend %q", ErrInvalidConfig, c.Cipher.Backend)
	}

	if c.Decrypt.Workers < 1 {
		return fmt.Errorf("%w: decrypt.workers must be at least 1", ErrInvalidConfig)
	}

	if c.License.MaxRetries < 0 {
		return fmt.Errorf("%w: license.max_retries must not be negative", ErrInvalidConfig)
	}

	return nil
}

// Backend returns the configured block cipher backend.
func (c *Config) Backend() crypto.Backend {
	return crypto.Backend(c.Cipher.Backend)
}

// DecryptOptions returns the decryptor options implied by the configuration.
func (c *Config) DecryptOptions() []crypto.DecryptOption {
	var opts []crypto.DecryptOption
	if c.Decrypt.StrictSubsamples {
		opts = append(opts, crypto.WithStrictSubsamples())
	}
	return opts
}
