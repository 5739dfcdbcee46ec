// Package config loads volfs settings from an optional YAML file and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"volfs/internal/logging"

	"gopkg.in/yaml.v3"
)

var (
	logger = logging.GetLogger().WithPrefix("config")
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "VOLFS_"

// Config holds every setting that can come from a file, the environment
// or the command line. Later sources override earlier ones.
type Config struct {
	FSName           string `yaml:"fsname"`
	Subtype          string `yaml:"subtype"`
	AllowOther       bool   `yaml:"allow_other"`
	Multithread      bool   `yaml:"multithread"`
	LogLevel         string `yaml:"log_level"` // empty keeps LOG_LEVEL
	BufferedFallback bool   `yaml:"buffered_fallback"`
	ReadOnly         bool   `yaml:"read_only"`
	MaxReadahead     uint32 `yaml:"max_readahead"`

	// Alignment overrides the direct I/O alignment. Zero picks it from the
	// backing object.
	Alignment int `yaml:"alignment"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		FSName:  "volfs",
		Subtype: "volfs",
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %s: %w", path, err)
	}
	logger.Debug("Loading config from: %s", absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", absPath, err)
	}

	logger.Info("Config loaded successfully")
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from VOLFS_* variables found by lookup.
// Pass os.LookupEnv outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			logger.Trace("Env override %s%s=%q", EnvPrefix, name, v)
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("FSNAME", &c.FSName)
	str("SUBTYPE", &c.Subtype)
	str("LOG_LEVEL", &c.LogLevel)

	for name, dst := range map[string]*bool{
		"ALLOW_OTHER":       &c.AllowOther,
		"MULTITHREAD":       &c.Multithread,
		"BUFFERED_FALLBACK": &c.BufferedFallback,
		"READ_ONLY":         &c.ReadOnly,
	} {
		if err := boolean(name, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "MAX_READAHEAD"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%sMAX_READAHEAD: %w", EnvPrefix, err)
		}
		c.MaxReadahead = uint32(n)
	}
	if v, ok := lookup(EnvPrefix + "ALIGNMENT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sALIGNMENT: %w", EnvPrefix, err)
		}
		c.Alignment = n
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.FSName) == "" {
		return fmt.Errorf("fsname must not be empty")
	}
	if c.Alignment < 0 || (c.Alignment != 0 && c.Alignment&(c.Alignment-1) != 0) {
		return fmt.Errorf("alignment %d is not a power of two", c.Alignment)
	}
	if c.LogLevel != "" {
		if _, err := c.Level(); err != nil {
			return err
		}
	}
	return nil
}

// Level returns LogLevel parsed as a logging level.
func (c *Config) Level() (logging.LogLevel, error) {
	return logging.ParseLevel(c.LogLevel)
}
