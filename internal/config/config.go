package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

// Config is the resolved solarops configuration.
type Config struct {
	APIURL         string        `koanf:"api_url"`
	SessionPath    string        `koanf:"session_path"`
	PageSize       int           `koanf:"page_size"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	PollInterval   time.Duration `koanf:"poll_interval"`
	LogLevel       string        `koanf:"log_level"`
	LogFormat      string        `koanf:"log_format"`
	Output         string        `koanf:"output"`

	// File is the config file that was read, or "" when none existed.
	File string `koanf:"-"`
}

const (
	defaultConfigPath   = "~/.config/solarops/config.toml"
	defaultSessionPath  = "~/.config/solarops/session.toml"
	defaultAPIURL       = "http://127.0.0.1:8080"
	defaultPageSize     = 10
	defaultPollInterval = 30 * time.Second
	defaultLogLevel     = "warn"
	defaultLogFormat    = "text"

	// EnvPrefix prefixes every environment override, e.g. SOLAROPS_API_URL.
	EnvPrefix = "SOLAROPS_"
)

// Output formats accepted by the CLI.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

func defaults() map[string]any {
	return map[string]any{
		"api_url":         defaultAPIURL,
		"session_path":    defaultSessionPath,
		"page_size":       defaultPageSize,
		"request_timeout": time.Duration(0),
		"poll_interval":   defaultPollInterval,
		"log_level":       defaultLogLevel,
		"log_format":      defaultLogFormat,
		"output":          OutputTable,
	}
}

// Load layers defaults, the TOML file at path, SOLAROPS_* environment variables
// and explicitly set flags, in increasing priority. An empty path means
// ~/.config/solarops/config.toml; a missing file is not an error.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	used := ""
	if _, err := os.Stat(resolved); err == nil {
		if err := k.Load(file.Provider(resolved), tomlParser{}); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", resolved, err)
		}
		used = resolved
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = used
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.APIURL = strings.TrimSpace(c.APIURL)
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}

	if strings.TrimSpace(c.SessionPath) == "" {
		c.SessionPath = defaultSessionPath
	}
	expanded, err := expandPath(c.SessionPath)
	if err != nil {
		return fmt.Errorf("session path: %w", err)
	}
	c.SessionPath = expanded

	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}

	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	switch c.Output {
	case "":
		c.Output = OutputTable
	case OutputTable, OutputJSON:
	default:
		return fmt.Errorf("invalid output %q (want %s or %s)", c.Output, OutputTable, OutputJSON)
	}
	return nil
}

// tomlParser adapts go-toml/v2 to koanf's Parser interface.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	var out map[string]any
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	return toml.Marshal(m)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
