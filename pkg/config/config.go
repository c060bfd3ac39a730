// Package config handles configuration for uiscout.
//
// Settings come from a YAML file with an optional dotenv overlay: values
// already present in the process environment always win, then the env file
// named by UISCOUT_ENV (or a local .env), then the YAML file, then the
// defaults.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/logger"
	"github.com/devicelab-dev/uiscout/pkg/portal"
)

// Duration unmarshals YAML scalars through time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return core.ErrInvalidConfig.WithMessagef("duration must be a scalar like \"15s\"").WithCause(err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return core.ErrInvalidConfig.WithMessagef("invalid duration %q", raw).WithCause(err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Portal connection
	PortalURL string `yaml:"portalUrl"`
	Serial    string `yaml:"serial"`

	// Directories
	CacheDir string `yaml:"cacheDir"`
	LogDir   string `yaml:"logDir"`

	// Logging
	LogLevel string `yaml:"logLevel"`

	// Resolution settings
	Language      string   `yaml:"language"`
	LocateTimeout Duration `yaml:"locateTimeout"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	cacheDir := GetCacheDir()
	return &Config{
		PortalURL:     portal.DefaultBaseURL,
		CacheDir:      cacheDir,
		LogDir:        filepath.Join(cacheDir, "logs"),
		LogLevel:      "INFO",
		Language:      string(core.LanguageEnglish),
		LocateTimeout: Duration(15 * time.Second),
	}
}

// Load loads configuration from a file and applies the environment overlay.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessagef("failed to parse %s", path).WithCause(err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory. A
// missing file is not an error; defaults plus the environment apply.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	cfg := Defaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv loads the dotenv file and overrides fields from UISCOUT_*
// variables. godotenv never overwrites variables already set, so the real
// environment keeps precedence over the file.
func (c *Config) applyEnv() error {
	if envFile := os.Getenv("UISCOUT_ENV"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return core.ErrInvalidConfig.WithMessagef("failed to load env file %s", envFile).WithCause(err)
		}
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("UISCOUT_PORTAL_URL"); v != "" {
		c.PortalURL = v
	}
	if v := os.Getenv("UISCOUT_SERIAL"); v != "" {
		c.Serial = v
	}
	if v := os.Getenv("UISCOUT_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("UISCOUT_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("UISCOUT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("UISCOUT_LOCATE_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return core.ErrInvalidConfig.WithMessagef("invalid UISCOUT_LOCATE_TIMEOUT %q", v).WithCause(err)
		}
		c.LocateTimeout = Duration(parsed)
	}
	return nil
}

// Validate checks that enumerated fields carry known values.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return core.ErrInvalidConfig.WithMessagef("unknown log level %q", c.LogLevel)
	}
	if c.Language != "" {
		if _, err := core.ParseLanguage(c.Language); err != nil {
			return err
		}
	}
	if c.LocateTimeout < 0 {
		return core.ErrInvalidConfig.WithMessagef("locate timeout must not be negative")
	}
	return nil
}

// EnsureDirs creates the cache and log directories.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(c.LogDir, 0o755)
}

// LogFile returns the path of the engine log inside the log directory.
func (c *Config) LogFile() string {
	return filepath.Join(c.LogDir, "uiscout.log")
}
