package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Cache contains configuration for the metadata cache sweep.
type Cache struct {
	// MaxAgeDays is the age after which unused entries become sweep candidates.
	MaxAgeDays int `toml:"max_age_days"`
	// RetainAccessCount is the access count at or above which a track entry
	// survives the sweep regardless of age. The same threshold applies to
	// artwork use counts.
	RetainAccessCount int `toml:"retain_access_count"`
}

// Verification contains configuration for the background verification worker.
type Verification struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	ItemTimeout        int `toml:"item_timeout"`
	MaxRetries         int `toml:"max_retries"`
	DefaultPriority    int `toml:"default_priority"`
}

// Telemetry contains configuration for the in-memory event recorder.
type Telemetry struct {
	EventCapacity int `toml:"event_capacity"`
}

// Config encapsulates all configuration values for tonearm.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Logging: log format and level
//   - Cache: eviction sweep thresholds
//   - Verification: worker polling, timeouts, and retry limits
//   - Telemetry: event ring buffer capacity
type Config struct {
	Paths        Paths        `toml:"paths"`
	Logging      Logging      `toml:"logging"`
	Cache        Cache        `toml:"cache"`
	Verification Verification `toml:"verification"`
	Telemetry    Telemetry    `toml:"telemetry"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tonearm/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. When no file exists at the
// resolved location, defaults are returned and the boolean result is false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tonearm.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for cache operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the cache database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "cache.db")
}

// LockFilePath returns the location of the daemon single-instance lock file.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "tonearm.lock")
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	if c.Cache.MaxAgeDays == 0 {
		c.Cache.MaxAgeDays = defaultCacheMaxAgeDays
	}
	if c.Cache.RetainAccessCount == 0 {
		c.Cache.RetainAccessCount = defaultRetainAccessCount
	}
	if c.Verification.QueuePollInterval == 0 {
		c.Verification.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Verification.ErrorRetryInterval == 0 {
		c.Verification.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Verification.ItemTimeout == 0 {
		c.Verification.ItemTimeout = defaultItemTimeout
	}
	if c.Verification.MaxRetries == 0 {
		c.Verification.MaxRetries = defaultMaxRetries
	}
	if c.Telemetry.EventCapacity == 0 {
		c.Telemetry.EventCapacity = defaultEventCapacity
	}
	return nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
