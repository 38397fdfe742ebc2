package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full corebridge configuration.
type Config struct {
	Lock        LockManagerConfig `yaml:"lock"`
	Cuckoo      CuckooMapConfig   `yaml:"cuckoo"`
	Logging     LoggingConfig     `yaml:"logging"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// LockManagerConfig configures a lockmgr.Manager.
type LockManagerConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"COREBRIDGE_LOCK_DEFAULT_TIMEOUT"`
	MaxWalkDepth   int           `yaml:"max_walk_depth" env:"COREBRIDGE_LOCK_MAX_WALK_DEPTH"`
}

// CuckooMapConfig configures a cuckoomap.Map.
type CuckooMapConfig struct {
	InitialCapacity int `yaml:"initial_capacity" env:"COREBRIDGE_CUCKOO_INITIAL_CAPACITY"`
	MaxBumpDepth    int `yaml:"max_bump_depth" env:"COREBRIDGE_CUCKOO_MAX_BUMP_DEPTH"`
}

// LoggingConfig configures the shared zerolog-backed logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"COREBRIDGE_LOG_LEVEL"`
	Format string `yaml:"format" env:"COREBRIDGE_LOG_FORMAT"`
	Output string `yaml:"output" env:"COREBRIDGE_LOG_OUTPUT"`
}

// DiagnosticsConfig controls the compressed diagnostics export paths.
type DiagnosticsConfig struct {
	Enabled       bool   `yaml:"enabled" env:"COREBRIDGE_DIAGNOSTICS_ENABLED"`
	LockDumpPath  string `yaml:"lock_dump_path" env:"COREBRIDGE_DIAGNOSTICS_LOCK_DUMP_PATH"`
	CuckooDumpPath string `yaml:"cuckoo_dump_path" env:"COREBRIDGE_DIAGNOSTICS_CUCKOO_DUMP_PATH"`
}

// DefaultConfig returns sane defaults for standalone use.
func DefaultConfig() *Config {
	return &Config{
		Lock: LockManagerConfig{
			DefaultTimeout: 5 * time.Second,
			MaxWalkDepth:   0, // 0 means unbounded — the colour walk already terminates via coloring
		},
		Cuckoo: CuckooMapConfig{
			InitialCapacity: 64,
			MaxBumpDepth:    64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:        false,
			LockDumpPath:   "",
			CuckooDumpPath: "",
		},
	}
}

// Load reads a YAML configuration file, starting from DefaultConfig so
// unset fields keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv overrides cfg's fields with any COREBRIDGE_* environment
// variables that are set.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("COREBRIDGE_LOCK_DEFAULT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Lock.DefaultTimeout = d
		}
	}
	if v := os.Getenv("COREBRIDGE_LOCK_MAX_WALK_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Lock.MaxWalkDepth = n
		}
	}
	if v := os.Getenv("COREBRIDGE_CUCKOO_INITIAL_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cuckoo.InitialCapacity = n
		}
	}
	if v := os.Getenv("COREBRIDGE_CUCKOO_MAX_BUMP_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cuckoo.MaxBumpDepth = n
		}
	}
	if v := os.Getenv("COREBRIDGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("COREBRIDGE_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("COREBRIDGE_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}
	if v := os.Getenv("COREBRIDGE_DIAGNOSTICS_ENABLED"); v != "" {
		c.Diagnostics.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("COREBRIDGE_DIAGNOSTICS_LOCK_DUMP_PATH"); v != "" {
		c.Diagnostics.LockDumpPath = v
	}
	if v := os.Getenv("COREBRIDGE_DIAGNOSTICS_CUCKOO_DUMP_PATH"); v != "" {
		c.Diagnostics.CuckooDumpPath = v
	}
}

// Validate rejects configurations that would produce a nonsensical
// Manager or Map.
func (c *Config) Validate() error {
	if c.Lock.DefaultTimeout < 0 {
		return fmt.Errorf("config: lock.default_timeout must be non-negative, got %s", c.Lock.DefaultTimeout)
	}
	if c.Lock.MaxWalkDepth < 0 {
		return fmt.Errorf("config: lock.max_walk_depth must be non-negative, got %d", c.Lock.MaxWalkDepth)
	}
	if c.Cuckoo.InitialCapacity <= 0 {
		return fmt.Errorf("config: cuckoo.initial_capacity must be positive, got %d", c.Cuckoo.InitialCapacity)
	}
	if c.Cuckoo.MaxBumpDepth <= 0 {
		return fmt.Errorf("config: cuckoo.max_bump_depth must be positive, got %d", c.Cuckoo.MaxBumpDepth)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("config: logging.level %q is not recognized", c.Logging.Level)
	}
	if c.Diagnostics.Enabled {
		if c.Diagnostics.LockDumpPath == "" {
			return fmt.Errorf("config: diagnostics.lock_dump_path is required when diagnostics are enabled")
		}
		if c.Diagnostics.CuckooDumpPath == "" {
			return fmt.Errorf("config: diagnostics.cuckoo_dump_path is required when diagnostics are enabled")
		}
	}
	return nil
}
