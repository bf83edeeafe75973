package refine

import (
	"fmt"
	"github.com/cottand/refine/fixpoint"
	"gopkg.in/yaml.v3"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// ConfigFile is the name of the configuration file, looked up from the checked
// program's directory upwards
const ConfigFile = "refine.yaml"

// DefaultSolver is the solver binary used when none is configured
const DefaultSolver = "fixpoint"

type Config struct {
	// Solver is the solver binary. Queries are passed as a file path argument.
	Solver     string   `yaml:"solver"`
	SolverArgs []string `yaml:"solver_args"`
	// Timeout bounds each solver run, e.g. "30s"
	Timeout time.Duration `yaml:"timeout"`
	// Workers is the number of functions checked at once
	Workers int `yaml:"workers"`
	// Cache is the path of the solver result cache. Empty disables caching.
	Cache      string          `yaml:"cache"`
	LogLevel   string          `yaml:"log_level"`
	Qualifiers []QualifierSpec `yaml:"qualifiers"`
}

// DefaultConfig is the configuration used when there is no refine.yaml
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a refine.yaml file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses refine.yaml content. path is only used in error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for refine.yaml starting from dir and walking up to parent
// directories. It returns an empty path and no error when there is none.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) validate(path string) error {
	if c.Workers < 0 {
		return fmt.Errorf("%s: workers must not be negative", path)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s: timeout must not be negative", path)
	}
	if c.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return fmt.Errorf("%s: log_level: %w", path, err)
		}
	}
	for i, q := range c.Qualifiers {
		if q.Name == "" {
			return fmt.Errorf("%s: qualifiers[%d]: name is required", path, i)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Solver == "" {
		c.Solver = DefaultSolver
	}
	if c.Timeout == 0 {
		c.Timeout = fixpoint.DefaultSolverTimeout
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.LogLevel == "" {
		c.LogLevel = slog.LevelInfo.String()
	}
}

// Level is the configured log level
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewSolver builds the solver the configuration describes, caching its results
// when a cache is configured. The returned close function releases the cache.
func (c *Config) NewSolver() (fixpoint.Solver, func() error, error) {
	solver := &fixpoint.ExecSolver{Binary: c.Solver, Args: c.SolverArgs, Timeout: c.Timeout}
	if c.Cache == "" {
		return solver, func() error { return nil }, nil
	}
	cache, err := fixpoint.OpenCache(c.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open solver cache: %w", err)
	}
	return &fixpoint.CachingSolver{Solver: solver, Cache: cache}, cache.Close, nil
}
