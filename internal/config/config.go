package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"libscout/internal/cache"
	"libscout/internal/cluster"
	"libscout/internal/extractor"
	"libscout/internal/logging"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "libscout.yaml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Corpus struct {
		Roots           []string `yaml:"roots"`
		FingerprintMode string   `yaml:"fingerprint_mode"`
		Workers         int      `yaml:"workers"`
	} `yaml:"corpus"`
	Cache struct {
		Dir         string `yaml:"dir"`
		Compression string `yaml:"compression"`
		Enabled     bool   `yaml:"enabled"`
	} `yaml:"cache"`
	Clustering struct {
		CompatibilityThreshold float64 `yaml:"compatibility_threshold"`
		LRUSize                int     `yaml:"lru_size"`
	} `yaml:"clustering"`
	Storage struct {
		DB string `yaml:"db"`
	} `yaml:"storage"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
	ProgressEvery int `yaml:"progress_every"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	var cfg Config
	cfg.Corpus.FingerprintMode = extractor.ModeBytes
	cfg.Corpus.Workers = runtime.NumCPU()
	cfg.Cache.Dir = ".libscout"
	cfg.Cache.Compression = string(cache.CompressionZstd)
	cfg.Cache.Enabled = true
	cfg.Clustering.CompatibilityThreshold = 1
	cfg.Clustering.LRUSize = cluster.DefaultLRUSize
	cfg.Storage.DB = "libscout.db"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.ProgressEvery = 10000
	return &cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path == "" {
		path = DefaultPath
	}
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if roots := os.Getenv("LIBSCOUT_ROOTS"); roots != "" {
		c.Corpus.Roots = nil
		for _, r := range strings.Split(roots, ",") {
			if r = strings.TrimSpace(r); r != "" {
				c.Corpus.Roots = append(c.Corpus.Roots, r)
			}
		}
	}
	if mode := os.Getenv("LIBSCOUT_FINGERPRINT_MODE"); mode != "" {
		c.Corpus.FingerprintMode = mode
	}
	if workers := os.Getenv("LIBSCOUT_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("%w: LIBSCOUT_WORKERS: %v", ErrInvalid, err)
		}
		c.Corpus.Workers = n
	}
	if dir := os.Getenv("LIBSCOUT_CACHE_DIR"); dir != "" {
		c.Cache.Dir = dir
	}
	if comp := os.Getenv("LIBSCOUT_CACHE_COMPRESSION"); comp != "" {
		c.Cache.Compression = comp
	}
	if tau := os.Getenv("LIBSCOUT_COMPATIBILITY_THRESHOLD"); tau != "" {
		v, err := strconv.ParseFloat(tau, 64)
		if err != nil {
			return fmt.Errorf("%w: LIBSCOUT_COMPATIBILITY_THRESHOLD: %v", ErrInvalid, err)
		}
		c.Clustering.CompatibilityThreshold = v
	}
	if db := os.Getenv("LIBSCOUT_DB"); db != "" {
		c.Storage.DB = db
	}
	if level := os.Getenv("LIBSCOUT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// Validate checks the enumerated keys. Any compatibility threshold other than
// NaN is accepted; values outside (0, 1] select the degenerate clustering modes.
func (c *Config) Validate() error {
	if _, err := extractor.NewFingerprinter(c.Corpus.FingerprintMode); err != nil {
		return fmt.Errorf("%w: corpus.fingerprint_mode: %v", ErrInvalid, err)
	}
	if _, err := cache.ParseCompression(c.Cache.Compression); err != nil {
		return fmt.Errorf("%w: cache.compression: %v", ErrInvalid, err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalid, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format: %q", ErrInvalid, c.Logging.Format)
	}
	if math.IsNaN(c.Clustering.CompatibilityThreshold) {
		return fmt.Errorf("%w: clustering.compatibility_threshold must be a number", ErrInvalid)
	}
	if c.Clustering.LRUSize < 0 {
		return fmt.Errorf("%w: clustering.lru_size must not be negative", ErrInvalid)
	}
	if c.ProgressEvery < 0 {
		return fmt.Errorf("%w: progress_every must not be negative", ErrInvalid)
	}
	return nil
}

// Compression returns the parsed cache compression.
func (c *Config) Compression() cache.Compression {
	comp, _ := cache.ParseCompression(c.Cache.Compression)
	return comp
}
