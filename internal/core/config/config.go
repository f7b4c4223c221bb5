package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type EngineCfg struct {
	Epsilon  float64 `yaml:"epsilon"`
	Overlap  string  `yaml:"overlap_mode"`
	Grouping string  `yaml:"grouping_mode"`
}

type CacheCfg struct {
	Enabled   bool          `yaml:"enabled"`
	Driver    string        `yaml:"driver"`
	Size      int           `yaml:"size"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	OpTimeout time.Duration `yaml:"op_timeout"`

	RedisPoolSize     int           `yaml:"redis_pool_size"`
	RedisDialTimeout  time.Duration `yaml:"redis_dial_timeout"`
	RedisReadTimeout  time.Duration `yaml:"redis_read_timeout"`
	RedisWriteTimeout time.Duration `yaml:"redis_write_timeout"`

	// requests within HotHalfLife a set needs before it is cached; 0 caches on first miss
	AdmitThreshold float64       `yaml:"admit_threshold"`
	HotHalfLife    time.Duration `yaml:"hot_half_life"`
}

type Config struct {
	Addr           string    `yaml:"addr"`
	LogLevel       string    `yaml:"log_level"`
	MetricsEnabled bool      `yaml:"metrics_enabled"`
	MaxRectangles  int       `yaml:"max_rectangles"`
	MaxBodyBytes   int64     `yaml:"max_body_bytes"`
	Engine         EngineCfg `yaml:"engine"`
	Cache          CacheCfg  `yaml:"cache"`
}

func Defaults() Config {
	return Config{
		Addr:           ":8090",
		LogLevel:       "info",
		MetricsEnabled: true,
		MaxRectangles:  10000,
		MaxBodyBytes:   8 << 20,
		Engine: EngineCfg{
			Epsilon:  1e-10,
			Overlap:  "touch",
			Grouping: "onehop",
		},
		Cache: CacheCfg{
			Enabled:   true,
			Driver:    "memory",
			Size:      1024,
			TTL:       5 * time.Minute,
			RedisAddr: "localhost:6379",
			OpTimeout: 250 * time.Millisecond,

			RedisPoolSize:     32,
			RedisDialTimeout:  2 * time.Second,
			RedisReadTimeout:  time.Second,
			RedisWriteTimeout: time.Second,

			HotHalfLife: time.Minute,
		},
	}
}

// Load starts from defaults, applies the YAML file named by CONFIG_FILE when
// set, then lets environment variables override individual keys.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg = applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv is Load without a config file and without failing; invalid values
// keep their defaults.
func FromEnv() Config {
	cfg := applyEnv(Defaults())
	if cfg.Validate() != nil {
		return Defaults()
	}
	return cfg
}

func applyEnv(c Config) Config {
	c.Addr = getenv("ADDR", c.Addr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.MetricsEnabled = getbool("METRICS_ENABLED", c.MetricsEnabled)
	c.MaxRectangles = getint("MAX_RECTANGLES", c.MaxRectangles)
	c.MaxBodyBytes = getint64("MAX_BODY_BYTES", c.MaxBodyBytes)

	c.Engine.Epsilon = getfloat("EPSILON", c.Engine.Epsilon)
	c.Engine.Overlap = getenv("OVERLAP_MODE", c.Engine.Overlap)
	c.Engine.Grouping = getenv("GROUPING_MODE", c.Engine.Grouping)

	c.Cache.Enabled = getbool("CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.Driver = strings.ToLower(getenv("CACHE_DRIVER", c.Cache.Driver))
	c.Cache.Size = getint("CACHE_SIZE", c.Cache.Size)
	c.Cache.TTL = getduration("CACHE_TTL", c.Cache.TTL)
	c.Cache.RedisAddr = getenv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.OpTimeout = getduration("CACHE_OP_TIMEOUT", c.Cache.OpTimeout)
	c.Cache.RedisPoolSize = getint("REDIS_POOL_SIZE", c.Cache.RedisPoolSize)
	c.Cache.RedisDialTimeout = getduration("REDIS_DIAL_TIMEOUT", c.Cache.RedisDialTimeout)
	c.Cache.RedisReadTimeout = getduration("REDIS_READ_TIMEOUT", c.Cache.RedisReadTimeout)
	c.Cache.RedisWriteTimeout = getduration("REDIS_WRITE_TIMEOUT", c.Cache.RedisWriteTimeout)
	c.Cache.AdmitThreshold = getfloat("CACHE_ADMIT_THRESHOLD", c.Cache.AdmitThreshold)
	c.Cache.HotHalfLife = getduration("CACHE_HOT_HALF_LIFE", c.Cache.HotHalfLife)
	return c
}

func (c Config) Validate() error {
	if !(c.Engine.Epsilon > 0) || math.IsInf(c.Engine.Epsilon, 0) {
		return fmt.Errorf("epsilon must be a finite value > 0 (got %g)", c.Engine.Epsilon)
	}
	if c.MaxRectangles <= 0 {
		return fmt.Errorf("max_rectangles must be > 0 (got %d)", c.MaxRectangles)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be > 0 (got %d)", c.MaxBodyBytes)
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache driver must be memory or redis (got %q)", c.Cache.Driver)
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be > 0 when the cache is enabled (got %d)", c.Cache.Size)
	}
	if c.Cache.Driver == "redis" && c.Cache.RedisPoolSize <= 0 {
		return fmt.Errorf("redis pool size must be > 0 (got %d)", c.Cache.RedisPoolSize)
	}
	if c.Cache.AdmitThreshold < 0 {
		return fmt.Errorf("cache admit threshold must be >= 0 (got %g)", c.Cache.AdmitThreshold)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
