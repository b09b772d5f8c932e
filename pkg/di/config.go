package di

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-cacheable/stores"
)

// Backend names accepted in CacheConfig.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendNoop   = "noop"
)

// Error policy names accepted in Config.ErrorPolicy.
const (
	PolicyFatal   = "fatal"
	PolicyRecover = "recover"
)

// Config describes the caches and dispatcher a Container builds.
type Config struct {
	DefaultCacheNames []string      `json:"default_cache_names" yaml:"default_cache_names"`
	KeyGenerator      string        `json:"key_generator" yaml:"key_generator"`
	ErrorPolicy       string        `json:"error_policy" yaml:"error_policy"`
	Workers           WorkersConfig `json:"workers" yaml:"workers"`
	// MetricsPrefix prefixes the Prometheus metric names when a registerer
	// is passed to the container.
	MetricsPrefix string        `json:"metrics_prefix" yaml:"metrics_prefix"`
	Caches        []CacheConfig `json:"caches" yaml:"caches"`
}

// WorkersConfig sizes the pool running async cache steps. Zero values use the
// pool defaults.
type WorkersConfig struct {
	Size  int `json:"size" yaml:"size"`
	Queue int `json:"queue" yaml:"queue"`
}

// CacheConfig declares one named cache.
type CacheConfig struct {
	Name    string               `json:"name" yaml:"name"`
	Backend string               `json:"backend" yaml:"backend"`
	Memory  *stores.MemoryConfig `json:"memory,omitempty" yaml:"memory,omitempty"`
	Redis   *RedisConfig         `json:"redis,omitempty" yaml:"redis,omitempty"`
	SQLite  *SQLiteConfig        `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
}

// RedisConfig configures a redis backed cache. Prefix namespaces its keys and
// defaults to the cache name.
type RedisConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	Username     string        `json:"username" yaml:"username"`
	Password     string        `json:"password" yaml:"password"`
	DB           int           `json:"db" yaml:"db"`
	Prefix       string        `json:"prefix" yaml:"prefix"`
	TTL          time.Duration `json:"ttl" yaml:"ttl"`
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout"`
}

type SQLiteConfig struct {
	// Path of the database file. Empty or ":memory:" keeps it in memory.
	Path         string        `json:"path" yaml:"path"`
	TTL          time.Duration `json:"ttl" yaml:"ttl"`
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout"`
	ExpiryCheck  time.Duration `json:"expiry_check" yaml:"expiry_check"`
}

// DefaultConfig returns a single in-memory cache named "default" that every
// undeclared operation falls back to.
func DefaultConfig() Config {
	memory := stores.DefaultMemoryConfig()
	return Config{
		DefaultCacheNames: []string{"default"},
		KeyGenerator:      "default",
		ErrorPolicy:       PolicyFatal,
		Caches: []CacheConfig{
			{Name: "default", Backend: BackendMemory, Memory: &memory},
		},
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "read cache config").
			WithMetadata(map[string]any{"path": path})
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML configuration. Durations use Go
// duration strings such as 5m or 1h30m.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "parse cache config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.ErrorPolicy, validation.In(PolicyFatal, PolicyRecover)),
		validation.Field(&c.Workers),
		validation.Field(&c.Caches, validation.Required, validation.By(uniqueCacheNames)),
		validation.Field(&c.DefaultCacheNames, validation.Each(validation.In(c.cacheNames()...).Error("is not a configured cache"))),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid cache configuration")
	}
	return nil
}

func (c Config) cacheNames() []any {
	names := make([]any, len(c.Caches))
	for i, cc := range c.Caches {
		names[i] = cc.Name
	}
	return names
}

func uniqueCacheNames(value any) error {
	caches, _ := value.([]CacheConfig)
	seen := make(map[string]bool, len(caches))
	for _, cc := range caches {
		if seen[cc.Name] {
			return fmt.Errorf("cache %q is declared twice", cc.Name)
		}
		seen[cc.Name] = true
	}
	return nil
}

func (w WorkersConfig) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Size, validation.Min(0)),
		validation.Field(&w.Queue, validation.Min(0)),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Backend, validation.Required,
			validation.In(BackendMemory, BackendRedis, BackendSQLite, BackendNoop)),
		validation.Field(&c.Redis, validation.When(c.Backend == BackendRedis, validation.Required)),
		validation.Field(&c.SQLite),
	)
}

func (r RedisConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Addr, validation.Required),
		validation.Field(&r.DB, validation.Min(0)),
		validation.Field(&r.TTL, validation.Min(time.Duration(0))),
	)
}

func (s SQLiteConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.TTL, validation.Min(time.Duration(0))),
		validation.Field(&s.ExpiryCheck, validation.Min(time.Duration(0))),
	)
}
