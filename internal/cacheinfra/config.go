package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc backed memory cache.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	Capacity int `json:"capacity"`

	// NumShards determines the number of cache shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	NumShards int `json:"shards"`

	// TTL is the default time-to-live for cached entries.
	TTL time.Duration `json:"ttl"`

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int `json:"eviction_percentage"`

	// EarlyRefresh configures early refresh behavior for cached entries.
	// If nil, early refresh is disabled.
	EarlyRefresh *EarlyRefreshConfig `json:"early_refresh"`

	// MissingRecordStorage makes the cache remember keys whose computation
	// produced no value, so later lookups skip the computation.
	MissingRecordStorage bool `json:"missing_record_storage"`

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration `json:"eviction_interval"`
}

// EarlyRefreshConfig configures early refresh behavior.
// Early refresh prevents cache stampedes by refreshing entries
// before they expire when they're frequently accessed.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `json:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `json:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `json:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `json:"retry_base_delay"`
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions maps the optional settings to sturdyc options. Capacity,
// shards, TTL and eviction percentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(1)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EarlyRefresh),
		validation.Field(&c.EvictionInterval, validation.Min(0)),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid memory cache config")
	}
	return nil
}

// Validate checks that no refresh duration is negative.
func (e EarlyRefreshConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.MinAsyncRefreshTime, validation.Min(0)),
		validation.Field(&e.MaxAsyncRefreshTime, validation.Min(0)),
		validation.Field(&e.SyncRefreshTime, validation.Min(0)),
		validation.Field(&e.RetryBaseDelay, validation.Min(0)),
	)
}

// Default settings for the network and disk backends.
const (
	DefaultTTL          = 10 * time.Minute
	DefaultQueryTimeout = 5 * time.Second
	DefaultExpiryCheck  = time.Minute
)

type options struct {
	ttl          time.Duration
	queryTimeout time.Duration
	expiryCheck  time.Duration
	prefix       string
}

// Option configures the Redis and SQLite backends.
type Option func(*options)

func applyOptions(opts []Option) options {
	o := options{
		ttl:          DefaultTTL,
		queryTimeout: DefaultQueryTimeout,
		expiryCheck:  DefaultExpiryCheck,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithTTL sets how long stored entries live. Zero keeps entries until evicted.
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

// WithQueryTimeout bounds every backend round trip.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.queryTimeout = d
		}
	}
}

// WithExpiryCheck sets how often the SQLite backend purges expired rows.
func WithExpiryCheck(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.expiryCheck = d
		}
	}
}

// WithPrefix namespaces Redis keys.
func WithPrefix(p string) Option {
	return func(o *options) { o.prefix = p }
}
