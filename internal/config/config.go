// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sigil-dev/kgraph/internal/cache"
	"github.com/sigil-dev/kgraph/internal/embedding"
	"github.com/sigil-dev/kgraph/internal/search"
	"github.com/sigil-dev/kgraph/internal/secrets"
	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. KGRAPH_CACHE_BACKEND.
const EnvPrefix = "KGRAPH"

// Config is the top-level kgraph configuration.
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Search      SearchConfig      `mapstructure:"search"`
	Networking  NetworkingConfig  `mapstructure:"networking"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend          string `mapstructure:"backend"`
	Path             string `mapstructure:"path"`
	VectorDimensions int    `mapstructure:"vector_dimensions"`
}

// CacheConfig selects the cache backend and its bounds.
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	TTL       time.Duration `mapstructure:"ttl"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Namespace string        `mapstructure:"namespace"`
	// RetryBackoff spaces out retries of invalidations the backend rejected.
	RetryBackoff time.Duration    `mapstructure:"retry_backoff"`
	Redis        RedisConfig      `mapstructure:"redis"`
	Local        LocalCacheConfig `mapstructure:"local"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LocalCacheConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// EmbeddingConfig selects the provider used for automatic entity
// embeddings and text similarity search.
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SearchConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// NetworkingConfig controls the HTTP listener.
type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// MaintenanceConfig controls backups requested over HTTP. An empty
// BackupDir disables the backup and restore routes.
type MaintenanceConfig struct {
	BackupDir string `mapstructure:"backup_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Cache backends.
const (
	CacheRedis = "redis"
	CacheLocal = "local"
	CacheNone  = "none"
)

// SetDefaults installs the built-in defaults on v. Every key gets a default
// so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "kgraph.db")
	v.SetDefault("storage.vector_dimensions", 0)
	v.SetDefault("cache.backend", CacheLocal)
	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.timeout", cache.DefaultTimeout)
	v.SetDefault("cache.namespace", cache.DefaultNamespace)
	v.SetDefault("cache.retry_backoff", cache.DefaultRetryBackoff)
	v.SetDefault("cache.redis.url", "redis://127.0.0.1:6379/0")
	v.SetDefault("cache.local.max_entries", 10000)
	v.SetDefault("embedding.provider", "none")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("search.max_depth", search.MaxDepth)
	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("networking.cors_origins", []string{})
	v.SetDefault("maintenance.backup_dir", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv enables KGRAPH_* environment overrides on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from path (defaults only when empty) with
// environment overrides, resolving keyring:// references from the OS keyring.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, kgerr.Errorf(kgerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	return FromViper(v, secrets.NewKeyring())
}

// FromViper decodes and validates the configuration held by v. String
// values of the form keyring://service/key are replaced by the secret
// from sec first.
func FromViper(v *viper.Viper, sec secrets.Store) (*Config, error) {
	if err := secrets.ResolveViper(v, sec); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, kgerr.Errorf(kgerr.CodeConfigParseInvalidFormat, "decoding config: %w", err)
	}
	// Comma separated env values arrive as a single element.
	if len(cfg.Networking.CORSOrigins) == 1 && strings.Contains(cfg.Networking.CORSOrigins[0], ",") {
		cfg.Networking.CORSOrigins = strings.Split(cfg.Networking.CORSOrigins[0], ",")
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, kgerr.Errorf(kgerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// StoreConfig is the persistence configuration.
func (c *Config) StoreConfig() store.StorageConfig {
	return store.StorageConfig{
		Backend:          c.Storage.Backend,
		Path:             c.Storage.Path,
		VectorDimensions: c.Storage.VectorDimensions,
	}
}

// EmbedderConfig is the provider configuration. Unset dimensions follow
// the store so automatic embeddings always fit.
func (c *Config) EmbedderConfig() embedding.Config {
	dims := c.Embedding.Dimensions
	if dims == 0 {
		dims = c.Storage.VectorDimensions
	}
	return embedding.Config{
		Provider:   c.Embedding.Provider,
		Model:      c.Embedding.Model,
		APIKey:     c.Embedding.APIKey,
		BaseURL:    c.Embedding.BaseURL,
		Dimensions: dims,
		Timeout:    c.Embedding.Timeout,
	}
}

// Validate checks the configuration for logical errors, collecting every
// problem rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateCache()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateSearch()...)
	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateMaintenance()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateMaintenance() []error {
	dir := c.Maintenance.BackupDir
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []error{invalid("maintenance.backup_dir %q does not exist", dir)}
		}
		return []error{invalid("maintenance.backup_dir %q: %w", dir, err)}
	}
	if !info.IsDir() {
		return []error{invalid("maintenance.backup_dir %q is not a directory", dir)}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return kgerr.Errorf(kgerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateStorage() []error {
	var errs []error

	if backends := store.Backends(); len(backends) > 0 && !slices.Contains(backends, c.Storage.Backend) {
		errs = append(errs, invalid("storage.backend must be one of %v, got %q", backends, c.Storage.Backend))
	}
	if c.Storage.Path == "" {
		errs = append(errs, invalid("storage.path must not be empty"))
	}
	if c.Storage.VectorDimensions < 0 {
		errs = append(errs, invalid("storage.vector_dimensions must not be negative, got %d", c.Storage.VectorDimensions))
	}

	return errs
}

func (c *Config) validateCache() []error {
	var errs []error

	switch c.Cache.Backend {
	case CacheNone, CacheLocal:
	case CacheRedis:
		if c.Cache.Redis.URL == "" {
			errs = append(errs, invalid("cache.redis.url must not be empty when cache.backend is redis"))
		} else if u, err := url.Parse(c.Cache.Redis.URL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, invalid("cache.redis.url must be a redis:// or rediss:// URL, got %q", c.Cache.Redis.URL))
		}
	default:
		errs = append(errs, invalid("cache.backend must be one of [redis, local, none], got %q", c.Cache.Backend))
	}

	if c.Cache.TTL == 0 {
		errs = append(errs, invalid("cache.ttl must not be zero; use a negative value to disable expiry"))
	}
	if c.Cache.Timeout <= 0 {
		errs = append(errs, invalid("cache.timeout must be positive, got %s", c.Cache.Timeout))
	}
	if c.Cache.RetryBackoff <= 0 {
		errs = append(errs, invalid("cache.retry_backoff must be positive, got %s", c.Cache.RetryBackoff))
	}
	if c.Cache.Local.MaxEntries <= 0 {
		errs = append(errs, invalid("cache.local.max_entries must be positive, got %d", c.Cache.Local.MaxEntries))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	provider := c.Embedding.Provider
	if provider != "" && provider != "none" && !slices.Contains(embedding.Providers(), provider) {
		errs = append(errs, invalid("embedding.provider must be one of %v or none, got %q", embedding.Providers(), provider))
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, invalid("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions))
	}
	if c.Embedding.Dimensions > 0 && c.Storage.VectorDimensions > 0 && c.Embedding.Dimensions != c.Storage.VectorDimensions {
		errs = append(errs, invalid("embedding.dimensions (%d) must match storage.vector_dimensions (%d)",
			c.Embedding.Dimensions, c.Storage.VectorDimensions))
	}
	if (provider == "openai" || provider == "google") && c.Embedding.APIKey == "" {
		errs = append(errs, invalid("embedding.api_key is required for provider %q", provider))
	}
	if secrets.IsRef(c.Embedding.APIKey) {
		errs = append(errs, invalid("embedding.api_key keyring reference was not resolved"))
	}
	if c.Embedding.Timeout < 0 {
		errs = append(errs, invalid("embedding.timeout must not be negative, got %s", c.Embedding.Timeout))
	}

	return errs
}

func (c *Config) validateSearch() []error {
	if c.Search.MaxDepth < 1 || c.Search.MaxDepth > search.MaxDepth {
		return []error{invalid("search.max_depth must be between 1 and %d, got %d", search.MaxDepth, c.Search.MaxDepth)}
	}
	return nil
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, invalid("networking.listen must not be empty"))
		return errs
	}
	_, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		errs = append(errs, invalid("networking.listen must be a valid host:port address, got %q: %w", c.Networking.Listen, err))
		return errs
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, invalid("networking.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, invalid("networking.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, invalid("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, invalid("logging.format must be one of [text, json], got %q", c.Logging.Format))
	}

	return errs
}
