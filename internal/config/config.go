// Package config loads the configuration of the kmeanslab service.
//
// Values are resolved in this order, later sources winning:
//
//  1. Default()
//  2. a YAML file
//  3. a .env file (variables already set in the process are kept)
//  4. KMEANSLAB_* environment variables
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/kmeanslab/codec"
	"github.com/hupe1980/kmeanslab/snapshot"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "KMEANSLAB_"

// Config is the service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Sessions SessionsConfig `yaml:"sessions"`
	Limits   LimitsConfig   `yaml:"limits"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	BodyLimit    int           `yaml:"body_limit"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

// SessionsConfig bounds the live sessions.
type SessionsConfig struct {
	Capacity int `yaml:"capacity"`
}

// LimitsConfig mirrors resource.Config.
type LimitsConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxConcurrentRuns int64   `yaml:"max_concurrent_runs"`
	MemoryLimitBytes  int64   `yaml:"memory_limit_bytes"`
	// QueueTimeout is how long run and data requests wait for a free run
	// slot or memory. If 0, they are rejected at once.
	QueueTimeout time.Duration `yaml:"queue_timeout"`
}

// StorageConfig selects where snapshots are stored.
type StorageConfig struct {
	// Backend is memory, local, minio or s3.
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Region    string `yaml:"region"`
	// CacheBytes enables a read cache in front of remote backends.
	CacheBytes int64 `yaml:"cache_bytes"`
	// Compression is none, lz4 or zstd.
	Compression string `yaml:"compression"`
	// Codec is json or go-json.
	Codec string `yaml:"codec"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			BodyLimit:    16 * 1024 * 1024,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  2 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Sessions: SessionsConfig{
			Capacity: 1024,
		},
		Limits: LimitsConfig{
			MaxConcurrentRuns: 4,
		},
		Storage: StorageConfig{
			Backend:     "memory",
			Path:        "./data",
			Compression: "zstd",
			Codec:       "go-json",
		},
	}
}

// Load builds the configuration from path (optional) and envFile
// (optional, defaults to ".env" in the working directory if present).
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Parse decodes YAML into cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from KMEANSLAB_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("ADDR", &c.Server.Addr)
	e.int("BODY_LIMIT", &c.Server.BodyLimit)
	e.duration("READ_TIMEOUT", &c.Server.ReadTimeout)
	e.duration("WRITE_TIMEOUT", &c.Server.WriteTimeout)
	e.duration("IDLE_TIMEOUT", &c.Server.IdleTimeout)

	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)

	e.int("SESSION_CAPACITY", &c.Sessions.Capacity)

	e.float("REQUESTS_PER_SECOND", &c.Limits.RequestsPerSecond)
	e.int("BURST", &c.Limits.Burst)
	e.int64("MAX_CONCURRENT_RUNS", &c.Limits.MaxConcurrentRuns)
	e.int64("MEMORY_LIMIT_BYTES", &c.Limits.MemoryLimitBytes)
	e.duration("QUEUE_TIMEOUT", &c.Limits.QueueTimeout)

	e.str("STORAGE_BACKEND", &c.Storage.Backend)
	e.str("STORAGE_PATH", &c.Storage.Path)
	e.str("STORAGE_BUCKET", &c.Storage.Bucket)
	e.str("STORAGE_PREFIX", &c.Storage.Prefix)
	e.str("STORAGE_ENDPOINT", &c.Storage.Endpoint)
	e.str("STORAGE_ACCESS_KEY", &c.Storage.AccessKey)
	e.str("STORAGE_SECRET_KEY", &c.Storage.SecretKey)
	e.bool("STORAGE_SECURE", &c.Storage.Secure)
	e.str("STORAGE_REGION", &c.Storage.Region)
	e.int64("STORAGE_CACHE_BYTES", &c.Storage.CacheBytes)
	e.str("SNAPSHOT_COMPRESSION", &c.Storage.Compression)
	e.str("SNAPSHOT_CODEC", &c.Storage.Codec)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	return e.lookup(EnvPrefix + name)
}

func (e *envReader) fail(name string, err error) {
	e.errs = append(e.errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err))
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(name string, dst *int64) {
	if v, ok := e.get(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(name string, dst *float64) {
	if v, ok := e.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) bool(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v, ok := e.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = d
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("config: server.addr is required"))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.Log.Format))
	}

	if c.Sessions.Capacity < 0 {
		errs = append(errs, errors.New("config: sessions.capacity must not be negative"))
	}

	if c.Limits.RequestsPerSecond < 0 || c.Limits.Burst < 0 || c.Limits.MaxConcurrentRuns < 0 || c.Limits.MemoryLimitBytes < 0 || c.Limits.QueueTimeout < 0 {
		errs = append(errs, errors.New("config: limits must not be negative"))
	}

	switch c.Storage.Backend {
	case "memory":
	case "local":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("config: storage.path is required for the local backend"))
		}
	case "minio":
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			errs = append(errs, errors.New("config: storage.endpoint and storage.bucket are required for the minio backend"))
		}
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("config: storage.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend))
	}

	if _, err := snapshot.ParseCompression(c.Storage.Compression); err != nil {
		errs = append(errs, err)
	}

	if _, err := codec.ByName(c.Storage.Codec); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}
