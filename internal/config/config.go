package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/objstore"
	"github.com/gyeh/logstats/internal/store"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore, e.g. LOGSTATS_REDIS__ADDR.
const EnvPrefix = "LOGSTATS_"

// Backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all runtime configuration for logload.
type Config struct {
	DSN       string `yaml:"dsn" koanf:"dsn"`
	LogFormat string `yaml:"log_format" koanf:"log_format" validate:"oneof=text json"`
	LogLevel  string `yaml:"log_level" koanf:"log_level" validate:"oneof=trace debug info warn error"`

	JobStore        string `yaml:"job_store" koanf:"job_store" validate:"oneof=memory postgres redis"`
	Sink            string `yaml:"sink" koanf:"sink" validate:"oneof=memory postgres"`
	Workers         int    `yaml:"workers" koanf:"workers" validate:"min=1,max=64"`
	CheckpointEvery int    `yaml:"checkpoint_every" koanf:"checkpoint_every" validate:"min=1"`
	QueueSize       int    `yaml:"queue_size" koanf:"queue_size" validate:"min=1"`

	Listen    string `yaml:"listen" koanf:"listen" validate:"required"`
	APIKey    string `yaml:"api_key" koanf:"api_key"`
	GeoIPPath string `yaml:"geoip_path" koanf:"geoip_path"`

	Redis   RedisConfig          `yaml:"redis" koanf:"redis"`
	S3      S3Config             `yaml:"s3" koanf:"s3"`
	Sources []model.SourceConfig `yaml:"sources" koanf:"sources" validate:"dive"`
	// Aliases adds source column names per canonical field.
	Aliases map[string][]string `yaml:"aliases" koanf:"aliases"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" koanf:"addr"`
	Password string        `yaml:"password" koanf:"password"`
	DB       int           `yaml:"db" koanf:"db" validate:"min=0"`
	Prefix   string        `yaml:"prefix" koanf:"prefix"`
	TTL      time.Duration `yaml:"ttl" koanf:"ttl" validate:"min=0"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint" koanf:"endpoint"`
	Region    string `yaml:"region" koanf:"region"`
	AccessKey string `yaml:"access_key" koanf:"access_key"`
	SecretKey string `yaml:"secret_key" koanf:"secret_key"`
	MaxBytes  int64  `yaml:"max_bytes" koanf:"max_bytes" validate:"min=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DSN:             os.Getenv("DATABASE_URL"),
		LogFormat:       "text",
		LogLevel:        "info",
		JobStore:        BackendMemory,
		Sink:            BackendMemory,
		Workers:         4,
		CheckpointEvery: 10,
		QueueSize:       64,
		Listen:          ":8080",
		Redis:           RedisConfig{Prefix: "logstats:"},
	}
}

// LoadFromFile reads a YAML config file and merges its values into c.
// Keys absent from the file keep their current value.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return c.validateAliases()
}

// LoadEnv applies LOGSTATS_* environment variables on top of c.
func (c *Config) LoadEnv() error {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return fmt.Errorf("load environment: %w", err)
	}
	if err := k.Unmarshal("", c); err != nil {
		return fmt.Errorf("apply environment: %w", err)
	}
	return nil
}

// validateAliases checks that every alias key names a field the mapper
// reads from sources.
func (c *Config) validateAliases() error {
	for field := range c.Aliases {
		f, ok := model.FieldByName(field)
		if !ok || !f.Required {
			return fmt.Errorf("unknown field %q in aliases", field)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %q fails %q", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return err
	}
	if err := c.validateAliases(); err != nil {
		return err
	}
	if c.JobStore == BackendRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis job store requires redis.addr")
	}
	if c.GeoIPPath != "" {
		if _, err := os.Stat(c.GeoIPPath); err != nil {
			return fmt.Errorf("geoip database not accessible: %w", err)
		}
	}
	return c.validateSources()
}

// ValidateWithDSN additionally requires a DSN. Callers use it when a
// Postgres backend is selected or a command needs the database.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}

// NeedsDatabase reports whether a selected backend is Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.JobStore == BackendPostgres || c.Sink == BackendPostgres
}

func (c *Config) validateSources() error {
	seen := map[string]bool{}
	for _, s := range c.Sources {
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
		switch s.Type {
		case "postgres":
			if s.DSN == "" && s.Host == "" {
				return fmt.Errorf("source %q: dsn or host is required", s.Name)
			}
		case "http":
			if s.URL == "" {
				return fmt.Errorf("source %q: url is required", s.Name)
			}
		case "parquet":
			if s.Path == "" {
				return fmt.Errorf("source %q: path is required", s.Name)
			}
		}
	}
	return nil
}

// RedisStore returns the Redis job store settings.
func (c *Config) RedisStore() store.RedisConfig {
	return store.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
		TTL:      c.Redis.TTL,
	}
}

// ObjectStore returns the S3 client settings.
func (c *Config) ObjectStore() objstore.Config {
	return objstore.Config{
		Endpoint:  c.S3.Endpoint,
		Region:    c.S3.Region,
		AccessKey: c.S3.AccessKey,
		SecretKey: c.S3.SecretKey,
		MaxBytes:  c.S3.MaxBytes,
	}
}
