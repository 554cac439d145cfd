// Package config loads service configuration from built-in defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"homefoods-delivery/internal/delivery"
)

// Directory backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Config holds service configuration.
type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	DirectoryBackend string        `yaml:"directory_backend"`
	DirectoryFile    string        `yaml:"directory_file"`
	DatabaseURL      string        `yaml:"database_url"`
	MongoURI         string        `yaml:"mongo_uri"`
	MongoDB          string        `yaml:"mongo_db"`
	ConnectAttempts  int           `yaml:"connect_attempts"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`

	RedisAddr         string  `yaml:"redis_addr"`
	GeocoderBaseURL   string  `yaml:"geocoder_base_url"`
	GeocoderUserAgent string  `yaml:"geocoder_user_agent"`
	GeocoderRPS       float64 `yaml:"geocoder_rps"`

	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	CORSOrigins    []string `yaml:"cors_origins"`

	MajorCities   []string                `yaml:"major_cities"`
	StateAliases  map[string]string       `yaml:"state_aliases"`
	DistanceTiers []delivery.DistanceTier `yaml:"distance_tiers"`
	Origin        delivery.Point          `yaml:"origin"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:              "8000",
		LogLevel:          "info",
		LogFormat:         "json",
		DirectoryBackend:  BackendFile,
		DirectoryFile:     "directory.yaml",
		MongoDB:           "homefoods",
		ConnectAttempts:   5,
		CacheTTL:          5 * time.Minute,
		GeocoderBaseURL:   "https://nominatim.openstreetmap.org",
		GeocoderUserAgent: "homefoods-delivery/1.0",
		GeocoderRPS:       1,
		RateLimitRPS:      10,
		RateLimitBurst:    20,
		CORSOrigins:       []string{"*"},
		MajorCities:       append([]string(nil), delivery.DefaultMajorCities...),
		DistanceTiers:     append([]delivery.DistanceTier(nil), delivery.DefaultDistanceTiers...),
		Origin:            delivery.DefaultOrigin,
	}
}

// Load builds the configuration. path may be empty, in which case
// CONFIG_FILE is consulted.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.DirectoryBackend, "DIRECTORY_BACKEND")
	setString(&c.DirectoryFile, "DIRECTORY_FILE")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.MongoURI, "MONGO_URI")
	setString(&c.MongoDB, "MONGO_DB")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.GeocoderBaseURL, "GEOCODER_BASE_URL")
	setString(&c.GeocoderUserAgent, "GEOCODER_USER_AGENT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	var errs []error
	errs = append(errs,
		setFloat(&c.GeocoderRPS, "GEOCODER_RPS"),
		setFloat(&c.RateLimitRPS, "RATE_LIMIT_RPS"),
		setInt(&c.RateLimitBurst, "RATE_LIMIT_BURST"),
		setInt(&c.ConnectAttempts, "CONNECT_ATTEMPTS"),
		setDuration(&c.CacheTTL, "CACHE_TTL"),
	)
	return errors.Join(errs...)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.DirectoryBackend {
	case BackendFile:
		if c.DirectoryFile == "" {
			errs = append(errs, errors.New("directory_file is required for the file backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres backend"))
		}
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("mongo_uri is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown directory backend %q", c.DirectoryBackend))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache_ttl must be non-negative"))
	}
	if c.GeocoderRPS < 0 || c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limits must be non-negative"))
	}
	for i, t := range c.DistanceTiers {
		if t.MaxMeters < 0 || t.Charge < 0 {
			errs = append(errs, fmt.Errorf("distance tier %d must be non-negative", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ResolverOptions turns the tuning section into delivery options.
func (c *Config) ResolverOptions() []delivery.Option {
	opts := []delivery.Option{delivery.WithMajorCities(c.MajorCities...)}
	if len(c.StateAliases) > 0 {
		opts = append(opts, delivery.WithStateAliases(c.StateAliases))
	}
	return opts
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
