// Package config provides client configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Session store backends.
const (
	SessionStoreMemory   = "memory"
	SessionStoreFile     = "file"
	SessionStoreRedis    = "redis"
	SessionStoreSQLite   = "sqlite"
	SessionStorePostgres = "postgres"
)

// Upload providers.
const (
	UploadProviderBackend    = "backend"
	UploadProviderCloudinary = "cloudinary"
)

// Config holds client configuration values loaded from file or environment variables.
type Config struct {
	Env                   string  `mapstructure:"APP_ENV"`
	APIURL                string  `mapstructure:"API_URL"`
	RequestTimeoutSeconds int     `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	SessionStore          string  `mapstructure:"SESSION_STORE"`
	SessionPath           string  `mapstructure:"SESSION_PATH"`
	SessionDSN            string  `mapstructure:"SESSION_DSN"`
	SessionKeyPrefix      string  `mapstructure:"SESSION_KEY_PREFIX"`
	RedisURL              string  `mapstructure:"REDIS_URL"`
	CacheStaleSeconds     int     `mapstructure:"CACHE_STALE_SECONDS"`
	UploadProvider        string  `mapstructure:"UPLOAD_PROVIDER"`
	CloudinaryURL         string  `mapstructure:"CLOUDINARY_URL"`
	UploadFolder          string  `mapstructure:"UPLOAD_FOLDER"`
	FeatureFlags          string  `mapstructure:"FEATURE_FLAGS"`
	NotifyChannel         bool    `mapstructure:"NOTIFY_REDIS"`
	LogLevel              string  `mapstructure:"LOG_LEVEL"`
	LogFormat             string  `mapstructure:"LOG_FORMAT"`
	TracingEnabled        bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter       string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint          string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio    float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
	DevAPIPort            string  `mapstructure:"DEVAPI_PORT"`
	DevAPIJWTSecret       string  `mapstructure:"DEVAPI_JWT_SECRET"`
	DevAPISeedUsers       int     `mapstructure:"DEVAPI_SEED_USERS"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("API_URL", "http://localhost:8080/api")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("SESSION_STORE", SessionStoreFile)
	v.SetDefault("SESSION_PATH", ".chub/session.json")
	v.SetDefault("SESSION_DSN", ".chub/session.db")
	v.SetDefault("SESSION_KEY_PREFIX", "chub:session:")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("CACHE_STALE_SECONDS", 0)
	v.SetDefault("UPLOAD_PROVIDER", UploadProviderBackend)
	v.SetDefault("CLOUDINARY_URL", "")
	v.SetDefault("UPLOAD_FOLDER", "chub/posts")
	v.SetDefault("FEATURE_FLAGS", "optimistic_updates=on")
	v.SetDefault("NOTIFY_REDIS", false)
	v.SetDefault("LOG_LEVEL", "warn")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
	v.SetDefault("DEVAPI_PORT", "8080")
	v.SetDefault("DEVAPI_JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("DEVAPI_SEED_USERS", 0)
}

// LoadConfig loads configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env file is the normal case outside local development.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath(".chub")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	// The base config file is optional.
	_ = v.ReadInConfig()

	env := v.GetString("APP_ENV")
	if env != "" && env != "development" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read profile config 'config.%s.yml': %w", env, err)
			}
		}
	}

	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	c.UploadProvider = strings.ToLower(strings.TrimSpace(c.UploadProvider))
}

// IsProduction reports whether the client runs against a production backend.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// RequestTimeout returns the per-request timeout; zero disables it.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// CacheStaleTime returns how long a cached query result stays fresh.
func (c *Config) CacheStaleTime() time.Duration {
	return time.Duration(c.CacheStaleSeconds) * time.Second
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("API_URL is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("API_URL must be an absolute http(s) URL, got %q", c.APIURL)
	}
	if c.RequestTimeoutSeconds < 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must not be negative")
	}
	if c.CacheStaleSeconds < 0 {
		return errors.New("CACHE_STALE_SECONDS must not be negative")
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreFile:
		if c.SessionPath == "" {
			return errors.New("SESSION_PATH is required for the file session store")
		}
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis session store")
		}
	case SessionStoreSQLite, SessionStorePostgres:
		if c.SessionDSN == "" {
			return fmt.Errorf("SESSION_DSN is required for the %s session store", c.SessionStore)
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	switch c.UploadProvider {
	case UploadProviderBackend:
	case UploadProviderCloudinary:
		if c.CloudinaryURL == "" {
			return errors.New("CLOUDINARY_URL is required when UPLOAD_PROVIDER is cloudinary")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_PROVIDER %q", c.UploadProvider)
	}

	if c.IsProduction() {
		if u.Scheme != "https" {
			return errors.New("API_URL must use https in production")
		}
		if c.SessionStore == SessionStoreMemory {
			log.Println("WARNING: SESSION_STORE is 'memory' in production. Sessions will not survive restarts.")
		}
	}

	return nil
}
