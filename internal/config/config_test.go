package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                   "development",
		APIURL:                "http://localhost:8080/api",
		RequestTimeoutSeconds: 30,
		SessionStore:          SessionStoreFile,
		SessionPath:           ".chub/session.json",
		UploadProvider:        UploadProviderBackend,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"defaults are valid", func(_ *Config) {}, false},
		{"missing API URL", func(c *Config) { c.APIURL = "" }, true},
		{"relative API URL", func(c *Config) { c.APIURL = "/api" }, true},
		{"ftp API URL", func(c *Config) { c.APIURL = "ftp://example.com" }, true},
		{"negative timeout", func(c *Config) { c.RequestTimeoutSeconds = -1 }, true},
		{"zero timeout disables it", func(c *Config) { c.RequestTimeoutSeconds = 0 }, false},
		{"negative stale time", func(c *Config) { c.CacheStaleSeconds = -5 }, true},
		{"unknown session store", func(c *Config) { c.SessionStore = "cookie" }, true},
		{"file store without path", func(c *Config) { c.SessionPath = "" }, true},
		{"redis store without url", func(c *Config) { c.SessionStore = SessionStoreRedis; c.RedisURL = "" }, true},
		{"sqlite store with dsn", func(c *Config) { c.SessionStore = SessionStoreSQLite; c.SessionDSN = "s.db" }, false},
		{"postgres store without dsn", func(c *Config) { c.SessionStore = SessionStorePostgres }, true},
		{"cloudinary without url", func(c *Config) { c.UploadProvider = UploadProviderCloudinary }, true},
		{"unknown upload provider", func(c *Config) { c.UploadProvider = "s3" }, true},
		{"production requires https", func(c *Config) { c.Env = "production" }, true},
		{"production with https", func(c *Config) { c.Env = "prod"; c.APIURL = "https://api.example.com/api" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("API_URL", "http://api.test:9000/api/")
	t.Setenv("SESSION_STORE", " MEMORY ")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://api.test:9000/api", cfg.APIURL)
	assert.Equal(t, SessionStoreMemory, cfg.SessionStore)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "optimistic_updates=on", cfg.FeatureFlags)
}
