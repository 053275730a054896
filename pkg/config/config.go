package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Required environment keys. Their absence is fatal before any listener opens.
const (
	KeyMongoDBURI = "MONGODB_URI"
	KeyJWTSecret  = "JWT_SECRET"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig         `yaml:"server" envconfig:"SERVER"`
	Storage   StorageConfig        `yaml:"storage" envconfig:"STORAGE"`
	JWT       JWTConfig            `yaml:"jwt" envconfig:"JWT"`
	CORS      CORSConfig           `yaml:"cors" envconfig:"CORS"`
	Static    StaticConfig         `yaml:"static" envconfig:"STATIC"`
	Realtime  RealtimeConfig       `yaml:"realtime" envconfig:"REALTIME"`
	Metrics   MetricsConfig        `yaml:"metrics" envconfig:"METRICS"`
	Logging   LoggingConfig        `yaml:"logging" envconfig:"LOGGING"`
	RateLimit AuthRateLimitConfig  `yaml:"auth_rate_limit" envconfig:"AUTH_RATE_LIMIT"`
	Blacklist TokenBlacklistConfig `yaml:"token_blacklist" envconfig:"TOKEN_BLACKLIST"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host        string `yaml:"host" envconfig:"HOST"`
	Port        int    `yaml:"port" envconfig:"PORT"`
	Environment string `yaml:"environment" envconfig:"APP_ENV"` // label used in diagnostics and cookie flags
	BodyLimit   int64  `yaml:"body_limit_bytes" envconfig:"BODY_LIMIT_BYTES"`
}

// StorageConfig contains storage configuration
type StorageConfig struct {
	Type    string        `yaml:"type" envconfig:"STORAGE_TYPE"` // mongodb, memory
	MongoDB MongoDBConfig `yaml:"mongodb" envconfig:"MONGODB"`
}

// MongoDBConfig contains MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string `yaml:"uri" envconfig:"MONGODB_URI"`
	Database string `yaml:"database" envconfig:"MONGODB_DATABASE"`
	Timeout  int    `yaml:"timeout" envconfig:"MONGODB_TIMEOUT"` // seconds
}

// JWTConfig contains JWT configuration
type JWTConfig struct {
	Secret      string `yaml:"secret" envconfig:"JWT_SECRET"`
	ExpiryHours int    `yaml:"expiry_hours" envconfig:"JWT_EXPIRY_HOURS"`
	CookieName  string `yaml:"cookie_name" envconfig:"JWT_COOKIE_NAME"`
	Issuer      string `yaml:"issuer" envconfig:"JWT_ISSUER"`
}

// CORSConfig contains cross-origin configuration. Only AllowedOrigins are
// granted the allow-origin and allow-credentials headers.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS"`
	AllowedMethods   []string `yaml:"allowed_methods" envconfig:"CORS_ALLOWED_METHODS"`
	AllowedHeaders   []string `yaml:"allowed_headers" envconfig:"CORS_ALLOWED_HEADERS"`
	AllowCredentials bool     `yaml:"allow_credentials" envconfig:"CORS_ALLOW_CREDENTIALS"`
	MaxAge           int      `yaml:"max_age" envconfig:"CORS_MAX_AGE"` // seconds
}

// StaticConfig points at the built single-page front end
type StaticConfig struct {
	Root  string `yaml:"root" envconfig:"STATIC_ROOT"`
	Index string `yaml:"index" envconfig:"STATIC_INDEX"`
	// AssetsPrefix is the URL subtree of bundled assets. A missing file under
	// it is a 404; elsewhere a missing file falls through to the index.
	AssetsPrefix string `yaml:"assets_prefix" envconfig:"STATIC_ASSETS_PREFIX"`
}

// RealtimeConfig contains websocket transport configuration
type RealtimeConfig struct {
	Path string `yaml:"path" envconfig:"REALTIME_PATH"`
}

// MetricsConfig contains Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
	Path    string `yaml:"path" envconfig:"METRICS_PATH"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" envconfig:"LOG_FORMAT"` // json, text
}

// AuthRateLimitConfig limits login and signup attempts
type AuthRateLimitConfig struct {
	Enabled        bool `yaml:"enabled" envconfig:"AUTH_RATE_LIMIT_ENABLED"`
	MaxAttempts    int  `yaml:"max_attempts" envconfig:"AUTH_RATE_LIMIT_MAX_ATTEMPTS"`
	WindowSeconds  int  `yaml:"window_seconds" envconfig:"AUTH_RATE_LIMIT_WINDOW_SECONDS"`
	LockoutSeconds int  `yaml:"lockout_seconds" envconfig:"AUTH_RATE_LIMIT_LOCKOUT_SECONDS"`
}

// SetDefaults fills zero values with safe limits
func (c *AuthRateLimitConfig) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 60
	}
	if c.LockoutSeconds <= 0 {
		c.LockoutSeconds = 300
	}
}

// TokenBlacklistConfig controls revocation of tokens on logout
type TokenBlacklistConfig struct {
	Enabled                bool `yaml:"enabled" envconfig:"TOKEN_BLACKLIST_ENABLED"`
	CleanupIntervalSeconds int  `yaml:"cleanup_interval_seconds" envconfig:"TOKEN_BLACKLIST_CLEANUP_INTERVAL_SECONDS"`
}

// SetDefaults fills zero values
func (c *TokenBlacklistConfig) SetDefaults() {
	if c.CleanupIntervalSeconds <= 0 {
		c.CleanupIntervalSeconds = 300
	}
}

// MissingKeyError reports a required configuration key that is absent or empty
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("required configuration key %s is not set", e.Key)
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, that's ok - we'll use defaults and env vars
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Nested keys resolve as SERVER_PORT etc. and fall back to the flat
	// names in the envconfig tags (PORT, MONGODB_URI, ...).
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a Config with default values and no secrets. Tests build on it.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5001,
			Environment: "development",
			BodyLimit:   100 << 10,
		},
		Storage: StorageConfig{
			Type: "mongodb",
			MongoDB: MongoDBConfig{
				Database: "chat",
				Timeout:  10,
			},
		},
		JWT: JWTConfig{
			ExpiryHours: 7 * 24,
			CookieName:  "jwt",
			Issuer:      "chat-backend",
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"http://localhost:5173"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * 60 * 60,
		},
		Static: StaticConfig{
			Root:         "frontend",
			Index:        "index.html",
			AssetsPrefix: "/assets",
		},
		Realtime: RealtimeConfig{
			Path: "/socket",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: AuthRateLimitConfig{
			Enabled:        true,
			MaxAttempts:    10,
			WindowSeconds:  60,
			LockoutSeconds: 300,
		},
		Blacklist: TokenBlacklistConfig{
			Enabled:                true,
			CleanupIntervalSeconds: 300,
		},
	}
}

// Validate validates the configuration. Required keys are checked first so a
// missing secret is always reported by name.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.MongoDB.URI) == "" {
		return &MissingKeyError{Key: KeyMongoDBURI}
	}

	if strings.TrimSpace(c.JWT.Secret) == "" {
		return &MissingKeyError{Key: KeyJWTSecret}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Storage.Type != "mongodb" && c.Storage.Type != "memory" {
		return fmt.Errorf("invalid storage type: %s (must be mongodb or memory)", c.Storage.Type)
	}

	if c.Server.BodyLimit <= 0 {
		return fmt.Errorf("invalid body limit: %d", c.Server.BodyLimit)
	}

	if c.Static.Index == "" {
		return fmt.Errorf("static index document is required")
	}

	return nil
}

// IsProduction reports whether the environment label is "production"
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Address returns the server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedactedURI returns the connection string with any password masked
func (c *MongoDBConfig) RedactedURI() string {
	u, err := url.Parse(c.URI)
	if err != nil {
		return "<unparseable uri>"
	}
	return u.Redacted()
}
