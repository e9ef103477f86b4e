package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/jobmarket/marketplace-client/internal/credstore"
	"github.com/jobmarket/marketplace-client/internal/rate"
	pkgconfig "github.com/jobmarket/marketplace-client/pkg/config"
)

// Config holds the runtime configuration for the marketplace client.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	APIBaseURL     string
	HTTPTimeout    time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	CredentialStore string // memory | file | redis | postgres
	CredentialFile  string
	RedisAddr       string
	RedisDB         int
	RedisPass       string
	RedisKeyPrefix  string
	DatabaseURL     string

	NATSURL           string // empty disables NATS forwarding
	NATSSubjectPrefix string
	RabbitMQURL       string // empty disables AMQP forwarding

	AWSRegion       string
	LoginSecretName string
	SecretCacheTTL  time.Duration

	PortalPort               int
	NotificationPoller       bool
	NotificationPollInterval time.Duration
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:              pkgconfig.GetEnv("SERVICE_NAME", "marketplace-client"),
		Env:                      pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:                 pkgconfig.GetEnv("LOG_LEVEL", "info"),
		APIBaseURL:               pkgconfig.GetEnv("API_BASE_URL", "http://localhost:8000/api"),
		HTTPTimeout:              pkgconfig.GetEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		RateLimitRPS:             pkgconfig.GetEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:           pkgconfig.GetEnvInt("RATE_LIMIT_BURST", 20),
		CredentialStore:          pkgconfig.GetEnv("CREDENTIAL_STORE", "file"),
		CredentialFile:           pkgconfig.GetEnv("CREDENTIAL_FILE", defaultCredentialFile()),
		RedisAddr:                pkgconfig.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:                  pkgconfig.GetEnvInt("REDIS_DB", 0),
		RedisPass:                pkgconfig.GetEnv("REDIS_PASS", ""),
		RedisKeyPrefix:           pkgconfig.GetEnv("REDIS_KEY_PREFIX", "marketplace"),
		DatabaseURL:              pkgconfig.GetEnv("DATABASE_URL", ""),
		NATSURL:                  pkgconfig.GetEnv("NATS_URL", ""),
		NATSSubjectPrefix:        pkgconfig.GetEnv("NATS_SUBJECT_PREFIX", "evt.marketplace"),
		RabbitMQURL:              pkgconfig.GetEnv("RABBITMQ_URL", ""),
		AWSRegion:                pkgconfig.GetEnv("AWS_REGION", "us-east-2"),
		LoginSecretName:          pkgconfig.GetEnv("LOGIN_SECRET_NAME", ""),
		SecretCacheTTL:           pkgconfig.GetEnvDuration("SECRET_CACHE_TTL", time.Hour),
		PortalPort:               pkgconfig.GetEnvInt("PORTAL_PORT", 9040),
		NotificationPoller:       pkgconfig.GetEnvBool("NOTIFICATION_POLLER_ENABLED", true),
		NotificationPollInterval: pkgconfig.GetEnvDuration("NOTIFICATION_POLL_INTERVAL", 30*time.Second),
	}
}

// Validate reports settings that would fail later at startup.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q must be an absolute URL", c.APIBaseURL)
	}
	switch c.CredentialStore {
	case "memory", "redis":
	case "file":
		if c.CredentialFile == "" {
			return fmt.Errorf("CREDENTIAL_FILE is required for the file credential store")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres credential store")
		}
	default:
		return fmt.Errorf("unknown CREDENTIAL_STORE %q", c.CredentialStore)
	}
	if c.NotificationPoller && c.NotificationPollInterval <= 0 {
		return fmt.Errorf("NOTIFICATION_POLL_INTERVAL must be positive")
	}
	return nil
}

// Store returns the credential store settings.
func (c *Config) Store() credstore.Config {
	return credstore.Config{
		Backend:     c.CredentialStore,
		FilePath:    c.CredentialFile,
		RedisAddr:   c.RedisAddr,
		RedisDB:     c.RedisDB,
		RedisPass:   c.RedisPass,
		RedisPrefix: c.RedisKeyPrefix,
		DatabaseURL: c.DatabaseURL,
	}
}

// RateLimit returns the outbound limiter settings; RPS <= 0 disables limiting.
func (c *Config) RateLimit() rate.Config {
	return rate.Config{RequestsPerSecond: c.RateLimitRPS, Burst: c.RateLimitBurst}
}

func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".marketplace-credentials.json"
	}
	return filepath.Join(dir, "marketplace-client", "credentials.json")
}
