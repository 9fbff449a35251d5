package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Email    EmailConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AppURL         string // The single origin allowed by API CORS
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	SessionSecret string
	SessionMaxAge time.Duration
	BcryptCost    int
	CSRFTokenTTL  time.Duration
}

type SecurityConfig struct {
	APIRateWindow       time.Duration
	APIRateMax          int
	SuspiciousWindow    time.Duration
	SuspiciousThreshold int
	MaxBodyBytes        int64
	SweepInterval       time.Duration
	EventBufferSize     int
	PageRequestsPerMin  int
}

type RedisConfig struct {
	URL          string // Empty keeps rate limiting in process memory
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StorageConfig struct {
	Endpoint        string // Empty disables avatar storage
	AccessKey       string
	SecretKey       string
	Bucket          string
	Region          string
	UseSSL          bool
	AllowedSuffixes []string
	URLExpiry       time.Duration
}

type EmailConfig struct {
	Enabled      bool
	AWSRegion    string
	FromAddress  string
	ResetURLBase string
	ResetTTL     time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

// IsProduction reports whether the service runs with production hardening
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: loadDatabase(),
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AppURL:         strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			SessionSecret: sessionSecret,
			SessionMaxAge: getEnvAsDuration("SESSION_MAX_AGE", 8*time.Hour),
			BcryptCost:    getEnvAsInt("BCRYPT_COST", 12),
			CSRFTokenTTL:  getEnvAsDuration("CSRF_TOKEN_TTL", 1*time.Hour),
		},
		Security: SecurityConfig{
			APIRateWindow:       getEnvAsDuration("API_RATE_WINDOW", 60*time.Second),
			APIRateMax:          getEnvAsInt("API_RATE_MAX", 100),
			SuspiciousWindow:    getEnvAsDuration("SUSPICIOUS_WINDOW", 10*time.Minute),
			SuspiciousThreshold: getEnvAsInt("SUSPICIOUS_THRESHOLD", 10),
			MaxBodyBytes:        int64(getEnvAsInt("MAX_BODY_BYTES", 1<<20)),
			SweepInterval:       getEnvAsDuration("SECURITY_SWEEP_INTERVAL", 60*time.Second),
			EventBufferSize:     getEnvAsInt("SECURITY_EVENT_BUFFER", 1000),
			PageRequestsPerMin:  getEnvAsInt("PAGE_REQUESTS_PER_MINUTE", 120),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:       getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:       getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:          getEnv("STORAGE_BUCKET", "avatars"),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", true),
			AllowedSuffixes: getEnvAsListDefault("STORAGE_ALLOWED_SUFFIXES", []string{".supabase.co", ".supabase.in"}),
			URLExpiry:       getEnvAsDuration("STORAGE_URL_EXPIRY", 15*time.Minute),
		},
		Email: EmailConfig{
			Enabled:      getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:    getEnv("AWS_REGION", "eu-central-1"),
			FromAddress:  getEnv("EMAIL_FROM", "no-reply@kafedra.local"),
			ResetURLBase: getEnv("PASSWORD_RESET_URL_BASE", "http://localhost:3000/reset-password"),
			ResetTTL:     getEnvAsDuration("PASSWORD_RESET_TTL", 1*time.Hour),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Database.validate(); err != nil {
		return nil, err
	}

	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Security.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings. Used by tooling that does
// not serve HTTP.
func LoadDatabase() (*DatabaseConfig, error) {
	_ = godotenv.Load()

	cfg := loadDatabase()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              getEnvAsInt("DB_PORT", 5432),
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", ""),
		Name:              getEnv("DB_NAME", "kafedra"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
		MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
		MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", false),
	}
}

func (c *DatabaseConfig) validate() error {
	if c.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	return nil
}

// validateSessionSecret enforces minimum strength for the session signing key
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *SecurityConfig) validate() error {
	switch {
	case c.APIRateMax <= 0 || c.APIRateWindow <= 0:
		return fmt.Errorf("API_RATE_MAX and API_RATE_WINDOW must be positive")
	case c.SuspiciousThreshold <= 0 || c.SuspiciousWindow <= 0:
		return fmt.Errorf("SUSPICIOUS_THRESHOLD and SUSPICIOUS_WINDOW must be positive")
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	case c.EventBufferSize <= 0:
		return fmt.Errorf("SECURITY_EVENT_BUFFER must be positive")
	case c.SweepInterval <= 0:
		return fmt.Errorf("SECURITY_SWEEP_INTERVAL must be positive")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	return getEnvAsListDefault(key, []string{})
}

func getEnvAsListDefault(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
