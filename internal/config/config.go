// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	AWS         AWSConfig
	Anchor      AnchorConfig
	Registry    RegistryConfig
	RateLimit   RateLimitConfig
	I18n        I18nConfig
	Frontend    FrontendConfig
	Log         LogConfig
}

type FrontendConfig struct {
	BaseURL string
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	LocalUploadDir  string
}

// AnchorConfig controls the external anchoring collaborator and the worker
// draining the anchoring queue.
type AnchorConfig struct {
	Mode           string // "demo" is the only built-in client
	DemoLatency    time.Duration
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	MaxAttempts    int
	WorkerSchedule string
	BatchSize      int
	Lease          time.Duration
}

type RegistryConfig struct {
	RegistrationCost int
	HealthRecordCost int
	VerificationBond int
	BondLockDays     int
	StarterCredits   int
	MinChipIDLength  int
	PurchaseEnabled  bool
}

type RateLimitConfig struct {
	PublicRPS   float64
	PublicBurst int
	AuthRPS     float64
	AuthBurst   int
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	environment := getEnv("ENVIRONMENT", "development")

	config := &Config{
		Environment: environment,
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "idsee"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", defaultJWTSecret),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "eu-west-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
			LocalUploadDir:  getEnv("LOCAL_UPLOAD_DIR", "./uploads"),
		},
		Anchor: AnchorConfig{
			Mode:           getEnv("ANCHOR_MODE", "demo"),
			DemoLatency:    getEnvAsDuration("ANCHOR_DEMO_LATENCY", 100*time.Millisecond),
			Timeout:        getEnvAsDuration("ANCHOR_TIMEOUT", 10*time.Second),
			MaxRetries:     getEnvAsInt("ANCHOR_MAX_RETRIES", 2),
			RetryBackoff:   getEnvAsDuration("ANCHOR_RETRY_BACKOFF", 500*time.Millisecond),
			MaxAttempts:    getEnvAsInt("ANCHOR_MAX_ATTEMPTS", 5),
			WorkerSchedule: getEnv("ANCHOR_WORKER_SCHEDULE", "@every 5s"),
			BatchSize:      getEnvAsInt("ANCHOR_BATCH_SIZE", 20),
			Lease:          getEnvAsDuration("ANCHOR_LEASE", 2*time.Minute),
		},
		Registry: RegistryConfig{
			RegistrationCost: getEnvAsInt("REGISTRATION_COST", 1),
			HealthRecordCost: getEnvAsInt("HEALTH_RECORD_COST", 1),
			VerificationBond: getEnvAsInt("VERIFICATION_BOND", 10),
			BondLockDays:     getEnvAsInt("BOND_LOCK_DAYS", 30),
			StarterCredits:   getEnvAsInt("STARTER_CREDITS", 5),
			MinChipIDLength:  getEnvAsInt("MIN_CHIP_ID_LENGTH", 10),
			PurchaseEnabled:  getEnvAsBool("CREDIT_PURCHASE_ENABLED", environment == "development"),
		},
		RateLimit: RateLimitConfig{
			PublicRPS:   getEnvAsFloat("RATE_LIMIT_PUBLIC_RPS", 5),
			PublicBurst: getEnvAsInt("RATE_LIMIT_PUBLIC_BURST", 20),
			AuthRPS:     getEnvAsFloat("RATE_LIMIT_AUTH_RPS", 1),
			AuthBurst:   getEnvAsInt("RATE_LIMIT_AUTH_BURST", 5),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == defaultJWTSecret && c.IsProduction() {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.IsProduction() {
		return fmt.Errorf("database password is required in production")
	}

	r := c.Registry
	if r.RegistrationCost <= 0 || r.HealthRecordCost <= 0 || r.VerificationBond <= 0 || r.BondLockDays <= 0 {
		return fmt.Errorf("registry amounts must be positive")
	}
	if r.StarterCredits < 0 {
		return fmt.Errorf("starter credits must not be negative")
	}

	if c.Anchor.MaxAttempts < 1 {
		return fmt.Errorf("ANCHOR_MAX_ATTEMPTS must be at least 1")
	}
	if c.Anchor.Mode != "demo" {
		return fmt.Errorf("unsupported anchor mode %q", c.Anchor.Mode)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// BondLockPeriod is how long a peer-verification bond stays locked.
func (r RegistryConfig) BondLockPeriod() time.Duration {
	return time.Duration(r.BondLockDays) * 24 * time.Hour
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
