package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Alert    AlertConfig
	Redis    RedisConfig
	Log      LogConfig
	Gate     GateConfig
	Limits   *LimitsConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// JWTConfig verifies bearer tokens minted by the identity service.
type JWTConfig struct {
	Secret string
	Issuer string
}

// AlertConfig enables e-mail budget alerts when SendGridAPIKey and To are set.
type AlertConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	To             string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

// GateConfig tunes admission control. Limit tables live in the limits file.
type GateConfig struct {
	LimitsFile             string
	StoreTimeout           time.Duration
	DirectoryTimeout       time.Duration
	WindowFailurePolicy    string // fail_open or fail_closed
	BudgetWriteTimeout     time.Duration
	CostWarningThreshold   float64
	CostRecordSafetyMargin time.Duration
	TierCacheTTL           time.Duration
	DirectoryCacheTTL      time.Duration
	WindowKeyPrefix        string
	CostKeyPrefix          string
}

const (
	PolicyFailOpen   = "fail_open"
	PolicyFailClosed = "fail_closed"
)

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:  getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:   getEnv("TLS_KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "llm_tutor"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", ""),
		},
		Alert: AlertConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:      getEnv("ALERT_FROM_EMAIL", "noreply@example.com"),
			FromName:       getEnv("ALERT_FROM_NAME", "LLM Tutor Budget Monitor"),
			To:             getEnv("ALERT_EMAIL_TO", ""),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 20),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 4),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Gate: GateConfig{
			LimitsFile:             getEnv("LIMITS_FILE", ""),
			StoreTimeout:           getDurationEnv("GATE_STORE_TIMEOUT", 300*time.Millisecond),
			DirectoryTimeout:       getDurationEnv("GATE_DIRECTORY_TIMEOUT", 300*time.Millisecond),
			WindowFailurePolicy:    getEnv("GATE_WINDOW_FAILURE_POLICY", PolicyFailOpen),
			BudgetWriteTimeout:     getDurationEnv("BUDGET_WRITE_TIMEOUT", 250*time.Millisecond),
			CostWarningThreshold:   getFloatEnv("COST_WARNING_THRESHOLD", 0.8),
			CostRecordSafetyMargin: getDurationEnv("COST_RECORD_SAFETY_MARGIN", 24*time.Hour),
			TierCacheTTL:           getDurationEnv("TIER_CACHE_TTL", 30*time.Second),
			DirectoryCacheTTL:      getDurationEnv("DIRECTORY_CACHE_TTL", 5*time.Minute),
			WindowKeyPrefix:        getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
			CostKeyPrefix:          getEnv("COST_KEY_PREFIX", "costledger"),
		},
	}

	// Build database DSN
	cfg.Database.DSN = fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	if err := cfg.Gate.validate(); err != nil {
		return nil, err
	}

	limits, err := LoadLimits(cfg.Gate.LimitsFile)
	if err != nil {
		return nil, err
	}
	cfg.Limits = limits

	return cfg, nil
}

func (g GateConfig) validate() error {
	if g.WindowFailurePolicy != PolicyFailOpen && g.WindowFailurePolicy != PolicyFailClosed {
		return fmt.Errorf("GATE_WINDOW_FAILURE_POLICY must be %q or %q, got %q", PolicyFailOpen, PolicyFailClosed, g.WindowFailurePolicy)
	}
	if g.CostWarningThreshold <= 0 || g.CostWarningThreshold > 1 {
		return fmt.Errorf("COST_WARNING_THRESHOLD must be in (0, 1], got %v", g.CostWarningThreshold)
	}
	if g.StoreTimeout <= 0 || g.DirectoryTimeout <= 0 || g.BudgetWriteTimeout <= 0 {
		return fmt.Errorf("GATE_STORE_TIMEOUT, GATE_DIRECTORY_TIMEOUT and BUDGET_WRITE_TIMEOUT must be positive")
	}
	if g.CostRecordSafetyMargin < 0 {
		return fmt.Errorf("COST_RECORD_SAFETY_MARGIN must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
