package config

import (
	"os"
	"strconv"
	"time"
)

type AuthServiceConfig struct {
	Port        string
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	RabbitMQCfg RabbitMQConfig
	AuthCfg     AuthConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type AuthConfig struct {
	JWTSecret      string
	TOTPIssuer     string
	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	SessionTTL     time.Duration
	IdleTimeout    time.Duration
	SMSCodeTTL     time.Duration
	SMSCodeRetries int
}

func New() *AuthServiceConfig {
	return &AuthServiceConfig{
		Port: getEnv("PORT", "8080"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnv("DB_NAME", "clinic_auth"),
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PWD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: os.Getenv("RABBITMQ_USER"),
			Password: os.Getenv("RABBITMQ_PWD"),
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnv("RABBITMQ_PORT", "5672"),
		},
		AuthCfg: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			TOTPIssuer:     getEnv("TOTP_ISSUER", "ClinicOffice"),
			CookieName:     getEnv("SESSION_COOKIE_NAME", "clinic_session"),
			CookieDomain:   os.Getenv("SESSION_COOKIE_DOMAIN"),
			CookieSecure:   getEnvBool("SESSION_COOKIE_SECURE", false),
			SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
			IdleTimeout:    getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SMSCodeTTL:     getEnvDuration("SMS_CODE_TTL", 5*time.Minute),
			SMSCodeRetries: getEnvInt("SMS_CODE_RETRIES", 5),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
