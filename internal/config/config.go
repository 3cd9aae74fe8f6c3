package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-forms-api/internal/database"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		// Default to info level for other environments
		log.SetLevel(logrus.InfoLevel)
	}
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minProductionSecretLength = 32
	developmentJWTSecret      = "development-only-secret-change-me-please"
)

// Config used for the application configuration, loading the input from
// environment variables layered over an optional YAML file
type Config struct {
	// Server Configuration
	Environment       string `json:"environment"`
	Port              int    `json:"port"`
	Host              string `json:"host"`
	CORSAllowedOrigin string `json:"cors_allowed_origin"`

	// Database configuration
	DBDriver   string `json:"db_driver"`
	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_sslmode"`
	DBPath     string `json:"db_path"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Security Configuration
	JWTSecret string        `json:"jwt_secret"`
	JWTIssuer string        `json:"jwt_issuer"`
	TokenTTL  time.Duration `json:"token_ttl"`
	RedisURL  string        `json:"redis_url"`

	// Domain limits
	MaxTemplatesPerUser int           `json:"max_templates_per_user"`
	MaxAnswersPerForm   int           `json:"max_answers_per_form"`
	FormAmendWindow     time.Duration `json:"form_amend_window"`

	// Bootstrap admin, created when no admin exists
	BootstrapAdminEmail    string `json:"bootstrap_admin_email"`
	BootstrapAdminPassword string `json:"bootstrap_admin_password"`
	BootstrapAdminName     string `json:"bootstrap_admin_name"`

	// Observability
	OTLPEndpoint  string `json:"otlp_endpoint"`
	StatsSchedule string `json:"stats_schedule"`

	insecureDefaults bool
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Environment: %s, Port: %d, Host: %s, DBDriver: %s, DBHost: %s, DBName: %s, DBUser: %s, DBPassword: [REDACTED], DBPath: %s, LogLevel: %s, JWTSecret: [REDACTED], JWTIssuer: %s, TokenTTL: %s, RedisURL: %s, MaxTemplatesPerUser: %d, MaxAnswersPerForm: %d, FormAmendWindow: %s, BootstrapAdminEmail: %s, BootstrapAdminPassword: [REDACTED], OTLPEndpoint: %s}",
		c.Environment, c.Port, c.Host, c.DBDriver, c.DBHost, c.DBName, c.DBUser, c.DBPath, c.LogLevel,
		c.JWTIssuer, c.TokenTTL, maskURL(c.RedisURL), c.MaxTemplatesPerUser, c.MaxAnswersPerForm,
		c.FormAmendWindow, c.BootstrapAdminEmail, c.OTLPEndpoint)
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// InsecureDefaults reports whether neither APP_ENV nor JWT_SECRET was set
func (c *Config) InsecureDefaults() bool {
	return c.insecureDefaults
}

// Address is the listen address of the HTTP server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig converts the flat settings into the database package config
func (c *Config) DatabaseConfig() database.DatabaseConfig {
	return database.DatabaseConfig{
		Driver:   c.DBDriver,
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Name:     c.DBName,
		SSLMode:  c.DBSSLMode,
		Path:     c.DBPath,
	}
}

// LoadConfig read the proper configuration from environment variables and returns a Config struct.
// Values from CONFIG_FILE, when set, act as defaults beneath the environment.
// Returns an error if any required environment variable is missing or invalid
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")

	file, err := loadFileDefaults(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", file.get("APP_PORT", "8080")))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	environment := GetEnvWithDefault("APP_ENV", file.get("APP_ENV", ""))
	environmentDefaulted := environment == ""
	if environmentDefaulted {
		environment = EnvDevelopment
	}

	driver := strings.ToLower(GetEnvWithDefault("DB_DRIVER", file.get("DB_DRIVER", "sqlite")))
	switch driver {
	case "postgres", "postgresql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (supported: postgres, sqlite)", driver)
	}

	jwtSecret := GetEnvWithDefault("JWT_SECRET", file.get("JWT_SECRET", ""))
	if environment == EnvProduction {
		if jwtSecret == "" {
			return nil, errors.New("JWT_SECRET environment variable is required in production")
		}
		if len(jwtSecret) < minProductionSecretLength {
			return nil, fmt.Errorf("JWT_SECRET must be at least %d characters in production", minProductionSecretLength)
		}
	}
	secretDefaulted := jwtSecret == ""
	if secretDefaulted {
		log.Warn("JWT_SECRET not set, using the development secret")
		jwtSecret = developmentJWTSecret
	}
	if environmentDefaulted && secretDefaulted {
		log.Warn("APP_ENV and JWT_SECRET are both unset: running in development mode with a public signing secret and error details in responses. Set APP_ENV=production for deployments.")
	}

	config := &Config{
		Environment:       environment,
		insecureDefaults:  environmentDefaulted && secretDefaulted,
		Port:              port,
		Host:              GetEnvWithDefault("APP_HOST", file.get("APP_HOST", "localhost")),
		CORSAllowedOrigin: GetEnvWithDefault("CORS_ALLOWED_ORIGIN", file.get("CORS_ALLOWED_ORIGIN", "http://localhost:3000")),

		DBDriver:   driver,
		DBHost:     GetEnvWithDefault("DB_HOST", file.get("DB_HOST", "localhost")),
		DBPort:     GetEnvWithDefault("DB_PORT", file.get("DB_PORT", "5432")),
		DBUser:     GetEnvWithDefault("DB_USER", file.get("DB_USER", "forms")),
		DBPassword: GetEnvWithDefault("DB_PASSWORD", file.get("DB_PASSWORD", "")),
		DBName:     GetEnvWithDefault("DB_NAME", file.get("DB_NAME", "forms")),
		DBSSLMode:  GetEnvWithDefault("DB_SSLMODE", file.get("DB_SSLMODE", "disable")),
		DBPath:     GetEnvWithDefault("DB_PATH", file.get("DB_PATH", "forms.db")),

		LogLevel: GetEnvWithDefault("LOG_LEVEL", file.get("LOG_LEVEL", "")),

		JWTSecret: jwtSecret,
		JWTIssuer: GetEnvWithDefault("JWT_ISSUER", file.get("JWT_ISSUER", "gin-forms-api")),
		TokenTTL:  GetEnvAsType("TOKEN_TTL", fileAsType(file, "TOKEN_TTL", time.Hour)),
		RedisURL:  GetEnvWithDefault("REDIS_URL", file.get("REDIS_URL", "")),

		MaxTemplatesPerUser: GetEnvAsType("MAX_TEMPLATES_PER_USER", fileAsType(file, "MAX_TEMPLATES_PER_USER", 50)),
		MaxAnswersPerForm:   GetEnvAsType("MAX_ANSWERS_PER_FORM", fileAsType(file, "MAX_ANSWERS_PER_FORM", 100)),
		FormAmendWindow:     GetEnvAsType("FORM_AMEND_WINDOW", fileAsType(file, "FORM_AMEND_WINDOW", 24*time.Hour)),

		BootstrapAdminEmail:    GetEnvWithDefault("BOOTSTRAP_ADMIN_EMAIL", file.get("BOOTSTRAP_ADMIN_EMAIL", "")),
		BootstrapAdminPassword: GetEnvWithDefault("BOOTSTRAP_ADMIN_PASSWORD", file.get("BOOTSTRAP_ADMIN_PASSWORD", "")),
		BootstrapAdminName:     GetEnvWithDefault("BOOTSTRAP_ADMIN_NAME", file.get("BOOTSTRAP_ADMIN_NAME", "Administrator")),

		OTLPEndpoint:  GetEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", file.get("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
		StatsSchedule: GetEnvWithDefault("STATS_SCHEDULE", file.get("STATS_SCHEDULE", "@every 1m")),
	}

	if config.TokenTTL <= 0 {
		return nil, errors.New("TOKEN_TTL must be positive")
	}
	if config.MaxTemplatesPerUser < 1 || config.MaxAnswersPerForm < 1 {
		return nil, errors.New("MAX_TEMPLATES_PER_USER and MAX_ANSWERS_PER_FORM must be positive")
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Debugf("Environment variable %s not set, using default", key)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	return parseAs(os.Getenv(key), defaultValue)
}

func parseAs[T any](value string, defaultValue T) T {
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	case time.Duration:
		durationValue, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return any(durationValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}

// maskURL masks the password in a connection URL
func maskURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[REDACTED_INVALID_URL]"
	}

	if parsed.User != nil {
		parsed.User = url.UserPassword(parsed.User.Username(), "[REDACTED]")
	}

	return parsed.String()
}
