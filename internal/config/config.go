// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"APP_ENV"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	JWTExpire      time.Duration `mapstructure:"JWT_EXPIRE"`
	JWTIssuer      string        `mapstructure:"JWT_ISSUER"`
	JWTAudience    string        `mapstructure:"JWT_AUDIENCE"`
	DBHost         string        `mapstructure:"DB_HOST"`
	DBPort         string        `mapstructure:"DB_PORT"`
	DBUser         string        `mapstructure:"DB_USER"`
	DBPassword     string        `mapstructure:"DB_PASSWORD"`
	DBName         string        `mapstructure:"DB_NAME"`
	DBSSLMode      string        `mapstructure:"DB_SSLMODE"`
	DBReadHost     string        `mapstructure:"DB_READ_HOST"`
	DBReadPort     string        `mapstructure:"DB_READ_PORT"`
	DBReadUser     string        `mapstructure:"DB_READ_USER"`
	DBReadPassword string        `mapstructure:"DB_READ_PASSWORD"`
	DBSchemaMode   string        `mapstructure:"DB_SCHEMA_MODE"`
	// DBAutoMigrateAllowDestructive permits DB_SCHEMA_MODE=auto in prod-like environments.
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	RedisURL                      string `mapstructure:"REDIS_URL"`
	AllowedOrigins                string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags                  string `mapstructure:"FEATURE_FLAGS"`

	UploadDir            string `mapstructure:"UPLOAD_DIR"`
	PublicBaseURL        string `mapstructure:"PUBLIC_BASE_URL"`
	ImageMaxUploadSizeMB int    `mapstructure:"IMAGE_MAX_UPLOAD_SIZE_MB"`

	SendgridAPIKey  string `mapstructure:"SENDGRID_API_KEY"`
	MailFromAddress string `mapstructure:"MAIL_FROM_ADDRESS"`
	MailFromName    string `mapstructure:"MAIL_FROM_NAME"`
	ResetURLBase    string `mapstructure:"RESET_URL_BASE"`

	RollbarToken      string `mapstructure:"ROLLBAR_TOKEN"`
	ReconcileSchedule string `mapstructure:"RECONCILE_SCHEDULE"`

	TracingEnabled bool   `mapstructure:"TRACING_ENABLED"`
	OTLPEndpoint   string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "5000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_EXPIRE", "720h")
	viper.SetDefault("JWT_ISSUER", "tutorX-api")
	viper.SetDefault("JWT_AUDIENCE", "tutorX-client")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "tutorx")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_READ_HOST", "")
	viper.SetDefault("DB_READ_PORT", "5432")
	viper.SetDefault("DB_READ_USER", "user")
	viper.SetDefault("DB_READ_PASSWORD", "password")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "image_uploads,realtime,reconcile")
	viper.SetDefault("UPLOAD_DIR", "./uploads")
	viper.SetDefault("PUBLIC_BASE_URL", "")
	viper.SetDefault("IMAGE_MAX_UPLOAD_SIZE_MB", 10)
	viper.SetDefault("SENDGRID_API_KEY", "")
	viper.SetDefault("MAIL_FROM_ADDRESS", "no-reply@tutorx.local")
	viper.SetDefault("MAIL_FROM_NAME", "TutorX")
	viper.SetDefault("RESET_URL_BASE", "http://localhost:5173/reset-password")
	viper.SetDefault("ROLLBAR_TOKEN", "")
	viper.SetDefault("RECONCILE_SCHEDULE", "@every 15m")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.ImageMaxUploadSizeMB <= 0 {
		return errors.New("IMAGE_MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.DBConnMaxLifetimeMinutes <= 0 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must be positive")
	}

	// Strict checks for production
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
