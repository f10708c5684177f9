package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		DBSSLMode:                "disable",
		Port:                     "5000",
		ImageMaxUploadSizeMB:     10,
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionSecrets(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.DBSSLMode = "require"
	c.JWTSecret = defaultJWTSecret
	assert.EqualError(t, c.Validate(), "JWT_SECRET must be changed from the default value in production")

	c.JWTSecret = "short"
	assert.Error(t, c.Validate())

	c.JWTSecret = "secure-secret-at-least-32-chars-long"
	c.DBPassword = "password"
	assert.EqualError(t, c.Validate(), "a strong DB_PASSWORD is required in production")
}

func TestConfig_ValidateRequired(t *testing.T) {
	c := validConfig()
	c.Port = ""
	assert.EqualError(t, c.Validate(), "PORT is required")

	c = validConfig()
	c.JWTSecret = ""
	assert.EqualError(t, c.Validate(), "JWT_SECRET is required")

	c = validConfig()
	c.ImageMaxUploadSizeMB = 0
	assert.Error(t, c.Validate())
}

func TestLoadConfig_DefaultsAndNormalization(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("JWT_EXPIRE", "48h")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "5000", c.Port)
	assert.Equal(t, 48*time.Hour, c.JWTExpire)
	assert.Equal(t, "tutorX-api", c.JWTIssuer)
	assert.Equal(t, "tutorX-client", c.JWTAudience)
	assert.Equal(t, "@every 15m", c.ReconcileSchedule)
}

func TestLoadConfig_MissingProfileFile(t *testing.T) {
	defer viper.Reset()
	defer os.Unsetenv("APP_ENV")
	os.Setenv("APP_ENV", "staging-does-not-exist")

	_, err := LoadConfig()
	assert.Error(t, err)
}
