// Package config loads application settings from a .env file and the
// process environment via viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	MongoURI     string        `mapstructure:"MONGODB_URI"`
	DatabaseName string        `mapstructure:"DATABASE_NAME"`
	JWTSecret    string        `mapstructure:"JWT_SECRET"`
	TokenTTL     time.Duration `mapstructure:"TOKEN_TTL"`
	Port         string        `mapstructure:"PORT"`
	RateLimitRPM int           `mapstructure:"RATE_LIMIT_RPM"`
	GinMode      string        `mapstructure:"GIN_MODE"`
}

// Load reads configuration from .env (when present) and the environment.
// MONGODB_URI and JWT_SECRET are required; everything else has a default.
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// AutomaticEnv only resolves bound keys during Unmarshal
	for _, key := range []string{"MONGODB_URI", "DATABASE_NAME", "JWT_SECRET", "TOKEN_TTL", "PORT", "RATE_LIMIT_RPM", "GIN_MODE"} {
		_ = v.BindEnv(key)
	}

	// .env is optional; environment variables alone are fine
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	v.SetDefault("DATABASE_NAME", "messenger")
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
	v.SetDefault("PORT", "8080")
	v.SetDefault("RATE_LIMIT_RPM", 10)
	v.SetDefault("GIN_MODE", "release")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	return &cfg, nil
}
