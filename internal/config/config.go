package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all runtime settings, loaded from environment variables with
// an optional .env file for local development.
type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	RabbitMQURL   string `mapstructure:"RABBITMQ_URL"`
	EventExchange string `mapstructure:"EVENT_EXCHANGE"`
	Environment   string `mapstructure:"ENVIRONMENT"`
}

// Load reads configuration from the environment. Only DATABASE_URL and
// JWT_SECRET are mandatory; RABBITMQ_URL is optional and event publishing is
// skipped when it is unset.
func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("EVENT_EXCHANGE", "ledger.events")
	viper.SetDefault("ENVIRONMENT", "development")

	for _, key := range []string{"SERVER_PORT", "DATABASE_URL", "JWT_SECRET", "RABBITMQ_URL", "EVENT_EXCHANGE", "ENVIRONMENT"} {
		if err := viper.BindEnv(key); err != nil {
			return nil, err
		}
	}

	// The .env file is optional; a missing file is not an error.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config file read failed: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &cfg, nil
}
