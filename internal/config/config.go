package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main application configuration struct.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Paystack PaystackConfig `mapstructure:"paystack"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type PortalConfig struct {
	MaxConnections       int `mapstructure:"max_connections"`
	SessionMaxAgeHours   int `mapstructure:"session_max_age_hours"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

// SessionMaxAge returns the maximum session lifetime as a duration.
func (p PortalConfig) SessionMaxAge() time.Duration {
	return time.Duration(p.SessionMaxAgeHours) * time.Hour
}

// SweepInterval returns the expiry sweep period as a duration.
func (p PortalConfig) SweepInterval() time.Duration {
	return time.Duration(p.SweepIntervalSeconds) * time.Second
}

type PaystackConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	SecretKey string `mapstructure:"secret_key"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from configs/config.yaml (optional) with
// environment-variable overrides like PORTAL_MAX_CONNECTIONS.
func Load() (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "./kabconnect.db")
	v.SetDefault("portal.max_connections", 200)
	v.SetDefault("portal.session_max_age_hours", 24)
	v.SetDefault("portal.sweep_interval_seconds", 60)
	v.SetDefault("paystack.base_url", "https://api.paystack.co")
	v.SetDefault("paystack.secret_key", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}
