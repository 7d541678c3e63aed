package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration for the lab portal service.
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	HTTPPort    string `mapstructure:"http_port"`
	LogLevel    string `mapstructure:"log_level"`
	JWT         struct {
		Secret    string        `mapstructure:"secret"`
		ExpiresIn time.Duration `mapstructure:"expires_in"`
	} `mapstructure:"jwt"`
	Seed struct {
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"seed"`
	Workflow struct {
		// LockTerminal rejects status changes out of approved/rejected.
		LockTerminal bool `mapstructure:"lock_terminal"`
	} `mapstructure:"workflow"`
}

var defaults = map[string]interface{}{
	"database_url":           "",
	"http_port":              "8080",
	"log_level":              "info",
	"jwt.secret":             "",
	"jwt.expires_in":         "24h",
	"seed.username":          "manager",
	"seed.password":          "",
	"workflow.lock_terminal": false,
}

// Load reads an optional .env file (envFile, or ./.env when empty), an
// optional config.yaml and the process environment. Environment variables
// use upper-case keys with dots replaced by underscores, e.g. JWT_SECRET.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.JWT.ExpiresIn <= 0 {
		return nil, fmt.Errorf("jwt.expires_in must be positive, got %s", cfg.JWT.ExpiresIn)
	}
	return &cfg, nil
}

// RequireServer checks the settings needed to open the database and issue
// tokens.
func (c *Config) RequireServer() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
