package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	APISecret string `yaml:"api_secret"` // HS256 secret for merchant-API tokens
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type SadadConfig struct {
	MerchantID  string `yaml:"merchant_id"`
	TerminalID  string `yaml:"terminal_id"`
	TerminalKey string `yaml:"terminal_key"`
	AppName     string `yaml:"app_name"`
	CallbackURL string `yaml:"callback_url"`
	BaseURL     string `yaml:"base_url"`
}

type ZarinpalConfig struct {
	MerchantID  string `yaml:"merchant_id"`
	CallbackURL string `yaml:"callback_url"`
	Description string `yaml:"description"`
	Sandbox     bool   `yaml:"sandbox"`
}

type PaymentConfig struct {
	// CallbackURL is the global fallback used when neither the call site nor
	// the gateway section supplies one.
	CallbackURL string         `yaml:"callback_url"`
	Timeout     time.Duration  `yaml:"timeout"` // outbound bank request timeout
	Sadad       SadadConfig    `yaml:"sadad"`
	Zarinpal    ZarinpalConfig `yaml:"zarinpal"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Payment  PaymentConfig  `yaml:"payment"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = 15 * time.Second
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	// Gateway sections inherit the global callback fallback.
	if cfg.Payment.Sadad.CallbackURL == "" {
		cfg.Payment.Sadad.CallbackURL = cfg.Payment.CallbackURL
	}
	if cfg.Payment.Zarinpal.CallbackURL == "" {
		cfg.Payment.Zarinpal.CallbackURL = cfg.Payment.CallbackURL
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
