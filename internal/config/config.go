// Package config loads runtime settings from the environment, an optional .env file and an
// optional config.yaml.
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

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Shutdown  ShutdownConfig  `mapstructure:"shutdown"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SheetsConfig selects the remote store. An empty BaseURL means the process runs unconfigured.
type SheetsConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Shape      string        `mapstructure:"shape"`
	Payload    string        `mapstructure:"payload"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	Burst      int           `mapstructure:"burst"`
}

type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type MirrorConfig struct {
	Backend string `mapstructure:"backend"`
	Prefix  string `mapstructure:"prefix"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RateLimitConfig struct {
	PerSec float64 `mapstructure:"per_sec"`
	Burst  int     `mapstructure:"burst"`
}

type NotifyConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Configured reports whether a remote store endpoint was provided.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Sheets.BaseURL) != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("sheets.base_url", "")
	v.SetDefault("sheets.shape", "auto")
	v.SetDefault("sheets.payload", "json")
	v.SetDefault("sheets.timeout", 30*time.Second)
	v.SetDefault("sheets.rate_per_sec", 5.0)
	v.SetDefault("sheets.burst", 10)
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("mirror.backend", BackendMemory)
	v.SetDefault("mirror.prefix", "mirror:v1")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("ratelimit.per_sec", 10.0)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("notify.capacity", 50)
	v.SetDefault("shutdown.timeout", 15*time.Second)
}

// Load reads configuration. envFile and configDir may be empty.
func Load(envFile, configDir string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("No .env file found at %s, proceeding without it", envFile)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// SHEETS_API is the variable name older deployments used.
	if err := v.BindEnv("sheets.base_url", "SHEETS_BASE_URL", "SHEETS_API"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("database.url", "DATABASE_URL"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	if configDir != "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Mirror.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.Database.URL == "" {
			return errors.New("mirror backend postgres requires database.url")
		}
	default:
		return fmt.Errorf("unknown mirror backend %q", c.Mirror.Backend)
	}
	if c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be positive")
	}
	if c.Sheets.Payload != "json" && c.Sheets.Payload != "form" {
		return fmt.Errorf("unknown sheets payload encoding %q", c.Sheets.Payload)
	}
	return nil
}
