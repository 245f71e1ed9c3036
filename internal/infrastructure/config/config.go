package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		LogLevel         string  `toml:"log_level"`
		PrintEveryMin    int     `toml:"print_every_min"`
		FundingThreshold float64 `toml:"funding_threshold"`
	} `toml:"app"`

	Upstream struct {
		BaseURL      string  `toml:"base_url"` // e.g. https://fapi.binance.com
		TimeoutMs    int     `toml:"timeout_ms"`
		RateLimitRPS float64 `toml:"rate_limit_rps"`
		RateBurst    int     `toml:"rate_burst"`
	} `toml:"upstream"`

	HTTP struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"http"`

	Storage struct {
		Enabled bool `toml:"enabled"`

		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Redis struct {
			Enabled      bool   `toml:"enabled"`
			Addr         string `toml:"addr"`
			Password     string `toml:"password"`
			DB           int    `toml:"db"`
			Prefix       string `toml:"prefix"`
			TTLSeconds   int    `toml:"ttl_seconds"`
			Stream       string `toml:"stream"`
			Channel      string `toml:"channel"`
			StreamMaxLen int64  `toml:"stream_max_len"`
		} `toml:"redis"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`
}

// Load reads an optional .env next to the working directory, decodes the TOML
// file, then applies env overrides, defaults and validation.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Timeout 上游请求超时
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutMs) * time.Millisecond
}

func applyEnv(cfg *Config) {
	if v, ok := lookup("DERIVAGG_UPSTREAM_URL"); ok {
		cfg.Upstream.BaseURL = v
	}
	if v, ok := lookup("DERIVAGG_LOG_LEVEL"); ok {
		cfg.App.LogLevel = v
	}
	if v, ok := lookup("DERIVAGG_HTTP_ADDR"); ok {
		cfg.HTTP.Addr = v
	}
	if v, ok := lookup("DERIVAGG_REDIS_ADDR"); ok {
		cfg.Storage.Redis.Addr = v
	}
	if v, ok := lookup("DERIVAGG_REDIS_PASSWORD"); ok {
		cfg.Storage.Redis.Password = v
	}
	if v, ok := lookup("DERIVAGG_POSTGRES_DSN"); ok {
		cfg.Storage.Postgres.DSN = v
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.App.LogLevel) == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.PrintEveryMin <= 0 {
		cfg.App.PrintEveryMin = 5
	}
	if cfg.App.FundingThreshold <= 0 {
		cfg.App.FundingThreshold = 0.0001
	}
	if strings.TrimSpace(cfg.Upstream.BaseURL) == "" {
		cfg.Upstream.BaseURL = "https://fapi.binance.com"
	}
	if cfg.Upstream.TimeoutMs <= 0 {
		cfg.Upstream.TimeoutMs = 10_000
	}
	if cfg.Upstream.RateLimitRPS <= 0 {
		cfg.Upstream.RateLimitRPS = 20
	}
	if cfg.Upstream.RateBurst <= 0 {
		cfg.Upstream.RateBurst = 20
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if strings.TrimSpace(cfg.Storage.SQLite.Path) == "" {
		cfg.Storage.SQLite.Path = "data/derivagg.db"
	}
	if strings.TrimSpace(cfg.Storage.Redis.Prefix) == "" {
		cfg.Storage.Redis.Prefix = "derivagg"
	}
}

func validate(cfg *Config) error {
	u := strings.TrimSpace(cfg.Upstream.BaseURL)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return errors.New("upstream.base_url must be an http(s) URL")
	}
	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	return nil
}
