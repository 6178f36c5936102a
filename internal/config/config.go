package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration, decoded and validated once at startup.
type Config struct {
	AppEnv         string
	ServerPort     string
	AllowedOrigins []string
	MigrateOnStart bool

	DatabaseURL        string
	DBMaxConns         int32
	DBStatementTimeout time.Duration
	TxMaxRetries       int

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	AccountCacheTTL time.Duration

	LogLevel  string
	LogFormat string

	NegativeStockPolicy string
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// CacheEnabled reports whether a Redis address was configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")
	v.SetDefault("TX_MAX_RETRIES", 5)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ACCOUNT_CACHE_TTL", "5m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("NEGATIVE_STOCK_POLICY", "warn")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:              strings.ToLower(v.GetString("APP_ENV")),
		ServerPort:          v.GetString("SERVER_PORT"),
		MigrateOnStart:      v.GetBool("MIGRATE_ON_START"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		DBMaxConns:          v.GetInt32("DB_MAX_CONNS"),
		TxMaxRetries:        v.GetInt("TX_MAX_RETRIES"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		LogLevel:            strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:           strings.ToLower(v.GetString("LOG_FORMAT")),
		NegativeStockPolicy: strings.ToLower(v.GetString("NEGATIVE_STOCK_POLICY")),
	}

	for _, origin := range strings.Split(v.GetString("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	if cfg.DBStatementTimeout, err = time.ParseDuration(v.GetString("DB_STATEMENT_TIMEOUT")); err != nil {
		return nil, fmt.Errorf("invalid DB_STATEMENT_TIMEOUT: %w", err)
	}
	if cfg.AccountCacheTTL, err = time.ParseDuration(v.GetString("ACCOUNT_CACHE_TTL")); err != nil {
		return nil, fmt.Errorf("invalid ACCOUNT_CACHE_TTL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.DBMaxConns < 1 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns))
	}
	if c.DBStatementTimeout < time.Second {
		errs = append(errs, fmt.Errorf("DB_STATEMENT_TIMEOUT must be at least 1s, got %s", c.DBStatementTimeout))
	}
	if c.TxMaxRetries < 1 {
		errs = append(errs, fmt.Errorf("TX_MAX_RETRIES must be positive, got %d", c.TxMaxRetries))
	}
	if !oneOf(c.AppEnv, "development", "production") {
		errs = append(errs, fmt.Errorf("APP_ENV must be development or production, got %q", c.AppEnv))
	}
	if !oneOf(c.LogLevel, "debug", "info", "warn", "error") {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if !oneOf(c.LogFormat, "json", "console") {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if !oneOf(c.NegativeStockPolicy, "warn", "reject") {
		errs = append(errs, fmt.Errorf("NEGATIVE_STOCK_POLICY must be warn or reject, got %q", c.NegativeStockPolicy))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
