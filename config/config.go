package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tradebot/models"
)

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the lib/pq connection string.
func (d DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Config holds all application configuration, loaded from the environment.
type Config struct {
	BinanceBaseURL string
	Symbols        []string
	Timeframes     []string
	CandleLimit    int

	SweepInterval  time.Duration
	SweepBackoff   time.Duration
	PairsPerSecond int
	RequestTimeout time.Duration
	CacheTTL       time.Duration

	DB DBConfig

	TelegramToken  string
	TelegramChatID int64

	LogLevel string
}

// Load reads configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		BinanceBaseURL: envStr("BINANCE_BASE_URL", "https://api.binance.com"),
		Symbols:        envList("SYMBOLS", []string{"BTCUSDT", "ETHUSDT", "DOGEUSDT"}),
		Timeframes:     envList("TIMEFRAMES", models.Timeframes),
		CandleLimit:    envInt("CANDLE_LIMIT", 100),
		SweepInterval:  envDuration("SWEEP_INTERVAL", 15*time.Minute),
		SweepBackoff:   envDuration("SWEEP_BACKOFF", time.Minute),
		PairsPerSecond: envInt("PAIRS_PER_SECOND", 1),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 30*time.Second),
		CacheTTL:       envDuration("CACHE_TTL", time.Minute),
		DB: DBConfig{
			Host:     envStr("DB_HOST", "localhost"),
			Port:     envInt("DB_PORT", 5432),
			User:     envStr("DB_USER", "tradebot_user"),
			Password: envStr("DB_PASSWORD", "postgres"),
			Name:     envStr("DB_NAME", "tradebot"),
			SSLMode:  envStr("DB_SSLMODE", "disable"),
		},
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BinanceBaseURL == "" {
		return fmt.Errorf("BINANCE_BASE_URL must not be empty")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("SYMBOLS must name at least one symbol")
	}
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("TIMEFRAMES must name at least one timeframe")
	}
	for _, tf := range c.Timeframes {
		if !models.IsValidTimeframe(tf) {
			return fmt.Errorf("unsupported timeframe %q", tf)
		}
	}
	if c.CandleLimit <= 0 {
		return fmt.Errorf("CANDLE_LIMIT must be positive")
	}
	if c.SweepInterval <= 0 || c.SweepBackoff <= 0 {
		return fmt.Errorf("sweep interval and backoff must be positive")
	}
	if c.PairsPerSecond <= 0 {
		return fmt.Errorf("PAIRS_PER_SECOND must be positive")
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
