// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity resolution modes.
const (
	IdentityModeWallet = "wallet"
	IdentityModeSocial = "social"
)

type Config struct {
	Pump     PumpConfig
	DB       DBConfig
	Identity IdentityConfig
	Solana   SolanaConfig
	Pipeline PipelineConfig
	Server   ServerConfig
	Log      LogConfig
}

type PumpConfig struct {
	BaseURL string
	RPS     float64
}

type DBConfig struct {
	URL           string
	ClickhouseDSN string
	UseMemory     bool
}

type IdentityConfig struct {
	Mode          string
	SocialBaseURL string
	SocialAPIKey  string
}

type SolanaConfig struct {
	RPCURL string
	WSURL  string // empty disables the push listener
}

type PipelineConfig struct {
	HistoricalScan      bool
	HistoricalScanLimit int
	RealtimeMonitor     bool
	NewCoinInterval     time.Duration
	MigrationInterval   time.Duration
	NewCoinLimit        int
	MigrationLimit      int
}

type ServerConfig struct {
	Port          int
	ShutdownGrace time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads an optional .env file and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Pump: PumpConfig{
			BaseURL: getEnv("PUMP_API_BASE_URL", "https://frontend-api-v3.pump.fun"),
			RPS:     getEnvFloat("PUMP_API_RPS", 5),
		},
		DB: DBConfig{
			URL:           getEnv("DATABASE_URL", ""),
			ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),
			UseMemory:     getEnvBool("USE_MEMORY", false),
		},
		Identity: IdentityConfig{
			Mode:          strings.ToLower(getEnv("IDENTITY_MODE", IdentityModeWallet)),
			SocialBaseURL: getEnv("SOCIAL_API_BASE_URL", "https://api.twitterapi.io"),
			SocialAPIKey:  getEnv("SOCIAL_API_KEY", ""),
		},
		Solana: SolanaConfig{
			RPCURL: getEnv("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
			WSURL:  getEnv("SOLANA_WS_ENDPOINT", ""),
		},
		Pipeline: PipelineConfig{
			HistoricalScan:      getEnvBool("ENABLE_HISTORICAL_SCAN", true),
			HistoricalScanLimit: getEnvInt("HISTORICAL_SCAN_LIMIT", 1000),
			RealtimeMonitor:     getEnvBool("ENABLE_REALTIME_MONITOR", true),
			NewCoinInterval:     time.Duration(getEnvInt("NEW_COIN_POLL_INTERVAL_MS", 10000)) * time.Millisecond,
			MigrationInterval:   time.Duration(getEnvInt("MIGRATION_POLL_INTERVAL_MS", 60000)) * time.Millisecond,
			NewCoinLimit:        getEnvInt("NEW_COIN_POLL_LIMIT", 50),
			MigrationLimit:      getEnvInt("MIGRATION_POLL_LIMIT", 50),
		},
		Server: ServerConfig{
			Port:          getEnvInt("API_PORT", 3000),
			ShutdownGrace: time.Duration(getEnvInt("SHUTDOWN_GRACE_SECONDS", 30)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.Pump.BaseURL == "" {
		return fmt.Errorf("PUMP_API_BASE_URL is required")
	}
	if c.Pump.RPS <= 0 {
		return fmt.Errorf("PUMP_API_RPS must be positive")
	}
	if !c.DB.UseMemory && c.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required unless USE_MEMORY=true")
	}
	switch c.Identity.Mode {
	case IdentityModeWallet:
	case IdentityModeSocial:
		if c.Identity.SocialAPIKey == "" {
			return fmt.Errorf("SOCIAL_API_KEY is required in social mode")
		}
		if c.Solana.RPCURL == "" {
			return fmt.Errorf("SOLANA_RPC_ENDPOINT is required in social mode")
		}
	default:
		return fmt.Errorf("IDENTITY_MODE must be %q or %q, got %q", IdentityModeWallet, IdentityModeSocial, c.Identity.Mode)
	}
	if c.Pipeline.NewCoinInterval <= 0 || c.Pipeline.MigrationInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.Pipeline.NewCoinLimit <= 0 || c.Pipeline.MigrationLimit <= 0 {
		return fmt.Errorf("poll limits must be positive")
	}
	if c.Pipeline.HistoricalScanLimit < 0 {
		return fmt.Errorf("HISTORICAL_SCAN_LIMIT must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.Server.Port)
	}
	return nil
}

// PushEnabled reports whether the push listener should run.
func (c *Config) PushEnabled() bool {
	return c.Pipeline.RealtimeMonitor && c.Solana.WSURL != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
