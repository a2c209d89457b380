package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Probe
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	ProbeMaxSize  int64

	// Notify
	NotifyMaxConcurrent int
	ProviderTimeout     time.Duration
	ProviderInterval    time.Duration // プロバイダーAPI呼び出しの最小間隔

	// Notification Log
	NotificationLogCapacity int

	// Rate Limit
	RateLimitGeneral   int
	RateLimitTestAlarm int

	// Billing
	PriceEURMonthly float64

	// Affiliate
	MinPayoutEUR float64

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.ProbeInterval = getEnvDuration("PROBE_INTERVAL", 5*time.Minute)
	cfg.ProbeTimeout = getEnvDuration("PROBE_TIMEOUT", 10*time.Second)
	cfg.ProbeMaxSize = getEnvInt64("PROBE_MAX_SIZE", 5242880)
	cfg.NotifyMaxConcurrent = getEnvInt("NOTIFY_MAX_CONCURRENT", 10)
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.ProviderInterval = getEnvDuration("PROVIDER_INTERVAL", 200*time.Millisecond)
	cfg.NotificationLogCapacity = getEnvInt("NOTIFICATION_LOG_CAPACITY", 100)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitTestAlarm = getEnvInt("RATE_LIMIT_TEST_ALARM", 5)
	cfg.PriceEURMonthly = getEnvFloat("PRICE_EUR_MONTHLY", 2.99)
	cfg.MinPayoutEUR = getEnvFloat("MIN_PAYOUT_EUR", 50)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
