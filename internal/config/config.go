package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
)

// Config holds runtime configuration values for the page service.
type Config struct {
	DBPath        string
	ServerPort    int
	LogLevel      string
	LogFormat     string
	SentryDSN     string
	Environment   string
	CacheLocale   language.Tag
	SeedFile      string
	SeedWatch     bool
	RateLimit     RateLimitConfig
	ShutdownGrace time.Duration
}

// RateLimitConfig configures the per-client HTTP token bucket.
type RateLimitConfig struct {
	Burst             int
	RequestsPerSecond float64
	ClientTTL         time.Duration
}

const (
	defaultDBPath         = "./data/pages.db"
	defaultServerPort     = 8080
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
	defaultEnvironment    = "development"
	defaultCacheLocale    = "und"
	defaultShutdownGrace  = 10 * time.Second
	defaultRateLimitBurst = 20
	defaultRateLimitRPS   = 10.0
	defaultRateLimitTTL   = 5 * time.Minute
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		LogFormat:     getEnv("LOG_FORMAT", defaultLogFormat),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnv("ENV", defaultEnvironment),
		SeedFile:      strings.TrimSpace(os.Getenv("SEED_FILE")),
		ShutdownGrace: defaultShutdownGrace,
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	localeValue := getEnv("CACHE_LOCALE", defaultCacheLocale)
	locale, err := language.Parse(localeValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid CACHE_LOCALE value: %s", localeValue)
	}
	cfg.CacheLocale = locale

	if raw := os.Getenv("SEED_WATCH"); raw != "" {
		watch, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid SEED_WATCH value: %s", raw)
		}
		cfg.SeedWatch = watch
	}

	rateLimit, err := loadRateLimit()
	if err != nil {
		return nil, err
	}
	cfg.RateLimit = rateLimit

	return cfg, nil
}

func loadRateLimit() (RateLimitConfig, error) {
	settings := RateLimitConfig{
		Burst:             defaultRateLimitBurst,
		RequestsPerSecond: defaultRateLimitRPS,
		ClientTTL:         defaultRateLimitTTL,
	}

	if raw := os.Getenv("RATE_LIMIT_BURST"); raw != "" {
		burst, err := strconv.Atoi(raw)
		if err != nil || burst <= 0 {
			return RateLimitConfig{}, eris.Errorf("invalid RATE_LIMIT_BURST value: %s", raw)
		}
		settings.Burst = burst
	}

	if raw := os.Getenv("RATE_LIMIT_RPS"); raw != "" {
		rps, err := strconv.ParseFloat(raw, 64)
		if err != nil || rps <= 0 {
			return RateLimitConfig{}, eris.Errorf("invalid RATE_LIMIT_RPS value: %s", raw)
		}
		settings.RequestsPerSecond = rps
	}

	if raw := os.Getenv("RATE_LIMIT_CLIENT_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return RateLimitConfig{}, eris.Errorf("invalid RATE_LIMIT_CLIENT_TTL value: %s", raw)
		}
		settings.ClientTTL = ttl
	}

	return settings, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
