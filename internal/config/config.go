package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var (
	ErrInvalidAPIURL        = errors.New("NOTES_API_URL must be an absolute http(s) URL")
	ErrInsecureAPIURL       = errors.New("NOTES_API_URL must use https in production")
	ErrUnknownStorageDriver = errors.New("NOTES_STORAGE_DRIVER must be sqlite or mysql")
)

type Config struct {
	APIURL         string
	Env            string
	StorageDriver  string
	StorageDSN     string
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	LogLevel       string
}

func Load() (Config, error) {
	cfg := Config{
		APIURL:        getEnv("NOTES_API_URL", "http://localhost:8080"),
		Env:           getEnv("NOTES_ENV", "development"),
		StorageDriver: getEnv("NOTES_STORAGE_DRIVER", "sqlite"),
		StorageDSN:    getEnv("NOTES_STORAGE_DSN", ""),
		LogLevel:      getEnv("NOTES_LOG_LEVEL", "warn"),
	}

	var err error
	if cfg.RequestTimeout, err = time.ParseDuration(getEnv("NOTES_REQUEST_TIMEOUT", "10s")); err != nil {
		return Config{}, fmt.Errorf("NOTES_REQUEST_TIMEOUT: %w", err)
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("NOTES_RATE_LIMIT_RPS", "5"), 64); err != nil {
		return Config{}, fmt.Errorf("NOTES_RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getEnv("NOTES_RATE_LIMIT_BURST", "10")); err != nil {
		return Config{}, fmt.Errorf("NOTES_RATE_LIMIT_BURST: %w", err)
	}

	u, err := url.Parse(cfg.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Config{}, ErrInvalidAPIURL
	}
	if cfg.Env == "production" && u.Scheme != "https" {
		return Config{}, ErrInsecureAPIURL
	}

	switch cfg.StorageDriver {
	case "sqlite":
		if cfg.StorageDSN == "" {
			cfg.StorageDSN = defaultSessionPath()
		}
	case "mysql":
		if cfg.StorageDSN == "" {
			cfg.StorageDSN = "root:password@tcp(127.0.0.1:3306)/mininotes"
		}
	default:
		return Config{}, ErrUnknownStorageDriver
	}

	return cfg, nil
}

// defaultSessionPath places the session database in the per-user config directory.
func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "mininotes", "session.db")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
