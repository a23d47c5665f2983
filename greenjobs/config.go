package greenjobs

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds client settings. Zero values select the defaults applied by
// LoadConfig.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api/v1.
	BaseURL string
	// Token authenticates requests when set (Bearer scheme).
	Token string
	// CacheDir is where the persistent preference store lives.
	CacheDir string
	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration
	// CacheTTL is how long list and detail payloads stay fresh.
	CacheTTL time.Duration
	// RetryAttempts is how many retries follow a failed request.
	RetryAttempts int
	// RetryDelay is the base backoff delay.
	RetryDelay time.Duration
}

// LoadConfig reads configuration from the environment, loading a .env file
// first if one exists. Missing variables fall back to defaults.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		BaseURL:        envString("GREENJOBS_API_URL", "http://localhost:8000/api/v1"),
		Token:          os.Getenv("GREENJOBS_API_TOKEN"),
		CacheDir:       envString("GREENJOBS_CACHE_DIR", defaultCacheDir()),
		RequestTimeout: envDuration("GREENJOBS_REQUEST_TIMEOUT", 15*time.Second),
		CacheTTL:       envDuration("GREENJOBS_CACHE_TTL", 5*time.Minute),
		RetryAttempts:  envInt("GREENJOBS_RETRY_ATTEMPTS", 3),
		RetryDelay:     envDuration("GREENJOBS_RETRY_DELAY", time.Second),
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "greenjobs")
	}
	return ".greenjobs-cache"
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
