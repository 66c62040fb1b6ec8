package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	defaultBaseURL = "https://api.skilla.ru/mango/"
	defaultToken   = "testtoken"
)

type Config struct {
	MangoBaseURL string
	MangoToken   string
	DatabaseURL  string
	Addr         string
	PageSize     int
	SessionTTL   time.Duration
	MaxSessions  int
	Location     *time.Location
	LogLevel     string
	LogFile      string
	HTTPTimeout  time.Duration
}

// Load reads the environment, after an optional .env file in the working
// directory.
func Load() (Config, error) {
	_ = godotenv.Load()

	base := getenv("MANGO_API_BASE_URL", defaultBaseURL)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	tzName := getenv("TIMEZONE", "Europe/Moscow")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("TIMEZONE %q: %w", tzName, err)
	}

	pageSize, err := getenvInt("PAGE_SIZE", 50)
	if err != nil {
		return Config{}, err
	}
	if pageSize < 1 || pageSize > 1000 {
		return Config{}, fmt.Errorf("PAGE_SIZE must be in [1, 1000], got %d", pageSize)
	}

	maxSessions, err := getenvInt("MAX_SESSIONS", 1024)
	if err != nil {
		return Config{}, err
	}
	if maxSessions < 1 {
		return Config{}, fmt.Errorf("MAX_SESSIONS must be positive, got %d", maxSessions)
	}

	ttl, err := getenvDuration("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	timeout, err := getenvDuration("HTTP_TIMEOUT", 25*time.Second)
	if err != nil {
		return Config{}, err
	}

	return Config{
		MangoBaseURL: base,
		MangoToken:   getenv("MANGO_API_TOKEN", defaultToken),
		DatabaseURL:  getenv("DATABASE_URL", ""),
		Addr:         getenv("ADDR", ":8080"),
		PageSize:     pageSize,
		SessionTTL:   ttl,
		MaxSessions:  maxSessions,
		Location:     loc,
		LogLevel:     strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFile:      getenv("LOG_FILE", ""),
		HTTPTimeout:  timeout,
	}, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// getenvDuration accepts Go duration strings ("90s") or bare seconds.
func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if !strings.ContainsAny(v, "hmsµun") {
		d = time.Duration(cast.ToInt64(v)) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}
