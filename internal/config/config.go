package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/efreitasn/stocksim/internal/domain"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
)

// Config holds all runtime configuration for the trading backend.
type Config struct {
	Port     int
	LogLevel string

	StoreBackend             string
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	StoreTimeout             time.Duration
	InitialBalance           int64 // paise

	MLAPIURL            string
	PredictionTimeout   time.Duration
	PredictionRateLimit int
	HealthRetries       int

	GenAIAPIKey       string
	ChatModel         string
	ChatTimeout       time.Duration
	ChatHistoryWindow int
	ChatRateLimit     int

	QuoteTickInterval time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ChatEnabled reports whether an API key for the chat model is configured.
func (c *Config) ChatEnabled() bool {
	return c.GenAIAPIKey != ""
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. Variables from a .env file in the working directory
// are loaded first but never override the real environment. It returns an
// error for any invalid value.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := &Config{
		LogLevel:                 getStr("LOG_LEVEL", "info"),
		StoreBackend:             getStr("STORE_BACKEND", BackendMemory),
		FirestoreProjectID:       os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		MLAPIURL:                 getStr("ML_API_URL", "http://localhost:5000"),
		GenAIAPIKey:              os.Getenv("GOOGLE_GENAI_API_KEY"),
		ChatModel:                getStr("CHAT_MODEL", "gemini-1.5-flash"),
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendFirestore:
		if cfg.FirestoreProjectID == "" {
			return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is required when STORE_BACKEND=%s", BackendFirestore)
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q, must be one of: %s, %s",
			cfg.StoreBackend, BackendMemory, BackendFirestore)
	}

	balance, err := getFloat("INITIAL_BALANCE", 1000000)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_BALANCE: %w", err)
	}
	if balance < 0 {
		return nil, fmt.Errorf("invalid INITIAL_BALANCE: must not be negative")
	}
	if cfg.InitialBalance, err = domain.RupeesToPaise(balance); err != nil {
		return nil, fmt.Errorf("invalid INITIAL_BALANCE: %w", err)
	}

	ints := []struct {
		key string
		dst *int
		def int
		min int
	}{
		{"PREDICTION_RATE_LIMIT", &cfg.PredictionRateLimit, 5, 1},
		{"HEALTH_RETRIES", &cfg.HealthRetries, 3, 0},
		{"CHAT_HISTORY_WINDOW", &cfg.ChatHistoryWindow, 10, 0},
		{"CHAT_RATE_LIMIT", &cfg.ChatRateLimit, 2, 1},
	}
	for _, f := range ints {
		v, err := getInt(f.key, f.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		if v < f.min {
			return nil, fmt.Errorf("invalid %s: must be at least %d", f.key, f.min)
		}
		*f.dst = v
	}

	durations := []struct {
		key string
		dst *time.Duration
		def time.Duration
	}{
		{"STORE_TIMEOUT", &cfg.StoreTimeout, 5 * time.Second},
		{"PREDICTION_TIMEOUT", &cfg.PredictionTimeout, 30 * time.Second},
		{"CHAT_TIMEOUT", &cfg.ChatTimeout, 30 * time.Second},
		{"QUOTE_TICK_INTERVAL", &cfg.QuoteTickInterval, 5 * time.Second},
		{"READ_TIMEOUT", &cfg.ReadTimeout, 5 * time.Second},
		{"WRITE_TIMEOUT", &cfg.WriteTimeout, 60 * time.Second},
		{"IDLE_TIMEOUT", &cfg.IdleTimeout, 60 * time.Second},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout, 10 * time.Second},
	}
	for _, f := range durations {
		v, err := getDuration(f.key, f.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", f.key)
		}
		*f.dst = v
	}

	return cfg, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
