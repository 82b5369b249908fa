package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "cheapeats-bot"
	EnvFileName = "config.env"
)

// Config holds all bot settings, populated from environment variables.
type Config struct {
	BotToken        string
	GeminiAPIKey    string
	AdminTelegramID int64
	GeminiModel     string
	DBPath          string
	HTTPAddr        string
	LogLevel        string
	LocationTimeout time.Duration

	// Search tuning.
	MinRating      float64
	SearchRadiusKm float64
	PriceCacheTTL  time.Duration
}

// ConfigDir returns the application's config directory path.
// Creates the directory if it doesn't exist.
func ConfigDir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// FilePath returns the full path to the config file.
func FilePath() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configPath, err := FilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(configPath)
}

// Load reads configuration from environment variables, applying defaults where unset.
// Only GEMINI_API_KEY is required here; the bot additionally calls RequireBot.
func Load() (*Config, error) {
	cfg := &Config{
		BotToken:     os.Getenv("BOT_TOKEN"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		DBPath:       envOrDefault("CHEAPEATS_DB_PATH", "cheapeats.db"),
		HTTPAddr:     lookupOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}

	if s := os.Getenv("ADMIN_TELEGRAM_ID"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.New("invalid ADMIN_TELEGRAM_ID")
		}
		cfg.AdminTelegramID = id
	}

	var err error
	if cfg.LocationTimeout, err = parsePositiveDuration("LOCATION_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.PriceCacheTTL, err = parsePositiveDuration("PRICE_CACHE_TTL", "168h"); err != nil {
		return nil, err
	}
	if cfg.MinRating, err = parseRating("MIN_RATING", "4.3"); err != nil {
		return nil, err
	}
	if cfg.SearchRadiusKm, err = parseFloatInRange("SEARCH_RADIUS_KM", "3", 0.1, 50); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireBot checks the settings only the Telegram bot needs.
func (c *Config) RequireBot() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if c.AdminTelegramID == 0 {
		return errors.New("ADMIN_TELEGRAM_ID is required")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// lookupOrDefault treats a variable set to the empty string as a value.
func lookupOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// parseRating accepts a star rating in (0, 5]. Zero would mean "use the
// default" further down, so it is rejected here.
func parseRating(key, fallback string) (float64, error) {
	f, err := strconv.ParseFloat(envOrDefault(key, fallback), 64)
	if err != nil || f <= 0 || f > 5 {
		return 0, fmt.Errorf("invalid %s: must be greater than 0 and at most 5", key)
	}
	return f, nil
}

func parseFloatInRange(key, fallback string, min, max float64) (float64, error) {
	f, err := strconv.ParseFloat(envOrDefault(key, fallback), 64)
	if err != nil || f < min || f > max {
		return 0, fmt.Errorf("invalid %s: must be between %g and %g", key, min, max)
	}
	return f, nil
}
