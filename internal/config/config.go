package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIBaseURL  = "http://localhost:8000"
	DefaultPageSize    = 5
	DefaultHTTPTimeout = 30 * time.Second
)

type Config struct {
	// Client
	APIBaseURL  string
	HTTPTimeout time.Duration
	PageSize    int

	// Refresh is the cron spec for periodic store refresh ("" disables it),
	// e.g. "@every 30s".
	RefreshSchedule string

	// Dev backend
	Port                         string
	GinMode                      string
	CORSAllowedOrigins           string
	ServerShutdownTimeoutSeconds int
	NatsURL                      string

	// Logging
	LogLevel  string
	LogFormat string

	// SeedRequests are loaded into the dev backend on startup.
	SeedRequests []SeedRequest
}

// SeedRequest is a maintenance request preloaded into the dev backend.
type SeedRequest struct {
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	Category    *string `yaml:"category"`
	AISummary   *string `yaml:"ai_summary"`
	Priority    string  `yaml:"priority"`
	Status      string  `yaml:"status"`
}

// LoadConfig reads .env (if present), the environment, and then the optional
// YAML file named by CONFIG_FILE (default config.yaml).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		APIBaseURL:  strings.TrimRight(getEnvOrDefault("API_BASE_URL", DefaultAPIBaseURL), "/"),
		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", DefaultHTTPTimeout),
		PageSize:    getEnvAsInt("PAGE_SIZE", DefaultPageSize),

		RefreshSchedule: getEnvOrDefault("REFRESH_SCHEDULE", ""),

		Port:                         getEnvOrDefault("PORT", "8000"),
		GinMode:                      getEnvOrDefault("GIN_MODE", "release"),
		CORSAllowedOrigins:           getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 5),
		NatsURL:                      getEnvOrDefault("NATS_URL", ""),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	configFile, err := os.Open(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// The file is optional.
	case err != nil:
		return nil, fmt.Errorf("failed to open config file %s: %w", configFilePath, err)
	default:
		defer configFile.Close()
		if err := LoadConfigFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFilePath, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports settings the client cannot work with.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL must not be empty")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("PAGE_SIZE must be between 1 and 100, got %d", c.PageSize)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP_TIMEOUT must not be negative, got %s", c.HTTPTimeout)
	}
	return nil
}

// AllowedOrigins splits CORSAllowedOrigins on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// LoadConfigFile overlays the YAML document read from reader onto config.
// Only refresh_schedule and seed_requests are read from the file.
func LoadConfigFile(reader io.Reader, config *Config) error {
	var file struct {
		RefreshSchedule *string       `yaml:"refresh_schedule"`
		SeedRequests    []SeedRequest `yaml:"seed_requests"`
	}

	decoder := yaml.NewDecoder(reader)
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	// Environment variables take precedence over the file.
	if file.RefreshSchedule != nil && os.Getenv("REFRESH_SCHEDULE") == "" {
		config.RefreshSchedule = *file.RefreshSchedule
	}
	config.SeedRequests = append(config.SeedRequests, file.SeedRequests...)

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
