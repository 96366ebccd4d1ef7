// Package config loads covid-graph settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/covid-graph/pkg/logging"
	"github.com/joho/godotenv"
)

// DefaultUserAgent is sent when COVID_USER_AGENT is unset.
const DefaultUserAgent = "covid-graph/0.1.0 (+https://github.com/Sternrassler/covid-graph)"

type Config struct {
	API    APIConfig
	Redis  RedisConfig
	Graph  GraphConfig
	Logger LoggerConfig

	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string
}

type APIConfig struct {
	BaseURL           string
	UserAgent         string
	PageTimeout       time.Duration
	RequestsPerSecond float64
	MaxPages          int
}

type RedisConfig struct {
	// URL is a redis:// URL. Empty keeps throttle state in memory.
	URL string
}

type GraphConfig struct {
	Dir           string
	Format        string
	Width         int
	Height        int
	MovingAverage int
}

type LoggerConfig struct {
	Level  string
	Pretty bool
}

// Load reads the environment, after merging any variables from envFiles
// (default ".env") that are not already set. Missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:           getEnvString("COVID_API_URL", "https://api.coronavirus.data.gov.uk"),
			UserAgent:         getEnvString("COVID_USER_AGENT", DefaultUserAgent),
			PageTimeout:       getEnvDuration("COVID_PAGE_TIMEOUT", 5*time.Second),
			RequestsPerSecond: getEnvFloat("COVID_REQUESTS_PER_SECOND", 5),
			MaxPages:          getEnvInt("COVID_MAX_PAGES", 1000),
		},
		Redis: RedisConfig{
			URL: getEnvString("REDIS_URL", ""),
		},
		Graph: GraphConfig{
			Dir:           getEnvString("GRAPH_DIR", "graphs"),
			Format:        strings.ToLower(getEnvString("GRAPH_FORMAT", "png")),
			Width:         getEnvInt("GRAPH_WIDTH", 1920),
			Height:        getEnvInt("GRAPH_HEIGHT", 1080),
			MovingAverage: getEnvInt("GRAPH_MOVING_AVERAGE", 0),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", true),
		},
		MetricsAddr: getEnvString("METRICS_ADDR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration. It is exported so that flag overrides
// can be re-checked.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api url must be absolute, got %q", c.API.BaseURL)
	}

	if c.API.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if c.API.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be positive")
	}

	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}

	if c.API.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}

	if c.Redis.URL != "" {
		if _, err := url.Parse(c.Redis.URL); err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
	}

	if c.Graph.Dir == "" {
		return fmt.Errorf("graph directory cannot be empty")
	}

	validFormats := []string{"png", "svg"}
	if !contains(validFormats, c.Graph.Format) {
		return fmt.Errorf("invalid graph format %q, must be one of: %s", c.Graph.Format, strings.Join(validFormats, ", "))
	}

	if c.Graph.Width <= 0 || c.Graph.Height <= 0 {
		return fmt.Errorf("graph size must be positive, got %dx%d", c.Graph.Width, c.Graph.Height)
	}

	if c.Graph.MovingAverage < 0 {
		return fmt.Errorf("moving average cannot be negative")
	}

	if _, err := logging.ParseLevel(c.Logger.Level); err != nil {
		return err
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
