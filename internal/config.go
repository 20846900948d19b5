package internal

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DefaultTimeout  int // seconds, applied to every remote call
	MaxAttempts     int // total attempts for Transient failures, including the first
	DownloadWorkers int
	ProxyURL        string
	PageSize        int

	// Logging configuration
	LogLevel    string
	EnableDebug bool
	QuietMode   bool
	LogFile     string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout:  30,
		MaxAttempts:     3,
		DownloadWorkers: 4,
		PageSize:        100,

		LogLevel:    "info",
		EnableDebug: false,
		QuietMode:   false,
		LogFile:     "", // Empty means stderr
	}
}

// LoadFromEnv loads configuration from environment variables. A .env file in
// the working directory is folded into the environment first, if present.
func (c *Config) LoadFromEnv() {
	_ = godotenv.Load()

	if timeout := os.Getenv("CANVAS_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			c.DefaultTimeout = t
		}
	}

	if workers := os.Getenv("CANVAS_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 && w <= 16 {
			c.DownloadWorkers = w
		}
	}

	if proxy := os.Getenv("CANVAS_PROXY"); proxy != "" {
		c.ProxyURL = proxy
	}

	if logLevel := os.Getenv("CANVAS_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}

	if debug := os.Getenv("CANVAS_DEBUG"); debug != "" {
		c.EnableDebug = debug == "true" || debug == "1"
	}

	if quiet := os.Getenv("CANVAS_QUIET"); quiet != "" {
		c.QuietMode = quiet == "true" || quiet == "1"
	}

	if logFile := os.Getenv("CANVAS_LOG_FILE"); logFile != "" {
		c.LogFile = logFile
	}
}

// EnvCredential returns a credential assembled from CANVAS_BASE_URL and
// CANVAS_ACCESS_TOKEN, overriding the stored one for a single invocation.
// The second return value reports whether both variables were set.
func EnvCredential() (*Credential, bool) {
	url := os.Getenv("CANVAS_BASE_URL")
	token := os.Getenv("CANVAS_ACCESS_TOKEN")
	if url == "" || token == "" {
		return nil, false
	}
	return &Credential{BaseURL: url, AccessToken: token}, true
}

// ValidateConfig validates the configuration values
func (c *Config) ValidateConfig() error {
	if c.DefaultTimeout < 1 {
		return fmt.Errorf("invalid default timeout: %d (must be > 0)", c.DefaultTimeout)
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("invalid max attempts: %d (must be >= 1)", c.MaxAttempts)
	}

	if c.DownloadWorkers < 1 || c.DownloadWorkers > 16 {
		return fmt.Errorf("invalid download workers: %d (must be 1-16)", c.DownloadWorkers)
	}

	if c.PageSize < 1 {
		return fmt.Errorf("invalid page size: %d (must be > 0)", c.PageSize)
	}

	return nil
}
