package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. It is loaded once at startup
// and passed by value into component constructors; components never reach
// into the environment themselves.
type Config struct {
	Ingest  IngestConfig
	Extract ExtractConfig
	Backend BackendConfig
	Store   StoreConfig
	Log     LogConfig
}

// IngestConfig covers the watched and archive directories.
type IngestConfig struct {
	WatchDir    string
	ArchiveDir  string
	AllowedExts []string // lowercased, without '.'; empty -> constants defaults
	Workers     int
}

// ExtractConfig covers normalization and validation knobs.
type ExtractConfig struct {
	Categories       []string // jurisdiction vocabulary; empty -> defaults
	MaxEdgePixels    int      // longer-edge cap for normalized frames
	RenderDPI        int      // PDF rasterization target
	JPEGQuality      int
	FirstPageOnly    bool
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
}

// BackendConfig selects and credentials the extraction backends.
type BackendConfig struct {
	Primary  string // "openai" | "gemini"
	Fallback string // optional second provider
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// StoreConfig selects the transaction store implementation.
type StoreConfig struct {
	Driver string // "sqlite" | "postgres"
	DSN    string
}

type LogConfig struct {
	Level string
	File  string // optional JSON log file alongside stderr
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Ingest: IngestConfig{
			WatchDir:    getEnv("WATCH_DIR", ""),
			ArchiveDir:  getEnv("ARCHIVE_DIR", ""),
			AllowedExts: getEnvAsList("ALLOWED_EXTENSIONS", nil),
			Workers:     getEnvAsInt("INGEST_WORKERS", 2),
		},
		Extract: ExtractConfig{
			Categories:       getEnvAsList("CATEGORIES", nil),
			MaxEdgePixels:    getEnvAsInt("MAX_EDGE_PIXELS", 2048),
			RenderDPI:        getEnvAsInt("RENDER_DPI", 200),
			JPEGQuality:      getEnvAsInt("JPEG_QUALITY", 85),
			FirstPageOnly:    getEnvAsBool("FIRST_PAGE_ONLY", false),
			RetryMaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", 2*time.Second),
		},
		Backend: BackendConfig{
			Primary:  getEnv("BACKEND_PRIMARY", "openai"),
			Fallback: getEnv("BACKEND_FALLBACK", ""),
			OpenAI: OpenAIConfig{
				APIKey:      getEnv("OPENAI_API_KEY", ""),
				BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
				Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
				Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			},
			Gemini: GeminiConfig{
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				Model:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
				Timeout: getEnvAsDuration("GEMINI_TIMEOUT", 45*time.Second),
			},
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "sqlite"),
			DSN:    getEnv("STORE_DSN", "file:ledgerscan.db"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}
}

// Validate checks the loaded configuration before components are built.
func (c *Config) Validate() error {
	if c.Ingest.WatchDir == "" {
		return errors.New("WATCH_DIR is required")
	}
	if c.Ingest.ArchiveDir == "" {
		return errors.New("ARCHIVE_DIR is required")
	}
	if c.Ingest.Workers < 1 || c.Ingest.Workers > 4 {
		return errors.New("INGEST_WORKERS must be between 1 and 4")
	}
	switch c.Backend.Primary {
	case "openai", "gemini":
	default:
		return errors.New("BACKEND_PRIMARY must be 'openai' or 'gemini'")
	}
	if c.Backend.Fallback != "" && c.Backend.Fallback != "openai" && c.Backend.Fallback != "gemini" {
		return errors.New("BACKEND_FALLBACK must be 'openai' or 'gemini'")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return errors.New("STORE_DRIVER must be 'sqlite' or 'postgres'")
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
