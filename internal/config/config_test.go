package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	c := Load()
	c.Ingest.WatchDir = "/inbox"
	c.Ingest.ArchiveDir = "/archive"
	return c
}

func TestLoad_Defaults(t *testing.T) {
	c := Load()
	if c.Extract.MaxEdgePixels != 2048 {
		t.Errorf("MaxEdgePixels = %d, want 2048", c.Extract.MaxEdgePixels)
	}
	if c.Extract.RetryMaxAttempts != 3 {
		t.Errorf("RetryMaxAttempts = %d, want 3", c.Extract.RetryMaxAttempts)
	}
	if c.Extract.RetryBaseDelay != 2*time.Second {
		t.Errorf("RetryBaseDelay = %v, want 2s", c.Extract.RetryBaseDelay)
	}
	if c.Backend.Primary != "openai" {
		t.Errorf("Primary = %q, want openai", c.Backend.Primary)
	}
	if c.Store.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", c.Store.Driver)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WATCH_DIR", "/data/in")
	t.Setenv("INGEST_WORKERS", "4")
	t.Setenv("ALLOWED_EXTENSIONS", "pdf, png")
	t.Setenv("RETRY_BASE_DELAY", "500ms")

	c := Load()
	if c.Ingest.WatchDir != "/data/in" {
		t.Errorf("WatchDir = %q", c.Ingest.WatchDir)
	}
	if c.Ingest.Workers != 4 {
		t.Errorf("Workers = %d", c.Ingest.Workers)
	}
	if len(c.Ingest.AllowedExts) != 2 || c.Ingest.AllowedExts[1] != "png" {
		t.Errorf("AllowedExts = %v", c.Ingest.AllowedExts)
	}
	if c.Extract.RetryBaseDelay != 500*time.Millisecond {
		t.Errorf("RetryBaseDelay = %v", c.Extract.RetryBaseDelay)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing watch dir", func(c *Config) { c.Ingest.WatchDir = "" }, true},
		{"missing archive dir", func(c *Config) { c.Ingest.ArchiveDir = "" }, true},
		{"too many workers", func(c *Config) { c.Ingest.Workers = 9 }, true},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }, true},
		{"unknown backend", func(c *Config) { c.Backend.Primary = "claude" }, true},
		{"unknown fallback", func(c *Config) { c.Backend.Fallback = "bard" }, true},
		{"gemini fallback ok", func(c *Config) { c.Backend.Fallback = "gemini" }, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("DEBUG"); got != slog.LevelDebug {
		t.Errorf("ParseLevel(DEBUG) = %v", got)
	}
	if got := ParseLevel("nonsense"); got != slog.LevelInfo {
		t.Errorf("ParseLevel(nonsense) = %v", got)
	}
}

func TestSetupLoggerWithWriters_FanOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("ingest.archived", "path", "/inbox/a.pdf")

	if !strings.Contains(stderr.String(), "ingest.archived") {
		t.Errorf("stderr output missing message: %q", stderr.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if entry["msg"] != "ingest.archived" || entry["path"] != "/inbox/a.pdf" {
		t.Errorf("file entry = %v", entry)
	}
}
