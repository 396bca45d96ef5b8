package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "negative delay",
			mutate: func(cfg *Config) {
				cfg.ScrapeDelay = -1
			},
			wantErr: "scrape delay",
		},
		{
			name: "empty user agent",
			mutate: func(cfg *Config) {
				cfg.UserAgent = ""
			},
			wantErr: "user agent",
		},
		{
			name: "empty link path",
			mutate: func(cfg *Config) {
				cfg.LinkFilePath = ""
			},
			wantErr: "link file",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout=%v, want 5s", cfg.Timeout)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BASE_URL", "http://example.test")
	t.Setenv("USER_AGENT", "test-agent")
	t.Setenv("SCRAPE_DELAY", "3")
	t.Setenv("MAX_PAGES", "7")
	t.Setenv("LINK_FILEPATH", "tmp/links.txt")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://example.test" || cfg.UserAgent != "test-agent" {
		t.Fatalf("unexpected base/user agent: %q %q", cfg.BaseURL, cfg.UserAgent)
	}
	if cfg.Delay() != 3*time.Second {
		t.Fatalf("delay=%v, want 3s", cfg.Delay())
	}
	if cfg.MaxPages != 7 {
		t.Fatalf("max pages=%d, want 7", cfg.MaxPages)
	}
	if cfg.LinkFilePath != "tmp/links.txt" {
		t.Fatalf("link path=%q", cfg.LinkFilePath)
	}
	if cfg.BookFilePath != DefaultConfig().BookFilePath {
		t.Fatalf("unset variables should keep defaults, got %q", cfg.BookFilePath)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FINAL_BOOK_FILEPATH=out/final.csv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("FINAL_BOOK_FILEPATH") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FinalBookFilePath != "out/final.csv" {
		t.Fatalf("final path=%q, want out/final.csv", cfg.FinalBookFilePath)
	}
}

func TestLoadInvalidInteger(t *testing.T) {
	t.Setenv("MAX_PAGES", "many")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error for non-numeric MAX_PAGES")
	}
}
