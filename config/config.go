package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds scraper configuration. It is built once at process start and
// handed to every stage; nothing else reads the environment.
type Config struct {
	BaseURL           string        `envconfig:"BASE_URL"`
	UserAgent         string        `envconfig:"USER_AGENT"`
	ScrapeDelay       int           `envconfig:"SCRAPE_DELAY"` // seconds
	MaxPages          int           `envconfig:"MAX_PAGES"`
	Timeout           time.Duration `envconfig:"REQUEST_TIMEOUT"`
	LinkFilePath      string        `envconfig:"LINK_FILEPATH"`
	BookFilePath      string        `envconfig:"BOOK_FILEPATH"`
	FinalBookFilePath string        `envconfig:"FINAL_BOOK_FILEPATH"`
	OutputFormat      string        `envconfig:"OUTPUT_FORMAT"` // csv, json, or dual
	DedupeMaxSize     int           `envconfig:"DEDUPE_MAX_SIZE"`
	MetricsAddr       string        `envconfig:"METRICS_ADDR"`
	Verbose           bool          `envconfig:"VERBOSE"`
	RespectRobotsTxt  bool          `envconfig:"RESPECT_ROBOTS"`
}

// DefaultConfig returns conservative defaults for the Tor publishing site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://publishing.tor.com",
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		ScrapeDelay:       2,
		MaxPages:          5,
		Timeout:           5 * time.Second,
		LinkFilePath:      "data/book_links.txt",
		BookFilePath:      "data/books.csv",
		FinalBookFilePath: "data/final_books.csv",
		OutputFormat:      "csv",
		DedupeMaxSize:     10000,
		MetricsAddr:       "",
		Verbose:           false,
		RespectRobotsTxt:  false,
	}
}

// Load starts from DefaultConfig, reads the optional env files (".env" when
// none are given) and then overlays any variables present in the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %q: %w", file, err)
		}
	}

	cfg := DefaultConfig()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}

// Delay is the pause between consecutive requests.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.ScrapeDelay) * time.Second
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.ScrapeDelay < 0 {
		return fmt.Errorf("scrape delay cannot be negative")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.LinkFilePath == "" {
		return fmt.Errorf("link file path cannot be empty")
	}
	if c.BookFilePath == "" {
		return fmt.Errorf("book file path cannot be empty")
	}
	if c.FinalBookFilePath == "" {
		return fmt.Errorf("final book file path cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}
