package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds spider configuration.
type Config struct {
	CommentAPIURL string
	SightURL      string
	PoiID         string // set explicitly to skip page resolution

	MaxPages int // 0 means fetch until the API runs out of pages
	PageSize int

	MinDelay time.Duration // lower bound of the randomized inter-page delay
	MaxDelay time.Duration // upper bound of the randomized inter-page delay
	Timeout  time.Duration

	MaxConsecutiveFailures int
	HTTPRetryDelay         time.Duration
	TimeoutRetryDelay      time.Duration
	ConnRetryDelay         time.Duration
	GenericRetryDelay      time.Duration

	OutputFile   string // empty means a timestamped default under output/
	OutputFormat string // csv, json, dual, or sqlite

	UserAgent   string
	Verbose     bool
	MetricsAddr string
	LogFile     string

	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int
}

// DefaultConfig returns the defaults of the reference deployment.
func DefaultConfig() *Config {
	return &Config{
		CommentAPIURL:          "https://m.ctrip.com/restapi/soa2/13444/json/getCommentCollapseList",
		SightURL:               "https://you.ctrip.com/sight/shanghai2/25506.html",
		MaxPages:               0,
		PageSize:               10,
		MinDelay:               1500 * time.Millisecond,
		MaxDelay:               3 * time.Second,
		Timeout:                30 * time.Second,
		MaxConsecutiveFailures: 3,
		HTTPRetryDelay:         3 * time.Second,
		TimeoutRetryDelay:      5 * time.Second,
		ConnRetryDelay:         10 * time.Second,
		GenericRetryDelay:      5 * time.Second,
		OutputFile:             "",
		OutputFormat:           "csv",
		UserAgent:              "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Verbose:                false,
		MetricsAddr:            "",
		LogFile:                "spider.log",
		PipelineBufferSize:     512,
		BatchSize:              64,
		DedupeMaxSize:          10000,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.CommentAPIURL == "" {
		return fmt.Errorf("comment API URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.CommentAPIURL)
	if err != nil {
		return fmt.Errorf("invalid comment API URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("comment API URL must include a host")
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MinDelay < 0 {
		return fmt.Errorf("min delay cannot be negative")
	}
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("max delay (%s) cannot be below min delay (%s)", c.MaxDelay, c.MinDelay)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("consecutive-failure ceiling must be positive")
	}
	if c.HTTPRetryDelay < 0 || c.TimeoutRetryDelay < 0 || c.ConnRetryDelay < 0 || c.GenericRetryDelay < 0 {
		return fmt.Errorf("retry delays cannot be negative")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual", "sqlite":
	default:
		return fmt.Errorf("output format must be csv, json, dual, or sqlite")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}

// EnvString reads a string environment override.
func EnvString(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment override.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, err)
	}
	return value, true, nil
}

// EnvFloat reads a float environment override.
func EnvFloat(name string) (float64, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, err)
	}
	return value, true, nil
}
