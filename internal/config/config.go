// Package config loads run settings from the environment (with .env
// support), optionally overlaid by a YAML tuning file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Headless         bool          `yaml:"headless"`
	CredentialsPath  string        `yaml:"credentials_path"`
	SpreadsheetName  string        `yaml:"spreadsheet_name"`
	WorksheetName    string        `yaml:"worksheet_name"`
	CSVPath          string        `yaml:"csv_path"`
	SettleInterval   time.Duration `yaml:"settle_interval"`
	BackoffInterval  time.Duration `yaml:"backoff_interval"`
	BackoffThreshold int           `yaml:"backoff_threshold"`
	DetailWait       time.Duration `yaml:"detail_wait"`
	ResultsWait      time.Duration `yaml:"results_wait"`
	AppendsPerMinute int           `yaml:"appends_per_minute"`
	LogLevel         string        `yaml:"log_level"`
	LogFile          string        `yaml:"log_file"`
}

// Load reads the environment (after loading .env when present) and then
// overlays the YAML file at path, when given.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Headless:         parseBoolEnv("HEADLESS", true),
		CredentialsPath:  valueOrDefault(os.Getenv("GOOGLE_CREDENTIALS"), "credentials.json"),
		SpreadsheetName:  valueOrDefault(os.Getenv("SPREADSHEET_NAME"), "CodeKraft - Leads"),
		WorksheetName:    valueOrDefault(os.Getenv("WORKSHEET_NAME"), "Businesses"),
		CSVPath:          valueOrDefault(os.Getenv("CSV_PATH"), "leads.csv"),
		SettleInterval:   parseDurationEnv("SETTLE_INTERVAL_MS", 4000),
		BackoffInterval:  parseDurationEnv("BACKOFF_INTERVAL_MS", 10000),
		BackoffThreshold: parseIntEnv("BACKOFF_THRESHOLD", 5),
		DetailWait:       parseDurationEnv("DETAIL_WAIT_MS", 15000),
		ResultsWait:      parseDurationEnv("RESULTS_WAIT_MS", 15000),
		AppendsPerMinute: parseIntEnv("APPENDS_PER_MINUTE", 50),
		LogLevel:         valueOrDefault(os.Getenv("LOG_LEVEL"), "info"),
		LogFile:          strings.TrimSpace(os.Getenv("LOG_FILE")),
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.BackoffThreshold <= 0 {
		return Config{}, fmt.Errorf("backoff_threshold must be positive, got %d", cfg.BackoffThreshold)
	}
	return cfg, nil
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func parseBoolEnv(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func parseDurationEnv(key string, defaultMs int) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return time.Duration(defaultMs) * time.Millisecond
	}
	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return time.Duration(defaultMs) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func parseIntEnv(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
