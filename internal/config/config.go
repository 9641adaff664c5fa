// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Data     DataConfig
	Matching MatchingConfig
	Scraper  ScraperConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // "pretty", "json", or "" for auto-detect
}

// DatabaseConfig holds SQLite database configuration.
type DatabaseConfig struct {
	Path string
}

// DataConfig holds data directory configuration.
type DataConfig struct {
	// BasePath is the root directory for application data (default: ~/.atlas).
	BasePath string
	// OrganizationsPath is the YAML seed listing source organizations
	// (default: {data}/organizations.yaml).
	OrganizationsPath string
	// CachePages stores downloaded school-list pages under {data}/pages
	// so a run can be repeated without refetching (default: true).
	CachePages bool
}

// MatchingConfig holds record-linkage configuration.
type MatchingConfig struct {
	// MissingNameSubstitution replaces an absent school name during
	// normalization. Records carrying it compare as effectively null.
	MissingNameSubstitution string
	// MaxComparisonRows caps the attribute rows shown to the reviewer.
	MaxComparisonRows int
}

// ScraperConfig holds fetch configuration.
type ScraperConfig struct {
	// Workers is the maximum number of organizations fetched concurrently.
	Workers int
	// RequestsPerSecond and Burst bound the per-host request rate.
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// Options carries command-line flag values into Load. Empty strings mean
// "not set on the command line"; cobra commands populate this from their
// registered flags.
type Options struct {
	Environment       string
	LogLevel          string
	LogFormat         string
	DatabasePath      string
	DataPath          string
	OrganizationsPath string
	CachePages        string
	Workers           string
	RequestsPerSecond string
	Burst             string
	UserAgent         string
	EnvFile           string
}

// Load builds configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables (ATLAS_ prefix).
// 3. .env file.
// 4. Default values (lowest priority).
func Load(opts Options) (*Config, error) {
	// Load .env file if it exists (silently ignore if not found).
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	_ = loadEnvFile(envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(opts.Environment, "ATLAS_ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(opts.LogLevel, "ATLAS_LOG_LEVEL", "info"),
			Format: getConfigValue(opts.LogFormat, "ATLAS_LOG_FORMAT", ""),
		},
		Database: DatabaseConfig{
			Path: getConfigValue(opts.DatabasePath, "ATLAS_DB_PATH", ""),
		},
		Data: DataConfig{
			BasePath:          getConfigValue(opts.DataPath, "ATLAS_DATA_PATH", ""),
			OrganizationsPath: getConfigValue(opts.OrganizationsPath, "ATLAS_ORGANIZATIONS_PATH", ""),
			CachePages:        getBoolConfigValue(opts.CachePages, "ATLAS_CACHE_PAGES", true),
		},
		Matching: MatchingConfig{
			MissingNameSubstitution: getConfigValue("", "ATLAS_MISSING_NAME_SUBSTITUTION", "MISSING_NAME"),
			MaxComparisonRows:       getIntConfigValue("", "ATLAS_MAX_COMPARISON_ROWS", 25),
		},
		Scraper: ScraperConfig{
			Workers:           getIntConfigValue(opts.Workers, "ATLAS_WORKERS", 4),
			RequestsPerSecond: getFloatConfigValue(opts.RequestsPerSecond, "ATLAS_REQUESTS_PER_SECOND", 2),
			Burst:             getIntConfigValue(opts.Burst, "ATLAS_BURST", 4),
			UserAgent:         getConfigValue(opts.UserAgent, "ATLAS_USER_AGENT", "schoolatlas/1.0"),
		},
	}

	// Expand the data directory (defaults to ~/.atlas).
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Paths derived from the data directory when not set explicitly.
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.Data.BasePath, "atlas.db")
	}
	if cfg.Data.OrganizationsPath == "" {
		cfg.Data.OrganizationsPath = filepath.Join(cfg.Data.BasePath, "organizations.yaml")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ATLAS_ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "" && c.Logger.Format != "pretty" && c.Logger.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be pretty or json)", c.Logger.Format)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Scraper.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Scraper.Workers)
	}
	if c.Scraper.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive, got %g", c.Scraper.RequestsPerSecond)
	}
	if c.Scraper.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", c.Scraper.Burst)
	}

	if c.Matching.MaxComparisonRows < 1 {
		return fmt.Errorf("max comparison rows must be at least 1, got %d", c.Matching.MaxComparisonRows)
	}

	return nil
}

// PagesPath is the directory for cached school-list pages.
func (c *Config) PagesPath() string {
	return filepath.Join(c.Data.BasePath, "pages")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, ".atlas")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Strip surrounding quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already present in the environment.
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}
