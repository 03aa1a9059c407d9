// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Anki    AnkiConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds local data storage configuration.
type StorageConfig struct {
	// BasePath is the directory holding the database, search index,
	// and sidecar exports. Defaults to ~/Dipole.
	BasePath string
	// SidecarPath is the directory watched for sidecar JSON files.
	// Defaults to {base}/sidecar.
	SidecarPath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Name         string
	Host         string        // Bind address (default: 127.0.0.1, the server is a local companion)
	Port         string        // Server port (default: 8573)
	UIOrigin     string        // Allowed CORS origin for the reader UI
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// AnkiConfig holds AnkiConnect client configuration.
type AnkiConfig struct {
	// URL of the AnkiConnect endpoint.
	URL string
	// Version of the AnkiConnect API protocol.
	Version int
	// DeckName is the Anki deck notes are created in.
	DeckName string
	// ModelName is the Anki note model used for created notes.
	ModelName string
	// TagPrefix marks book tags destined for Anki; the prefix is stripped
	// before submission (e.g. "anki::vocab" becomes "vocab").
	TagPrefix string
	// Timeout bounds every AnkiConnect request.
	Timeout time.Duration
	// RequestsPerSecond limits outbound request rate.
	RequestsPerSecond float64
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	basePath := flag.String("data-path", "", "Base path for local data storage")
	sidecarPath := flag.String("sidecar-path", "", "Directory for sidecar JSON files")
	serverName := flag.String("server-name", "", "Name for the server")
	serverHost := flag.String("host", "", "Bind address (default: 127.0.0.1)")
	serverPort := flag.String("port", "", "Server port (default: 8573)")
	uiOrigin := flag.String("ui-origin", "", "Allowed CORS origin for the reader UI")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// AnkiConnect flags.
	ankiURL := flag.String("anki-url", "", "AnkiConnect endpoint URL (default: http://127.0.0.1:8765)")
	ankiDeck := flag.String("anki-deck", "", "Anki deck for created notes (default: Polar)")
	ankiModel := flag.String("anki-model", "", "Anki note model for created notes (default: Cloze)")
	ankiTagPrefix := flag.String("anki-tag-prefix", "", "Book tag prefix marking Anki tags (default: anki::)")
	ankiTimeout := flag.String("anki-timeout", "", "AnkiConnect request timeout (default: 10s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			BasePath:    getConfigValue(*basePath, "DATA_PATH", ""),
			SidecarPath: getConfigValue(*sidecarPath, "SIDECAR_PATH", ""),
		},
		Server: ServerConfig{
			Name:     getConfigValue(*serverName, "SERVER_NAME", "Dipole Server"),
			Host:     getConfigValue(*serverHost, "SERVER_HOST", "127.0.0.1"),
			Port:     getConfigValue(*serverPort, "SERVER_PORT", "8573"),
			UIOrigin: getConfigValue(*uiOrigin, "UI_ORIGIN", "http://localhost:1212"),
		},
		Anki: AnkiConfig{
			URL:               getConfigValue(*ankiURL, "ANKI_URL", "http://127.0.0.1:8765"),
			Version:           getIntConfigValue("", "ANKI_VERSION", 6),
			DeckName:          getConfigValue(*ankiDeck, "ANKI_DECK", "Polar"),
			ModelName:         getConfigValue(*ankiModel, "ANKI_MODEL", "Cloze"),
			TagPrefix:         getConfigValue(*ankiTagPrefix, "ANKI_TAG_PREFIX", "anki::"),
			RequestsPerSecond: getFloatConfigValue("", "ANKI_RPS", 10),
		},
	}

	// Parse server timeouts.
	var err error
	if cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	// Parse AnkiConnect timeout.
	if cfg.Anki.Timeout, err = parseDurationValue(*ankiTimeout, "ANKI_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	// Expand storage paths.
	if err := cfg.expandStoragePaths(); err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
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

	if c.Storage.BasePath == "" {
		return errors.New("storage base path cannot be empty after expansion")
	}

	if c.Anki.URL == "" {
		return errors.New("AnkiConnect URL cannot be empty")
	}
	if c.Anki.Version <= 0 {
		return fmt.Errorf("invalid AnkiConnect version: %d", c.Anki.Version)
	}
	if c.Anki.Timeout <= 0 {
		return fmt.Errorf("invalid AnkiConnect timeout: %s", c.Anki.Timeout)
	}

	return nil
}

// DatabasePath returns the path of the embedded database directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.BasePath, "db")
}

// SearchIndexPath returns the path of the highlight search index.
func (c *Config) SearchIndexPath() string {
	return filepath.Join(c.Storage.BasePath, "search.bleve")
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

// expandStoragePaths expands ~ and makes storage paths absolute.
// BasePath defaults to ~/Dipole; SidecarPath defaults to {base}/sidecar.
func (c *Config) expandStoragePaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Storage.BasePath, filepath.Join(homeDir, "Dipole"))
	if err != nil {
		return err
	}
	c.Storage.BasePath = expanded

	expanded, err = expandPath(c.Storage.SidecarPath, filepath.Join(c.Storage.BasePath, "sidecar"))
	if err != nil {
		return err
	}
	c.Storage.SidecarPath = expanded

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

// parseDurationValue resolves a duration setting from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(strings.ReplaceAll(envKey, "_", " ")), strValue, err)
	}
	return d, nil
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
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
