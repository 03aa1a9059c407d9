package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Storage: StorageConfig{
			BasePath:    t.TempDir(),
			SidecarPath: t.TempDir(),
		},
		Server: ServerConfig{Host: "127.0.0.1", Port: "8573"},
		Anki: AnkiConfig{
			URL:       "http://127.0.0.1:8765",
			Version:   6,
			DeckName:  "Polar",
			ModelName: "Cloze",
			TagPrefix: "anki::",
			Timeout:   10 * time.Second,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig(t).Validate())
}

func TestValidate_BadEnvironment(t *testing.T) {
	cfg := validConfig(t)
	cfg.App.Environment = "testing"
	assert.ErrorContains(t, cfg.Validate(), "invalid environment")
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := validConfig(t)
	cfg.Logger.Level = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "invalid log level")
}

func TestValidate_MissingAnkiURL(t *testing.T) {
	cfg := validConfig(t)
	cfg.Anki.URL = ""
	assert.ErrorContains(t, cfg.Validate(), "AnkiConnect URL")
}

func TestValidate_BadAnkiTimeout(t *testing.T) {
	cfg := validConfig(t)
	cfg.Anki.Timeout = 0
	assert.ErrorContains(t, cfg.Validate(), "timeout")
}

func TestExpandStoragePaths_Defaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.expandStoragePaths())

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Dipole"), cfg.Storage.BasePath)
	assert.Equal(t, filepath.Join(home, "Dipole", "sidecar"), cfg.Storage.SidecarPath)
}

func TestExpandPath_Tilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/dipole-data", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "dipole-data"), got)
}

func TestDerivedPaths(t *testing.T) {
	cfg := validConfig(t)
	assert.Equal(t, filepath.Join(cfg.Storage.BasePath, "db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join(cfg.Storage.BasePath, "search.bleve"), cfg.SearchIndexPath())
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("DIPOLE_TEST_KEY", "from-env")

	// Flag wins over env.
	assert.Equal(t, "from-flag", getConfigValue("from-flag", "DIPOLE_TEST_KEY", "default"))
	// Env wins over default.
	assert.Equal(t, "from-env", getConfigValue("", "DIPOLE_TEST_KEY", "default"))
	// Default when nothing is set.
	assert.Equal(t, "default", getConfigValue("", "DIPOLE_TEST_KEY_UNSET", "default"))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment\nDIPOLE_ENVFILE_KEY=quoted\n\nDIPOLE_ENVFILE_OTHER=\"value\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	t.Setenv("DIPOLE_ENVFILE_KEY", "")
	os.Unsetenv("DIPOLE_ENVFILE_KEY")
	t.Setenv("DIPOLE_ENVFILE_OTHER", "")
	os.Unsetenv("DIPOLE_ENVFILE_OTHER")

	require.NoError(t, loadEnvFile(envPath))
	assert.Equal(t, "quoted", os.Getenv("DIPOLE_ENVFILE_KEY"))
	assert.Equal(t, "value", os.Getenv("DIPOLE_ENVFILE_OTHER"))
}
