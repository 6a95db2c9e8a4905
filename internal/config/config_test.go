package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadcoast/vince/internal/domain"
)

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, filepath.Join(home, ".vince"), cfg.Storage.DataDir)
	assert.Equal(t, 10*time.Second, cfg.Storage.LockTimeout)
	assert.True(t, cfg.Storage.SchemaValidation)
	assert.False(t, cfg.Storage.BackupOnSave)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 7420, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10, cfg.Server.RateLimitRPS)
	assert.Equal(t, 20, cfg.Server.RateLimitBurst)
	assert.Empty(t, cfg.Security.CORSOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1:7420", cfg.Addr())
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()

	t.Setenv("VINCE_DATA_DIR", dir)
	t.Setenv("VINCE_LOCK_TIMEOUT", "250ms")
	t.Setenv("VINCE_SCHEMA_VALIDATION", "false")
	t.Setenv("VINCE_BACKUP_ON_SAVE", "true")
	t.Setenv("VINCE_SERVER_PORT", "9090")
	t.Setenv("VINCE_LOG_LEVEL", "debug")
	t.Setenv("VINCE_LOG_FORMAT", "json")
	t.Setenv("VINCE_CORS_ORIGINS", "https://example.com,https://test.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Storage.DataDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Storage.LockTimeout)
	assert.False(t, cfg.Storage.SchemaValidation)
	assert.True(t, cfg.Storage.BackupOnSave)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, []string{"https://example.com", "https://test.com"}, cfg.Security.CORSOrigins)

	store := cfg.StoreConfig()
	assert.Equal(t, dir, store.DataDir)
	assert.False(t, store.SchemaValidation)
	assert.True(t, store.BackupOnSave)
	assert.Equal(t, 250*time.Millisecond, store.LockTimeout)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "vince.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
storage:
  data_dir: `+dir+`/data
  lock_timeout: 2s
server:
  port: 8000
logging:
  level: warn
`), 0o644))

	t.Setenv("VINCE_CONFIG_FILE", file)
	t.Setenv("VINCE_SERVER_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir+"/data", cfg.Storage.DataDir)
	assert.Equal(t, 2*time.Second, cfg.Storage.LockTimeout)
	assert.Equal(t, 8000, cfg.Server.Port, "overlay wins over environment")
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format, "unset keys keep their defaults")
	assert.Equal(t, file, cfg.File)
}

func TestLoad_YAMLUnknownKeyRejected(t *testing.T) {
	clearEnvVars(t)
	file := filepath.Join(t.TempDir(), "vince.yaml")
	require.NoError(t, os.WriteFile(file, []byte("storage:\n  colour: blue\n"), 0o644))
	t.Setenv("VINCE_CONFIG_FILE", file)

	_, err := Load()
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfig(err))
	assert.Contains(t, err.Error(), "colour")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("VINCE_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfig(err))
}

func TestLoad_InvalidEnvironmentValue(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("VINCE_DATA_DIR", t.TempDir())
	t.Setenv("VINCE_LOCK_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfig(err))
}

func TestValidate_LockTimeoutMinimum(t *testing.T) {
	cfg := createValidConfig(t.TempDir())
	cfg.Storage.LockTimeout = 50 * time.Millisecond

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfig(err))
	assert.Contains(t, err.Error(), "LockTimeout must be at least 100ms")

	cfg.Storage.LockTimeout = 100 * time.Millisecond
	assert.NoError(t, Validate(cfg))
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := createValidConfig(t.TempDir())
	cfg.Logging.Level = "invalid"

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Level must be one of: debug info warn error")
}

func TestValidate_InvalidCORSOrigins(t *testing.T) {
	cfg := createValidConfig(t.TempDir())
	cfg.Security.CORSOrigins = []string{"invalid-origin"}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CORSOrigins contains invalid origin format")
}

func TestValidate_ValidCORSOrigins(t *testing.T) {
	cfg := createValidConfig(t.TempDir())
	cfg.Security.CORSOrigins = []string{"*", "https://example.com", "http://localhost:3000"}

	assert.NoError(t, Validate(cfg))
}

func TestValidate_InvalidPortRange(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero", 0},
		{"negative", -1},
		{"too high", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createValidConfig(t.TempDir())
			cfg.Server.Port = tt.port
			err := Validate(cfg)
			assert.Error(t, err)
			assert.True(t, domain.IsInvalidConfig(err))
		})
	}
}

func TestValidate_RateLimitBurst(t *testing.T) {
	cfg := createValidConfig(t.TempDir())
	cfg.Server.RateLimitRPS = 5
	cfg.Server.RateLimitBurst = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfig(err))

	cfg.Server.RateLimitRPS = 0
	assert.NoError(t, Validate(cfg))
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := createValidConfig(t.TempDir())
	cfg.Storage.DataDir = " "

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfig(err))
}

func TestEnsureDirectories(t *testing.T) {
	cfg := createValidConfig(t.TempDir())

	require.NoError(t, cfg.EnsureDirectories())

	_, err := os.Stat(cfg.Storage.DataDir)
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"DATA_DIR", "LOCK_TIMEOUT", "SCHEMA_VALIDATION", "BACKUP_ON_SAVE",
		"SERVER_HOST", "SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
		"SERVER_RATE_LIMIT_RPS", "SERVER_RATE_LIMIT_BURST",
		"CORS_ORIGINS", "LOG_LEVEL", "LOG_FORMAT", "CONFIG_FILE",
	} {
		t.Setenv(EnvPrefix+v, "")
		os.Unsetenv(EnvPrefix + v)
	}
}

func createValidConfig(tempDir string) *Config {
	cfg := &Config{}
	cfg.Storage.DataDir = tempDir + "/data"
	cfg.Storage.LockTimeout = 10 * time.Second
	cfg.Storage.SchemaValidation = true
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 7420
	cfg.Server.ReadTimeout = time.Second
	cfg.Server.WriteTimeout = time.Second
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	return cfg
}
