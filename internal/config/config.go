package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/deadcoast/vince/internal/domain"
	"github.com/deadcoast/vince/internal/storage"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "VINCE_"

// Config holds all configuration for one vince invocation
type Config struct {
	Storage struct {
		// DataDir defaults to $HOME/.vince
		DataDir          string        `env:"DATA_DIR" yaml:"data_dir"`
		LockTimeout      time.Duration `env:"LOCK_TIMEOUT" envDefault:"10s" yaml:"lock_timeout" validate:"min=100ms"`
		SchemaValidation bool          `env:"SCHEMA_VALIDATION" envDefault:"true" yaml:"schema_validation"`
		BackupOnSave     bool          `env:"BACKUP_ON_SAVE" envDefault:"false" yaml:"backup_on_save"`
	} `yaml:"storage"`

	Server struct {
		Host         string        `env:"SERVER_HOST" envDefault:"127.0.0.1" yaml:"host" validate:"required"`
		Port         int           `env:"SERVER_PORT" envDefault:"7420" yaml:"port" validate:"min=1,max=65535"`
		ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s" yaml:"read_timeout"`
		WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"5s" yaml:"write_timeout"`
		// RateLimitRPS of zero disables rate limiting
		RateLimitRPS   int `env:"SERVER_RATE_LIMIT_RPS" envDefault:"10" yaml:"rate_limit_rps" validate:"min=0"`
		RateLimitBurst int `env:"SERVER_RATE_LIMIT_BURST" envDefault:"20" yaml:"rate_limit_burst" validate:"min=0"`
	} `yaml:"server"`

	Security struct {
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," yaml:"cors_origins" validate:"cors_origins"`
	} `yaml:"security"`

	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info" yaml:"level" validate:"oneof=debug info warn error"`
		Format string `env:"LOG_FORMAT" envDefault:"text" yaml:"format" validate:"oneof=json text"`
	} `yaml:"logging"`

	// File is the YAML overlay that was applied, if any
	File string `env:"CONFIG_FILE" yaml:"-"`
}

// Load reads .env, the VINCE_ environment, then the optional YAML overlay
// named by VINCE_CONFIG_FILE. Values from the overlay win over the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, invalid("failed to parse environment variables", err)
	}

	if cfg.File != "" {
		if err := applyFile(cfg, cfg.File); err != nil {
			return nil, err
		}
	}

	if cfg.Storage.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, invalid("cannot determine home directory for data_dir", err)
		}
		cfg.Storage.DataDir = filepath.Join(home, ".vince")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFile overlays the YAML document at path onto cfg. Unknown keys are
// rejected.
func applyFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return invalid(fmt.Sprintf("cannot open config file %s", path), err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return invalid(fmt.Sprintf("invalid config file %s", path), err)
	}
	return nil
}

// Validate validates the configuration using struct tags
func Validate(cfg *Config) error {
	validator := validator.New()

	if err := validator.RegisterValidation("cors_origins", validateCORSOrigins); err != nil {
		return fmt.Errorf("failed to register cors_origins validation: %w", err)
	}

	if err := validator.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCORSOrigins validates CORS origins format
func validateCORSOrigins(fl validator.FieldLevel) bool {
	origins := fl.Field().Interface().([]string)
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return false
		}
	}
	return true
}

// validateCustomRules performs additional validation beyond struct tags
func validateCustomRules(cfg *Config) error {
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		return invalidOption("data_dir", "data directory cannot be empty")
	}
	if cfg.Server.ReadTimeout < time.Millisecond {
		return invalidOption("server.read_timeout", "read timeout must be at least 1ms")
	}
	if cfg.Server.WriteTimeout < time.Millisecond {
		return invalidOption("server.write_timeout", "write timeout must be at least 1ms")
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst < 1 {
		return invalidOption("server.rate_limit_burst", "burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

// EnsureDirectories creates the data directory
func (cfg *Config) EnsureDirectories() error {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", cfg.Storage.DataDir, err)
	}
	return nil
}

// StoreConfig returns the storage configuration
func (cfg *Config) StoreConfig() storage.StoreConfig {
	return storage.StoreConfig{
		DataDir:          cfg.Storage.DataDir,
		SchemaValidation: cfg.Storage.SchemaValidation,
		BackupOnSave:     cfg.Storage.BackupOnSave,
		LockTimeout:      cfg.Storage.LockTimeout,
	}
}

// Addr returns the status API listen address
func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return invalid("configuration validation failed", err)
	}

	var messages, fields []string
	for _, e := range validationErrors {
		fields = append(fields, e.Namespace())
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
		case "cors_origins":
			messages = append(messages, fmt.Sprintf("%s contains invalid origin format", e.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag()))
		}
	}
	return domain.NewAppError(
		domain.ErrInvalidConfigOption,
		"validation errors: "+strings.Join(messages, "; "),
		map[string]any{"fields": fields},
	)
}

func invalid(message string, cause error) error {
	return domain.NewAppErrorWithCause(domain.ErrInvalidConfigOption, message, cause, nil)
}

func invalidOption(option, message string) error {
	return domain.NewAppError(domain.ErrInvalidConfigOption, message, map[string]any{"option": option})
}
