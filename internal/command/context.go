package command

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deadcoast/vince/internal/config"
	"github.com/deadcoast/vince/internal/platform"
	"github.com/deadcoast/vince/internal/service"
	"github.com/deadcoast/vince/internal/storage"
)

// CommandContext provides shared command resources.
type CommandContext struct {
	Config   *config.Config
	Store    *storage.Store
	Service  *service.Service
	Handler  platform.Handler
	JSONMode bool
}

// GetContext loads configuration and builds the store, service and platform
// handler for one invocation.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	jsonMode, _ := cmd.Flags().GetBool("json")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	applyLogging(cfg)

	store := storage.NewStoreWithConfig(cfg.StoreConfig())
	handler := newHandler()

	log.Debug().
		Str("data_dir", cfg.Storage.DataDir).
		Str("handler", handler.Name()).
		Bool("schema_validation", store.StructuralValidation()).
		Msg("Command context ready")

	return &CommandContext{
		Config:   cfg,
		Store:    store,
		Service:  service.New(store),
		Handler:  handler,
		JSONMode: jsonMode,
	}, nil
}

// applyLogging sets the global zerolog level and output from configuration
func applyLogging(cfg *config.Config) {
	switch cfg.Logging.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.Logging.Format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
