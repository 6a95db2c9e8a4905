package command

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deadcoast/vince/internal/api"
	"github.com/deadcoast/vince/internal/check"
	"github.com/deadcoast/vince/internal/health"
)

const healthCacheTTL = 5 * time.Second

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}
			cfg := ctx.Config

			router := api.SetupRouter(api.RouterDependencies{
				Documents:     ctx.Service,
				Checker:       check.NewChecker(ctx.Handler),
				HealthChecker: health.NewSystemHealthChecker(ctx.Store, ctx.Handler, healthCacheTTL),
			}, api.RouterConfig{
				CORSOrigins:    cfg.Security.CORSOrigins,
				RateLimitRPS:   cfg.Server.RateLimitRPS,
				RateLimitBurst: cfg.Server.RateLimitBurst,
				ReadTimeout:    cfg.Server.ReadTimeout,
				WriteTimeout:   cfg.Server.WriteTimeout,
			})
			defer router.Cleanup()

			go func() {
				<-cmd.Context().Done()
				log.Info().Msg("Received shutdown signal, initiating graceful shutdown")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := router.App.ShutdownWithContext(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Error during HTTP server shutdown")
				}
			}()

			log.Info().
				Str("addr", cfg.Addr()).
				Str("handler", ctx.Handler.Name()).
				Str("data_dir", cfg.Storage.DataDir).
				Msg("Starting status API")

			return router.App.Listen(cfg.Addr())
		},
	}
}
