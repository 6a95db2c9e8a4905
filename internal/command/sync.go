package command

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deadcoast/vince/internal/reconcile"
)

func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply recorded defaults to the OS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			force, _ := cmd.Flags().GetBool("force")

			unlock, err := ctx.Store.Lock(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := unlock(); err != nil {
					log.Warn().Err(err).Msg("Failed to release store lock")
				}
			}()

			doc, err := ctx.Store.LoadDefaults(cmd.Context())
			if err != nil {
				return err
			}

			engine := reconcile.NewEngine(ctx.Handler, ctx.Store)
			report, err := engine.Sync(cmd.Context(), doc, reconcile.Options{DryRun: dryRun, Force: force})
			if report != nil {
				if werr := printReport(cmd, ctx.JSONMode, report); werr != nil && err == nil {
					err = werr
				}
			}
			if err != nil {
				return err
			}

			if report.HasFailures() {
				return partialFailure(fmt.Sprintf("%d defaults failed to sync", len(report.Errors)))
			}
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "report what would change without touching the OS or the store")
	cmd.Flags().Bool("force", false, "re-apply entries already marked as synced")
	return cmd
}

func printReport(cmd *cobra.Command, jsonMode bool, report *reconcile.Report) error {
	if jsonMode {
		return writeJSON(cmd, report)
	}

	out := cmd.OutOrStdout()
	if report.DryRun {
		fmt.Fprintf(out, "Dry run: %d would sync, %d would be removed, %d already synced\n",
			len(report.WouldSync), len(report.WouldRemove), len(report.Skipped))
	} else {
		fmt.Fprintf(out, "%d synced, %d removed, %d skipped, %d failed\n",
			len(report.Succeeded), len(report.Removed), len(report.Skipped), len(report.Failed))
	}
	for _, e := range report.Errors {
		fmt.Fprintf(out, "  %s (%s): %s\n", e.Extension, e.EntryID, e.Message)
	}
	return nil
}
