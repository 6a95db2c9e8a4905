package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deadcoast/vince/internal/check"
)

func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare active defaults with the OS without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}

			defaults, err := ctx.Store.LoadDefaults(cmd.Context())
			if err != nil {
				return err
			}

			results := check.NewChecker(ctx.Handler).Check(cmd.Context(), defaults.Defaults)
			summary := check.Summarize(results)

			if ctx.JSONMode {
				if err := writeJSON(cmd, map[string]any{"results": results, "summary": summary}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, r := range results {
					switch r.Status {
					case check.StatusConsistent:
						fmt.Fprintf(out, "ok        %s -> %s\n", r.Extension, r.ApplicationPath)
					case check.StatusMismatch:
						fmt.Fprintf(out, "mismatch  %s -> %s (OS: %s)\n", r.Extension, r.ApplicationPath, orNone(r.OSDefault))
					default:
						fmt.Fprintf(out, "unknown   %s -> %s (%s)\n", r.Extension, r.ApplicationPath, r.Message)
					}
				}
				fmt.Fprintf(out, "%d checked: %d consistent, %d mismatch, %d unknown\n",
					summary.Total, summary.Consistent, summary.Mismatch, summary.Unknown)
			}

			if summary.Mismatch+summary.Unknown > 0 {
				return partialFailure(fmt.Sprintf("%d of %d defaults are not consistent", summary.Mismatch+summary.Unknown, summary.Total))
			}
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
