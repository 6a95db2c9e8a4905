package command

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/deadcoast/vince/internal/domain"
	"github.com/deadcoast/vince/internal/health"
)

func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report store, platform and consistency health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}

			report := health.NewSystemHealthChecker(ctx.Store, ctx.Handler, 0).CheckHealth(cmd.Context())

			if ctx.JSONMode {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				names := make([]string, 0, len(report.Components))
				for name := range report.Components {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					component := report.Components[name]
					line := fmt.Sprintf("%-12s %s", name, component.Status)
					if component.Message != "" {
						line += ": " + component.Message
					}
					fmt.Fprintln(out, line)
				}
				fmt.Fprintf(out, "overall      %s\n", report.Status)
			}

			switch report.Status {
			case domain.HealthStatusUnhealthy:
				return &exitError{code: ExitFatal, msg: "system is unhealthy"}
			case domain.HealthStatusDegraded:
				return partialFailure("system is degraded")
			}
			return nil
		},
	}
}
