package command

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deadcoast/vince/internal/check"
	"github.com/deadcoast/vince/internal/domain"
)

type listedEntry struct {
	domain.DefaultEntry
	Check *check.Result `json:"check,omitempty"`
}

func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}
			withCheck, _ := cmd.Flags().GetBool("check")

			listing, err := ctx.Service.List(cmd.Context())
			if err != nil {
				return err
			}

			byID := make(map[string]check.Result)
			if withCheck {
				for _, r := range check.NewChecker(ctx.Handler).Check(cmd.Context(), listing.Defaults.Defaults) {
					byID[r.EntryID] = r
				}
			}

			entries := make([]listedEntry, 0, len(listing.Defaults.Defaults))
			for _, entry := range listing.Defaults.Defaults {
				item := listedEntry{DefaultEntry: entry}
				if r, ok := byID[entry.ID]; ok {
					item.Check = &r
				}
				entries = append(entries, item)
			}

			if ctx.JSONMode {
				return writeJSON(cmd, map[string]any{"defaults": entries})
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No defaults recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := "ID\tEXTENSION\tAPPLICATION\tSTATE\tSYNCED"
			if withCheck {
				header += "\tCHECK"
			}
			fmt.Fprintln(w, header)
			for _, e := range entries {
				line := fmt.Sprintf("%s\t%s\t%s\t%s\t%t", e.ID, e.Extension, e.ApplicationPath, e.State, e.OSSynced)
				if withCheck {
					status := "-"
					if e.Check != nil {
						status = string(e.Check.Status)
					}
					line += "\t" + status
				}
				fmt.Fprintln(w, line)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Bool("check", false, "compare active entries with the OS")
	return cmd
}
