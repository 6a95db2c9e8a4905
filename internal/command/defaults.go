package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deadcoast/vince/internal/service"
)

func NewAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <extension> <application>",
		Short: "Record an application as the default for an extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("name")
			pending, _ := cmd.Flags().GetBool("pending")
			replace, _ := cmd.Flags().GetBool("replace")

			result, err := ctx.Service.AddDefault(cmd.Context(), service.AddRequest{
				Extension:       args[0],
				ApplicationPath: args[1],
				ApplicationName: name,
				Activate:        !pending,
				Replace:         replace,
			})
			if err != nil {
				return err
			}

			if ctx.JSONMode {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added %s -> %s (%s, id %s)\n", result.Entry.Extension, result.Entry.ApplicationPath, result.Entry.State, result.Entry.ID)
			if result.Replaced != nil {
				fmt.Fprintf(out, "Retired %s (id %s); run sync to apply\n", result.Replaced.ApplicationPath, result.Replaced.ID)
			}
			if result.Offer != nil {
				fmt.Fprintf(out, "Offer %s created\n", result.Offer.OfferID)
			}
			return nil
		},
	}

	cmd.Flags().String("name", "", "display name (defaults to the application file name)")
	cmd.Flags().Bool("pending", false, "record without activating")
	cmd.Flags().Bool("replace", false, "retire the current active default for the extension")
	return cmd
}

func NewActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Activate a pending default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}

			entry, err := ctx.Service.Activate(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if ctx.JSONMode {
				return writeJSON(cmd, entry)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %s -> %s\n", entry.Extension, entry.ApplicationPath)
			return nil
		},
	}
}

func NewRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <extension>",
		Short: "Mark the defaults for an extension as removed",
		Long:  "Mark the defaults for an extension as removed. The OS association is unregistered on the next sync.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}

			removed, err := ctx.Service.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if ctx.JSONMode {
				return writeJSON(cmd, map[string]any{"removed": removed})
			}
			for _, entry := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s -> %s (id %s)\n", entry.Extension, entry.ApplicationPath, entry.ID)
			}
			return nil
		},
	}
}
