package command

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewOfferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offer",
		Short: "Manage named offers that point at a default",
	}

	cmd.AddCommand(
		newOfferCreateCmd(),
		newOfferRejectCmd(),
		newOfferUseCmd(),
		newOfferListCmd(),
	)
	return cmd
}

func newOfferCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <offer-id> <default-id>",
		Short: "Create an offer for a default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")

			offer, err := ctx.Service.CreateOffer(cmd.Context(), args[0], args[1], description)
			if err != nil {
				return err
			}
			if ctx.JSONMode {
				return writeJSON(cmd, offer)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Offer %s created for %s\n", offer.OfferID, offer.DefaultID)
			return nil
		},
	}
	cmd.Flags().String("description", "", "free-form description")
	return cmd
}

func newOfferRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <offer-id>",
		Short: "Reject an offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}

			offer, err := ctx.Service.RejectOffer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.JSONMode {
				return writeJSON(cmd, offer)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Offer %s rejected\n", offer.OfferID)
			return nil
		},
	}
}

func newOfferUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <offer-id>",
		Short: "Mark an offer as used and show its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}

			offer, entry, err := ctx.Service.UseOffer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.JSONMode {
				return writeJSON(cmd, map[string]any{"offer": offer, "default": entry})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Offer %s used: %s -> %s (%s)\n", offer.OfferID, entry.Extension, entry.ApplicationPath, entry.State)
			return nil
		},
	}
}

func newOfferListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return err
			}

			listing, err := ctx.Service.List(cmd.Context())
			if err != nil {
				return err
			}
			offers := listing.Offers.Offers
			if ctx.JSONMode {
				return writeJSON(cmd, map[string]any{"offers": offers})
			}

			if len(offers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No offers recorded")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OFFER\tDEFAULT\tSTATE\tAUTO\tDESCRIPTION")
			for _, o := range offers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", o.OfferID, o.DefaultID, o.State, o.AutoCreated, o.Description)
			}
			return w.Flush()
		},
	}
}
