package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deadcoast/vince/internal/domain"
)

func writeCommandError(cmd *cobra.Command, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())

	switch {
	case domain.IsDataCorrupted(err):
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: the document was left untouched. Fix or move it aside, then retry.")
	case domain.IsUnsupportedSchema(err):
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: this document was written by a newer vince.")
	case domain.CodeOf(err) == domain.ErrLockTimeout:
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: another vince process holds the lock.")
	}
}
