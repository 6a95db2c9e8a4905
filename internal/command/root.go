// Package command wires the vince services into a cobra command tree
package command

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deadcoast/vince/internal/platform"
)

const AppName = "vince"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

// Exit codes
const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitPartial = 2
)

// newHandler selects the platform handler; tests replace it with a fake
var newHandler = platform.DetectCurrent

// exitError carries a non-default exit code for an otherwise handled outcome
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func partialFailure(msg string) error {
	return &exitError{code: ExitPartial, msg: msg}
}

// ExitCode maps an error returned by Execute to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitFatal
}

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Keep file-extension defaults in sync with the operating system",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().String("data-dir", "", "directory holding defaults.json and offers.json")

	cmd.AddCommand(
		NewAddCmd(),
		NewActivateCmd(),
		NewRemoveCmd(),
		NewListCmd(),
		NewCheckCmd(),
		NewSyncCmd(),
		NewOfferCmd(),
		NewDoctorCmd(),
		NewServeCmd(),
	)

	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd(Version)
	err := cmd.ExecuteContext(ctx)
	if err != nil && ExitCode(err) == ExitFatal {
		writeCommandError(cmd, err)
	}
	return err
}
