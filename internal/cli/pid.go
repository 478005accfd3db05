package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPIDCommand creates the pid command. It prints the watcher PID and fails
// when no live watcher owns the PID file.
func NewPIDCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pid",
		Short: "Print the running watcher's PID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := opts.coordDir().RunningPID()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pid)
			return err
		},
	}
}
