package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"glance/internal/history"
)

// ErrNothingSelected is returned by copy-path when no usable entry exists.
var ErrNothingSelected = errors.New("cli: no current file")

// NewHistoryCommand creates the history command, which prints the persisted
// history document.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var active bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the recent-file history as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := opts.readState(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !active {
				data, err := history.Encode(state)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			entries := state.Active(opts.cfg.DismissTimeout(), opts.now())
			if entries == nil {
				entries = []history.IndexedEntry{}
			}
			return json.NewEncoder(out).Encode(entries)
		},
	}

	cmd.Flags().BoolVar(&active, "active", false, "only entries that have not expired")
	return cmd
}

// NewCopyPathCommand creates the copy-path command. It prints the selected
// entry's path when the entry is still fresh or was scrolled to by hand, and
// the file still exists. Clipboard handling is left to the caller, e.g.
// `glance copy-path | wl-copy`.
func NewCopyPathCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "copy-path",
		Short: "Print the path of the selected file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := opts.readState(cmd)
			if err != nil {
				return err
			}

			entry, ok := state.Current()
			if !ok {
				return ErrNothingSelected
			}
			scrolled := state.Selected != 0
			if !scrolled && entry.IsExpired(opts.cfg.DismissTimeout(), opts.now()) {
				return ErrNothingSelected
			}
			if _, err := os.Stat(entry.Path); err != nil {
				return fmt.Errorf("%w: %s is gone", ErrNothingSelected, entry.Path)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), entry.Path)
			return err
		},
	}
}

func (o *RootOptions) readState(cmd *cobra.Command) (history.State, error) {
	store, closeStore, err := o.openStore(o.coordDir(), o.logger.WithComponent("history"))
	if err != nil {
		return history.State{}, err
	}
	defer closeStore()
	return store.Read(cmd.Context())
}
