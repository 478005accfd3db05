package cli

import (
	"github.com/spf13/cobra"

	"glance/internal/history"
	"glance/internal/notify"
)

// NewScrollCommand creates the scroll command. "up" selects an older entry,
// "down" a newer one; any other direction leaves the selection alone but
// still refreshes the widget.
func NewScrollCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "scroll up|down",
		Short:     "Move the history selection",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(history.Up), string(history.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger.WithComponent("scroll")
			dir := opts.coordDir()

			store, closeStore, err := opts.openStore(dir, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := history.Scroll(cmd.Context(), store, history.Direction(args[0])); err != nil {
				return err
			}
			opts.notifier(logger).Notify(cmd.Context(), notify.Notification{Kind: notify.KindRefresh})
			return nil
		},
	}
}
