package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"glance/internal/config"
)

// NewConfigCommand creates the config command, which prints the effective
// configuration after file loading and GLANCE_* overrides. With --output it
// writes the configuration to a file instead, in the format implied by the
// file's extension.
func NewConfigCommand(opts *RootOptions) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" {
				if err := config.SaveConfig(opts.cfg, config.ExpandPath(output)); err != nil {
					return err
				}
				opts.logger.Info("config written", "path", output)
				return nil
			}
			if !slices.Contains(config.SupportedConfigFormats(), format) {
				return fmt.Errorf("invalid format %q: must be one of %v", format, config.SupportedConfigFormats())
			}
			data, err := config.Encode(opts.cfg, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "toml", "output format (toml|json|yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the configuration to this file")
	return cmd
}
