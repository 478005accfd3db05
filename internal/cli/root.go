// Package cli wires the glance commands onto the internal packages.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"glance/internal/config"
	"glance/internal/coord"
	"glance/internal/history"
	"glance/internal/logging"
	"glance/internal/notify"
)

// RootOptions holds global flags and the state shared by subcommands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	// Runner executes pkill; tests replace it.
	Runner notify.Runner
	// Now is the clock used for expiry decisions.
	Now func() time.Time

	cfg    *config.Config
	logger *logging.Logger
}

// NewRootCommand creates the root command for the glance CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Runner: notify.ExecRunner, Now: time.Now})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "glance",
		Short:         "Recent-file watcher for status bar widgets",
		Long:          "glance watches download and screenshot directories and keeps a short history of new files for a status bar widget.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logger != nil {
				return opts.logger.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/glance/config.toml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewScrollCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewCopyPathCommand(opts))
	cmd.AddCommand(NewPIDCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

func (o *RootOptions) load(stderr io.Writer) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.Verbose {
		cfg.Logging.Level = "debug"
	}
	o.cfg = cfg

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return err
	}
	logger, err := logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   config.ExpandPath(cfg.Logging.FilePath),
		MaxSize:    int64(cfg.Logging.MaxSizeMB),
		MaxAge:     cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
		Component:  "glance",
		Stderr:     stderr,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	o.logger = logger
	return nil
}

func (o *RootOptions) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// coordDir returns the coordination directory, honouring storage.runtime_dir.
func (o *RootOptions) coordDir() *coord.Dir {
	if dir := o.cfg.Storage.RuntimeDir; dir != "" {
		return coord.New(config.ExpandPath(dir))
	}
	return coord.Default()
}

// openStore opens the configured history backend. The returned func releases
// it.
func (o *RootOptions) openStore(dir *coord.Dir, logger *slog.Logger) (history.Store, func() error, error) {
	opts := []history.Option{
		history.WithClampOnLoad(o.cfg.Storage.ClampOnLoad),
		history.WithAtomicWrite(o.cfg.Storage.AtomicWrite),
		history.WithLogger(logger),
	}

	switch o.cfg.Storage.Backend {
	case "sqlite":
		if err := dir.Ensure(); err != nil {
			return nil, nil, err
		}
		store, err := history.OpenSQLite(dir.DatabasePath(), o.cfg.BusyTimeout(), opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store := history.NewFileStore(dir.StatePath(), opts...)
		return store, func() error { return nil }, nil
	}
}

// notifier builds the outbound notifier chain from config.
func (o *RootOptions) notifier(logger *slog.Logger) notify.Notifier {
	chain := notify.Multi{
		notify.NewSignalNotifier(o.cfg.WidgetProcess, o.cfg.SignalNumber, o.Runner, logger),
	}
	if o.cfg.Notify.Desktop {
		chain = append(chain, notify.NewDesktopNotifier(o.cfg.Notify.AppName, o.cfg.DismissTimeout(), logger))
	}
	return chain
}
