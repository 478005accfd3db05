package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"glance/internal/metrics"
	"glance/internal/watcher"
)

// NewWatchCommand creates the watch command, which runs the daemon until
// SIGINT or SIGTERM.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	var metricsPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch directories and record new files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, metricsPath)
		},
	}

	cmd.Flags().StringVar(&metricsPath, "metrics", "", "write loop counters to this file on exit (Prometheus text for .prom, JSON otherwise)")
	return cmd
}

func runWatch(ctx context.Context, opts *RootOptions, metricsPath string) error {
	logger := opts.logger.WithComponent("watcher")
	dir := opts.coordDir()

	if pid, err := dir.RunningPID(); err == nil {
		return fmt.Errorf("watcher already running (pid %d)", pid)
	}
	if err := dir.Ensure(); err != nil {
		return err
	}

	store, closeStore, err := opts.openStore(dir, opts.logger.WithComponent("history"))
	if err != nil {
		return err
	}
	defer closeStore()

	source, err := watcher.NewSource(opts.cfg.Backend, watcher.WithSettleInterval(opts.cfg.SettleInterval()))
	if err != nil {
		return err
	}

	counters := metrics.NewWatcherMetrics(nil)
	if metricsPath != "" {
		defer writeMetrics(metricsPath, counters.Registry(), logger)
	}

	daemon := watcher.New(watcher.Config{
		Dirs:           opts.cfg.WatchDirs,
		IgnoreSuffixes: opts.cfg.IgnoreSuffixes,
		MaxEntries:     opts.cfg.HistorySize,
		DismissAfter:   opts.cfg.DismissTimeout(),
		PollInterval:   opts.cfg.PollInterval(),
	}, source, store, dir, opts.notifier(logger),
		watcher.WithLogger(logger),
		watcher.WithClock(opts.now),
		watcher.WithMetrics(counters),
	)

	logger.Info("watcher starting", "pid", os.Getpid(), "runtime_dir", dir.Root(), "storage", opts.cfg.Storage.Backend)
	return daemon.Run(ctx)
}

func writeMetrics(path string, registry *metrics.Registry, logger *slog.Logger) {
	f, err := os.Create(path)
	if err != nil {
		logger.Warn("write metrics", "path", path, "error", err)
		return
	}
	defer f.Close()

	write := registry.WriteJSON
	if filepath.Ext(path) == ".prom" {
		write = registry.WritePrometheus
	}
	if err := write(f); err != nil {
		logger.Warn("write metrics", "path", path, "error", err)
	}
}
