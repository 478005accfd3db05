// Package watcher runs the glance daemon: it turns directory notifications
// into history pushes and drives the widget's dismiss timer.
//
// The loop is single-threaded. Each iteration first fires an elapsed dismiss
// deadline, then waits on the event source for at most PollInterval, so the
// deadline is re-checked at least that often even when nothing happens on
// disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"glance/internal/config"
	"glance/internal/coord"
	"glance/internal/dedup"
	"glance/internal/history"
	"glance/internal/metrics"
	"glance/internal/notify"
)

// DefaultPollInterval bounds each wait on the event source.
const DefaultPollInterval = time.Second

// DefaultDismissAfter is how long the widget shows a new file.
const DefaultDismissAfter = 10 * time.Second

// DefaultIgnoreSuffixes mark files that are still being written.
var DefaultIgnoreSuffixes = []string{".part", ".crdownload", ".tmp"}

// Config holds the daemon settings.
type Config struct {
	// Dirs are the directories to watch. "~/" is expanded.
	Dirs []string
	// IgnoreSuffixes drop names ending with any of them.
	IgnoreSuffixes []string
	// MaxEntries bounds the history.
	MaxEntries int
	// DismissAfter is how long the widget shows a new file.
	DismissAfter time.Duration
	// PollInterval bounds each wait on the event source.
	PollInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.MaxEntries <= 0 {
		c.MaxEntries = history.DefaultMaxEntries
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DismissAfter <= 0 {
		c.DismissAfter = DefaultDismissAfter
	}
	if c.IgnoreSuffixes == nil {
		c.IgnoreSuffixes = DefaultIgnoreSuffixes
	}
}

// Daemon is the directory watcher.
type Daemon struct {
	cfg      Config
	source   Source
	store    history.Store
	coord    *coord.Dir
	notifier notify.Notifier
	seen     *dedup.Filter
	metrics  *metrics.WatcherMetrics
	logger   *slog.Logger
	now      func() time.Time

	watched   []string
	dismissAt time.Time
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the daemon logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) {
		if now != nil {
			d.now = now
		}
	}
}

// WithFilter replaces the dedup filter.
func WithFilter(f *dedup.Filter) Option {
	return func(d *Daemon) {
		if f != nil {
			d.seen = f
		}
	}
}

// WithMetrics records loop counters in m.
func WithMetrics(m *metrics.WatcherMetrics) Option {
	return func(d *Daemon) {
		if m != nil {
			d.metrics = m
		}
	}
}

// New creates a daemon. Nothing is registered until Setup or Run.
func New(cfg Config, source Source, store history.Store, dir *coord.Dir, notifier notify.Notifier, opts ...Option) *Daemon {
	cfg.setDefaults()
	d := &Daemon{
		cfg:      cfg,
		source:   source,
		store:    store,
		coord:    dir,
		notifier: notifier,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.seen == nil {
		d.seen = dedup.New(dedup.WithClock(d.now))
	}
	if d.metrics == nil {
		d.metrics = metrics.NewWatcherMetrics(nil)
	}
	if d.notifier == nil {
		d.notifier = notify.Multi{}
	}
	return d
}

// Setup writes the liveness marker and registers every configured directory
// that exists. Missing or unreadable directories are skipped. The marker is
// removed again if registration fails.
func (d *Daemon) Setup() (err error) {
	if err := d.coord.WritePID(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rmErr := d.coord.RemovePID(); rmErr != nil {
				d.logger.Debug("remove pid file", "error", rmErr)
			}
		}
	}()

	for _, raw := range d.cfg.Dirs {
		dir := config.ExpandPath(raw)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			d.logger.Warn("skipping watch directory", "dir", dir, "error", err)
			continue
		}
		if err := d.source.Add(dir); err != nil {
			if errors.Is(err, os.ErrPermission) {
				d.logger.Warn("skipping unreadable watch directory", "dir", dir, "error", err)
				continue
			}
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		d.watched = append(d.watched, dir)
		d.logger.Info("watching", "dir", dir)
	}

	d.metrics.WatchedDirs.Set(int64(len(d.watched)))
	if len(d.watched) == 0 {
		d.logger.Warn("no watch directories available")
	}
	return nil
}

// Run sets up the daemon and loops until ctx is cancelled. On cancellation
// it removes the liveness marker and fires a final dismiss before returning.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Setup(); err != nil {
		return err
	}
	defer d.Shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := d.Step(ctx); err != nil {
			if errors.Is(err, ErrSourceClosed) {
				return err
			}
			d.logger.Warn("event source error", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d.cfg.PollInterval):
			}
		}
	}
}

// Step runs one loop iteration: fire an elapsed dismiss, wait for events
// and process them.
func (d *Daemon) Step(ctx context.Context) error {
	d.checkDismiss(ctx)

	events, err := d.source.Wait(d.cfg.PollInterval)
	if err != nil {
		return err
	}
	d.HandleEvents(ctx, events)
	return nil
}

// HandleEvents filters events and pushes the survivors. One event's failure
// never stops the rest.
func (d *Daemon) HandleEvents(ctx context.Context, events []Event) {
	for _, ev := range events {
		d.metrics.EventsTotal.Inc()

		path, reason := d.accept(ev)
		if reason != "" {
			if reason == rejectDuplicate {
				d.metrics.EventsDuplicate.Inc()
			} else {
				d.metrics.EventsFiltered.Inc()
			}
			d.logger.Debug("ignoring event", "name", ev.Name, "kind", ev.Kind, "reason", reason)
			continue
		}

		d.push(ctx, path)
	}
}

// Rejection reasons reported by accept.
const (
	rejectKind      = "kind"
	rejectNoName    = "no_name"
	rejectHidden    = "hidden"
	rejectSuffix    = "ignored_suffix"
	rejectIrregular = "not_regular_file"
	rejectDuplicate = "duplicate"
)

// accept applies the event filters in order and returns the absolute path,
// or the reason the event was dropped. The path enters the dedup filter only
// after every other check passed.
func (d *Daemon) accept(ev Event) (string, string) {
	if ev.Kind != KindCloseWrite && ev.Kind != KindMovedIn {
		return "", rejectKind
	}
	if ev.Name == "" {
		return "", rejectNoName
	}
	if strings.HasPrefix(ev.Name, ".") {
		return "", rejectHidden
	}
	for _, suffix := range d.cfg.IgnoreSuffixes {
		if suffix != "" && strings.HasSuffix(ev.Name, suffix) {
			return "", rejectSuffix
		}
	}

	path := filepath.Join(ev.Dir, ev.Name)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", rejectIrregular
	}

	if !d.seen.CheckAndInsert(path) {
		return "", rejectDuplicate
	}
	return path, ""
}

func (d *Daemon) push(ctx context.Context, path string) {
	entry := history.NewFileState(path, d.now())

	start := time.Now()
	err := history.Push(ctx, d.store, entry, d.cfg.MaxEntries)
	d.metrics.MutateDuration.ObserveDuration(time.Since(start))
	if err != nil {
		d.metrics.PushFailures.Inc()
		d.logger.Error("push failed", "path", path, "error", err)
		return
	}

	d.metrics.PushesTotal.Inc()
	d.notifier.Notify(ctx, notify.Notification{Kind: notify.KindNewFile, File: &entry})
	d.dismissAt = d.now().Add(d.cfg.DismissAfter)
	d.logger.Info("new file", "path", path, "size", entry.Size)
}

// DismissDeadline returns the armed dismiss deadline.
func (d *Daemon) DismissDeadline() (time.Time, bool) {
	return d.dismissAt, !d.dismissAt.IsZero()
}

func (d *Daemon) checkDismiss(ctx context.Context) {
	if d.dismissAt.IsZero() || d.now().Before(d.dismissAt) {
		return
	}
	d.dismissAt = time.Time{}
	d.dismiss(ctx)
}

// dismiss hides the widget unless an overlay is open. A suppressed dismiss
// is dropped, not retried.
func (d *Daemon) dismiss(ctx context.Context) {
	if d.coord.OverlayActive() {
		d.metrics.DismissesSuppressed.Inc()
		d.logger.Debug("overlay active, skipping dismiss")
		return
	}

	d.notifier.Notify(ctx, notify.Notification{Kind: notify.KindDismiss})
	d.metrics.DismissesTotal.Inc()
	if err := d.coord.ClearMenuPosition(); err != nil {
		d.logger.Debug("clear menu position", "error", err)
	}
}

// Shutdown removes the liveness marker and fires one final dismiss so the
// widget never shows stale state after the daemon exits.
func (d *Daemon) Shutdown() {
	if err := d.coord.RemovePID(); err != nil {
		d.logger.Debug("remove pid file", "error", err)
	}
	d.notifier.Notify(context.Background(), notify.Notification{Kind: notify.KindDismiss})
	d.metrics.DismissesTotal.Inc()

	if err := d.source.Close(); err != nil {
		d.logger.Debug("close event source", "error", err)
	}
	d.logger.Info("watcher stopped", d.metrics.Registry().LogAttrs()...)
}

// Seen reports whether path is in the dedup filter.
func (d *Daemon) Seen(path string) bool {
	return d.seen.Contains(path)
}
