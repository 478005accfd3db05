// Package notify delivers fire-and-forget signals to the status-bar widget
// and, optionally, to the desktop notification service.
//
// Consumers may be absent at any time, so delivery failures are logged at
// debug level and otherwise ignored.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"glance/internal/history"
)

// Kind identifies why a notification is sent.
type Kind int

const (
	// KindNewFile announces a freshly pushed history entry.
	KindNewFile Kind = iota
	// KindRefresh asks the widget to re-read the history (after a scroll).
	KindRefresh
	// KindDismiss asks the widget to stop showing the current selection.
	KindDismiss
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNewFile:
		return "new_file"
	case KindRefresh:
		return "refresh"
	case KindDismiss:
		return "dismiss"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Notification is one outbound signal.
type Notification struct {
	Kind Kind
	// File is set for KindNewFile.
	File *history.FileState
}

// Notifier delivers notifications. Implementations never block for long and
// never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Runner executes an external command and waits for it.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs commands with os/exec and discards their output.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// DefaultProcess is the widget process that receives real-time signals.
const DefaultProcess = "waybar"

// SignalNotifier sends SIGRTMIN+n to every process named Process via pkill.
type SignalNotifier struct {
	process string
	signal  int
	run     Runner
	logger  *slog.Logger
}

// NewSignalNotifier creates a notifier for SIGRTMIN+signal to process.
func NewSignalNotifier(process string, signal int, run Runner, logger *slog.Logger) *SignalNotifier {
	if process == "" {
		process = DefaultProcess
	}
	if run == nil {
		run = ExecRunner
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SignalNotifier{process: process, signal: signal, run: run, logger: logger}
}

// Args returns the pkill argument list.
func (s *SignalNotifier) Args() []string {
	return []string{fmt.Sprintf("-RTMIN+%d", s.signal), s.process}
}

// Notify signals the widget. Every kind maps to the same signal; the widget
// re-reads the history and decides what to show.
func (s *SignalNotifier) Notify(ctx context.Context, n Notification) {
	if err := s.run(ctx, "pkill", s.Args()...); err != nil {
		s.logger.Debug("signal widget failed", "kind", n.Kind, "process", s.process, "error", err)
	}
}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

// Notify delivers n to every notifier.
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

// Notify calls f.
func (f Func) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// HumanSize formats a byte count the way the widget tooltip does.
func HumanSize(bytes uint64) string {
	size := float64(bytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			if unit == "B" {
				return fmt.Sprintf("%d B", bytes)
			}
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}
