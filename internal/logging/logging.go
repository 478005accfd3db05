// Package logging provides structured logging with slog for glance.
//
// Logs go to stderr by default. The watcher, which usually runs detached
// from any terminal, can also write to a size- and day-rotated file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level aliases slog.Level so callers need not import slog for it.
type Level = slog.Level

const (
	LevelDebug Level = slog.LevelDebug
	LevelInfo  Level = slog.LevelInfo
	LevelWarn  Level = slog.LevelWarn
	LevelError Level = slog.LevelError
)

// Format selects the slog handler.
type Format int

const (
	FormatText Format = iota // key=value lines
	FormatJSON               // one JSON object per record
)

// Config controls handler choice, destination and file rotation.
type Config struct {
	Level  Level
	Format Format

	// Output is "stderr" (default), "stdout", "file" or "both"
	// (stderr plus file).
	Output   string
	FilePath string

	// Rotation limits, applied only when a file is written. MaxSize is in
	// megabytes and MaxAge in days; zero disables that limit.
	MaxSize    int64
	MaxAge     int
	MaxBackups int
	Compress   bool

	// Component is attached to every record as "component".
	Component string

	// Stderr replaces os.Stderr for the "stderr" and "both" outputs.
	Stderr io.Writer
}

// DefaultConfig logs text at info level to stderr, with rotation limits
// ready for when Output is switched to a file.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		FilePath:   filepath.Join(stateDir(), "glance.log"),
		MaxSize:    10,
		MaxAge:     14,
		MaxBackups: 3,
		Compress:   true,
		Component:  "glance",
	}
}

func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "glance")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "glance")
}

// Logger is a *slog.Logger that may own a rotating log file.
type Logger struct {
	*slog.Logger

	mu      sync.Mutex
	config  *Config
	rotator *FileRotator
}

// New builds a Logger from cfg, or from DefaultConfig when cfg is nil.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{config: cfg}
	w, err := l.output()
	if err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	}
	if cfg.Component != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}

	l.Logger = slog.New(h)
	return l, nil
}

func (l *Logger) output() (io.Writer, error) {
	stderr := l.config.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	switch strings.ToLower(l.config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "file", "both":
		rotator, err := NewFileRotator(l.config)
		if err != nil {
			return nil, err
		}
		l.rotator = rotator
		if strings.EqualFold(l.config.Output, "both") {
			return io.MultiWriter(stderr, rotator), nil
		}
		return rotator, nil
	default:
		return stderr, nil
	}
}

// WithComponent returns a *slog.Logger tagged with a different component.
func (l *Logger) WithComponent(name string) *slog.Logger {
	return l.Logger.With(slog.String("component", name))
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}

var levelNames = map[string]Level{
	"":        LevelInfo,
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel maps a config level name, case-insensitively, to a Level.
// An empty name means info.
func ParseLevel(s string) (Level, error) {
	if lvl, ok := levelNames[strings.ToLower(s)]; ok {
		return lvl, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}
