// Package config handles configuration loading and validation for glance.
//
// The core keys (watch_dirs, signal_number, dismiss_seconds, ignore_suffixes,
// bar_height, history_size) sit at the top level so existing config files
// keep working; newer settings live in [storage], [notify] and [logging]
// tables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete glance configuration.
type Config struct {
	// WatchDirs are the directories to watch. "~/" is expanded on load.
	WatchDirs []string `toml:"watch_dirs" json:"watch_dirs" yaml:"watch_dirs"`

	// SignalNumber selects SIGRTMIN+n for widget refreshes.
	SignalNumber int `toml:"signal_number" json:"signal_number" yaml:"signal_number"`

	// WidgetProcess is the process name that receives the signal.
	WidgetProcess string `toml:"widget_process" json:"widget_process" yaml:"widget_process"`

	// DismissSeconds is how long a new file stays visible in the widget.
	DismissSeconds int `toml:"dismiss_seconds" json:"dismiss_seconds" yaml:"dismiss_seconds"`

	// IgnoreSuffixes mark files that are still being written.
	IgnoreSuffixes []string `toml:"ignore_suffixes" json:"ignore_suffixes" yaml:"ignore_suffixes"`

	// BarHeight is the status bar height in pixels, used by overlays.
	BarHeight int `toml:"bar_height" json:"bar_height" yaml:"bar_height"`

	// HistorySize bounds the number of remembered files.
	HistorySize int `toml:"history_size" json:"history_size" yaml:"history_size"`

	// Backend selects the event source: "inotify", "fsnotify" or "" for auto.
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// PollIntervalMs bounds each wait for filesystem events.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`

	// SettleMs is how long a file must stay unchanged before the fsnotify
	// backend reports it.
	SettleMs int `toml:"settle_ms" json:"settle_ms" yaml:"settle_ms"`

	// Storage configuration for the shared history.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Notify configuration for desktop notifications.
	Notify NotifyConfig `toml:"notify" json:"notify" yaml:"notify"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Backend is "json" (default) or "sqlite".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// RuntimeDir overrides the coordination directory ($XDG_RUNTIME_DIR).
	RuntimeDir string `toml:"runtime_dir" json:"runtime_dir" yaml:"runtime_dir"`

	// AtomicWrite writes the JSON document through a temp file and rename.
	AtomicWrite bool `toml:"atomic_write" json:"atomic_write" yaml:"atomic_write"`

	// ClampOnLoad pulls a stale selection back into range when loading.
	ClampOnLoad bool `toml:"clamp_on_load" json:"clamp_on_load" yaml:"clamp_on_load"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// NotifyConfig holds desktop notification configuration.
type NotifyConfig struct {
	// Desktop posts an org.freedesktop.Notifications message per new file.
	Desktop bool `toml:"desktop" json:"desktop" yaml:"desktop"`

	// AppName is reported to the notification server.
	AppName string `toml:"app_name" json:"app_name" yaml:"app_name"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stderr", "stdout", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB rotates the log file past this size.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays removes rotated files older than this.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WatchDirs:      []string{"~/Pictures/Screenshots", "~/Downloads"},
		SignalNumber:   8,
		WidgetProcess:  "waybar",
		DismissSeconds: 10,
		IgnoreSuffixes: []string{".part", ".crdownload", ".tmp"},
		BarHeight:      57,
		HistorySize:    5,
		PollIntervalMs: 1000,
		SettleMs:       1000,
		Storage: StorageConfig{
			Backend:       "json",
			ClampOnLoad:   true,
			BusyTimeoutMs: 30000,
		},
		Notify: NotifyConfig{
			AppName: "glance",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformStateDir(), "glance.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// DismissTimeout returns DismissSeconds as a duration.
func (c *Config) DismissTimeout() time.Duration {
	return time.Duration(c.DismissSeconds) * time.Second
}

// PollInterval returns PollIntervalMs as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// SettleInterval returns SettleMs as a duration.
func (c *Config) SettleInterval() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}

// BusyTimeout returns the SQLite busy timeout.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Storage.BusyTimeoutMs) * time.Millisecond
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with GLANCE_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GLANCE_WATCH_DIRS"); v != "" {
		c.WatchDirs = filepath.SplitList(v)
	}
	if v, ok := envInt("GLANCE_SIGNAL_NUMBER"); ok {
		c.SignalNumber = v
	}
	if v, ok := envInt("GLANCE_DISMISS_SECONDS"); ok {
		c.DismissSeconds = v
	}
	if v, ok := envInt("GLANCE_HISTORY_SIZE"); ok {
		c.HistorySize = v
	}
	if v := os.Getenv("GLANCE_BACKEND"); v != "" {
		c.Backend = v
	}

	// Storage overrides
	if v := os.Getenv("GLANCE_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("GLANCE_RUNTIME_DIR"); v != "" {
		c.Storage.RuntimeDir = v
	}

	// Logging overrides
	if v := os.Getenv("GLANCE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GLANCE_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.WatchDirs = append([]string{}, c.WatchDirs...)
	clone.IgnoreSuffixes = append([]string{}, c.IgnoreSuffixes...)
	return &clone
}

// ExpandPath replaces a leading "~" or "~/" with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
