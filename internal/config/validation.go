package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError names the offending key and what is wrong with it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether any error refers to field.
func (e ValidationErrors) Has(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// SIGRTMIN+n must stay below SIGRTMAX; glibc leaves 30 usable offsets.
const maxSignalOffset = 30

// ValidateConfig checks every section and returns all problems found as
// ValidationErrors.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateWatch(c)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateWatch(c *Config) ValidationErrors {
	var errs ValidationErrors

	for i, dir := range c.WatchDirs {
		if strings.TrimSpace(dir) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("watch_dirs[%d]", i),
				Message: "path cannot be empty",
			})
		}
	}

	for i, suffix := range c.IgnoreSuffixes {
		if suffix == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("ignore_suffixes[%d]", i),
				Message: "suffix cannot be empty",
			})
		}
	}

	if c.SignalNumber < 0 || c.SignalNumber > maxSignalOffset {
		errs = append(errs, ValidationError{
			Field:   "signal_number",
			Message: fmt.Sprintf("must be between 0 and %d", maxSignalOffset),
		})
	}

	if c.WidgetProcess == "" {
		errs = append(errs, ValidationError{
			Field:   "widget_process",
			Message: "process name is required",
		})
	}

	if c.DismissSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "dismiss_seconds",
			Message: "dismiss timeout must be at least 1 second",
		})
	}

	if c.HistorySize < 1 {
		errs = append(errs, ValidationError{
			Field:   "history_size",
			Message: "history must hold at least 1 entry",
		})
	}

	if c.BarHeight < 0 {
		errs = append(errs, ValidationError{
			Field:   "bar_height",
			Message: "bar height cannot be negative",
		})
	}

	switch c.Backend {
	case "", "inotify", "fsnotify":
	default:
		errs = append(errs, ValidationError{
			Field:   "backend",
			Message: fmt.Sprintf("invalid watch backend: %s (valid: inotify, fsnotify)", c.Backend),
		})
	}

	if c.PollIntervalMs < 10 || c.PollIntervalMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "poll_interval_ms",
			Message: "poll interval must be between 10ms and 60000ms",
		})
	}

	if c.SettleMs < 10 || c.SettleMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "settle_ms",
			Message: "settle interval must be between 10ms and 60000ms",
		})
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	switch s.Backend {
	case "json", "sqlite":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid storage backend: %s (valid: json, sqlite)", s.Backend),
		})
	}

	if s.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.busy_timeout_ms",
			Message: "busy timeout cannot be negative",
		})
	}

	return errs
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
	logOutputs = []string{"stderr", "stdout", "file", "both"}
)

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: "logging." + field, Message: fmt.Sprintf(format, args...)})
	}

	if !slices.Contains(logLevels, l.Level) {
		add("level", "unknown level %q, want one of %v", l.Level, logLevels)
	}
	if !slices.Contains(logFormats, l.Format) {
		add("format", "unknown format %q, want one of %v", l.Format, logFormats)
	}
	if !slices.Contains(logOutputs, l.Output) {
		add("output", "unknown output %q, want one of %v", l.Output, logOutputs)
	} else if (l.Output == "file" || l.Output == "both") && l.FilePath == "" {
		add("file_path", "required when output is %q", l.Output)
	}

	if l.MaxSizeMB < 1 {
		add("max_size_mb", "must be at least 1")
	}
	if l.MaxBackups < 0 {
		add("max_backups", "must not be negative")
	}
	if l.MaxAgeDays < 0 {
		add("max_age_days", "must not be negative")
	}
	return errs
}
