package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if len(cfg.WatchDirs) != 2 || cfg.WatchDirs[0] != "~/Pictures/Screenshots" || cfg.WatchDirs[1] != "~/Downloads" {
		t.Errorf("unexpected watch dirs: %v", cfg.WatchDirs)
	}
	if cfg.SignalNumber != 8 {
		t.Errorf("expected signal 8, got %d", cfg.SignalNumber)
	}
	if cfg.DismissTimeout() != 10*time.Second {
		t.Errorf("expected dismiss 10s, got %v", cfg.DismissTimeout())
	}
	if strings.Join(cfg.IgnoreSuffixes, ",") != ".part,.crdownload,.tmp" {
		t.Errorf("unexpected ignore suffixes: %v", cfg.IgnoreSuffixes)
	}
	if cfg.BarHeight != 57 {
		t.Errorf("expected bar height 57, got %d", cfg.BarHeight)
	}
	if cfg.HistorySize != 5 {
		t.Errorf("expected history size 5, got %d", cfg.HistorySize)
	}
	if cfg.PollInterval() != time.Second {
		t.Errorf("expected poll interval 1s, got %v", cfg.PollInterval())
	}
	if !cfg.Storage.ClampOnLoad {
		t.Error("clamp_on_load should default to true")
	}
	if cfg.Storage.Backend != "json" {
		t.Errorf("expected json storage, got %s", cfg.Storage.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	if got := ConfigPath(); got != "/xdg/config/glance/config.toml" {
		t.Errorf("unexpected config path: %s", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	if !strings.HasSuffix(ConfigPath(), filepath.Join(".config", "glance", "config.toml")) {
		t.Errorf("expected ~/.config fallback, got %s", ConfigPath())
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SignalNumber != 8 {
		t.Errorf("expected defaults, got signal %d", cfg.SignalNumber)
	}
}

func TestLoadSearchesConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "glance"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "glance", "config.yaml"), []byte("signal_number: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if got := FindConfigFile(); got != filepath.Join(dir, "glance", "config.yaml") {
		t.Fatalf("FindConfigFile = %q", got)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SignalNumber != 3 {
		t.Errorf("expected signal 3, got %d", cfg.SignalNumber)
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
# flat keys
watch_dirs = ["/tmp/shots", "~/Downloads"]
signal_number = 9
dismiss_seconds = 15
ignore_suffixes = [".part"]
bar_height = 40
history_size = 8
backend = "fsnotify"

[storage]
backend = "sqlite"
atomic_write = true
clamp_on_load = false

[notify]
desktop = true

[logging]
level = "debug"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.WatchDirs) != 2 || cfg.WatchDirs[0] != "/tmp/shots" {
		t.Errorf("unexpected watch dirs: %v", cfg.WatchDirs)
	}
	if cfg.SignalNumber != 9 {
		t.Errorf("expected signal 9, got %d", cfg.SignalNumber)
	}
	if cfg.DismissSeconds != 15 {
		t.Errorf("expected dismiss 15, got %d", cfg.DismissSeconds)
	}
	if len(cfg.IgnoreSuffixes) != 1 {
		t.Errorf("expected 1 suffix, got %v", cfg.IgnoreSuffixes)
	}
	if cfg.HistorySize != 8 {
		t.Errorf("expected history 8, got %d", cfg.HistorySize)
	}
	if cfg.Backend != "fsnotify" {
		t.Errorf("expected fsnotify backend, got %s", cfg.Backend)
	}
	if cfg.Storage.Backend != "sqlite" || !cfg.Storage.AtomicWrite || cfg.Storage.ClampOnLoad {
		t.Errorf("unexpected storage section: %+v", cfg.Storage)
	}
	if !cfg.Notify.Desktop {
		t.Error("expected desktop notifications")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug logging, got %s", cfg.Logging.Level)
	}
	// Untouched keys keep their defaults.
	if cfg.WidgetProcess != "waybar" {
		t.Errorf("expected waybar, got %s", cfg.WidgetProcess)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	if err := os.WriteFile(configPath, []byte("dismiss_seconds = 4\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DismissSeconds != 4 {
		t.Errorf("expected dismiss 4, got %d", cfg.DismissSeconds)
	}
	if cfg.HistorySize != 5 || len(cfg.WatchDirs) != 2 {
		t.Errorf("partial config should keep defaults: %+v", cfg)
	}
}

func TestLoadJSONConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"history_size": 3, "storage": {"backend": "sqlite"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HistorySize != 3 || cfg.Storage.Backend != "sqlite" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !cfg.Storage.ClampOnLoad {
		t.Error("nested default should survive a partial storage table")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	if err := os.WriteFile(configPath, []byte("history_size = [not valid"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("history_size = 0\n[storage]\nbackend = \"redis\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if !verrs.Has("history_size") || !verrs.Has("storage.backend") {
		t.Errorf("missing fields in %v", verrs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty watch dir", func(c *Config) { c.WatchDirs = []string{""} }, "watch_dirs[0]"},
		{"empty suffix", func(c *Config) { c.IgnoreSuffixes = []string{".part", ""} }, "ignore_suffixes[1]"},
		{"signal too high", func(c *Config) { c.SignalNumber = 31 }, "signal_number"},
		{"no process", func(c *Config) { c.WidgetProcess = "" }, "widget_process"},
		{"zero dismiss", func(c *Config) { c.DismissSeconds = 0 }, "dismiss_seconds"},
		{"negative bar", func(c *Config) { c.BarHeight = -1 }, "bar_height"},
		{"bad backend", func(c *Config) { c.Backend = "kqueue" }, "backend"},
		{"tiny poll", func(c *Config) { c.PollIntervalMs = 1 }, "poll_interval_ms"},
		{"zero settle", func(c *Config) { c.SettleMs = 0 }, "settle_ms"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"file output without path", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }, "logging.file_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if !verrs.Has(tt.field) {
				t.Errorf("expected error on %s, got %v", tt.field, verrs)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GLANCE_WATCH_DIRS", "/a"+string(os.PathListSeparator)+"/b")
	t.Setenv("GLANCE_SIGNAL_NUMBER", "11")
	t.Setenv("GLANCE_DISMISS_SECONDS", "not-a-number")
	t.Setenv("GLANCE_STORAGE_BACKEND", "sqlite")
	t.Setenv("GLANCE_RUNTIME_DIR", "/run/test")
	t.Setenv("GLANCE_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if strings.Join(cfg.WatchDirs, ",") != "/a,/b" {
		t.Errorf("unexpected dirs: %v", cfg.WatchDirs)
	}
	if cfg.SignalNumber != 11 {
		t.Errorf("expected signal 11, got %d", cfg.SignalNumber)
	}
	if cfg.DismissSeconds != 10 {
		t.Errorf("unparseable override should be ignored, got %d", cfg.DismissSeconds)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.RuntimeDir != "/run/test" {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn, got %s", cfg.Logging.Level)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := map[string]string{
		"~":                      home,
		"~/Pictures/Screenshots": filepath.Join(home, "Pictures", "Screenshots"),
		"/abs/path":              "/abs/path",
		"~other/x":               "~other/x",
		"relative":               "relative",
	}
	for in, want := range tests {
		if got := ExpandPath(in); got != want {
			t.Errorf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	for _, ext := range []string{"toml", "json", "yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "config."+ext)
			cfg := DefaultConfig()
			cfg.HistorySize = 7
			cfg.WatchDirs = []string{"/srv/drop"}

			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("SaveConfig failed: %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.HistorySize != 7 || len(loaded.WatchDirs) != 1 || loaded.WatchDirs[0] != "/srv/drop" {
				t.Errorf("round trip mismatch: %+v", loaded)
			}
		})
	}
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	if _, err := Encode(DefaultConfig(), "ini"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.WatchDirs[0] = "/changed"
	clone.IgnoreSuffixes[0] = ".changed"
	if cfg.WatchDirs[0] == "/changed" || cfg.IgnoreSuffixes[0] == ".changed" {
		t.Error("Clone shares slices with the original")
	}
}
