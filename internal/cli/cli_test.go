package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glance/internal/config"
	"glance/internal/coord"
	"glance/internal/history"
	"glance/internal/metrics"
)

var t0 = time.Unix(1700000000, 0)

type testEnv struct {
	opts     *RootOptions
	config   string
	runtime  *coord.Dir
	watchDir string

	mu    sync.Mutex
	calls [][]string
}

func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		config:   filepath.Join(root, "config.toml"),
		runtime:  coord.New(filepath.Join(root, "run")),
		watchDir: filepath.Join(root, "shots"),
	}
	require.NoError(t, os.MkdirAll(env.watchDir, 0o755))
	require.NoError(t, env.runtime.Ensure())

	doc := fmt.Sprintf(`watch_dirs = [%q]
poll_interval_ms = 20
%s
[storage]
runtime_dir = %q

[logging]
level = "error"
`, env.watchDir, extra, env.runtime.Root())
	require.NoError(t, os.WriteFile(env.config, []byte(doc), 0o600))

	env.opts = &RootOptions{
		Now: func() time.Time { return t0 },
		Runner: func(ctx context.Context, name string, args ...string) error {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.calls = append(env.calls, append([]string{name}, args...))
			return nil
		},
	}
	return env
}

func (e *testEnv) run(ctx context.Context, args ...string) (string, error) {
	cmd := newRootCommand(e.opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (e *testEnv) signals() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.calls...)
}

func (e *testEnv) seed(t *testing.T, entries ...history.FileState) *history.FileStore {
	t.Helper()
	store := history.NewFileStore(e.runtime.StatePath())
	for i := len(entries) - 1; i >= 0; i-- {
		require.NoError(t, history.Push(context.Background(), store, entries[i], 5))
	}
	return store
}

func fileAt(t *testing.T, dir, name string, at time.Time) history.FileState {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	return history.FileState{Path: path, Name: name, Size: uint64(len(name)), Time: float64(at.Unix())}
}

func TestScroll_UpAndDown(t *testing.T) {
	env := newTestEnv(t, "")
	store := env.seed(t,
		fileAt(t, env.watchDir, "c.png", t0),
		fileAt(t, env.watchDir, "b.png", t0.Add(-time.Minute)),
		fileAt(t, env.watchDir, "a.png", t0.Add(-2*time.Minute)),
	)
	ctx := context.Background()

	_, err := env.run(ctx, "scroll", "up")
	require.NoError(t, err)
	_, err = env.run(ctx, "scroll", "up")
	require.NoError(t, err)
	_, err = env.run(ctx, "scroll", "up")
	require.NoError(t, err)

	st, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Selected, "selection clamps at the oldest entry")

	_, err = env.run(ctx, "scroll", "down")
	require.NoError(t, err)
	st, err = store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Selected)

	calls := env.signals()
	require.Len(t, calls, 4)
	assert.Equal(t, []string{"pkill", "-RTMIN+8", "waybar"}, calls[0])
}

func TestScroll_UnknownDirectionStillRefreshes(t *testing.T) {
	env := newTestEnv(t, "signal_number = 4")
	store := env.seed(t,
		fileAt(t, env.watchDir, "b.png", t0),
		fileAt(t, env.watchDir, "a.png", t0),
	)

	_, err := env.run(context.Background(), "scroll", "sideways")
	require.NoError(t, err)

	st, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Selected)
	assert.Equal(t, [][]string{{"pkill", "-RTMIN+4", "waybar"}}, env.signals())
}

func TestScroll_RequiresDirection(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.run(context.Background(), "scroll")
	assert.Error(t, err)
}

func TestScroll_SQLiteBackend(t *testing.T) {
	env := newTestEnv(t, "")
	doc, err := os.ReadFile(env.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.config,
		[]byte(strings.Replace(string(doc), "[storage]\n", "[storage]\nbackend = \"sqlite\"\n", 1)), 0o600))

	store, err := history.OpenSQLite(env.runtime.DatabasePath(), time.Second)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, history.Push(ctx, store, fileAt(t, env.watchDir, "a.png", t0), 5))
	require.NoError(t, history.Push(ctx, store, fileAt(t, env.watchDir, "b.png", t0), 5))

	_, err = env.run(ctx, "scroll", "up")
	require.NoError(t, err)

	st, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Selected)
	require.NoError(t, store.Close())

	_, statErr := os.Stat(env.runtime.StatePath())
	assert.True(t, os.IsNotExist(statErr), "sqlite backend must not write the JSON state file")
}

func TestHistory_PrintsDocument(t *testing.T) {
	env := newTestEnv(t, "")
	env.seed(t,
		fileAt(t, env.watchDir, "new.png", t0),
		fileAt(t, env.watchDir, "old.png", t0.Add(-time.Hour)),
	)

	out, err := env.run(context.Background(), "history")
	require.NoError(t, err)

	var st history.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Len(t, st.Entries, 2)
	assert.Equal(t, "new.png", st.Entries[0].Name)
}

func TestHistory_EmptyPrintsEmptyDocument(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(context.Background(), "history")
	require.NoError(t, err)
	assert.JSONEq(t, `{"entries":[],"selected":0}`, out)

	out, err = env.run(context.Background(), "history", "--active")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestHistory_ActiveFiltersExpired(t *testing.T) {
	env := newTestEnv(t, "")
	env.seed(t,
		fileAt(t, env.watchDir, "fresh.png", t0.Add(-5*time.Second)),
		fileAt(t, env.watchDir, "stale.png", t0.Add(-time.Minute)),
	)

	out, err := env.run(context.Background(), "history", "--active")
	require.NoError(t, err)

	var entries []history.IndexedEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Index)
	assert.Equal(t, "fresh.png", entries[0].Name)
	assert.WithinDuration(t, t0.Add(-5*time.Second), entries[0].Discovered, time.Millisecond)
}

func TestCopyPath(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		scroll  bool
		remove  bool
		wantErr bool
	}{
		{name: "fresh", age: 3 * time.Second},
		{name: "within grace", age: 12 * time.Second},
		{name: "expired", age: 13 * time.Second, wantErr: true},
		{name: "expired but scrolled", age: time.Hour, scroll: true},
		{name: "deleted", age: time.Second, remove: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			newest := fileAt(t, env.watchDir, "new.png", t0.Add(-tt.age))
			older := fileAt(t, env.watchDir, "old.png", t0.Add(-tt.age))
			store := env.seed(t, newest, older)
			want := newest.Path
			if tt.scroll {
				require.NoError(t, history.SelectPrev(context.Background(), store))
				want = older.Path
			}
			if tt.remove {
				require.NoError(t, os.Remove(newest.Path))
			}

			out, err := env.run(context.Background(), "copy-path")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNothingSelected)
				assert.Empty(t, out)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want+"\n", out)
		})
	}
}

func TestCopyPath_EmptyHistory(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.run(context.Background(), "copy-path")
	assert.ErrorIs(t, err, ErrNothingSelected)
}

func TestPID(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(context.Background(), "pid")
	assert.ErrorIs(t, err, coord.ErrNotRunning)

	require.NoError(t, env.runtime.WritePID())
	out, err := env.run(context.Background(), "pid")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid())+"\n", out)
}

func TestConfigCommand(t *testing.T) {
	env := newTestEnv(t, "history_size = 9")

	out, err := env.run(context.Background(), "config", "--format", "json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.EqualValues(t, 9, got["history_size"])
	assert.Equal(t, []any{env.watchDir}, got["watch_dirs"])

	_, err = env.run(context.Background(), "config", "--format", "ini")
	assert.Error(t, err)
}

func TestConfigCommand_WritesFile(t *testing.T) {
	env := newTestEnv(t, "history_size = 9")
	path := filepath.Join(t.TempDir(), "saved", "glance.yaml")

	out, err := env.run(context.Background(), "config", "--output", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "history_size: 9")

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.HistorySize)
}

func TestInvalidConfigFails(t *testing.T) {
	env := newTestEnv(t, "dismiss_seconds = 0")
	_, err := env.run(context.Background(), "history")
	assert.ErrorContains(t, err, "dismiss_seconds")
}

func TestWatch_RecordsNewFileAndCleansUp(t *testing.T) {
	env := newTestEnv(t, "")
	env.opts.Now = time.Now

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := filepath.Join(t.TempDir(), "metrics.json")
	done := make(chan error, 1)
	go func() {
		_, err := env.run(ctx, "watch", "--metrics", metricsPath)
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(env.runtime.PIDPath())
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "watcher never wrote its pid file")

	shot := filepath.Join(env.watchDir, "shot.png")
	require.NoError(t, os.WriteFile(shot, bytes.Repeat([]byte{1}, 2048), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.watchDir, "video.mp4.part"), []byte("x"), 0o644))

	store := history.NewFileStore(env.runtime.StatePath())
	require.Eventually(t, func() bool {
		st, err := store.Read(context.Background())
		return err == nil && st.Len() == 1
	}, 5*time.Second, 10*time.Millisecond, "watcher never recorded the screenshot")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}

	st, err := store.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, st.Len())
	assert.Equal(t, shot, st.Entries[0].Path)
	assert.Equal(t, uint64(2048), st.Entries[0].Size)

	_, err = os.Stat(env.runtime.PIDPath())
	assert.True(t, os.IsNotExist(err), "pid file should be removed on shutdown")
	// One signal for the new file, one for the shutdown dismiss.
	assert.Len(t, env.signals(), 2)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	var counters map[string]float64
	require.NoError(t, json.Unmarshal(data, &counters))
	assert.EqualValues(t, 1, counters["glance_pushes_total"])
	assert.EqualValues(t, 1, counters["glance_watched_dirs"])
	assert.GreaterOrEqual(t, counters["glance_events_filtered_total"], float64(1))
}

func TestWriteMetrics_FormatFollowsExtension(t *testing.T) {
	counters := metrics.NewWatcherMetrics(nil)
	counters.PushesTotal.Add(2)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	prom := filepath.Join(dir, "glance.prom")
	writeMetrics(prom, counters.Registry(), logger)
	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE glance_pushes_total counter\nglance_pushes_total 2\n")

	js := filepath.Join(dir, "glance.json")
	writeMetrics(js, counters.Registry(), logger)
	data, err = os.ReadFile(js)
	require.NoError(t, err)
	var decoded map[string]float64
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, 2, decoded["glance_pushes_total"])
}

func TestWatch_RefusesSecondInstance(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, env.runtime.WritePID())

	_, err := env.run(context.Background(), "watch")
	assert.ErrorContains(t, err, "already running")
}
