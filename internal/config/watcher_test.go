package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/smartcam/internal/logging"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startLoggingWatcher(t *testing.T, path string, opts ...WatcherOption[logging.Config]) *Watcher[logging.Config] {
	t.Helper()
	opts = append([]WatcherOption[logging.Config]{WithDebounce[logging.Config](30 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, LoadLoggingConfig, quietLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := startLoggingWatcher(t, path)

	received := make(chan logging.Config, 4)
	w.OnReload(func(cfg logging.Config) { received <- cfg })

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\ndevice = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Level != "debug" || cfg.Modules["device"] != "warn" {
			t.Errorf("reloaded %+v", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherReloadsOnRenameSave(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := startLoggingWatcher(t, path)

	received := make(chan logging.Config, 4)
	w.OnReload(func(cfg logging.Config) { received <- cfg })

	tmp := filepath.Join(filepath.Dir(path), ".smartcam.toml.swp")
	if err := os.WriteFile(tmp, []byte("[logging]\nlevel = \"error\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Level != "error" {
			t.Errorf("reloaded level %q", cfg.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	path := writeConfig(t, "[logging]\n")
	w := startLoggingWatcher(t, path)

	var calls atomic.Int32
	w.OnReload(func(logging.Config) { calls.Add(1) })

	other := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(other, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("handler called %d times for an unrelated file", calls.Load())
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := writeConfig(t, "[logging]\n")
	w := startLoggingWatcher(t, path, WithDebounce[logging.Config](150*time.Millisecond))

	var calls atomic.Int32
	last := make(chan logging.Config, 8)
	w.OnReload(func(cfg logging.Config) {
		calls.Add(1)
		last <- cfg
	})

	for _, level := range []string{"debug", "info", "warn"} {
		if err := os.WriteFile(path, []byte("[logging]\nlevel = \""+level+"\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case cfg := <-last:
		if cfg.Level != "warn" {
			t.Errorf("debounced reload saw level %q, want the last write", cfg.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced reload")
	}
	time.Sleep(300 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
}

func TestWatcherErrorHandlerAndUnsubscribe(t *testing.T) {
	path := writeConfig(t, "[logging]\n")
	errs := make(chan error, 4)
	w := startLoggingWatcher(t, path, WithErrorHandler[logging.Config](func(err error) { errs <- err }))

	var calls atomic.Int32
	unsub := w.OnReload(func(logging.Config) { calls.Add(1) })
	unsub()

	if err := os.WriteFile(path, []byte("[logging\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errs:
		if err == nil {
			t.Error("nil error reported")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("unsubscribed handler called %d times", calls.Load())
	}
}

func TestWatcherStop(t *testing.T) {
	path := writeConfig(t, "[logging]\n")
	w := NewConfigWatcher(path, LoadLoggingConfig, quietLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() before Start() = %v", err)
	}

	w = NewConfigWatcher(path, LoadLoggingConfig, quietLogger())
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "nope", "smartcam.toml"), LoadLoggingConfig, quietLogger())
	if err := w.Start(); err == nil {
		_ = w.Stop()
		t.Fatal("Start() should fail for a missing directory")
	}
}

func TestWatchLoggingAppliesLevels(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	logging.Initialize(logging.Config{Level: "info"})
	logger := logging.GetLogger("watchtest")

	w, err := WatchLogging(path, quietLogger())
	if err != nil {
		t.Fatalf("WatchLogging() failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\nwatchtest = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if logger.Enabled(t.Context(), slog.LevelDebug) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("debug level not applied after reload")
}
