package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	history = NewRingBuffer(DefaultHistorySize)
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"device": "debug",
			"api":    "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"device", true, true, true},
		{"api", false, false, true},
		{"rtp", false, true, true},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("device")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"device": "debug"}})

	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("cached logger should follow the configured module level")
	}
}

func TestSetLevelsUpdatesExistingLoggers(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info"})
	logger := GetLogger("config")

	SetLevels(Config{Level: "error"})
	if logger.Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled after raising the global level")
	}

	SetLevels(Config{Level: "error", Modules: map[string]string{"config": "debug"}})
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("module override not applied by SetLevels")
	}
}

func TestLoggerRecordsHistory(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug"})

	GetLogger("device").Info("Frame submitted", "bytes", 230400, "error", errors.New("boom"))

	entries := History().ReadAll()
	if len(entries) == 0 {
		t.Fatal("history is empty")
	}
	last := entries[len(entries)-1]
	if last.Module != "device" || last.Message != "Frame submitted" || last.Level != "info" {
		t.Errorf("entry = %+v", last)
	}
	if last.Attributes["bytes"] != int64(230400) {
		t.Errorf("bytes = %#v", last.Attributes["bytes"])
	}
	if last.Attributes["error"] != "boom" {
		t.Errorf("error = %#v", last.Attributes["error"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input  string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, %v, want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBufferHandlerGroups(t *testing.T) {
	rb := NewRingBuffer(10)
	logger := slog.New(NewBufferHandler(rb, slog.LevelDebug)).
		With("module", "rtp").
		WithGroup("peer").
		With("addr", "127.0.0.1:5004")

	logger.Debug("sent", "packets", 3, slog.Group("ts", "rtp", 9000))

	entries := rb.ReadAll()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.Module != "rtp" {
		t.Errorf("Module = %q", e.Module)
	}
	for _, key := range []string{"peer.addr", "peer.packets", "peer.ts.rtp"} {
		if _, ok := e.Attributes[key]; !ok {
			t.Errorf("missing attribute %q in %v", key, e.Attributes)
		}
	}
}

func TestFormatLogLine(t *testing.T) {
	entry := LogEntry{
		Timestamp:  time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC),
		Level:      "warn",
		Module:     "device",
		Message:    "Delivering stale frame",
		Attributes: map[string]any{"sequence": 4, "path": "read"},
	}
	want := "2025-01-27T10:30:00Z [WARN] [device] Delivering stale frame path=read sequence=4"
	if got := FormatLogLine(entry); got != want {
		t.Errorf("FormatLogLine() = %q, want %q", got, want)
	}
}

func TestMultiHandlerRoutesByLevel(t *testing.T) {
	debug := NewRingBuffer(10)
	warn := NewRingBuffer(10)
	multi := NewMultiHandler(
		NewBufferHandler(debug, slog.LevelDebug),
		NewBufferHandler(warn, slog.LevelWarn),
	)
	logger := slog.New(multi).With("module", "api")

	logger.Debug("debug only")
	logger.Warn("both")

	if debug.Count() != 2 {
		t.Errorf("debug handler saw %d entries, want 2", debug.Count())
	}
	if warn.Count() != 1 || warn.ReadAll()[0].Message != "both" {
		t.Errorf("warn handler saw %v", warn.ReadAll())
	}
	if !multi.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("MultiHandler should be enabled when any handler is")
	}
}

func TestJournalFields(t *testing.T) {
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	r.AddAttrs(slog.Int("sequence", 7), slog.Group("fmt", slog.String("fourcc", "YUYV")))

	fields := journalFields([]slog.Attr{slog.String("module", "device")}, nil, r)

	want := map[string]string{
		"SYSLOG_IDENTIFIER": "smartcam",
		"MODULE":            "device",
		"SEQUENCE":          "7",
		"FMT_FOURCC":        "YUYV",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, fields[k], v)
		}
	}
}
