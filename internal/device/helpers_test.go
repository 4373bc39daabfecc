package device

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"
)

const testPageSize = 4096

var testEpoch = time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDevice(t *testing.T, cfg Config) *Device {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = testPageSize
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return testEpoch }
	}
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// uniformRGB returns a full RGB24 frame of one color.
func uniformRGB(r, g, b byte) []byte {
	return bytes.Repeat([]byte{r, g, b}, FrameWidth*FrameHeight)
}

// patternRGB returns a full RGB24 frame with position-dependent bytes.
func patternRGB() []byte {
	frame := make([]byte, RGBFrameSize)
	for i := range frame {
		frame[i] = byte(i * 7)
	}
	return frame
}

func useRGB(t *testing.T, d *Device) {
	t.Helper()
	f := Format{Pix: PixFormat{PixelFormat: catalog[FormatRGB24].pix.PixelFormat, Width: FrameWidth, Height: FrameHeight}}
	if err := d.SetFormat(&f); err != nil {
		t.Fatalf("SetFormat(RGB3) failed: %v", err)
	}
}
