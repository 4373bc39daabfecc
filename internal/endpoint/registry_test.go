package endpoint

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/smazurov/smartcam/internal/device"
)

func newTestRegistry(maxMinors int) *Registry {
	return NewRegistry(maxMinors, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterEndpointNaming(t *testing.T) {
	r := newTestRegistry(8)

	tests := []struct {
		request   string
		wantName  string
		wantMinor int
		wantErr   error
	}{
		{request: "", wantName: "video0", wantMinor: 0},
		{request: "auto", wantName: "video1", wantMinor: 1},
		{request: "video5", wantName: "video5", wantMinor: 5},
		{request: "smartcam", wantName: "smartcam", wantMinor: 2},
		{request: "video5", wantErr: ErrNameInUse},
		{request: "smartcam", wantErr: ErrNameInUse},
		{request: "video9", wantErr: ErrNoFreeMinor},
		{request: "videoX", wantName: "videoX", wantMinor: 3},
	}

	for _, tt := range tests {
		ep, err := r.RegisterEndpoint(tt.request)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RegisterEndpoint(%q) error = %v, want %v", tt.request, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("RegisterEndpoint(%q) failed: %v", tt.request, err)
		}
		if ep.Name != tt.wantName || ep.Minor != tt.wantMinor {
			t.Errorf("RegisterEndpoint(%q) = %+v, want %s/%d", tt.request, ep, tt.wantName, tt.wantMinor)
		}
	}
	if r.Len() != 5 {
		t.Errorf("Len() = %d, want 5", r.Len())
	}
}

func TestAutoNameSkipsClaimedName(t *testing.T) {
	r := newTestRegistry(4)
	if _, err := r.RegisterEndpoint("video1"); err != nil {
		t.Fatal(err)
	}
	ep, err := r.RegisterEndpoint("")
	if err != nil || ep.Name != "video0" {
		t.Fatalf("first auto = %+v, %v", ep, err)
	}
	ep, err = r.RegisterEndpoint("")
	if err != nil || ep.Name != "video2" {
		t.Errorf("second auto = %+v, %v, want video2", ep, err)
	}
}

func TestExhaustedMinors(t *testing.T) {
	r := newTestRegistry(2)
	for range 2 {
		if _, err := r.RegisterEndpoint(""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.RegisterEndpoint("extra"); !errors.Is(err, ErrNoFreeMinor) {
		t.Errorf("error = %v, want ErrNoFreeMinor", err)
	}
}

func TestUnregisterReleasesMinor(t *testing.T) {
	r := newTestRegistry(4)
	ep, err := r.RegisterEndpoint("")
	if err != nil {
		t.Fatal(err)
	}
	r.UnregisterEndpoint(ep)
	r.UnregisterEndpoint(ep)
	r.UnregisterEndpoint(device.Endpoint{Name: "never", Minor: 3})

	if _, err := r.Lookup(ep.Name); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Lookup() error = %v, want ErrNotRegistered", err)
	}
	again, err := r.RegisterEndpoint("")
	if err != nil || again != ep {
		t.Errorf("re-register = %+v, %v, want %+v", again, err, ep)
	}
}

func TestConcurrentRegistration(t *testing.T) {
	r := newTestRegistry(32)
	var wg sync.WaitGroup
	names := make(chan string, 32)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ep, err := r.RegisterEndpoint("")
			if err != nil {
				t.Error(err)
				return
			}
			names <- ep.Name
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool)
	for n := range names {
		if seen[n] {
			t.Errorf("duplicate name %s", n)
		}
		seen[n] = true
	}
	if len(seen) != 32 {
		t.Errorf("registered %d unique names, want 32", len(seen))
	}
}

func TestDeviceUsesRegistry(t *testing.T) {
	r := newTestRegistry(4)
	d, err := device.New(device.Config{
		Name:      "auto",
		Registrar: r,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("device.New() failed: %v", err)
	}
	if d.Name() != "video0" || d.Endpoint().Minor != 0 {
		t.Errorf("endpoint = %+v", d.Endpoint())
	}
	if d.QueryCapabilities().BusInfo != "platform:video0" {
		t.Errorf("BusInfo = %q", d.QueryCapabilities().BusInfo)
	}

	if _, err := device.New(device.Config{Name: "video0", Registrar: r, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}); !errors.Is(err, device.ErrIO) || !errors.Is(err, ErrNameInUse) {
		t.Errorf("duplicate device error = %v", err)
	}

	_ = d.Close()
	if r.Len() != 0 {
		t.Errorf("Len() after Close = %d", r.Len())
	}
}
