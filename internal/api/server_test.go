package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/smartcam/internal/api/models"
	"github.com/smazurov/smartcam/internal/device"
	"github.com/smazurov/smartcam/internal/events"
	"github.com/smazurov/smartcam/internal/metrics/exporters"
)

const base = "/api/devices/video0"

func newTestServer(t *testing.T, opts *Options) *Server {
	t.Helper()
	bus := events.New()
	d, err := device.New(device.Config{
		Name:           "video0",
		ReadTimeout:    20 * time.Millisecond,
		DequeueTimeout: 50 * time.Millisecond,
		PageSize:       4096,
		EventBus:       bus,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("device.New() failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if opts == nil {
		opts = &Options{}
	}
	opts.Device = d
	opts.EventBus = bus
	return NewServer(opts)
}

// do sends a request with a JSON body, or a raw body when body is []byte.
func do(t *testing.T, s *Server, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
		contentType = "application/octet-stream"
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})
	good := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	bad := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:wrong"))

	tests := []struct {
		name   string
		path   string
		header []string
		want   int
	}{
		{"health is open", "/api/health", nil, http.StatusOK},
		{"version is open", "/api/version", nil, http.StatusOK},
		{"missing credentials", base + "/capabilities", nil, http.StatusUnauthorized},
		{"wrong password", base + "/capabilities", []string{"Authorization", bad}, http.StatusUnauthorized},
		{"bearer scheme", base + "/capabilities", []string{"Authorization", "Bearer x"}, http.StatusUnauthorized},
		{"valid header", base + "/capabilities", []string{"Authorization", good}, http.StatusOK},
		{"valid query", base + "/capabilities?auth=" + base64.StdEncoding.EncodeToString([]byte("admin:secret")), nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.path, nil, tt.header...)
			expectStatus(t, rec, tt.want)
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestVersionAndHealth(t *testing.T) {
	s := newTestServer(t, nil)

	health := decode[models.HealthData](t, do(t, s, http.MethodGet, "/api/health", nil))
	if health.Status != "ok" || health.Device != "video0" {
		t.Errorf("health = %+v", health)
	}

	v := decode[models.VersionData](t, do(t, s, http.MethodGet, "/api/version", nil))
	if v.Driver != "smartcam" || v.DriverVersion != "0.1.0" {
		t.Errorf("version = %+v", v)
	}
}

func TestUnknownDevice(t *testing.T) {
	s := newTestServer(t, nil)
	expectStatus(t, do(t, s, http.MethodGet, "/api/devices/video9/capabilities", nil), http.StatusNotFound)
}

func TestCapabilities(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, base+"/capabilities", nil)
	expectStatus(t, rec, http.StatusOK)

	caps := decode[models.CapabilityData](t, rec)
	if caps.Driver != "smartcam" || caps.BusInfo != "platform:video0" || caps.Version != "0.1.0" {
		t.Errorf("capabilities = %+v", caps)
	}
	want := []string{"Video Capture", "Read/Write I/O", "Streaming I/O"}
	if strings.Join(caps.CapabilityNames, ",") != strings.Join(want, ",") {
		t.Errorf("CapabilityNames = %v, want %v", caps.CapabilityNames, want)
	}
}

func TestFormatRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("enumerate", func(t *testing.T) {
		for i, want := range []string{"YUYV", "RGB3"} {
			desc := decode[models.FormatDescData](t, do(t, s, http.MethodGet, base+"/formats/"+string(rune('0'+i)), nil))
			if desc.FourCC != want || desc.Index != uint32(i) {
				t.Errorf("format %d = %+v", i, desc)
			}
		}
		rec := do(t, s, http.MethodGet, base+"/formats/2", nil)
		expectStatus(t, rec, http.StatusBadRequest)
		if !strings.Contains(rec.Body.String(), string(device.CodeInvalidArgument)) {
			t.Errorf("problem body lacks error code: %s", rec.Body.String())
		}
	})

	t.Run("try does not commit", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, base+"/format/try", models.FormatRequestData{FourCC: "RGB3"})
		expectStatus(t, rec, http.StatusOK)
		if f := decode[models.FormatData](t, rec); f.Pix.SizeImage != device.RGBFrameSize {
			t.Errorf("negotiated = %+v", f.Pix)
		}
		expectStatus(t, do(t, s, http.MethodPost, base+"/format/try", models.FormatRequestData{FourCC: "MJPG"}), http.StatusBadRequest)

		f := decode[models.FormatData](t, do(t, s, http.MethodGet, base+"/format", nil))
		if f.Pix.FourCC != "YUYV" {
			t.Errorf("active format = %s after try", f.Pix.FourCC)
		}
	})

	t.Run("set", func(t *testing.T) {
		expectStatus(t, do(t, s, http.MethodPut, base+"/format",
			models.FormatRequestData{FourCC: "RGB3", Width: 640, Height: 480}), http.StatusBadRequest)

		rec := do(t, s, http.MethodPut, base+"/format", models.FormatRequestData{FourCC: "RGB3", Width: 320, Height: 240})
		expectStatus(t, rec, http.StatusOK)
		f := decode[models.FormatData](t, do(t, s, http.MethodGet, base+"/format", nil))
		if f.Pix.FourCC != "RGB3" || f.Pix.BytesPerLine != 960 {
			t.Errorf("active format = %+v", f.Pix)
		}
	})
}

func TestBufferRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		count uint32
		want  uint32
	}{
		{0, 1},
		{4, 4},
		{100, 7},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodPost, base+"/buffers", models.RequestBuffersData{Count: tt.count})
		expectStatus(t, rec, http.StatusOK)
		if got := decode[models.RequestBuffersData](t, rec).Count; got != tt.want {
			t.Errorf("RequestBuffers(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}

	b := decode[models.BufferData](t, do(t, s, http.MethodGet, base+"/buffers/3", nil))
	if b.Length != 233472 || b.Offset != 2*3*233472 || b.BytesUsed != device.YUYVFrameSize {
		t.Errorf("buffer 3 = %+v", b)
	}
	expectStatus(t, do(t, s, http.MethodGet, base+"/buffers/7", nil), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodGet, base+"/buffers/0?type=2", nil), http.StatusBadRequest)

	expectStatus(t, do(t, s, http.MethodPost, base+"/buffers/6/queue", models.BufferRequestData{}), http.StatusOK)
	expectStatus(t, do(t, s, http.MethodPost, base+"/buffers/0/queue", models.BufferRequestData{Memory: 2}), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPost, base+"/buffers/7/dequeue", models.BufferRequestData{NonBlocking: true}), http.StatusBadRequest)
}

func TestDequeue(t *testing.T) {
	s := newTestServer(t, nil)
	sess := decode[models.SessionData](t, do(t, s, http.MethodPost, base+"/sessions", models.OpenSessionData{}))
	expectStatus(t, do(t, s, http.MethodPut, base+"/sessions/"+sess.ID+"/frame", make([]byte, device.RGBFrameSize)), http.StatusOK)

	first := decode[models.BufferData](t, do(t, s, http.MethodPost, base+"/buffers/0/dequeue", models.BufferRequestData{NonBlocking: true}))
	if first.Sequence != 1 || !first.Fresh || first.Timestamp == "" {
		t.Errorf("first dequeue = %+v", first)
	}

	start := time.Now()
	second := decode[models.BufferData](t, do(t, s, http.MethodPost, base+"/buffers/0/dequeue", models.BufferRequestData{}))
	if second.Sequence != 1 || second.Fresh {
		t.Errorf("stale dequeue = %+v", second)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("blocking dequeue returned after %v, want the dequeue bound", elapsed)
	}

	rec := do(t, s, http.MethodPost, base+"/buffers/0/dequeue", models.BufferRequestData{Session: "missing"})
	expectStatus(t, rec, http.StatusNotFound)
}

func TestInputAndStandardRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	in := decode[models.InputData](t, do(t, s, http.MethodGet, base+"/inputs/0", nil))
	if in.Name != device.InputName || in.Type != 2 {
		t.Errorf("input 0 = %+v", in)
	}
	expectStatus(t, do(t, s, http.MethodGet, base+"/inputs/1", nil), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPut, base+"/input", models.InputSelectionData{Input: 0}), http.StatusOK)
	expectStatus(t, do(t, s, http.MethodPut, base+"/input", models.InputSelectionData{Input: 1}), http.StatusBadRequest)

	std := decode[models.StandardData](t, do(t, s, http.MethodGet, base+"/standard", nil))
	if std.Name != "NTSC-M" {
		t.Errorf("standard = %+v", std)
	}
	expectStatus(t, do(t, s, http.MethodPut, base+"/standard", models.StandardData{Std: 0xff}), http.StatusOK)
}

func TestParamRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	p := decode[models.ParmData](t, do(t, s, http.MethodGet, base+"/params", nil))
	if p.TimePerFrame != (models.FramerateData{Numerator: 1, Denominator: 10}) || p.ReadBuffers != device.ReadBuffers {
		t.Errorf("params = %+v", p)
	}
	expectStatus(t, do(t, s, http.MethodGet, base+"/params?type=2", nil), http.StatusBadRequest)

	set := models.ParmData{TimePerFrame: models.FramerateData{Numerator: 1, Denominator: 30}}
	echoed := decode[models.ParmData](t, do(t, s, http.MethodPut, base+"/params", set))
	if echoed.TimePerFrame.Denominator != 30 {
		t.Errorf("echoed = %+v", echoed)
	}
	p = decode[models.ParmData](t, do(t, s, http.MethodGet, base+"/params", nil))
	if p.TimePerFrame.Denominator != 10 {
		t.Errorf("frame interval changed to 1/%d", p.TimePerFrame.Denominator)
	}
}

func TestUnsupportedRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, base + "/controls/9963776", nil},
		{http.MethodGet, base + "/controls/9963776/value", nil},
		{http.MethodPut, base + "/controls/9963776/value", map[string]int{"value": 1}},
		{http.MethodGet, base + "/crop", nil},
	}
	for _, tt := range tests {
		rec := do(t, s, tt.method, tt.path, tt.body)
		expectStatus(t, rec, http.StatusNotImplemented)
		if !strings.Contains(rec.Body.String(), string(device.CodeNotSupported)) {
			t.Errorf("%s %s body lacks code: %s", tt.method, tt.path, rec.Body.String())
		}
	}
}

func TestCropRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	sel := decode[models.SelectionData](t, do(t, s, http.MethodGet, base+"/selection", nil))
	if sel.Rect.Width != 320 || sel.Rect.Height != 240 {
		t.Errorf("selection = %+v", sel)
	}
	expectStatus(t, do(t, s, http.MethodGet, base+"/selection?target=1", nil), http.StatusOK)
	expectStatus(t, do(t, s, http.MethodGet, base+"/selection?target=0", nil), http.StatusBadRequest)

	cc := decode[models.CropCapData](t, do(t, s, http.MethodGet, base+"/cropcap", nil))
	if cc.Bounds != cc.DefRect || cc.Bounds.Width != 320 {
		t.Errorf("cropcap = %+v", cc)
	}
	expectStatus(t, do(t, s, http.MethodPut, base+"/crop", models.CropData{Rect: models.RectData{Width: 10, Height: 10}}), http.StatusOK)
}

func TestStreamRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/stream/on", "/stream/on", "/stream/off", "/stream/off"} {
		expectStatus(t, do(t, s, http.MethodPost, base+path, nil), http.StatusNoContent)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &Options{PrometheusHandler: exporters.HTTPHandler()})
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestLogsRoute(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/logs?lines=5", nil)
	expectStatus(t, rec, http.StatusOK)
	if logs := decode[models.LogsData](t, rec); logs.Count > 5 || logs.Count != len(logs.Entries) {
		t.Errorf("logs count = %d, entries = %d", logs.Count, len(logs.Entries))
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodOptions, base+"/format", nil)
	expectStatus(t, rec, http.StatusNoContent)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}
