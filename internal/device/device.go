// Package device implements an emulated video capture endpoint.
//
// A producer pushes RGB24 frames with Submit (or a session Write). The frame
// lands in a single shared buffer, converted to YUYV when that format is
// active, and every blocked consumer is woken. Consumers retrieve the latest
// frame through sequential reads, buffer dequeues, or a shared page mapping,
// and negotiate formats through the capture control operations.
//
// The device serves exactly one in-flight frame. Buffer indices returned by
// the streaming operations all alias that frame.
package device

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/smartcam/internal/events"
	"github.com/smazurov/smartcam/internal/logging"
	"github.com/smazurov/smartcam/pkg/linuxav/v4l2"
)

// Default bounds for blocking consumers.
const (
	DefaultReadTimeout    = 100 * time.Millisecond
	DefaultDequeueTimeout = time.Second
)

// CursorMode selects how delivered-frame cursors are shared.
type CursorMode string

// Cursor modes.
const (
	// CursorShared gives every consumer one delivered-sequence cursor, so
	// concurrent readers race to claim each frame.
	CursorShared CursorMode = "shared"
	// CursorSession gives each session its own cursor.
	CursorSession CursorMode = "session"
)

// Config configures a Device.
type Config struct {
	Name           string
	ReadTimeout    time.Duration
	DequeueTimeout time.Duration
	CursorMode     CursorMode

	Registrar Registrar
	Mapper    PageMapper
	EventBus  *events.Bus
	Logger    *slog.Logger
	Clock     func() time.Time
	PageSize  int
}

// Device is one emulated capture endpoint. All state lives here; multiple
// devices can coexist in a process.
type Device struct {
	cfg      Config
	endpoint Endpoint
	formats  Registry
	store    *FrameStore
	mapper   *MappingProvider
	cursor   Cursor
	logger   *slog.Logger
	bus      *events.Bus

	// mu serializes lifecycle and guards sessions.
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// New allocates the frame buffer and registers the endpoint. If registration
// fails the buffer is released before the error is returned.
func New(cfg Config) (*Device, error) {
	if cfg.Name == "" {
		cfg.Name = "smartcam"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = DefaultDequeueTimeout
	}
	switch cfg.CursorMode {
	case "":
		cfg.CursorMode = CursorShared
	case CursorShared, CursorSession:
	default:
		return nil, newError(CodeInvalidArgument, "start", "unknown cursor mode "+string(cfg.CursorMode))
	}
	if cfg.Registrar == nil {
		cfg.Registrar = nopRegistrar{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger("device")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = hostPageSize()
	}

	capacity := v4l2.PageAlign(RGBFrameSize, cfg.PageSize)
	store, err := newFrameStore(capacity, cfg.Clock)
	if err != nil {
		return nil, err
	}

	ep, err := cfg.Registrar.RegisterEndpoint(cfg.Name)
	if err != nil {
		_ = store.release()
		return nil, wrapError(CodeIO, "start", "endpoint registration failed", err)
	}

	d := &Device{
		cfg:      cfg,
		endpoint: ep,
		store:    store,
		mapper:   &MappingProvider{store: store, pageSize: cfg.PageSize, mapper: cfg.Mapper},
		logger:   cfg.Logger.With("endpoint", ep.Name),
		bus:      cfg.EventBus,
		sessions: make(map[string]*Session),
	}
	d.logger.Info("Capture endpoint registered",
		"buffer_size", capacity,
		"format", d.formats.Current().FourCC(),
		"cursor_mode", cfg.CursorMode)
	return d, nil
}

// Close closes all sessions, unregisters the endpoint and releases the
// frame buffer. Outstanding mappings keep the buffer alive until closed.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	sessions := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.sessions = make(map[string]*Session)
	d.mu.Unlock()

	for _, s := range sessions {
		s.shutdown()
		d.bus.Publish(events.SessionClosedEvent{Device: d.endpoint.Name, Session: s.id})
	}

	d.cfg.Registrar.UnregisterEndpoint(d.endpoint)
	d.logger.Info("Capture endpoint unregistered")
	return d.store.release()
}

// Name returns the registered endpoint name.
func (d *Device) Name() string {
	return d.endpoint.Name
}

// Endpoint returns the platform registration record.
func (d *Device) Endpoint() Endpoint {
	return d.endpoint
}

// BufferSize returns the frame buffer capacity.
func (d *Device) BufferSize() int {
	return d.store.Capacity()
}

// ReadTimeout is the bound for blocking sequential reads.
func (d *Device) ReadTimeout() time.Duration {
	return d.cfg.ReadTimeout
}

// DequeueTimeout is the bound for blocking buffer dequeues.
func (d *Device) DequeueTimeout() time.Duration {
	return d.cfg.DequeueTimeout
}

// FrameInfo returns the current frame's sequence and timestamp without
// marking anything delivered.
func (d *Device) FrameInfo() FrameInfo {
	return d.store.Info()
}

// Submit ingests one producer frame and returns the number of bytes accepted.
// Input longer than the buffer is silently truncated.
func (d *Device) Submit(data []byte) (int, error) {
	n, _, err := d.SubmitFrame(data)
	return n, err
}

// SubmitFrame is Submit that also returns the sequence and timestamp
// stamped on this frame.
func (d *Device) SubmitFrame(data []byte) (int, FrameInfo, error) {
	pix := d.formats.Current()
	yuyv := pix.PixelFormat == v4l2.PixFmtYUYV

	n, info, err := d.store.Submit(data, yuyv)
	if err != nil {
		return 0, FrameInfo{}, err
	}

	d.logger.Debug("Frame submitted", "bytes", n, "sequence", info.Sequence, "converted", yuyv)
	d.bus.Publish(events.FrameSubmittedEvent{
		Device:    d.endpoint.Name,
		Sequence:  info.Sequence,
		Bytes:     n,
		FourCC:    pix.FourCC(),
		Converted: yuyv,
		Timestamp: info.Timestamp.Format(time.RFC3339Nano),
	})
	return n, info, nil
}

// Snapshot copies the active frame into dst without touching any delivery
// cursor, returning the bytes copied and the frame's metadata.
func (d *Device) Snapshot(dst []byte) (int, PixFormat, FrameInfo, error) {
	pix := d.formats.Current()
	info := d.store.Info()
	n, err := d.store.ReadAt(dst, 0, int(pix.SizeImage))
	return n, pix, info, err
}

// Map establishes a shared mapping of the frame buffer.
func (d *Device) Map(length int) (*Mapping, error) {
	d.logger.Debug("mmap", "length", length)
	m, err := d.mapper.Map(length)
	if err != nil {
		d.logger.Debug("mmap rejected", "length", length, "error", err)
		return nil, err
	}
	return m, nil
}

// Poll reports readiness against the shared cursor.
func (d *Device) Poll() Readiness {
	return d.store.readiness(&d.cursor)
}

func (d *Device) deliver(ctx context.Context, cur *Cursor, bound time.Duration, path, session string) (FrameInfo, bool, error) {
	info, fresh, err := d.store.acquire(ctx, cur, bound)
	if err != nil {
		return FrameInfo{}, false, err
	}
	if !fresh {
		d.logger.Debug("Delivering stale frame", "path", path, "sequence", info.Sequence, "session", session)
	}
	d.bus.Publish(events.FrameDeliveredEvent{
		Device:   d.endpoint.Name,
		Session:  session,
		Path:     path,
		Sequence: info.Sequence,
		Fresh:    fresh,
		Blocking: bound > 0,
	})
	return info, fresh, nil
}

func newSessionID() string {
	return uuid.NewString()
}
