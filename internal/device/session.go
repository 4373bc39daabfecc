package device

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/smazurov/smartcam/internal/events"
)

// OpenOptions configures a new session.
type OpenOptions struct {
	NonBlocking bool
}

// Session is one open handle on the endpoint. It carries the sequential read
// position and the blocking mode. Closing a session is the only way to
// release a consumer blocked in Read or DequeueBuffer before its bound.
type Session struct {
	id     string
	dev    *Device
	cursor *Cursor
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	pos         int64
	nonBlocking bool
}

var (
	_ io.ReadWriteSeeker = (*Session)(nil)
	_ io.Closer          = (*Session)(nil)
)

// Open creates a session. No per-session buffers are allocated.
func (d *Device) Open(opts OpenOptions) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          newSessionID(),
		dev:         d,
		cursor:      &d.cursor,
		ctx:         ctx,
		cancel:      cancel,
		nonBlocking: opts.NonBlocking,
	}
	if d.cfg.CursorMode == CursorSession {
		s.cursor = &Cursor{}
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		cancel()
		return nil, newError(CodeIO, "open", "device closed")
	}
	d.sessions[s.id] = s
	d.mu.Unlock()

	d.logger.Debug("open", "session", s.id, "non_blocking", opts.NonBlocking)
	d.bus.Publish(events.SessionOpenedEvent{
		Device:      d.endpoint.Name,
		Session:     s.id,
		NonBlocking: opts.NonBlocking,
	})
	return s, nil
}

// Session looks up an open session by id.
func (d *Device) Session(id string) (*Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	return s, ok
}

// SessionCount returns the number of open sessions.
func (d *Device) SessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// NonBlocking reports whether the session is in non-blocking mode.
func (s *Session) NonBlocking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonBlocking
}

// SetNonBlocking switches the blocking mode.
func (s *Session) SetNonBlocking(nb bool) {
	s.mu.Lock()
	s.nonBlocking = nb
	s.mu.Unlock()
}

// Position returns the sequential read position.
func (s *Session) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Read copies frame bytes from the current position. Once the position
// reaches the active format's image size it returns 0, io.EOF without
// waiting. Otherwise a blocking session first waits up to the read bound
// for a new frame, and proceeds with whatever frame is held.
func (s *Session) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(s.dev.formats.Current().SizeImage)
	s.dev.logger.Debug("read", "session", s.id, "count", len(p), "pos", s.pos)
	if s.pos >= size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	bound := s.dev.cfg.ReadTimeout
	if s.nonBlocking {
		bound = 0
	}
	if _, _, err := s.dev.deliver(s.ctx, s.cursor, bound, "read", s.id); err != nil {
		return 0, s.wrapClosed("read", err)
	}

	n, err := s.dev.store.ReadAt(p, int(s.pos), int(size))
	s.pos += int64(n)
	return n, err
}

// Write submits a producer frame.
func (s *Session) Write(p []byte) (int, error) {
	n, _, err := s.WriteFrame(p)
	return n, err
}

// WriteFrame submits a producer frame and returns the metadata stamped on it.
func (s *Session) WriteFrame(p []byte) (int, FrameInfo, error) {
	if s.ctx.Err() != nil {
		return 0, FrameInfo{}, newError(CodeIO, "write", "session closed")
	}
	s.dev.logger.Debug("write", "session", s.id, "count", len(p))
	return s.dev.SubmitFrame(p)
}

// Seek moves the sequential read position. io.SeekEnd is relative to the
// active format's image size.
func (s *Session) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		base = int64(s.dev.formats.Current().SizeImage)
	default:
		return s.pos, newError(CodeInvalidArgument, "seek", "invalid whence")
	}
	pos := base + offset
	if pos < 0 {
		return s.pos, newError(CodeInvalidArgument, "seek", "negative position")
	}
	s.pos = pos
	return pos, nil
}

// Poll reports whether an undelivered frame is available. Writing is
// always possible.
func (s *Session) Poll() Readiness {
	r := s.dev.store.readiness(s.cursor)
	s.dev.logger.Debug("poll", "session", s.id, "readable", r.Readable)
	return r
}

// DequeueBuffer dequeues using the session's blocking mode and cursor.
func (s *Session) DequeueBuffer(b *Buffer) error {
	return s.DequeueBufferContext(context.Background(), b)
}

// DequeueBufferContext is DequeueBuffer that also gives up when ctx is done.
func (s *Session) DequeueBufferContext(ctx context.Context, b *Buffer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	err := s.dev.dequeue(ctx, b, !s.NonBlocking(), s.cursor, s.id)
	return s.wrapClosed("dqbuf", err)
}

// Close releases the session and wakes any call blocked on it.
func (s *Session) Close() error {
	d := s.dev
	d.mu.Lock()
	_, ok := d.sessions[s.id]
	delete(d.sessions, s.id)
	d.mu.Unlock()

	s.shutdown()
	if ok {
		d.logger.Debug("release", "session", s.id)
		d.bus.Publish(events.SessionClosedEvent{Device: d.endpoint.Name, Session: s.id})
	}
	return nil
}

func (s *Session) shutdown() {
	s.cancel()
}

func (s *Session) wrapClosed(op string, err error) error {
	if err != nil && errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
		return wrapError(CodeIO, op, "session closed", err)
	}
	return err
}
