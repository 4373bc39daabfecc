package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FrameInfo is the sequence and timestamp of the frame currently held.
type FrameInfo struct {
	Sequence  uint32
	Timestamp time.Time
}

// FrameStore owns the single shared frame buffer. Producers overwrite it in
// full on every submission; consumers read it or alias it through mappings.
// Content written through a Mapping is not serialized with Submit.
type FrameStore struct {
	mu        sync.RWMutex
	buf       []byte
	staging   []byte
	timestamp time.Time
	sequence  atomic.Uint32
	gate      *Gate
	now       func() time.Time

	// Outstanding mappings keep buf alive after release.
	refs     int
	released bool
}

func newFrameStore(capacity int, now func() time.Time) (*FrameStore, error) {
	buf, err := allocFrameBuffer(capacity)
	if err != nil {
		return nil, wrapError(CodeOutOfMemory, "start", "frame buffer allocation failed", err)
	}
	return &FrameStore{
		buf:     buf,
		staging: make([]byte, capacity),
		gate:    newGate(),
		now:     now,
	}, nil
}

// Capacity returns the frame buffer size in bytes.
func (s *FrameStore) Capacity() int {
	return len(s.staging)
}

// Sequence returns the current frame sequence.
func (s *FrameStore) Sequence() uint32 {
	return s.sequence.Load()
}

// Info returns the sequence and timestamp of the held frame.
func (s *FrameStore) Info() FrameInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FrameInfo{Sequence: s.sequence.Load(), Timestamp: s.timestamp}
}

// Submit copies data into the frame buffer, truncating it to capacity.
// When yuyv is set the input is treated as RGB24 and converted. It bumps the
// sequence, stamps the frame and wakes every waiter. It never blocks on
// consumers.
func (s *FrameStore) Submit(data []byte, yuyv bool) (int, FrameInfo, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return 0, FrameInfo{}, newError(CodeIO, "write", "frame buffer released")
	}

	n := min(len(data), len(s.buf))
	var seq uint32
	if yuyv {
		copy(s.staging, data[:n])
		seq = s.sequence.Add(1)
		ConvertRGBToYUYV(s.buf, s.staging[:RGBFrameSize])
	} else {
		copy(s.buf, data[:n])
		seq = s.sequence.Add(1)
	}
	s.timestamp = s.now()
	info := FrameInfo{Sequence: seq, Timestamp: s.timestamp}
	s.mu.Unlock()

	s.gate.Broadcast()
	return n, info, nil
}

// ReadAt copies frame bytes starting at off into p, never past limit.
func (s *FrameStore) ReadAt(p []byte, off, limit int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released {
		return 0, newError(CodeIO, "read", "frame buffer released")
	}
	if off >= limit {
		return 0, nil
	}
	end := min(off+len(p), limit, len(s.buf))
	return copy(p, s.buf[off:end]), nil
}

// acquire waits up to bound for a new frame (bound <= 0 does not wait), then
// returns the current frame regardless of whether one arrived, marking it
// delivered on cur.
func (s *FrameStore) acquire(ctx context.Context, cur *Cursor, bound time.Duration) (FrameInfo, bool, error) {
	if bound > 0 {
		if _, err := s.gate.Wait(ctx, bound); err != nil {
			return FrameInfo{}, false, err
		}
	}
	info := s.Info()
	fresh := cur.claim(info.Sequence)
	return info, fresh, nil
}

func (s *FrameStore) readiness(cur *Cursor) Readiness {
	return Readiness{
		Readable: s.sequence.Load() != cur.Delivered(),
		Writable: true,
	}
}

// pin hands out the backing buffer for a mapping.
func (s *FrameStore) pin() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, newError(CodeIO, "mmap", "frame buffer released")
	}
	s.refs++
	return s.buf, nil
}

func (s *FrameStore) unpin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs--
	if s.released && s.refs == 0 {
		return s.free()
	}
	return nil
}

func (s *FrameStore) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	if s.refs == 0 {
		return s.free()
	}
	return nil
}

func (s *FrameStore) free() error {
	buf := s.buf
	s.buf = nil
	if buf == nil {
		return nil
	}
	return releaseFrameBuffer(buf)
}
