package device

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smazurov/smartcam/internal/events"
	"github.com/smazurov/smartcam/pkg/linuxav/v4l2"
)

type failingRegistrar struct {
	err          error
	unregistered bool
}

func (r *failingRegistrar) RegisterEndpoint(string) (Endpoint, error) {
	return Endpoint{}, r.err
}

func (r *failingRegistrar) UnregisterEndpoint(Endpoint) {
	r.unregistered = true
}

func TestNewBufferSize(t *testing.T) {
	d := newTestDevice(t, Config{})
	if d.BufferSize() != 233472 {
		t.Errorf("BufferSize() = %d, want 233472", d.BufferSize())
	}
	if d.BufferSize()%testPageSize != 0 || d.BufferSize() < RGBFrameSize {
		t.Errorf("BufferSize() = %d is not a page-rounded RGB frame", d.BufferSize())
	}
	if d.Name() != "smartcam" {
		t.Errorf("Name() = %q, want default smartcam", d.Name())
	}
}

func TestNewRegistrationFailure(t *testing.T) {
	regErr := errors.New("no minor numbers left")
	reg := &failingRegistrar{err: regErr}

	_, err := New(Config{Registrar: reg, Logger: discardLogger(), PageSize: testPageSize})
	if err == nil {
		t.Fatal("New() should fail when registration fails")
	}
	if !errors.Is(err, regErr) {
		t.Errorf("New() error = %v, want wrapped registration error", err)
	}
	if reg.unregistered {
		t.Error("a failed registration must not be unregistered")
	}
}

func TestNewRejectsUnknownCursorMode(t *testing.T) {
	_, err := New(Config{CursorMode: "per-thread", Logger: discardLogger(), PageSize: testPageSize})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("New() error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestSubmitConvertsWhenYUYVActive(t *testing.T) {
	d := newTestDevice(t, Config{})

	before := d.FrameInfo().Sequence
	n, err := d.Submit(uniformRGB(255, 0, 0))
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if n != RGBFrameSize {
		t.Errorf("Submit() accepted %d bytes, want %d", n, RGBFrameSize)
	}
	if got := d.FrameInfo().Sequence; got != before+1 {
		t.Errorf("sequence = %d, want %d", got, before+1)
	}

	frame := make([]byte, YUYVFrameSize)
	got, pix, _, err := d.Snapshot(frame)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if got != YUYVFrameSize || pix.PixelFormat != v4l2.PixFmtYUYV {
		t.Fatalf("Snapshot() = %d bytes of %s", got, pix.FourCC())
	}
	want := bytes.Repeat([]byte{76, 85, 76, 255}, YUYVFrameSize/4)
	if !bytes.Equal(frame, want) {
		t.Error("stored frame does not match the converted red frame")
	}
}

func TestSubmitMatchesConverter(t *testing.T) {
	d := newTestDevice(t, Config{})
	src := patternRGB()

	if _, err := d.Submit(src); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	want := make([]byte, YUYVFrameSize)
	ConvertRGBToYUYV(want, src)

	got := make([]byte, YUYVFrameSize)
	if _, _, _, err := d.Snapshot(got); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("stored frame differs from ConvertRGBToYUYV output")
	}
}

func TestSubmitRGBStoredVerbatim(t *testing.T) {
	d := newTestDevice(t, Config{})
	useRGB(t, d)

	src := patternRGB()
	if _, err := d.Submit(src); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	got := make([]byte, RGBFrameSize)
	if _, _, _, err := d.Snapshot(got); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Error("RGB frame was modified on ingestion")
	}
}

func TestSubmitTruncatesToCapacity(t *testing.T) {
	d := newTestDevice(t, Config{})
	useRGB(t, d)

	n, err := d.Submit(make([]byte, d.BufferSize()+100))
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if n != d.BufferSize() {
		t.Errorf("Submit() accepted %d bytes, want %d", n, d.BufferSize())
	}

	n, err = d.Submit([]byte{1, 2, 3})
	if err != nil || n != 3 {
		t.Errorf("Submit(3 bytes) = %d, %v", n, err)
	}
}

func TestSubmitThenNonBlockingDequeue(t *testing.T) {
	stamp := testEpoch
	d := newTestDevice(t, Config{Clock: func() time.Time { return stamp }})

	stamp = testEpoch.Add(3 * time.Second)
	if _, err := d.Submit(uniformRGB(0, 0, 255)); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	info := d.FrameInfo()

	b := Buffer{Index: 0, Type: v4l2.BufTypeVideoCapture, Memory: v4l2.MemoryMMAP}
	if err := d.DequeueBuffer(context.Background(), &b, false); err != nil {
		t.Fatalf("DequeueBuffer() failed: %v", err)
	}
	if b.Sequence != info.Sequence {
		t.Errorf("Sequence = %d, want %d", b.Sequence, info.Sequence)
	}
	if !b.Timestamp.Equal(stamp) {
		t.Errorf("Timestamp = %v, want %v", b.Timestamp, stamp)
	}
	if !b.Fresh {
		t.Error("first dequeue after submit should be fresh")
	}
	if b.BytesUsed != YUYVFrameSize || b.Length != uint32(d.BufferSize()) || b.Flags != v4l2.BufFlagMapped {
		t.Errorf("descriptor = %+v", b)
	}
}

func TestStreamOnOffIdempotent(t *testing.T) {
	d := newTestDevice(t, Config{})
	if _, err := d.Submit(uniformRGB(1, 2, 3)); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	before := d.FrameInfo()
	format := d.formats.Current()

	for range 5 {
		if err := d.StreamOn(v4l2.BufTypeVideoCapture); err != nil {
			t.Fatalf("StreamOn() failed: %v", err)
		}
		if err := d.StreamOff(v4l2.BufTypeVideoCapture); err != nil {
			t.Fatalf("StreamOff() failed: %v", err)
		}
	}
	if err := d.StreamOff(v4l2.BufTypeVideoCapture); err != nil {
		t.Fatalf("repeated StreamOff() failed: %v", err)
	}

	if d.FrameInfo() != before || d.formats.Current() != format {
		t.Error("stream on/off changed device state")
	}
}

func TestPollReadiness(t *testing.T) {
	d := newTestDevice(t, Config{})

	r := d.Poll()
	if r.Readable || !r.Writable {
		t.Errorf("initial Poll() = %+v, want writable only", r)
	}

	if _, err := d.Submit(uniformRGB(0, 0, 0)); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if r = d.Poll(); !r.Readable || !r.Writable {
		t.Errorf("Poll() after submit = %+v, want readable and writable", r)
	}

	b := Buffer{Type: v4l2.BufTypeVideoCapture, Memory: v4l2.MemoryMMAP}
	if err := d.DequeueBuffer(context.Background(), &b, false); err != nil {
		t.Fatalf("DequeueBuffer() failed: %v", err)
	}
	if r = d.Poll(); r.Readable {
		t.Error("Poll() after dequeue should not be readable")
	}
}

func TestBlockingDequeueWakesOnSubmit(t *testing.T) {
	d := newTestDevice(t, Config{DequeueTimeout: 10 * time.Second})

	done := make(chan Buffer, 1)
	errCh := make(chan error, 1)
	go func() {
		b := Buffer{Index: 1, Type: v4l2.BufTypeVideoCapture, Memory: v4l2.MemoryMMAP}
		if err := d.DequeueBuffer(context.Background(), &b, true); err != nil {
			errCh <- err
			return
		}
		done <- b
	}()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-ticker.C:
			if _, err := d.Submit(uniformRGB(9, 9, 9)); err != nil {
				t.Fatalf("Submit() failed: %v", err)
			}
		case b := <-done:
			if b.Sequence == 0 || !b.Fresh {
				t.Errorf("woken dequeue = seq %d fresh %v, want a fresh frame", b.Sequence, b.Fresh)
			}
			return
		case err := <-errCh:
			t.Fatalf("DequeueBuffer() failed: %v", err)
		case <-deadline:
			t.Fatal("blocking dequeue was not woken by submit")
		}
	}
}

func TestBlockingDequeueTimesOutWithStaleFrame(t *testing.T) {
	d := newTestDevice(t, Config{DequeueTimeout: 30 * time.Millisecond})

	start := time.Now()
	b := Buffer{Type: v4l2.BufTypeVideoCapture, Memory: v4l2.MemoryMMAP}
	if err := d.DequeueBuffer(context.Background(), &b, true); err != nil {
		t.Fatalf("DequeueBuffer() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("blocking dequeue returned after %v, want at least the bound", elapsed)
	}
	if b.Fresh {
		t.Error("dequeue without a new frame should be flagged stale")
	}
	if b.Sequence != 0 {
		t.Errorf("Sequence = %d, want 0", b.Sequence)
	}
}

func TestDequeueContextCancel(t *testing.T) {
	d := newTestDevice(t, Config{DequeueTimeout: 10 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := Buffer{Type: v4l2.BufTypeVideoCapture, Memory: v4l2.MemoryMMAP}
	if err := d.DequeueBuffer(ctx, &b, true); !errors.Is(err, context.Canceled) {
		t.Errorf("DequeueBuffer() error = %v, want context.Canceled", err)
	}
}

func TestSequenceWraps(t *testing.T) {
	d := newTestDevice(t, Config{})
	d.store.sequence.Store(^uint32(0))

	if _, err := d.Submit(nil); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if seq := d.FrameInfo().Sequence; seq != 0 {
		t.Errorf("sequence after wrap = %d, want 0", seq)
	}
}

func TestCloseRejectsFurtherUse(t *testing.T) {
	d := newTestDevice(t, Config{})
	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}

	if _, err := d.Submit([]byte{1}); !errors.Is(err, ErrIO) {
		t.Errorf("Submit() after Close error = %v, want IO_ERROR", err)
	}
	if _, err := d.Open(OpenOptions{}); !errors.Is(err, ErrIO) {
		t.Errorf("Open() after Close error = %v, want IO_ERROR", err)
	}
	if _, err := d.Map(testPageSize); !errors.Is(err, ErrIO) {
		t.Errorf("Map() after Close error = %v, want IO_ERROR", err)
	}
}

func TestEventsPublished(t *testing.T) {
	bus := events.New()
	submitted := make(chan events.FrameSubmittedEvent, 1)
	changed := make(chan events.FormatChangedEvent, 1)
	unsub1 := bus.Subscribe(func(e events.FrameSubmittedEvent) { submitted <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e events.FormatChangedEvent) { changed <- e })
	defer unsub2()

	d := newTestDevice(t, Config{Name: "video7", EventBus: bus})
	useRGB(t, d)
	if _, err := d.Submit(make([]byte, 10)); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	select {
	case e := <-changed:
		if e.Device != "video7" || e.FourCC != "RGB3" {
			t.Errorf("FormatChangedEvent = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no FormatChangedEvent")
	}
	select {
	case e := <-submitted:
		if e.Bytes != 10 || e.Sequence != 1 || e.Converted {
			t.Errorf("FrameSubmittedEvent = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no FrameSubmittedEvent")
	}
}

func TestClosePublishesSessionClosed(t *testing.T) {
	bus := events.New()
	closed := make(chan events.SessionClosedEvent, 4)
	unsub := bus.Subscribe(func(e events.SessionClosedEvent) { closed <- e })
	defer unsub()

	d := newTestDevice(t, Config{Name: "video3", EventBus: bus})
	want := map[string]bool{}
	for range 2 {
		s, err := d.Open(OpenOptions{})
		if err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		want[s.ID()] = true
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	for range 2 {
		select {
		case e := <-closed:
			if e.Device != "video3" || !want[e.Session] {
				t.Errorf("SessionClosedEvent = %+v", e)
			}
			delete(want, e.Session)
		case <-time.After(time.Second):
			t.Fatalf("missing SessionClosedEvent, still open: %v", want)
		}
	}
}
