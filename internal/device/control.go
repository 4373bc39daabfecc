package device

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/smartcam/internal/events"
	"github.com/smazurov/smartcam/pkg/linuxav/v4l2"
)

// Driver identity.
const (
	DriverName = "smartcam"
	CardName   = "smartcam"
	InputName  = "smartcam input"

	versionMajor = 0
	versionMinor = 1
	versionPatch = 0

	// DriverVersion is the capability version, packed as major<<16 | minor<<8 | patch.
	DriverVersion = versionMajor<<16 | versionMinor<<8 | versionPatch

	// ReadBuffers is the advertised read-path buffer count.
	ReadBuffers = 3
)

// Capability is the result of a capability query.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// RequestBuffers is the payload of a buffer request.
type RequestBuffers struct {
	Count  uint32
	Type   v4l2.BufType
	Memory v4l2.Memory
}

// Buffer is a derived buffer descriptor. It is computed on every query and
// never stored.
type Buffer struct {
	Index     uint32
	Type      v4l2.BufType
	Memory    v4l2.Memory
	Length    uint32
	BytesUsed uint32
	Flags     uint32
	Offset    uint32
	Timestamp time.Time
	Sequence  uint32
	// Fresh is false when a dequeue returned a frame that had already been
	// delivered, which happens when the wait bound expires first.
	Fresh bool
}

// Input describes a video input.
type Input struct {
	Index uint32
	Name  string
	Type  uint32
	Std   v4l2.StdID
}

// CaptureParm holds streaming parameters for a capture stream.
type CaptureParm struct {
	Capability   uint32
	CaptureMode  uint32
	TimePerFrame v4l2.Framerate
	ExtendedMode uint32
	ReadBuffers  uint32
}

// StreamParm is the payload of get/set parameters.
type StreamParm struct {
	Type    v4l2.BufType
	Capture CaptureParm
}

// QueryCtrl is the payload of a control query.
type QueryCtrl struct {
	ID   uint32
	Name string
}

// Control is the payload of get/set control.
type Control struct {
	ID    uint32
	Value int32
}

// Selection is the payload of a selection query.
type Selection struct {
	Type   v4l2.BufType
	Target uint32
	Rect   v4l2.Rect
}

// CropCap describes the cropping limits.
type CropCap struct {
	Type    v4l2.BufType
	Bounds  v4l2.Rect
	DefRect v4l2.Rect
}

// Crop is the payload of get/set crop.
type Crop struct {
	Type v4l2.BufType
	Rect v4l2.Rect
}

var frameRect = v4l2.Rect{Width: FrameWidth, Height: FrameHeight}

func (d *Device) invalid(op, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	d.logger.Debug(op+" rejected", "reason", msg)
	return newError(CodeInvalidArgument, op, msg)
}

// QueryCapabilities returns the fixed device identity. It never fails.
func (d *Device) QueryCapabilities() Capability {
	d.logger.Debug("querycap")
	caps := uint32(v4l2.CapVideoCapture | v4l2.CapStreaming | v4l2.CapReadWrite)
	return Capability{
		Driver:       DriverName,
		Card:         CardName,
		BusInfo:      "platform:" + d.endpoint.Name,
		Version:      DriverVersion,
		Capabilities: caps | v4l2.CapDeviceCaps,
		DeviceCaps:   caps,
	}
}

// EnumFormat fills f with the catalog entry at f.Index.
func (d *Device) EnumFormat(f *FormatDesc) error {
	d.logger.Debug("enum_fmt", "index", f.Index)
	desc, err := d.formats.Enumerate(f.Index)
	if err != nil {
		return err
	}
	*f = desc
	return nil
}

// GetFormat fills f with the active format.
func (d *Device) GetFormat(f *Format) error {
	d.logger.Debug("g_fmt")
	f.Type = v4l2.BufTypeVideoCapture
	f.Pix = d.formats.Current()
	return nil
}

// TryFormat replaces f.Pix with the catalog entry matching its pixel format.
// The active format is not changed.
func (d *Device) TryFormat(f *Format) error {
	d.logger.Debug("try_fmt", "fourcc", v4l2.FormatFourCC(f.Pix.PixelFormat))
	pix, err := d.formats.Negotiate(f.Pix.PixelFormat)
	if err != nil {
		d.logger.Debug("try_fmt rejected", "error", err)
		return err
	}
	f.Pix = pix
	return nil
}

// SetFormat activates the catalog entry matching pixel format, width and
// height exactly, and fills f with it.
func (d *Device) SetFormat(f *Format) error {
	d.logger.Debug("s_fmt",
		"fourcc", v4l2.FormatFourCC(f.Pix.PixelFormat),
		"width", f.Pix.Width,
		"height", f.Pix.Height)
	pix, err := d.formats.Commit(f.Pix.PixelFormat, f.Pix.Width, f.Pix.Height)
	if err != nil {
		d.logger.Debug("s_fmt rejected",
			"fourcc", v4l2.FormatFourCC(f.Pix.PixelFormat),
			"width", f.Pix.Width,
			"height", f.Pix.Height,
			"field", f.Pix.Field,
			"bytes_per_line", f.Pix.BytesPerLine,
			"size_image", f.Pix.SizeImage)
		return err
	}
	f.Type = v4l2.BufTypeVideoCapture
	f.Pix = pix
	d.bus.Publish(events.FormatChangedEvent{
		Device: d.endpoint.Name,
		FourCC: pix.FourCC(),
		Width:  pix.Width,
		Height: pix.Height,
	})
	return nil
}

// RequestBuffers clamps r.Count into [1, MaxBuffers]. No storage is
// allocated; every index aliases the single frame buffer.
func (d *Device) RequestBuffers(r *RequestBuffers) error {
	d.logger.Debug("reqbufs", "count", r.Count)
	r.Count = max(1, min(r.Count, MaxBuffers))
	return nil
}

func (d *Device) checkBuffer(op string, b *Buffer, checkMemory bool) error {
	if b.Index >= MaxBuffers {
		return d.invalid(op, "buffer index %d out of range", b.Index)
	}
	if b.Type != v4l2.BufTypeVideoCapture {
		return d.invalid(op, "buffer type %d is not capture", b.Type)
	}
	if checkMemory && b.Memory != v4l2.MemoryMMAP {
		return d.invalid(op, "memory mode %d is not mmap", b.Memory)
	}
	return nil
}

func (d *Device) fillBuffer(b *Buffer) {
	b.Length = uint32(d.store.Capacity())
	b.BytesUsed = d.formats.Current().SizeImage
	b.Flags = v4l2.BufFlagMapped
}

// QueryBuffer describes buffer b.Index. The offset stride of twice the
// buffer length is kept for protocol compatibility; every offset maps the
// same region.
func (d *Device) QueryBuffer(b *Buffer) error {
	d.logger.Debug("querybuf", "index", b.Index)
	if err := d.checkBuffer("querybuf", b, false); err != nil {
		return err
	}
	b.Memory = v4l2.MemoryMMAP
	d.fillBuffer(b)
	b.Offset = 2 * b.Index * b.Length
	return nil
}

// QueueBuffer validates b and refreshes its length, usage and flags.
// Nothing is retained.
func (d *Device) QueueBuffer(b *Buffer) error {
	d.logger.Debug("qbuf", "index", b.Index)
	if err := d.checkBuffer("qbuf", b, true); err != nil {
		return err
	}
	d.fillBuffer(b)
	return nil
}

// DequeueBuffer hands out the current frame using the shared cursor. When
// blocking it waits up to the dequeue bound for a new frame and then
// proceeds whether or not one arrived.
func (d *Device) DequeueBuffer(ctx context.Context, b *Buffer, blocking bool) error {
	return d.dequeue(ctx, b, blocking, &d.cursor, "")
}

func (d *Device) dequeue(ctx context.Context, b *Buffer, blocking bool, cur *Cursor, session string) error {
	d.logger.Debug("dqbuf", "index", b.Index, "blocking", blocking, "session", session)
	if err := d.checkBuffer("dqbuf", b, true); err != nil {
		return err
	}

	var bound time.Duration
	if blocking {
		bound = d.cfg.DequeueTimeout
	}
	info, fresh, err := d.deliver(ctx, cur, bound, "dequeue", session)
	if err != nil {
		return err
	}

	d.fillBuffer(b)
	b.Timestamp = info.Timestamp
	b.Sequence = info.Sequence
	b.Fresh = fresh
	return nil
}

// StreamOn is accepted unconditionally; streaming is always active.
func (d *Device) StreamOn(t v4l2.BufType) error {
	d.logger.Debug("streamon", "type", t)
	return nil
}

// StreamOff is accepted unconditionally.
func (d *Device) StreamOff(t v4l2.BufType) error {
	d.logger.Debug("streamoff", "type", t)
	return nil
}

// EnumInput describes the single camera input.
func (d *Device) EnumInput(in *Input) error {
	if in.Index != 0 {
		return d.invalid("enum_input", "input %d does not exist", in.Index)
	}
	d.logger.Debug("enum_input", "index", in.Index)
	in.Name = InputName
	in.Type = v4l2.InputTypeCamera
	in.Std = v4l2.StdNTSCM
	return nil
}

// GetInput returns the selected input, always 0.
func (d *Device) GetInput() uint32 {
	d.logger.Debug("g_input")
	return 0
}

// SetInput accepts only input 0.
func (d *Device) SetInput(i uint32) error {
	d.logger.Debug("s_input", "input", i)
	if i != 0 {
		return d.invalid("s_input", "input %d does not exist", i)
	}
	return nil
}

// GetStd reports NTSC-M.
func (d *Device) GetStd() v4l2.StdID {
	d.logger.Debug("g_std")
	return v4l2.StdNTSCM
}

// SetStd is accepted unconditionally.
func (d *Device) SetStd(std v4l2.StdID) error {
	d.logger.Debug("s_std", "std", std)
	return nil
}

// GetParm reports the fixed 1/10 s frame interval.
func (d *Device) GetParm(p *StreamParm) error {
	d.logger.Debug("g_parm", "type", p.Type)
	if p.Type != v4l2.BufTypeVideoCapture {
		return d.invalid("g_parm", "buffer type %d is not capture", p.Type)
	}
	p.Capture = CaptureParm{
		Capability:   v4l2.CapTimePerFrame,
		TimePerFrame: v4l2.Framerate{Numerator: 1, Denominator: 10},
		ReadBuffers:  ReadBuffers,
	}
	return nil
}

// SetParm accepts capture parameters and echoes them back unchanged.
// They are not honoured.
func (d *Device) SetParm(p *StreamParm) error {
	if p.Type != v4l2.BufTypeVideoCapture {
		return d.invalid("s_parm", "buffer type %d is not capture", p.Type)
	}
	d.logger.Debug("s_parm",
		"numerator", p.Capture.TimePerFrame.Numerator,
		"denominator", p.Capture.TimePerFrame.Denominator,
		"read_buffers", p.Capture.ReadBuffers)
	return nil
}

// QueryControl always fails: there are no adjustable controls.
func (d *Device) QueryControl(q *QueryCtrl) error {
	d.logger.Debug("queryctrl", "id", q.ID)
	return newError(CodeNotSupported, "queryctrl", "no controls")
}

// GetControl always fails: there are no adjustable controls.
func (d *Device) GetControl(c *Control) error {
	d.logger.Debug("g_ctrl", "id", c.ID)
	return newError(CodeNotSupported, "g_ctrl", "no controls")
}

// SetControl always fails: there are no adjustable controls.
func (d *Device) SetControl(c *Control) error {
	d.logger.Debug("s_ctrl", "id", c.ID, "value", c.Value)
	return newError(CodeNotSupported, "s_ctrl", "no controls")
}

// GetSelection reports the full frame for the crop bounds and default targets.
func (d *Device) GetSelection(s *Selection) error {
	d.logger.Debug("g_selection", "type", s.Type, "target", s.Target)
	if s.Type != v4l2.BufTypeVideoCapture {
		return d.invalid("g_selection", "buffer type %d is not capture", s.Type)
	}
	switch s.Target {
	case v4l2.SelTgtCropBounds, v4l2.SelTgtCropDefault:
		s.Rect = frameRect
		return nil
	default:
		return d.invalid("g_selection", "unsupported selection target %d", s.Target)
	}
}

// CropCapabilities reports the full frame as both bounds and default.
func (d *Device) CropCapabilities(c *CropCap) error {
	d.logger.Debug("cropcap")
	c.Type = v4l2.BufTypeVideoCapture
	c.Bounds = frameRect
	c.DefRect = frameRect
	return nil
}

// GetCrop is not supported.
func (d *Device) GetCrop(_ *Crop) error {
	d.logger.Debug("g_crop")
	return newError(CodeNotSupported, "g_crop", "cropping not supported")
}

// SetCrop is accepted and ignored.
func (d *Device) SetCrop(c *Crop) error {
	d.logger.Debug("s_crop", "rect", c.Rect)
	return nil
}
