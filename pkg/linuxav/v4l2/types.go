package v4l2

// Capability flags.
const (
	CapVideoCapture = 0x00000001
	CapVideoOutput  = 0x00000002
	CapTimePerFrame = 0x00001000 // streamparm capability, not a device cap
	CapReadWrite    = 0x01000000
	CapStreaming    = 0x04000000
	CapDeviceCaps   = 0x80000000
)

// Pixel formats served by the emulator.
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtRGB24 = 0x33424752 // 'RGB3'
)

// BufType identifies the data stream a request applies to.
type BufType uint32

// Buffer types.
const (
	BufTypeVideoCapture BufType = 1
	BufTypeVideoOutput  BufType = 2
)

// Memory identifies how buffer contents are exchanged.
type Memory uint32

// Memory modes.
const (
	MemoryMMAP    Memory = 1
	MemoryUserPtr Memory = 2
	MemoryDMABuf  Memory = 4
)

// Field is the interlacing order of a frame.
type Field uint32

// Field orders.
const (
	FieldAny  Field = 0
	FieldNone Field = 1
)

// Colorspace tags.
type Colorspace uint32

// Colorspaces.
const (
	ColorspaceSMPTE170M Colorspace = 1
	ColorspaceSRGB      Colorspace = 8
)

// Buffer flags.
const (
	BufFlagMapped = 0x00000001
	BufFlagQueued = 0x00000002
	BufFlagDone   = 0x00000004
)

// StdID is a bitmask of analog video standards.
type StdID uint64

// Video standards.
const (
	StdNTSCM StdID = 0x00001000
)

// Input types.
const (
	InputTypeTuner  = 1
	InputTypeCamera = 2
)

// Selection targets.
const (
	SelTgtCrop        = 0x0000
	SelTgtCropDefault = 0x0001
	SelTgtCropBounds  = 0x0002
)

// Rect is a rectangle in pixel coordinates.
type Rect struct {
	Left   int32  `json:"left"`
	Top    int32  `json:"top"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}
