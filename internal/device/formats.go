package device

import (
	"sync/atomic"

	"github.com/smazurov/smartcam/pkg/linuxav/v4l2"
)

// Fixed frame geometry and buffer limits.
const (
	FrameWidth    = 320
	FrameHeight   = 240
	YUYVFrameSize = FrameWidth * FrameHeight * 2
	RGBFrameSize  = FrameWidth * FrameHeight * 3
	MaxBuffers    = 7
)

// Catalog indices.
const (
	FormatYUYV  = 0
	FormatRGB24 = 1
)

// PixFormat describes a single-planar pixel format.
type PixFormat struct {
	Width        uint32          `json:"width"`
	Height       uint32          `json:"height"`
	PixelFormat  uint32          `json:"pixel_format"`
	Field        v4l2.Field      `json:"field"`
	BytesPerLine uint32          `json:"bytes_per_line"`
	SizeImage    uint32          `json:"size_image"`
	Colorspace   v4l2.Colorspace `json:"colorspace"`
}

// FourCC returns the pixel format code as a string.
func (f PixFormat) FourCC() string {
	return v4l2.FormatFourCC(f.PixelFormat)
}

// BytesPerPixel returns the packed pixel size.
func (f PixFormat) BytesPerPixel() uint32 {
	if f.Width == 0 {
		return 0
	}
	return f.BytesPerLine / f.Width
}

// Format is the request/response payload for get/try/set format.
type Format struct {
	Type v4l2.BufType
	Pix  PixFormat
}

// FormatDesc is one entry of the format enumeration.
type FormatDesc struct {
	Index       uint32
	Type        v4l2.BufType
	Description string
	PixelFormat uint32
}

type catalogEntry struct {
	description string
	pix         PixFormat
}

var catalog = [...]catalogEntry{
	FormatYUYV: {
		description: "YUYV",
		pix: PixFormat{
			Width:        FrameWidth,
			Height:       FrameHeight,
			PixelFormat:  v4l2.PixFmtYUYV,
			Field:        v4l2.FieldNone,
			BytesPerLine: YUYVFrameSize / FrameHeight,
			SizeImage:    YUYVFrameSize,
			Colorspace:   v4l2.ColorspaceSMPTE170M,
		},
	},
	FormatRGB24: {
		description: "RGB3",
		pix: PixFormat{
			Width:        FrameWidth,
			Height:       FrameHeight,
			PixelFormat:  v4l2.PixFmtRGB24,
			Field:        v4l2.FieldNone,
			BytesPerLine: RGBFrameSize / FrameHeight,
			SizeImage:    RGBFrameSize,
			Colorspace:   v4l2.ColorspaceSRGB,
		},
	},
}

// NumFormats is the size of the format catalog.
const NumFormats = len(catalog)

// CatalogFourCCs lists the catalog pixel formats in index order.
func CatalogFourCCs() []string {
	out := make([]string, 0, NumFormats)
	for _, e := range catalog {
		out = append(out, e.pix.FourCC())
	}
	return out
}

// Registry is the fixed catalog of supported pixel formats plus the
// index of the active one. The zero value has YUYV active.
type Registry struct {
	active atomic.Uint32
}

// Enumerate returns catalog entry index.
func (r *Registry) Enumerate(index uint32) (FormatDesc, error) {
	if index >= uint32(NumFormats) {
		return FormatDesc{}, newError(CodeInvalidArgument, "enum_fmt", "format index out of range")
	}
	e := catalog[index]
	return FormatDesc{
		Index:       index,
		Type:        v4l2.BufTypeVideoCapture,
		Description: e.description,
		PixelFormat: e.pix.PixelFormat,
	}, nil
}

// Current returns the active format.
func (r *Registry) Current() PixFormat {
	return catalog[r.active.Load()].pix
}

// ActiveIndex returns the catalog index of the active format.
func (r *Registry) ActiveIndex() int {
	return int(r.active.Load())
}

// Negotiate returns the canonical entry whose code matches fourcc without
// changing the active format.
func (r *Registry) Negotiate(fourcc uint32) (PixFormat, error) {
	for _, e := range catalog {
		if e.pix.PixelFormat == fourcc {
			return e.pix, nil
		}
	}
	return PixFormat{}, newError(CodeInvalidArgument, "try_fmt", "unsupported pixel format "+v4l2.FormatFourCC(fourcc))
}

// Commit activates the entry matching all of fourcc, width and height.
// On mismatch the active format is left unchanged.
func (r *Registry) Commit(fourcc, width, height uint32) (PixFormat, error) {
	for i, e := range catalog {
		if e.pix.PixelFormat == fourcc && e.pix.Width == width && e.pix.Height == height {
			r.active.Store(uint32(i))
			return e.pix, nil
		}
	}
	return PixFormat{}, newError(CodeInvalidArgument, "s_fmt", "no catalog entry matches format")
}
