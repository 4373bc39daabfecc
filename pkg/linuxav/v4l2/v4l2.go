// Package v4l2 holds the Video4Linux2 protocol vocabulary used by the
// emulated capture endpoint: pixel format codes, capability and buffer
// flags, buffer types, memory modes, video standards and selection targets.
//
// The values match the kernel's videodev2.h so that descriptors produced by
// the emulator can be compared with those of real devices.
//
// # Pixel Formats
//
// Four-character codes are packed little-endian:
//
//	code := v4l2.ParseFourCC("YUYV")   // == v4l2.PixFmtYUYV
//	name := v4l2.FormatFourCC(code)    // "YUYV"
//
// # Capabilities
//
// Capability flags are combined with bitwise OR:
//
//	caps := v4l2.CapVideoCapture | v4l2.CapStreaming | v4l2.CapReadWrite
//	if caps&v4l2.CapStreaming != 0 {
//	    // buffers can be queued and dequeued
//	}
package v4l2
