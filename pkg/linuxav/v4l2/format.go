package v4l2

import "time"

// Framerate represents a frame interval as a fraction of a second.
type Framerate struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Interval returns the frame interval as a duration.
func (f Framerate) Interval() time.Duration {
	if f.Denominator == 0 {
		return 0
	}
	return time.Duration(f.Numerator) * time.Second / time.Duration(f.Denominator)
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}

// ParseFourCC packs a four-character code. Shorter strings are padded with
// spaces, longer ones are truncated.
func ParseFourCC(code string) uint32 {
	var b [4]byte
	for i := range b {
		if i < len(code) {
			b[i] = code[i]
		} else {
			b[i] = ' '
		}
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// PageAlign rounds n up to a multiple of pageSize.
func PageAlign(n, pageSize int) int {
	return (n + pageSize - 1) &^ (pageSize - 1)
}
