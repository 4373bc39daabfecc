// Package pattern renders RGB24 test frames for feeding a capture endpoint.
package pattern

import "fmt"

// Kind selects the rendered pattern.
type Kind string

// Supported patterns.
const (
	KindBars     Kind = "bars"
	KindGradient Kind = "gradient"
	KindSolid    Kind = "solid"
)

// barColors are the seven SMPTE bars at 75% intensity.
var barColors = [7][3]byte{
	{192, 192, 192}, // Gray
	{192, 192, 0},   // Yellow
	{0, 192, 192},   // Cyan
	{0, 192, 0},     // Green
	{192, 0, 192},   // Magenta
	{192, 0, 0},     // Red
	{0, 0, 192},     // Blue
}

// ParseKind validates a pattern name.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(name); k {
	case KindBars, KindGradient, KindSolid:
		return k, nil
	default:
		return "", fmt.Errorf("unknown pattern %q (want bars, gradient or solid)", name)
	}
}

// FillBars writes vertical color bars scrolled left by shift pixels.
func FillBars(buf []byte, width, height, shift int) {
	barWidth := max(width/len(barColors), 1)
	for y := range height {
		for x := range width {
			barIdx := min(((x+shift)%width)/barWidth, len(barColors)-1)
			i := (y*width + x) * 3
			copy(buf[i:i+3], barColors[barIdx][:])
		}
	}
}

// FillGradient writes a diagonal ramp whose phase advances per frame.
func FillGradient(buf []byte, width, height, phase int) {
	for y := range height {
		for x := range width {
			i := (y*width + x) * 3
			buf[i] = byte(x + phase)
			buf[i+1] = byte(y + phase)
			buf[i+2] = byte(x + y)
		}
	}
}

// FillSolid writes one color over the whole frame.
func FillSolid(buf []byte, color [3]byte) {
	for i := 0; i+2 < len(buf); i += 3 {
		copy(buf[i:i+3], color[:])
	}
}

// Generator renders successive frames of one pattern.
type Generator struct {
	kind   Kind
	width  int
	height int
	color  [3]byte
	frame  int
	buf    []byte
}

// NewGenerator returns a generator for width x height RGB24 frames. color
// is used by the solid pattern only.
func NewGenerator(kind Kind, width, height int, color [3]byte) *Generator {
	return &Generator{
		kind:   kind,
		width:  width,
		height: height,
		color:  color,
		buf:    make([]byte, width*height*3),
	}
}

// Next renders the next frame. The returned slice is reused by the
// following call.
func (g *Generator) Next() []byte {
	switch g.kind {
	case KindGradient:
		FillGradient(g.buf, g.width, g.height, g.frame)
	case KindSolid:
		FillSolid(g.buf, g.color)
	default:
		FillBars(g.buf, g.width, g.height, g.frame*4)
	}
	g.frame++
	return g.buf
}

// Frame returns the number of frames rendered so far.
func (g *Generator) Frame() int {
	return g.frame
}
