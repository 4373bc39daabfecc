package device

func clamp(x int) byte {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return byte(x)
}

// ConvertRGBToYUYV converts packed 24-bit RGB from src into packed YUYV in
// dst, one pixel pair (6 source bytes) to one 4-byte group at a time.
// Chroma is taken from the first pixel of each pair; the second pixel only
// contributes luma. Division truncates toward zero. Trailing bytes that do
// not form a whole pair are ignored. Returns the number of bytes written.
func ConvertRGBToYUYV(dst, src []byte) int {
	w := 0
	for r := 0; r+6 <= len(src) && w+4 <= len(dst); r += 6 {
		r1, g1, b1 := int(src[r]), int(src[r+1]), int(src[r+2])
		r2, g2, b2 := int(src[r+3]), int(src[r+4]), int(src[r+5])

		dst[w] = clamp((299*r1 + 587*g1 + 114*b1) / 1000)
		dst[w+1] = clamp((-169*r1-331*g1+500*b1)/1000 + 128)
		dst[w+2] = clamp((299*r2 + 587*g2 + 114*b2) / 1000)
		dst[w+3] = clamp((500*r1-419*g1-81*b1)/1000 + 128)
		w += 4
	}
	return w
}
