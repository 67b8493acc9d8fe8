package playback

import "encoding/binary"

// toSamples converts interleaved 16-bit little-endian PCM bytes into dst,
// applying a linear gain with clipping. It returns the number of samples
// written; dst positions past the input are zeroed.
func toSamples(dst []int16, src []byte, gain float64) int {
	n := len(src) / 2
	if n > len(dst) {
		n = len(dst)
	}

	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(src[i*2 : i*2+2]))
		v := float64(s) * gain
		switch {
		case v > 32767:
			s = 32767
		case v < -32768:
			s = -32768
		default:
			s = int16(v)
		}
		dst[i] = s
	}

	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return n
}
