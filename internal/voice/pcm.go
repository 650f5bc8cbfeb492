package voice

import "encoding/binary"

// DecodePCM16 converts little-endian signed 16-bit mono samples to floats in
// [-1, 1). A trailing odd byte is ignored.
func DecodePCM16(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(b[2*i:]))) / 32768
	}
	return out
}
