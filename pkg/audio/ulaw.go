// Package audio provides the codec and rate-adaptation primitives for the
// telephony media path: G.711 µ-law expansion, linear resampling, int16
// byte-order swapping, and fixed-duration chunking.
//
// All functions are pure and never block. PCM throughout the package is
// 16-bit mono little-endian unless a function says otherwise.
package audio

// ulawBias is the G.711 µ-law encoding bias.
const ulawBias = 0x84

// ulawTable maps each µ-law code byte to its expanded linear sample.
var ulawTable [256]int16

func init() {
	for i := range ulawTable {
		ulawTable[i] = expandULaw(byte(i))
	}
}

// expandULaw decodes a single G.711 µ-law code to a linear int16 sample.
func expandULaw(code byte) int16 {
	u := ^code
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F

	sample := (int32(mantissa)<<3 + ulawBias) << exponent
	sample -= ulawBias

	if sign != 0 {
		sample = -sample
	}
	return int16(sample)
}

// DecodeULaw expands G.711 µ-law bytes to 16-bit little-endian PCM.
// The output is exactly twice the length of the input; an empty input
// yields an empty output.
func DecodeULaw(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, code := range data {
		s := ulawTable[code]
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
