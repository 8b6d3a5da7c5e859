package audio

// Resample converts 16-bit mono little-endian PCM from srcRate to dstRate
// using linear interpolation. If srcRate == dstRate, or the input holds
// fewer than one sample, the input is returned unchanged. The output holds
// len(pcm)/2 * dstRate / srcRate samples (integer arithmetic, no drift
// across repeated calls of equal length).
func Resample(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// SwapBytes swaps the byte order of each int16 sample, converting between
// big-endian and little-endian PCM. Applying it twice returns the original
// data. A trailing odd byte, if any, is carried through unchanged.
func SwapBytes(pcm []byte) []byte {
	out := make([]byte, len(pcm))
	n := len(pcm) &^ 1
	for i := 0; i < n; i += 2 {
		out[i] = pcm[i+1]
		out[i+1] = pcm[i]
	}
	if n < len(pcm) {
		out[n] = pcm[n]
	}
	return out
}
