package audio

// frameMillis is the wire frame length carried by telephony media streams.
// 20 ms is the packetisation interval used by the carrier's RTP path.
const frameMillis = 20

// ChunkSize returns the byte length of one 20 ms frame of 16-bit mono PCM
// at the given sample rate: 640 bytes at 16 kHz, 320 bytes at 8 kHz.
func ChunkSize(sampleRate int) int {
	return sampleRate * frameMillis / 1000 * 2
}

// Chunks splits b into size-byte slices. The final chunk may be shorter
// when len(b) is not a multiple of size. The returned slices alias b.
// A non-positive size or empty input yields nil.
func Chunks(b []byte, size int) [][]byte {
	if size <= 0 || len(b) == 0 {
		return nil
	}
	out := make([][]byte, 0, (len(b)+size-1)/size)
	for len(b) > size {
		out = append(out, b[:size])
		b = b[size:]
	}
	return append(out, b)
}
