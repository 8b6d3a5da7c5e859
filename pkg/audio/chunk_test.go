package audio_test

import (
	"bytes"
	"testing"

	"github.com/timetocall/callbridge/pkg/audio"
)

func TestChunkSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rate int
		want int
	}{
		{16000, 640},
		{8000, 320},
		{24000, 960},
	}
	for _, tc := range tests {
		if got := audio.ChunkSize(tc.rate); got != tc.want {
			t.Errorf("ChunkSize(%d): got %d, want %d", tc.rate, got, tc.want)
		}
	}
}

func TestChunks_Concatenation(t *testing.T) {
	t.Parallel()
	in := make([]byte, 1500)
	for i := range in {
		in[i] = byte(i)
	}
	chunks := audio.Chunks(in, 640)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 640 || len(chunks[1]) != 640 || len(chunks[2]) != 220 {
		t.Fatalf("unexpected chunk lengths: %d, %d, %d",
			len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	var joined []byte
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	if !bytes.Equal(joined, in) {
		t.Fatal("concatenated chunks must reproduce the input")
	}
}

func TestChunks_ExactMultiple(t *testing.T) {
	t.Parallel()
	chunks := audio.Chunks(make([]byte, 1280), 640)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
}

func TestChunks_Empty(t *testing.T) {
	t.Parallel()
	if chunks := audio.Chunks(nil, 640); chunks != nil {
		t.Fatalf("expected nil, got %d chunks", len(chunks))
	}
}
