package decode_test

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/swingsense/impact-detector/internal/decode"
)

func TestParseF32LE(t *testing.T) {
	t.Parallel()

	want := []float64{0, 0.5, -0.9}
	raw := make([]byte, 0, len(want)*4)
	for _, v := range want {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(v)))
		raw = append(raw, buf[:]...)
	}

	got := decode.ParseF32LE(raw)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseF32LEPartialTail(t *testing.T) {
	t.Parallel()

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(0.25))
	raw := append(buf[:], 0xAA, 0xBB)

	got := decode.ParseF32LE(raw)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestParseF32LEEmpty(t *testing.T) {
	t.Parallel()

	if got := decode.ParseF32LE(nil); got != nil {
		t.Errorf("ParseF32LE(nil) = %v, want nil", got)
	}
	if got := decode.ParseF32LE([]byte{1, 2, 3}); got != nil {
		t.Errorf("ParseF32LE(short) = %v, want nil", got)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	d := decode.NewFFmpegDecoder("")
	if _, _, err := d.Decode(ctx, []byte("data")); !errors.Is(err, decode.ErrFFmpegNotFound) {
		t.Errorf("missing binary: error = %v, want ErrFFmpegNotFound", err)
	}

	d = decode.NewFFmpegDecoder("/usr/bin/ffmpeg")
	if _, _, err := d.Decode(ctx, nil); !errors.Is(err, decode.ErrEmptyBlob) {
		t.Errorf("empty blob: error = %v, want ErrEmptyBlob", err)
	}
}
