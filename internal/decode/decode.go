// Package decode converts encoded audio blobs into normalized mono samples
// using an FFmpeg subprocess. FFmpeg handles container and codec detection,
// so the analyzer accepts whatever format the client recorded in.
package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"time"

	"github.com/swingsense/impact-detector/internal/types"
	"github.com/swingsense/impact-detector/internal/util"
)

const (
	// decodeTimeout bounds a single decode run.
	decodeTimeout = 30 * time.Second
	// maxBlobSize rejects absurdly large uploads before spawning FFmpeg.
	maxBlobSize = 64 << 20 // 64 MB
)

// Decode errors.
var (
	// ErrFFmpegNotFound is returned when no FFmpeg binary is configured.
	ErrFFmpegNotFound = errors.New("ffmpeg not available")
	// ErrEmptyBlob is returned for zero-length input.
	ErrEmptyBlob = errors.New("empty audio data")
	// ErrBlobTooLarge is returned when the input exceeds the size limit.
	ErrBlobTooLarge = errors.New("audio data too large")
	// ErrNoAudio is returned when FFmpeg produced no samples.
	ErrNoAudio = errors.New("no decodable audio in input")
)

// FFmpegDecoder decodes encoded audio via an FFmpeg subprocess.
// Output is always mono f32le at the detection sample rate regardless of
// the source format, so timestamp math downstream uses a known rate.
type FFmpegDecoder struct {
	ffmpegPath string
}

// NewFFmpegDecoder creates a decoder using the given FFmpeg binary.
func NewFFmpegDecoder(ffmpegPath string) *FFmpegDecoder {
	return &FFmpegDecoder{ffmpegPath: ffmpegPath}
}

// Decode runs FFmpeg over blob and returns normalized mono samples at the
// detection sample rate. Decode failures are returned as errors; a blob
// that decodes to zero samples is also an error, never a silent success.
func (d *FFmpegDecoder) Decode(ctx context.Context, blob []byte) ([]float64, int, error) {
	if d.ffmpegPath == "" {
		return nil, 0, ErrFFmpegNotFound
	}
	if len(blob) == 0 {
		return nil, 0, ErrEmptyBlob
	}
	if len(blob) > maxBlobSize {
		return nil, 0, ErrBlobTooLarge
	}

	ctx, cancel := context.WithTimeout(ctx, decodeTimeout)
	defer cancel()

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-f", "f32le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", types.SampleRate),
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(blob)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if detail := util.ExtractLastError(stderr.String()); detail != "" {
			return nil, 0, fmt.Errorf("ffmpeg decode failed: %w: %s", err, detail)
		}
		return nil, 0, util.WrapError("decode audio", err)
	}

	samples := ParseF32LE(stdout.Bytes())
	if len(samples) == 0 {
		return nil, 0, ErrNoAudio
	}

	return samples, types.SampleRate, nil
}

// ParseF32LE converts raw little-endian float32 PCM bytes to float64
// samples. A trailing partial sample is ignored.
func ParseF32LE(raw []byte) []float64 {
	n := len(raw) / 4
	if n == 0 {
		return nil
	}
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = float64(math.Float32frombits(bits))
	}
	return samples
}
