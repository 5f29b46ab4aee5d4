// Package recording buffers session audio and encodes finished sessions to
// WAV clips, with optional S3 upload and retention cleanup.
package recording

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/swingsense/impact-detector/internal/audio"
	"github.com/swingsense/impact-detector/internal/ffmpeg"
	"github.com/swingsense/impact-detector/internal/types"
	"github.com/swingsense/impact-detector/internal/util"
)

const (
	// bytesPerSecond for mono S16LE at the capture sample rate.
	bytesPerSecond = types.SampleRate * types.Channels * 2

	// maxSessionSeconds caps the in-memory session buffer. Sessions longer
	// than this keep only the first portion.
	maxSessionSeconds = 600
	maxSessionBytes   = maxSessionSeconds * bytesPerSecond

	// encodeTimeout bounds a single WAV encode run.
	encodeTimeout = 30 * time.Second
)

// ErrNoAudio is returned when finalizing a session that captured nothing.
var ErrNoAudio = errors.New("no session audio captured")

// SessionRecorder buffers PCM for the active session. It is safe for
// concurrent use.
type SessionRecorder struct {
	mu           sync.Mutex
	buf          []byte
	recording    bool
	truncated    bool
	sessionStart time.Time

	ffmpegPath string
	outputDir  string
}

// NewSessionRecorder creates a recorder that writes clips to outputDir.
func NewSessionRecorder(ffmpegPath, outputDir string) *SessionRecorder {
	return &SessionRecorder{
		ffmpegPath: ffmpegPath,
		outputDir:  outputDir,
	}
}

// Start begins buffering a new session, discarding any previous buffer.
func (r *SessionRecorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = r.buf[:0]
	r.recording = true
	r.truncated = false
	r.sessionStart = time.Now()
}

// WriteAudio appends PCM data to the session buffer.
func (r *SessionRecorder) WriteAudio(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording || len(pcm) == 0 {
		return
	}

	room := maxSessionBytes - len(r.buf)
	if room <= 0 {
		if !r.truncated {
			r.truncated = true
			slog.Warn("session buffer full, dropping further audio", "max_seconds", maxSessionSeconds)
		}
		return
	}
	if len(pcm) > room {
		pcm = pcm[:room]
	}
	r.buf = append(r.buf, pcm...)
}

// Recording reports whether a session is being buffered.
func (r *SessionRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Samples returns the buffered session audio as normalized float samples.
func (r *SessionRecorder) Samples() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	samples := make([]float64, len(r.buf)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(r.buf[i*2:]))) / audio.MaxSampleValue
	}
	return samples
}

// Finalize stops buffering and encodes the session to a WAV clip.
// The recorder is ready for a new Start afterwards.
func (r *SessionRecorder) Finalize() (*types.ClipInfo, error) {
	r.mu.Lock()
	pcm := r.buf
	start := r.sessionStart
	r.buf = nil
	r.recording = false
	r.mu.Unlock()

	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}

	return r.encodeWAV(pcm, start)
}

// encodeWAV writes PCM through FFmpeg into a timestamped WAV file.
func (r *SessionRecorder) encodeWAV(pcm []byte, sessionStart time.Time) (*types.ClipInfo, error) {
	if r.ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpeg not available for clip encoding")
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, util.WrapError("create clip directory", err)
	}

	filename := "session-" + sessionStart.Local().Format("2006-01-02_15-04-05") + ".wav"
	clipPath := filepath.Join(r.outputDir, filename)

	args := ffmpeg.BaseInputArgs()
	args = append(args,
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"-y",
		clipPath,
	)

	proc, err := ffmpeg.StartProcess(r.ffmpegPath, args)
	if err != nil {
		return nil, err
	}
	timer := time.AfterFunc(encodeTimeout, proc.Cancel)
	defer timer.Stop()

	// A write error means FFmpeg exited early; Wait surfaces its stderr.
	if _, err := proc.Stdin.Write(pcm); err != nil {
		slog.Warn("clip encode input closed early", "error", err)
	}
	if err := proc.Stdin.Close(); err != nil {
		slog.Warn("failed to close encode input", "error", err)
	}

	if err := proc.Cmd.Wait(); err != nil {
		return nil, fmt.Errorf("encode clip: %w: %s", err, util.ExtractLastError(proc.Stderr.String()))
	}
	proc.Cancel()

	info, err := os.Stat(clipPath)
	if err != nil {
		return nil, util.WrapError("stat clip", err)
	}

	slog.Info("session clip encoded", "file", filename, "size", info.Size())

	return &types.ClipInfo{
		Path:      clipPath,
		Filename:  filename,
		SizeBytes: info.Size(),
	}, nil
}
