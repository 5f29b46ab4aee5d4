// Package detect implements impact detection on mono PCM audio. A stream
// detector watches a live capture feed and resolves one-shot detection
// requests; the offline analyzer scans a decoded recording for its global
// peak. Both report normalized amplitudes where 1.0 is full scale.
package detect

import (
	"errors"
	"time"

	"github.com/swingsense/impact-detector/internal/audio"
)

// Detection tuning defaults. Amplitudes are fractions of full scale.
const (
	// DefaultImpactThreshold is the minimum amplitude for a hit.
	DefaultImpactThreshold = 0.75
	// DefaultNoiseFactor is how far above the background estimate a
	// frame must rise to count as a transient rather than loud ambience.
	DefaultNoiseFactor = 3.0
	// DefaultSampleRate is the expected PCM sample rate in Hz.
	DefaultSampleRate = 48000
	// DefaultFrameSamples is the analysis frame size in samples.
	DefaultFrameSamples = 2048
	// DefaultSmoothing is the level meter smoothing factor.
	DefaultSmoothing = 0.3
	// DefaultPollInterval is how often an in-flight detection re-checks
	// the most recent frame.
	DefaultPollInterval = 16 * time.Millisecond
)

// Detector lifecycle errors.
var (
	// ErrNotListening is returned when a detection is requested before
	// StartListening, or after the detector has resolved or stopped.
	ErrNotListening = errors.New("detector is not listening")
	// ErrAlreadyListening is returned when StartListening is called on a
	// detector that already has an active session.
	ErrAlreadyListening = errors.New("detector is already listening")
	// ErrDetectionActive is returned when a second one-shot detection is
	// requested while one is still in flight.
	ErrDetectionActive = errors.New("a detection is already in flight")
)

// State is the lifecycle state of a stream detector.
type State string

const (
	// StateIdle means no session is active.
	StateIdle State = "idle"
	// StateListening means a session is active and frames are being measured.
	StateListening State = "listening"
	// StateDetected means the session found an impact and is waiting for stop.
	StateDetected State = "detected"
)

// Result is the outcome of a detection request. A negative outcome carries
// zero timestamp and confidence.
type Result struct {
	// Detected reports whether a qualifying transient was found.
	Detected bool `json:"detected"`
	// TimestampMs is the offset of the impact from session start in
	// milliseconds. Zero when Detected is false.
	TimestampMs int64 `json:"timestamp_ms"`
	// Confidence is the normalized strength of the hit in [0, 1].
	Confidence float64 `json:"confidence"`
	// Amplitude is the raw normalized amplitude of the triggering frame.
	Amplitude float64 `json:"amplitude,omitzero"`
}

// Config holds detection parameters. Zero values fall back to defaults.
type Config struct {
	// ImpactThreshold is the minimum amplitude for a hit, as a fraction
	// of full scale. A frame at exactly the threshold does not qualify.
	ImpactThreshold float64
	// NoiseFactor is the multiplier applied to the background estimate.
	// A hit must exceed both the threshold and NoiseFactor times the
	// running background mean.
	NoiseFactor float64
	// SampleRate is the PCM sample rate in Hz.
	SampleRate int
	// FrameSamples is the analysis frame size in samples.
	FrameSamples int
	// Smoothing is the level meter smoothing factor in (0, 1].
	Smoothing float64
	// PollInterval is the detection re-check interval.
	PollInterval time.Duration
	// PeakHold is how long the meter holds a peak before decaying.
	PeakHold time.Duration
}

// DefaultConfig returns the standard detection configuration.
func DefaultConfig() Config {
	return Config{
		ImpactThreshold: DefaultImpactThreshold,
		NoiseFactor:     DefaultNoiseFactor,
		SampleRate:      DefaultSampleRate,
		FrameSamples:    DefaultFrameSamples,
		Smoothing:       DefaultSmoothing,
		PollInterval:    DefaultPollInterval,
		PeakHold:        audio.DefaultPeakHoldDuration,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ImpactThreshold <= 0 {
		c.ImpactThreshold = def.ImpactThreshold
	}
	if c.NoiseFactor <= 0 {
		c.NoiseFactor = def.NoiseFactor
	}
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = def.FrameSamples
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = def.Smoothing
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.PeakHold <= 0 {
		c.PeakHold = def.PeakHold
	}
	return c
}
