package audio

import (
	"sync"
	"time"
)

// DefaultSmoothingFactor controls how quickly the displayed level tracks
// the raw per-frame peak. Higher values react faster.
const DefaultSmoothingFactor = 0.3

// MeterReading is a snapshot of the level meter state.
// All values are normalized amplitudes in [0, 1].
type MeterReading struct {
	// Level is the smoothed instantaneous amplitude.
	Level float64 `json:"level"`
	// Peak is the raw peak of the most recent frame.
	Peak float64 `json:"peak"`
	// HeldPeak is the peak-hold value for the meter needle.
	HeldPeak float64 `json:"held_peak"`
	// Clipping reports whether the most recent frame contained near-clipped samples.
	Clipping bool `json:"clipping,omitzero"`
}

// LevelMeter produces smoothed amplitude readings from per-frame peaks.
// It applies exponential smoothing so the UI level does not jitter
// frame to frame. It is safe for concurrent use.
type LevelMeter struct {
	mu        sync.Mutex
	smoothing float64
	level     float64
	lastPeak  float64
	clipping  bool
	holder    *PeakHolder
}

// NewLevelMeter creates a level meter with the given smoothing factor.
// A factor outside (0, 1] falls back to the default.
func NewLevelMeter(smoothing float64) *LevelMeter {
	if smoothing <= 0 || smoothing > 1 {
		smoothing = DefaultSmoothingFactor
	}
	return &LevelMeter{
		smoothing: smoothing,
		holder:    NewPeakHolder(),
	}
}

// SetPeakHold adjusts how long the meter holds a peak before decaying.
// Non-positive durations are ignored.
func (m *LevelMeter) SetPeakHold(d time.Duration) {
	if d > 0 {
		m.holder.SetHoldDuration(d)
	}
}

// Update feeds one frame of measurements into the meter.
func (m *LevelMeter) Update(stats FrameStats, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level += (stats.Peak - m.level) * m.smoothing
	m.lastPeak = stats.Peak
	m.clipping = stats.ClipCount > 0
	m.holder.Update(stats.Peak, now)
}

// Reading returns the current meter state.
func (m *LevelMeter) Reading(now time.Time) MeterReading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MeterReading{
		Level:    m.level,
		Peak:     m.lastPeak,
		HeldPeak: m.holder.Update(0, now),
		Clipping: m.clipping,
	}
}

// Level returns the smoothed amplitude only.
func (m *LevelMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Reset clears all meter state for a new session.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = 0
	m.lastPeak = 0
	m.clipping = false
	m.holder.Reset()
}
