// Package audio provides audio sample processing utilities including peak
// measurement and level metering for mono PCM streams.
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// MaxSampleValue is the maximum absolute value for 16-bit signed audio.
	MaxSampleValue = 32768.0
	// ClipThreshold is slightly below max to catch near-clips.
	ClipThreshold int16 = 32760
)

// FrameStats holds measurements for a single frame of mono PCM audio.
type FrameStats struct {
	// Peak is the maximum absolute sample amplitude, normalized to [0, 1].
	Peak float64
	// RMS is the root mean square amplitude, normalized to [0, 1].
	RMS float64
	// ClipCount is how many samples were at or near full scale.
	ClipCount int
	// SampleCount is how many samples were measured.
	SampleCount int
}

// ProcessFrame measures S16LE mono PCM data in buf[:n].
func ProcessFrame(buf []byte, n int) FrameStats {
	var stats FrameStats
	var sumSquares float64

	for i := 0; i+1 < n; i += 2 {
		sample := int16(binary.LittleEndian.Uint16(buf[i:]))
		v := float64(sample)

		sumSquares += v * v

		if abs := math.Abs(v); abs > stats.Peak {
			stats.Peak = abs
		}
		if sample >= ClipThreshold || sample <= -ClipThreshold {
			stats.ClipCount++
		}
		stats.SampleCount++
	}

	if stats.SampleCount > 0 {
		stats.RMS = math.Sqrt(sumSquares/float64(stats.SampleCount)) / MaxSampleValue
	}
	stats.Peak /= MaxSampleValue

	return stats
}

// PeakAmplitude returns the maximum absolute sample amplitude in buf[:n],
// normalized to [0, 1]. The buffer holds S16LE mono PCM data.
func PeakAmplitude(buf []byte, n int) float64 {
	var peak float64
	for i := 0; i+1 < n; i += 2 {
		v := math.Abs(float64(int16(binary.LittleEndian.Uint16(buf[i:]))))
		if v > peak {
			peak = v
		}
	}
	return peak / MaxSampleValue
}

// PeakFloat returns the maximum absolute amplitude in samples, clamped to
// non-negative. Samples are already normalized to full scale 1.0.
func PeakFloat(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if v := math.Abs(s); v > peak {
			peak = v
		}
	}
	return peak
}
