package detect

import (
	"context"
	"math"

	"github.com/swingsense/impact-detector/internal/util"
)

// AnalyzeSamples scans normalized mono samples for the global peak and
// reports whether it qualifies as an impact. The timestamp is derived from
// the peak's sample index, so a recording is localized exactly rather than
// by wall clock. Confidence is the peak amplitude clamped to 1.
func AnalyzeSamples(samples []float64, sampleRate int, threshold float64) Result {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if threshold <= 0 {
		threshold = DefaultImpactThreshold
	}

	var peak float64
	peakIndex := -1
	for i, s := range samples {
		if v := math.Abs(s); v > peak {
			peak = v
			peakIndex = i
		}
	}

	if peakIndex < 0 || peak <= threshold {
		return Result{}
	}

	return Result{
		Detected:    true,
		TimestampMs: int64(math.Round(float64(peakIndex) * 1000.0 / float64(sampleRate))),
		Confidence:  math.Min(peak, 1.0),
		Amplitude:   peak,
	}
}

// Decoder decodes an encoded audio blob into normalized mono samples.
type Decoder interface {
	// Decode returns the samples and their sample rate.
	Decode(ctx context.Context, blob []byte) (samples []float64, sampleRate int, err error)
}

// OfflineAnalyzer analyzes finished recordings for impacts.
type OfflineAnalyzer struct {
	dec Decoder
	cfg Config
}

// NewOfflineAnalyzer creates an analyzer that decodes blobs with dec.
func NewOfflineAnalyzer(dec Decoder, cfg Config) *OfflineAnalyzer {
	return &OfflineAnalyzer{dec: dec, cfg: cfg.withDefaults()}
}

// AnalyzeRecording decodes blob and scans it for an impact. Decode failures
// are returned to the caller, never reported as a negative detection.
func (a *OfflineAnalyzer) AnalyzeRecording(ctx context.Context, blob []byte) (Result, error) {
	samples, sampleRate, err := a.dec.Decode(ctx, blob)
	if err != nil {
		return Result{}, util.WrapError("decode recording", err)
	}
	return AnalyzeSamples(samples, sampleRate, a.cfg.ImpactThreshold), nil
}
