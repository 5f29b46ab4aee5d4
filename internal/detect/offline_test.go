package detect_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/swingsense/impact-detector/internal/detect"
)

func TestAnalyzeSamplesLocalizesPeak(t *testing.T) {
	t.Parallel()

	// One second of silence with a 0.9 spike 100ms in.
	samples := make([]float64, 48000)
	samples[4800] = 0.9

	result := detect.AnalyzeSamples(samples, 48000, 0.75)
	if !result.Detected {
		t.Fatal("spike not detected")
	}
	if result.TimestampMs != 100 {
		t.Errorf("TimestampMs = %d, want 100", result.TimestampMs)
	}
	if math.Abs(result.Confidence-0.9) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.9", result.Confidence)
	}
}

func TestAnalyzeSamplesNegativePeak(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 9600)
	samples[2400] = -0.8

	result := detect.AnalyzeSamples(samples, 48000, 0.75)
	if !result.Detected {
		t.Fatal("negative-going spike not detected")
	}
	if result.TimestampMs != 50 {
		t.Errorf("TimestampMs = %d, want 50", result.TimestampMs)
	}
}

func TestAnalyzeSamplesSilence(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 48000)
	result := detect.AnalyzeSamples(samples, 48000, 0.75)
	if result.Detected {
		t.Errorf("silence detected as impact: %+v", result)
	}
	if result.TimestampMs != 0 || result.Confidence != 0 {
		t.Errorf("negative result = %+v, want zero fields", result)
	}
}

func TestAnalyzeSamplesExactThreshold(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 4800)
	samples[100] = 0.75

	if result := detect.AnalyzeSamples(samples, 48000, 0.75); result.Detected {
		t.Errorf("amplitude at exactly the threshold detected as impact: %+v", result)
	}

	samples[100] = 0.7500001
	if result := detect.AnalyzeSamples(samples, 48000, 0.75); !result.Detected {
		t.Error("amplitude just above the threshold not detected")
	}
}

func TestAnalyzeSamplesConfidenceClamped(t *testing.T) {
	t.Parallel()

	// Decoded floats can overshoot full scale slightly.
	samples := []float64{0, 1.3, 0}
	result := detect.AnalyzeSamples(samples, 48000, 0.75)
	if !result.Detected {
		t.Fatal("overshooting peak not detected")
	}
	if result.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want clamped to 1.0", result.Confidence)
	}
}

func TestAnalyzeSamplesEmpty(t *testing.T) {
	t.Parallel()

	if result := detect.AnalyzeSamples(nil, 48000, 0.75); result.Detected {
		t.Errorf("empty input detected as impact: %+v", result)
	}
}

func TestAnalyzeSamplesRandomizedInvariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		n := rng.Intn(4800)
		samples := make([]float64, n)
		var peak float64
		peakIndex := 0
		for j := range samples {
			// Decoded floats can overshoot full scale, so cover that too.
			samples[j] = (rng.Float64()*2 - 1) * 1.2
			if a := math.Abs(samples[j]); a > peak {
				peak = a
				peakIndex = j
			}
		}
		threshold := 0.05 + rng.Float64()*0.9

		result := detect.AnalyzeSamples(samples, 48000, threshold)

		if result.Confidence < 0 || result.Confidence > 1 {
			t.Fatalf("Confidence = %v out of [0, 1] (n=%d threshold=%v)", result.Confidence, n, threshold)
		}
		if result.Detected != (peak > threshold) {
			t.Fatalf("Detected = %v, want %v (peak=%v threshold=%v)", result.Detected, peak > threshold, peak, threshold)
		}
		if !result.Detected {
			if result.TimestampMs != 0 || result.Confidence != 0 {
				t.Fatalf("negative result = %+v, want zero fields", result)
			}
			continue
		}

		wantMs := int64(math.Round(float64(peakIndex) * 1000.0 / 48000.0))
		if result.TimestampMs != wantMs {
			t.Fatalf("TimestampMs = %d, want %d (peakIndex=%d)", result.TimestampMs, wantMs, peakIndex)
		}
		if want := math.Min(peak, 1.0); math.Abs(result.Confidence-want) > 1e-12 {
			t.Fatalf("Confidence = %v, want %v (peak=%v)", result.Confidence, want, peak)
		}
	}
}

type stubDecoder struct {
	samples    []float64
	sampleRate int
	err        error
}

func (s *stubDecoder) Decode(_ context.Context, _ []byte) ([]float64, int, error) {
	return s.samples, s.sampleRate, s.err
}

func TestAnalyzeRecording(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 48000)
	samples[9600] = 0.85

	analyzer := detect.NewOfflineAnalyzer(&stubDecoder{samples: samples, sampleRate: 48000}, detect.DefaultConfig())
	result, err := analyzer.AnalyzeRecording(context.Background(), []byte("blob"))
	if err != nil {
		t.Fatalf("AnalyzeRecording() error = %v", err)
	}
	if !result.Detected || result.TimestampMs != 200 {
		t.Errorf("result = %+v, want detection at 200ms", result)
	}
}

func TestAnalyzeRecordingDecodeErrorPropagates(t *testing.T) {
	t.Parallel()

	decodeErr := errors.New("corrupt container")
	analyzer := detect.NewOfflineAnalyzer(&stubDecoder{err: decodeErr}, detect.DefaultConfig())

	result, err := analyzer.AnalyzeRecording(context.Background(), []byte("blob"))
	if !errors.Is(err, decodeErr) {
		t.Fatalf("AnalyzeRecording() error = %v, want wrapped decode error", err)
	}
	if result.Detected {
		t.Error("decode failure must not report a detection")
	}
}
