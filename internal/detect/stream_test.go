package detect_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/swingsense/impact-detector/internal/detect"
)

// testConfig returns a configuration with a small frame size and fast
// polling so tests run quickly.
func testConfig() detect.Config {
	cfg := detect.DefaultConfig()
	cfg.FrameSamples = 64
	cfg.PollInterval = 2 * time.Millisecond
	return cfg
}

// pcmFrame builds one frame of S16LE mono PCM at a constant normalized amplitude.
func pcmFrame(amplitude float64, samples int) []byte {
	buf := make([]byte, samples*2)
	v := int16(amplitude * 32768)
	if amplitude >= 1.0 {
		v = 32767
	}
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestDetectImpactBeforeStartListening(t *testing.T) {
	t.Parallel()

	d := detect.NewStreamDetector(testConfig())
	_, err := d.DetectImpact(context.Background())
	if !errors.Is(err, detect.ErrNotListening) {
		t.Fatalf("DetectImpact() error = %v, want ErrNotListening", err)
	}
}

func TestCurrentLevelWhenIdle(t *testing.T) {
	t.Parallel()

	d := detect.NewStreamDetector(testConfig())
	if level := d.CurrentLevel(); level != 0 {
		t.Errorf("CurrentLevel() = %v, want 0", level)
	}
}

func TestStopListeningIdempotent(t *testing.T) {
	t.Parallel()

	d := detect.NewStreamDetector(testConfig())

	// Stop before any session must not panic.
	d.StopListening()
	d.StopListening()

	r, w := io.Pipe()
	defer func() { _ = w.Close() }()
	if err := d.StartListening(r); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}

	d.StopListening()
	d.StopListening()
	d.StopListening()

	if got := d.State(); got != detect.StateIdle {
		t.Errorf("State() = %v, want idle", got)
	}
}

func TestStartListeningTwice(t *testing.T) {
	t.Parallel()

	d := detect.NewStreamDetector(testConfig())
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	if err := d.StartListening(r); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}
	defer d.StopListening()

	if err := d.StartListening(r); !errors.Is(err, detect.ErrAlreadyListening) {
		t.Fatalf("second StartListening() error = %v, want ErrAlreadyListening", err)
	}
}

func TestDetectImpactFindsSpike(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	d := detect.NewStreamDetector(cfg)
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	if err := d.StartListening(r); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}
	defer d.StopListening()

	type outcome struct {
		result detect.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := d.DetectImpact(context.Background())
		done <- outcome{result, err}
	}()

	// Quiet room, then a sharp transient.
	for i := 0; i < 5; i++ {
		if _, err := w.Write(pcmFrame(0.01, cfg.FrameSamples)); err != nil {
			t.Fatalf("write silence: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := w.Write(pcmFrame(0.9, cfg.FrameSamples)); err != nil {
		t.Fatalf("write spike: %v", err)
	}

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("DetectImpact() error = %v", out.err)
		}
		if !out.result.Detected {
			t.Fatal("DetectImpact() did not detect the spike")
		}
		if out.result.Confidence <= 0 || out.result.Confidence > 1 {
			t.Errorf("Confidence = %v, want in (0, 1]", out.result.Confidence)
		}
		if out.result.TimestampMs < 0 {
			t.Errorf("TimestampMs = %v, want >= 0", out.result.TimestampMs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("DetectImpact() did not resolve")
	}
}

func TestSteadyBackgroundNeverFires(t *testing.T) {
	t.Parallel()

	// Loud but constant ambience sits above the threshold yet below the
	// noise multiple, so it must never register as an impact.
	cfg := testConfig()
	cfg.ImpactThreshold = 0.4
	d := detect.NewStreamDetector(cfg)
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	if err := d.StartListening(r); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}
	defer d.StopListening()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for ctx.Err() == nil {
			if _, err := w.Write(pcmFrame(0.5, cfg.FrameSamples)); err != nil {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	result, err := d.DetectImpact(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("DetectImpact() error = %v, want deadline exceeded", err)
	}
	if result.Detected {
		t.Error("steady background registered as an impact")
	}
	<-writerDone
}

func TestStopResolvesInFlightDetection(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	d := detect.NewStreamDetector(cfg)
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	if err := d.StartListening(r); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}

	type outcome struct {
		result detect.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := d.DetectImpact(context.Background())
		done <- outcome{result, err}
	}()

	// Let the detection loop start, then pull the plug.
	time.Sleep(20 * time.Millisecond)
	d.StopListening()

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("DetectImpact() error = %v", out.err)
		}
		if out.result.Detected || out.result.TimestampMs != 0 || out.result.Confidence != 0 {
			t.Errorf("result after stop = %+v, want negative zero result", out.result)
		}
	case <-time.After(time.Second):
		t.Fatal("DetectImpact() did not resolve after StopListening")
	}
}

func TestSecondDetectionRejected(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	d := detect.NewStreamDetector(cfg)
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	if err := d.StartListening(r); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}
	defer d.StopListening()

	go func() {
		_, _ = d.DetectImpact(context.Background())
	}()

	// Wait for the first detection to be in flight.
	deadline := time.Now().Add(time.Second)
	for !d.Detecting() {
		if time.Now().After(deadline) {
			t.Fatal("first detection never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := d.DetectImpact(context.Background()); !errors.Is(err, detect.ErrDetectionActive) {
		t.Fatalf("concurrent DetectImpact() error = %v, want ErrDetectionActive", err)
	}
}

func TestExactThresholdDoesNotFire(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ImpactThreshold = 0.5
	d := detect.NewStreamDetector(cfg)
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	if err := d.StartListening(r); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}
	defer d.StopListening()

	type outcome struct {
		result detect.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := d.DetectImpact(context.Background())
		done <- outcome{result, err}
	}()

	for i := 0; i < 5; i++ {
		if _, err := w.Write(pcmFrame(0.01, cfg.FrameSamples)); err != nil {
			t.Fatalf("write silence: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// 16384/32768 is exactly the 0.5 threshold and must not fire.
	if _, err := w.Write(pcmFrame(0.5, cfg.FrameSamples)); err != nil {
		t.Fatalf("write at-threshold frame: %v", err)
	}

	select {
	case <-done:
		t.Fatal("at-threshold amplitude registered as an impact")
	case <-time.After(50 * time.Millisecond):
	}

	// A frame clearly above the threshold fires.
	if _, err := w.Write(pcmFrame(0.9, cfg.FrameSamples)); err != nil {
		t.Fatalf("write spike: %v", err)
	}

	select {
	case out := <-done:
		if out.err != nil || !out.result.Detected {
			t.Fatalf("spike above threshold: result=%+v err=%v", out.result, out.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("DetectImpact() did not resolve on the spike")
	}
}

func TestDetectImpactRandomizedConfidenceBounds(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 10; i++ {
		d := detect.NewStreamDetector(cfg)
		r, w := io.Pipe()

		if err := d.StartListening(r); err != nil {
			t.Fatalf("StartListening() error = %v", err)
		}

		type outcome struct {
			result detect.Result
			err    error
		}
		done := make(chan outcome, 1)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			result, err := d.DetectImpact(ctx)
			done <- outcome{result, err}
		}()

		// A randomized quiet room followed by a randomized spike.
		for j := 0; j < 4; j++ {
			if _, err := w.Write(pcmFrame(rng.Float64()*0.05, cfg.FrameSamples)); err != nil {
				t.Fatalf("write noise: %v", err)
			}
			time.Sleep(5 * time.Millisecond)
		}
		spike := 0.8 + rng.Float64()*0.2
		if _, err := w.Write(pcmFrame(spike, cfg.FrameSamples)); err != nil {
			t.Fatalf("write spike: %v", err)
		}

		select {
		case out := <-done:
			if out.err != nil {
				t.Fatalf("DetectImpact() error = %v (spike=%v)", out.err, spike)
			}
			if !out.result.Detected {
				t.Fatalf("spike %v not detected", spike)
			}
			if out.result.Confidence <= 0 || out.result.Confidence > 1 {
				t.Fatalf("Confidence = %v out of (0, 1] (spike=%v)", out.result.Confidence, spike)
			}
			if out.result.TimestampMs < 0 {
				t.Fatalf("TimestampMs = %d, want >= 0", out.result.TimestampMs)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("DetectImpact() did not resolve")
		}

		d.StopListening()
		_ = w.Close()
	}
}

func TestStopDoesNotRecordPipeCloseError(t *testing.T) {
	t.Parallel()

	d := detect.NewStreamDetector(testConfig())
	r, w := io.Pipe()

	if err := d.StartListening(r); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}

	// The engine stops the detector first, then tears the pipe down.
	d.StopListening()
	_ = w.CloseWithError(io.ErrClosedPipe)
	time.Sleep(20 * time.Millisecond)

	if err := d.ReadError(); err != nil {
		t.Fatalf("ReadError() after deliberate stop = %v, want nil", err)
	}
}

func TestReadErrorRecordedMidSession(t *testing.T) {
	t.Parallel()

	d := detect.NewStreamDetector(testConfig())
	r, w := io.Pipe()

	if err := d.StartListening(r); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}
	defer d.StopListening()

	readErr := errors.New("capture device lost")
	_ = w.CloseWithError(readErr)

	deadline := time.Now().Add(time.Second)
	for d.ReadError() == nil {
		if time.Now().After(deadline) {
			t.Fatal("stream read error never recorded")
		}
		time.Sleep(time.Millisecond)
	}
	if err := d.ReadError(); !errors.Is(err, readErr) {
		t.Fatalf("ReadError() = %v, want %v", err, readErr)
	}
}

func TestSessionStateResets(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	d := detect.NewStreamDetector(cfg)

	r1, w1 := io.Pipe()
	if err := d.StartListening(r1); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}
	if _, err := w1.Write(pcmFrame(0.8, cfg.FrameSamples)); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	d.StopListening()
	_ = w1.Close()

	if level := d.CurrentLevel(); level != 0 {
		t.Errorf("CurrentLevel() after stop = %v, want 0", level)
	}

	// A fresh session starts from a clean noise estimate.
	r2, w2 := io.Pipe()
	defer func() { _ = w2.Close() }()
	if err := d.StartListening(r2); err != nil {
		t.Fatalf("restart StartListening() error = %v", err)
	}
	defer d.StopListening()

	if noise := d.NoiseFloor(); noise != 0 {
		t.Errorf("NoiseFloor() after restart = %v, want 0", noise)
	}
}
