package engine_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/swingsense/impact-detector/internal/config"
	"github.com/swingsense/impact-detector/internal/detect"
	"github.com/swingsense/impact-detector/internal/engine"
	"github.com/swingsense/impact-detector/internal/notify"
	"github.com/swingsense/impact-detector/internal/types"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	return engine.New(cfg, "", notify.NewImpactNotifier(cfg), nil)
}

func TestEngineInitialState(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	if got := e.State(); got != types.StateStopped {
		t.Errorf("State() = %q, want %q", got, types.StateStopped)
	}
	if e.IsRunning() {
		t.Error("IsRunning() = true for a fresh engine")
	}
	if got := e.CurrentLevel(); got != 0 {
		t.Errorf("CurrentLevel() = %v, want 0", got)
	}
	if got := e.Levels(); got != (types.MeterLevels{}) {
		t.Errorf("Levels() = %+v, want zero levels", got)
	}

	status := e.Status()
	if status.State != types.StateStopped {
		t.Errorf("Status().State = %q, want %q", status.State, types.StateStopped)
	}
	if status.SourceMaxRetries != types.MaxRetries {
		t.Errorf("Status().SourceMaxRetries = %d, want %d", status.SourceMaxRetries, types.MaxRetries)
	}
	if status.Detecting {
		t.Error("Status().Detecting = true for a fresh engine")
	}
}

func TestDetectImpactWithoutSession(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	_, err := e.DetectImpact(context.Background())
	if !errors.Is(err, detect.ErrNotListening) {
		t.Errorf("DetectImpact() error = %v, want ErrNotListening", err)
	}
}

func TestStopWithoutSessionIsNoOp(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	if err := e.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if got := e.State(); got != types.StateStopped {
		t.Errorf("State() = %q after Stop, want %q", got, types.StateStopped)
	}
}

func TestStartTwiceRejected(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		if err := e.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	}()

	if err := e.Start(); !errors.Is(err, engine.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestStopResolvesInFlightDetection(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	type outcome struct {
		result detect.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := e.DetectImpact(context.Background())
		done <- outcome{result, err}
	}()

	// Let the detection call register before stopping.
	time.Sleep(50 * time.Millisecond)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case out := <-done:
		if out.err != nil {
			t.Errorf("DetectImpact() error = %v", out.err)
		}
		if out.result.Detected {
			t.Error("DetectImpact() reported a hit after stop")
		}
		if out.result.TimestampMs != 0 || out.result.Confidence != 0 {
			t.Errorf("DetectImpact() result = %+v, want zero result", out.result)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("DetectImpact() did not resolve after Stop")
	}
}
