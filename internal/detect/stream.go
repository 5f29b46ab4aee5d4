package detect

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/swingsense/impact-detector/internal/audio"
)

// StreamDetector watches a live mono S16LE PCM stream and resolves one-shot
// impact detection requests against it. A session runs from StartListening
// to StopListening; all measurement state resets between sessions.
//
// The background noise estimate is the cumulative mean of all frame peaks
// since session start. It is deliberately unwindowed so that a session that
// begins in a quiet room stays sensitive even after a long wait.
//
// It is safe for concurrent use.
type StreamDetector struct {
	cfg Config

	mu           sync.Mutex
	state        State
	detecting    bool
	stopChan     chan struct{}
	sessionStart time.Time
	frameSeq     uint64
	lastFrame    float64
	maxAmplitude float64
	noiseSum     float64
	noiseCount   uint64
	readErr      error

	meter *audio.LevelMeter
}

// NewStreamDetector creates an idle detector with the given configuration.
func NewStreamDetector(cfg Config) *StreamDetector {
	cfg = cfg.withDefaults()
	meter := audio.NewLevelMeter(cfg.Smoothing)
	meter.SetPeakHold(cfg.PeakHold)
	return &StreamDetector{
		cfg:   cfg,
		state: StateIdle,
		meter: meter,
	}
}

// Config returns the detector's effective configuration.
func (d *StreamDetector) Config() Config {
	return d.cfg
}

// State returns the current lifecycle state.
func (d *StreamDetector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// StartListening begins a new session reading PCM frames from r. The reader
// goroutine runs until the stream ends or StopListening is called. The
// detector never closes r; the caller owns the stream.
// Returns ErrAlreadyListening if a session is active.
func (d *StreamDetector) StartListening(r io.Reader) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateIdle {
		return ErrAlreadyListening
	}

	d.state = StateListening
	d.stopChan = make(chan struct{})
	d.sessionStart = time.Now()
	d.frameSeq = 0
	d.lastFrame = 0
	d.maxAmplitude = 0
	d.noiseSum = 0
	d.noiseCount = 0
	d.readErr = nil
	d.meter.Reset()

	go d.readLoop(r, d.stopChan)
	return nil
}

// readLoop reads fixed-size frames from r and measures them until the
// stream ends or the session stops.
func (d *StreamDetector) readLoop(r io.Reader, stop chan struct{}) {
	frameBytes := d.cfg.FrameSamples * 2
	buf := make([]byte, frameBytes)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := io.ReadFull(r, buf)
		if n > 0 {
			d.applyFrame(buf, n, stop)
		}
		if err != nil {
			d.mu.Lock()
			// After StopListening the stopChan is closed but not replaced,
			// so the state check keeps a deliberate teardown from being
			// reported as a stream failure.
			if d.stopChan == stop && d.state != StateIdle && err != io.EOF && err != io.ErrUnexpectedEOF {
				d.readErr = err
			}
			d.mu.Unlock()
			return
		}
	}
}

// applyFrame folds one frame of PCM into the session measurements.
// Frames from a stopped session are discarded.
func (d *StreamDetector) applyFrame(buf []byte, n int, stop chan struct{}) {
	stats := audio.ProcessFrame(buf, n)

	d.mu.Lock()
	if d.stopChan != stop || d.state == StateIdle {
		d.mu.Unlock()
		return
	}
	d.frameSeq++
	d.lastFrame = stats.Peak
	if stats.Peak > d.maxAmplitude {
		d.maxAmplitude = stats.Peak
	}
	// The background estimate includes the current frame, so the very
	// first frame of a loud room does not read as a transient.
	d.noiseSum += stats.Peak
	d.noiseCount++
	d.mu.Unlock()

	d.meter.Update(stats, time.Now())
}

// DetectImpact waits for the next frame whose amplitude exceeds both the
// impact threshold and NoiseFactor times the background estimate. It
// resolves with a positive Result on a hit, a negative Result when
// StopListening ends the session, or a negative Result and the context
// error when ctx is canceled.
//
// Only one detection may be in flight at a time.
func (d *StreamDetector) DetectImpact(ctx context.Context) (Result, error) {
	d.mu.Lock()
	if d.state != StateListening {
		d.mu.Unlock()
		return Result{}, ErrNotListening
	}
	if d.detecting {
		d.mu.Unlock()
		return Result{}, ErrDetectionActive
	}
	d.detecting = true
	stop := d.stopChan
	start := d.sessionStart
	seen := d.frameSeq
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.detecting = false
		d.mu.Unlock()
	}()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-stop:
			return Result{}, nil
		case <-ticker.C:
			d.mu.Lock()
			seq := d.frameSeq
			amp := d.lastFrame
			maxAmp := d.maxAmplitude
			noise := d.noiseFloorLocked()
			d.mu.Unlock()

			if seq == seen {
				continue
			}
			seen = seq

			// Both conditions use strict comparison. A frame at
			// exactly the threshold is not a hit.
			if amp > d.cfg.ImpactThreshold && amp > d.cfg.NoiseFactor*noise {
				confidence := 1.0
				if maxAmp > 0 && amp/maxAmp < 1.0 {
					confidence = amp / maxAmp
				}

				d.mu.Lock()
				if d.stopChan == stop && d.state == StateListening {
					d.state = StateDetected
				}
				d.mu.Unlock()

				return Result{
					Detected:    true,
					TimestampMs: time.Since(start).Milliseconds(),
					Confidence:  confidence,
					Amplitude:   amp,
				}, nil
			}
		}
	}
}

// CurrentLevel returns the smoothed meter amplitude in [0, 1], or 0 when no
// session is active.
func (d *StreamDetector) CurrentLevel() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateIdle {
		return 0
	}
	return d.meter.Level()
}

// Meter returns a full meter reading for the UI, including the background
// noise estimate. Zero values when no session is active.
func (d *StreamDetector) Meter(now time.Time) audio.MeterReading {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateIdle {
		return audio.MeterReading{}
	}
	return d.meter.Reading(now)
}

// NoiseFloor returns the current background noise estimate in [0, 1].
func (d *StreamDetector) NoiseFloor() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.noiseFloorLocked()
}

func (d *StreamDetector) noiseFloorLocked() float64 {
	if d.noiseCount == 0 {
		return 0
	}
	return d.noiseSum / float64(d.noiseCount)
}

// ReadError returns the stream read error, if any, from the current or
// most recent session.
func (d *StreamDetector) ReadError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readErr
}

// Detecting reports whether a one-shot detection is in flight.
func (d *StreamDetector) Detecting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detecting
}

// StopListening ends the session. Any in-flight detection resolves with a
// negative Result. Calling StopListening on an idle detector is a no-op.
func (d *StreamDetector) StopListening() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateIdle {
		return
	}
	close(d.stopChan)
	d.state = StateIdle
	d.meter.Reset()
}
