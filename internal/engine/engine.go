// Package engine provides the audio capture and detection engine. It manages
// the platform capture process with automatic retry, feeds live PCM to the
// stream detector and session recorder, and finalizes session clips.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/swingsense/impact-detector/internal/audio"
	"github.com/swingsense/impact-detector/internal/config"
	"github.com/swingsense/impact-detector/internal/decode"
	"github.com/swingsense/impact-detector/internal/detect"
	"github.com/swingsense/impact-detector/internal/eventlog"
	"github.com/swingsense/impact-detector/internal/notify"
	"github.com/swingsense/impact-detector/internal/recording"
	"github.com/swingsense/impact-detector/internal/types"
	"github.com/swingsense/impact-detector/internal/util"
)

// Sentinel errors for engine operations.
var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrNotRunning     = errors.New("session not running")
)

// readBufBytes is one analysis frame of mono S16LE PCM.
const readBufBytes = types.FrameSamples * 2

// Engine manages audio capture and routes PCM to the detector and recorder.
type Engine struct {
	config     *config.Config
	ffmpegPath string
	notifier   *notify.ImpactNotifier
	events     *eventlog.Logger

	mu           sync.RWMutex
	detector     *detect.StreamDetector
	recorder     *recording.SessionRecorder
	sourceCmd    *exec.Cmd
	sourceCancel context.CancelFunc
	sourceStdout io.ReadCloser
	pcmWriter    *io.PipeWriter
	state        types.EngineState
	stopChan     chan struct{}
	lastError    string
	startTime    time.Time
	retryCount   int
	backoff      *util.Backoff
}

// New creates a new Engine with the given configuration and FFmpeg binary path.
// The event logger may be nil, in which case event logging is disabled.
func New(cfg *config.Config, ffmpegPath string, notifier *notify.ImpactNotifier, events *eventlog.Logger) *Engine {
	return &Engine{
		config:     cfg,
		ffmpegPath: ffmpegPath,
		notifier:   notifier,
		events:     events,
		state:      types.StateStopped,
		backoff:    util.NewBackoff(types.InitialRetryDelay, types.MaxRetryDelay),
	}
}

// logEvent writes to the event log when one is configured.
func (e *Engine) logEvent(fn func(l *eventlog.Logger) error) {
	if e.events == nil {
		return
	}
	if err := fn(e.events); err != nil {
		slog.Warn("failed to write event log entry", "error", err)
	}
}

// State returns the current engine state.
func (e *Engine) State() types.EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// IsRunning reports whether the engine is in running state.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == types.StateRunning
}

// Status returns the current engine status.
func (e *Engine) Status() types.EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	uptime := ""
	if e.state == types.StateRunning {
		uptime = time.Since(e.startTime).Truncate(time.Second).String()
	}

	detecting := false
	if e.detector != nil {
		detecting = e.detector.Detecting()
	}

	return types.EngineStatus{
		State:            e.state,
		Uptime:           uptime,
		LastError:        e.lastError,
		SourceRetryCount: e.retryCount,
		SourceMaxRetries: types.MaxRetries,
		Detecting:        detecting,
	}
}

// Levels returns the current meter levels for the UI.
func (e *Engine) Levels() types.MeterLevels {
	e.mu.RLock()
	d := e.detector
	state := e.state
	e.mu.RUnlock()

	if state != types.StateRunning || d == nil {
		return types.MeterLevels{}
	}

	reading := d.Meter(time.Now())
	return types.MeterLevels{
		Level:      reading.Level,
		Peak:       reading.Peak,
		HeldPeak:   reading.HeldPeak,
		NoiseFloor: d.NoiseFloor(),
	}
}

// CurrentLevel returns the smoothed amplitude in [0, 1], or 0 when no
// session is active.
func (e *Engine) CurrentLevel() float64 {
	e.mu.RLock()
	d := e.detector
	e.mu.RUnlock()

	if d == nil {
		return 0
	}
	return d.CurrentLevel()
}

// Start begins a detection session: audio capture, metering and recording.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == types.StateRunning || e.state == types.StateStarting {
		return ErrAlreadyRunning
	}

	snap := e.config.Snapshot()

	dcfg := detect.DefaultConfig()
	dcfg.ImpactThreshold = snap.ImpactThreshold
	dcfg.NoiseFactor = snap.NoiseFactor

	e.detector = detect.NewStreamDetector(dcfg)

	pr, pw := io.Pipe()
	e.pcmWriter = pw
	if err := e.detector.StartListening(pr); err != nil {
		return util.WrapError("start detector", err)
	}

	e.recorder = nil
	if snap.RecordingEnabled {
		e.recorder = recording.NewSessionRecorder(e.ffmpegPath, snap.RecordingPath)
		e.recorder.Start()
	}

	e.state = types.StateStarting
	e.stopChan = make(chan struct{})
	e.retryCount = 0
	e.lastError = ""
	e.backoff.Reset()

	e.logEvent(func(l *eventlog.Logger) error {
		return l.LogSession(eventlog.SessionStarted, snap.AudioInput, "session started", "", 0, types.MaxRetries)
	})

	go e.runSourceLoop()

	return nil
}

// DetectImpact waits for the next impact in the live session. A positive
// result is fanned out to the configured notification channels.
func (e *Engine) DetectImpact(ctx context.Context) (detect.Result, error) {
	e.mu.RLock()
	d := e.detector
	state := e.state
	e.mu.RUnlock()

	if d == nil || state == types.StateStopped || state == types.StateStopping {
		return detect.Result{}, detect.ErrNotListening
	}

	result, err := d.DetectImpact(ctx)
	if err != nil || !result.Detected {
		return result, err
	}

	event := &types.ImpactEvent{
		TimestampMs: result.TimestampMs,
		Confidence:  result.Confidence,
		Amplitude:   result.Amplitude,
		DetectedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	slog.Info("impact detected",
		"timestamp_ms", event.TimestampMs,
		"confidence", event.Confidence,
		"amplitude", event.Amplitude,
	)
	e.logEvent(func(l *eventlog.Logger) error {
		return l.LogImpact(result.TimestampMs, result.Confidence, result.Amplitude, e.config.Snapshot().ImpactThreshold)
	})
	e.notifier.ImpactDetected(event)

	return result, nil
}

// AnalyzeRecording decodes an uploaded clip and scans it for an impact.
func (e *Engine) AnalyzeRecording(ctx context.Context, blob []byte) (detect.Result, error) {
	dcfg := detect.DefaultConfig()
	dcfg.ImpactThreshold = e.config.Snapshot().ImpactThreshold

	analyzer := detect.NewOfflineAnalyzer(decode.NewFFmpegDecoder(e.ffmpegPath), dcfg)
	return analyzer.AnalyzeRecording(ctx, blob)
}

// Stop ends the session with graceful capture shutdown. Any in-flight
// detection resolves negative. The session clip is finalized in the
// background.
func (e *Engine) Stop() error {
	e.mu.Lock()

	if e.state == types.StateStopped || e.state == types.StateStopping {
		e.mu.Unlock()
		return nil
	}

	e.state = types.StateStopping

	if e.stopChan != nil {
		close(e.stopChan)
	}

	detector := e.detector
	recorder := e.recorder
	pcmWriter := e.pcmWriter
	sourceProcess := e.sourceCmd
	sourceCancel := e.sourceCancel
	e.mu.Unlock()

	if detector != nil {
		if err := detector.ReadError(); err != nil {
			slog.Warn("stream read error during session", "error", err)
		}
		detector.StopListening()
	}

	var errs []error

	// Send graceful termination signal to the capture process.
	if sourceProcess != nil && sourceProcess.Process != nil {
		if err := util.GracefulSignal(sourceProcess.Process); err != nil {
			slog.Warn("failed to send signal to capture process", "error", err)
			errs = append(errs, fmt.Errorf("signal capture: %w", err))
		}
	}

	stopped := e.pollUntil(func() bool {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return e.sourceCmd == nil
	})

	select {
	case <-stopped:
		slog.Info("audio capture stopped gracefully")
	case <-time.After(types.ShutdownTimeout):
		slog.Warn("audio capture did not stop in time, forcing kill")
		if sourceCancel != nil {
			sourceCancel()
		}
		errs = append(errs, fmt.Errorf("capture shutdown timeout"))
	}

	if pcmWriter != nil {
		_ = pcmWriter.Close()
	}

	e.mu.Lock()
	e.state = types.StateStopped
	e.sourceCmd = nil
	e.sourceCancel = nil
	e.pcmWriter = nil
	e.mu.Unlock()

	e.logEvent(func(l *eventlog.Logger) error {
		return l.LogSession(eventlog.SessionStopped, "", "session stopped", "", 0, 0)
	})

	if recorder != nil {
		go e.finalizeSession(recorder)
	} else {
		e.notifier.SessionEnded(nil)
	}

	return errors.Join(errs...)
}

// Restart stops and starts the engine.
func (e *Engine) Restart() error {
	if err := e.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	time.Sleep(1000 * time.Millisecond)
	return e.Start()
}

// finalizeSession scans the buffered session audio, encodes the clip and
// uploads it when S3 is configured.
func (e *Engine) finalizeSession(recorder *recording.SessionRecorder) {
	snap := e.config.Snapshot()

	// Offline pass over the whole session complements the live one-shot:
	// it reports the strongest hit even if no detection was in flight.
	samples := recorder.Samples()
	summary := detect.AnalyzeSamples(samples, types.SampleRate, snap.ImpactThreshold)
	if summary.Detected {
		slog.Info("session summary",
			"detected", true,
			"timestamp_ms", summary.TimestampMs,
			"confidence", summary.Confidence,
		)
	} else {
		slog.Info("session summary", "detected", false)
	}

	clip, err := recorder.Finalize()
	if err != nil {
		if !errors.Is(err, recording.ErrNoAudio) {
			slog.Error("failed to finalize session clip", "error", err)
		}
		e.notifier.SessionEnded(nil)
		return
	}

	e.logEvent(func(l *eventlog.Logger) error {
		return l.LogClip(eventlog.ClipEncoded, clip.Filename, clip.SizeBytes, "", "", 0, "local")
	})

	if uploader := recording.NewUploader(&snap.S3); uploader != nil {
		uploader.UploadClip(context.Background(), clip)
		e.logEvent(func(l *eventlog.Logger) error {
			if clip.UploadErr != "" {
				return l.LogClip(eventlog.UploadFailed, clip.Filename, clip.SizeBytes, "", clip.UploadErr, 0, "s3")
			}
			return l.LogClip(eventlog.UploadCompleted, clip.Filename, clip.SizeBytes, clip.S3Key, "", 0, "s3")
		})
	}

	e.notifier.SessionEnded(clip)
}

// TriggerTestEmail sends a test email to verify configuration.
func (e *Engine) TriggerTestEmail() error {
	gc := e.config.GraphConfig()
	return notify.SendTestEmail(&gc)
}

// TriggerTestWebhook sends a test webhook to verify configuration.
func (e *Engine) TriggerTestWebhook() error {
	return notify.SendTestWebhook(e.config.Snapshot().WebhookURL)
}

// TriggerTestLog writes a test entry to verify log file configuration.
func (e *Engine) TriggerTestLog() error {
	return notify.WriteTestLog(e.config.Snapshot().LogPath)
}

// runSourceLoop runs the audio capture process with retry.
func (e *Engine) runSourceLoop() {
	for {
		e.mu.Lock()
		if e.state == types.StateStopping || e.state == types.StateStopped {
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		startTime := time.Now()
		stderrOutput, err := e.runSource()
		runDuration := time.Since(startTime)

		e.mu.Lock()
		if err != nil {
			errMsg := err.Error()
			if stderrOutput != "" {
				errMsg = stderrOutput
			}
			e.lastError = errMsg
			slog.Error("audio capture error", "error", errMsg)
			retryCount := e.retryCount
			e.logEvent(func(l *eventlog.Logger) error {
				return l.LogSession(eventlog.SourceError, "", "capture error", errMsg, retryCount, types.MaxRetries)
			})

			if runDuration >= types.SuccessThreshold {
				e.retryCount = 0
				e.backoff.Reset()
			} else {
				e.retryCount++
			}

			if e.retryCount >= types.MaxRetries {
				slog.Error("audio capture failed, giving up", "attempts", types.MaxRetries)
				e.state = types.StateStopped
				e.lastError = fmt.Sprintf("Stopped after %d failed attempts: %s", types.MaxRetries, errMsg)
				detector := e.detector
				e.mu.Unlock()
				if detector != nil {
					detector.StopListening()
				}
				return
			}
		} else {
			e.retryCount = 0
			e.backoff.Reset()
		}

		if e.state == types.StateStopping || e.state == types.StateStopped {
			e.mu.Unlock()
			return
		}

		e.state = types.StateStarting
		retryDelay := e.backoff.Next()
		stopChan := e.stopChan
		attempt := e.retryCount + 1
		e.mu.Unlock()

		slog.Info("capture stopped, waiting before restart",
			"delay", retryDelay, "attempt", attempt, "max_retries", types.MaxRetries)
		e.logEvent(func(l *eventlog.Logger) error {
			return l.LogSession(eventlog.SourceRetry, "", "waiting before restart", "", attempt, types.MaxRetries)
		})
		select {
		case <-stopChan:
			return
		case <-time.After(retryDelay):
		}
	}
}

// runSource executes the audio capture process.
func (e *Engine) runSource() (string, error) {
	audioInput := e.config.Snapshot().AudioInput
	cmdName, args, err := audio.BuildCaptureCommand(audioInput, e.ffmpegPath)
	if err != nil {
		return "", err
	}

	slog.Info("starting audio capture", "command", cmdName, "input", audioInput)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cmdName, args...)

	// Go 1.20+: Declarative graceful shutdown - sends signal first, waits, then kills.
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}
	cmd.WaitDelay = types.ShutdownTimeout

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return "", err
	}

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	var stopChan chan struct{}
	func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sourceCmd = cmd
		e.sourceCancel = cancel
		e.sourceStdout = stdoutPipe
		e.state = types.StateRunning
		e.startTime = time.Now()
		e.lastError = ""
		stopChan = e.stopChan
	}()

	if err := cmd.Start(); err != nil {
		return "", err
	}

	go e.runDistributor(stdoutPipe, stopChan)

	err = cmd.Wait()

	func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sourceCmd = nil
		e.sourceCancel = nil
		e.sourceStdout = nil
	}()

	return util.ExtractLastError(stderrBuf.String()), err
}

// runDistributor delivers PCM from the capture process to the detector and
// the session recorder.
func (e *Engine) runDistributor(reader io.Reader, stopChan chan struct{}) {
	buf := make([]byte, readBufBytes)

	for {
		select {
		case <-stopChan:
			return
		default:
		}

		n, err := reader.Read(buf)
		if n > 0 {
			e.mu.RLock()
			pcmWriter := e.pcmWriter
			recorder := e.recorder
			e.mu.RUnlock()

			if pcmWriter != nil {
				if _, werr := pcmWriter.Write(buf[:n]); werr != nil {
					return
				}
			}
			if recorder != nil {
				recorder.WriteAudio(buf[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

// pollUntil signals when the given condition becomes true.
func (e *Engine) pollUntil(condition func() bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for !condition() {
			time.Sleep(types.PollInterval)
		}
		close(done)
	}()
	return done
}
