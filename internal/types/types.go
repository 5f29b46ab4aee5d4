// Package types provides shared type definitions used across the detector service.
package types

import (
	"time"
)

// EngineState represents the current state of the capture engine.
type EngineState string

const (
	// StateStopped indicates the engine is not running.
	StateStopped EngineState = "stopped"
	// StateStarting indicates the engine is initializing.
	StateStarting EngineState = "starting"
	// StateRunning indicates the engine is actively processing audio.
	StateRunning EngineState = "running"
	// StateStopping indicates the engine is shutting down.
	StateStopping EngineState = "stopping"
)

const (
	// InitialRetryDelay is the starting delay between capture retry attempts.
	InitialRetryDelay = 3000 * time.Millisecond
	// MaxRetryDelay is the maximum delay between capture retry attempts.
	MaxRetryDelay = 60000 * time.Millisecond
	// MaxRetries is the maximum number of retry attempts for the audio source.
	MaxRetries = 10
	// SuccessThreshold is the duration after which the retry count resets.
	SuccessThreshold = 30000 * time.Millisecond
)

const (
	// ShutdownTimeout is the duration to wait for graceful shutdown.
	ShutdownTimeout = 3000 * time.Millisecond
	// PollInterval is the interval for polling process state.
	PollInterval = 50 * time.Millisecond
)

// Audio format constants for PCM capture and analysis.
const (
	// SampleRate is the audio sample rate in Hz.
	SampleRate = 48000
	// Channels is the number of audio channels (mono microphone input).
	Channels = 1
	// FrameSamples is the size of one analysis frame in samples.
	FrameSamples = 2048
)

// EngineStatus contains a summary of the engine's current operational state.
type EngineStatus struct {
	State            EngineState `json:"state"`                       // Current engine state
	Uptime           string      `json:"uptime,omitzero"`             // Time since start
	LastError        string      `json:"last_error,omitzero"`         // Most recent error
	SourceRetryCount int         `json:"source_retry_count,omitzero"` // Source retry attempts
	SourceMaxRetries int         `json:"source_max_retries"`          // Max source retries
	Detecting        bool        `json:"detecting"`                   // A one-shot detection is in flight
}

// MeterLevels contains current audio level measurements for the UI meter.
type MeterLevels struct {
	// Level is the smoothed normalized amplitude in [0,1].
	Level float64 `json:"level"`
	// Peak is the instantaneous normalized peak amplitude in [0,1].
	Peak float64 `json:"peak"`
	// HeldPeak is the peak-hold value in [0,1] for the meter needle.
	HeldPeak float64 `json:"held_peak"`
	// NoiseFloor is the current background noise estimate in [0,1].
	NoiseFloor float64 `json:"noise_floor,omitzero"`
}

// ImpactEvent describes a detected impact for downstream consumers.
type ImpactEvent struct {
	TimestampMs int64   `json:"timestamp_ms"` // Offset from session start in milliseconds
	Confidence  float64 `json:"confidence"`   // Normalized strength in [0,1]
	Amplitude   float64 `json:"amplitude"`    // Raw normalized amplitude of the triggering frame
	DetectedAt  string  `json:"detected_at"`  // RFC3339 wall-clock time of detection
}

// ClipInfo describes an encoded session clip on disk.
type ClipInfo struct {
	Path      string `json:"path"`                 // Full path to the clip file
	Filename  string `json:"filename"`             // Base name of the clip file
	SizeBytes int64  `json:"size_bytes"`           // Clip size in bytes
	S3Key     string `json:"s3_key,omitempty"`     // S3 object key when uploaded
	UploadErr string `json:"upload_err,omitempty"` // Error message if upload failed
}

// WSStatusResponse is sent to clients with full engine status and settings.
type WSStatusResponse struct {
	Type            string       `json:"type"`             // Message type identifier
	FFmpegAvailable bool         `json:"ffmpeg_available"` // FFmpeg binary is available
	Engine          EngineStatus `json:"engine"`           // Engine status
	ImpactThreshold float64      `json:"impact_threshold"` // Detection threshold (fraction of full scale)
	NoiseFactor     float64      `json:"noise_factor"`     // Background rejection multiplier
	AudioInput      string       `json:"audio_input"`      // Selected audio input device
	Platform        string       `json:"platform"`         // Operating system platform
	WebhookURL      string       `json:"webhook_url"`      // Webhook for impact events
	ImpactLogPath   string       `json:"impact_log_path"`  // Log file path for impact events
	RecordingPath   string       `json:"recording_path"`   // Local clip directory
	GraphTenantID   string       `json:"graph_tenant_id"`  // Azure AD tenant ID
	GraphClientID   string       `json:"graph_client_id"`  // App registration client ID
	GraphFrom       string       `json:"graph_from"`       // Shared mailbox address
	GraphRecipients string       `json:"graph_recipients"` // Comma-separated recipients
	Version         VersionInfo  `json:"version"`          // Version information
}

// WSLevelsResponse is sent to clients with audio level updates.
type WSLevelsResponse struct {
	Type   string      `json:"type"`   // Message type identifier
	Levels MeterLevels `json:"levels"` // Current meter levels
}

// WSImpactResponse is sent to clients when a one-shot detection resolves.
type WSImpactResponse struct {
	Type        string  `json:"type"`         // Message type identifier
	Detected    bool    `json:"detected"`     // Whether a qualifying transient was found
	TimestampMs int64   `json:"timestamp_ms"` // Offset from session start in milliseconds
	Confidence  float64 `json:"confidence"`   // Normalized strength in [0,1]
}

// WSTestResult is sent to clients after a notification test completes.
type WSTestResult struct {
	Type     string `json:"type"`            // Message type identifier
	TestType string `json:"test_type"`       // Which notification channel was tested
	Success  bool   `json:"success"`         // Whether the test succeeded
	Error    string `json:"error,omitempty"` // Error message on failure
}

// WSImpactLogResult is sent to clients with the impact log contents.
type WSImpactLogResult struct {
	Type    string           `json:"type"`              // Message type identifier
	Success bool             `json:"success"`           // Whether the read succeeded
	Error   string           `json:"error,omitempty"`   // Error message on failure
	Path    string           `json:"path,omitempty"`    // Log file path
	Entries []ImpactLogEntry `json:"entries,omitempty"` // Entries, newest first
}

// ImpactLogEntry represents a single entry in the impact log file.
type ImpactLogEntry struct {
	Timestamp   string  `json:"timestamp"`              // RFC3339 timestamp
	Event       string  `json:"event"`                  // Event type (impact, session_end, test)
	TimestampMs int64   `json:"timestamp_ms,omitempty"` // Impact offset from session start
	Confidence  float64 `json:"confidence,omitempty"`   // Normalized strength in [0,1]
	Amplitude   float64 `json:"amplitude,omitempty"`    // Raw normalized amplitude
	Threshold   float64 `json:"threshold"`              // Threshold in effect

	// Clip fields (session_end only)
	ClipPath      string `json:"clip_path,omitempty"`       // Full path to the encoded clip
	ClipSizeBytes int64  `json:"clip_size_bytes,omitempty"` // Clip file size in bytes
	ClipError     string `json:"clip_error,omitempty"`      // Error message if encoding failed
}

// GraphConfig contains Microsoft Graph API settings for email notifications.
type GraphConfig struct {
	TenantID     string `json:"tenant_id,omitempty"`     // Azure AD tenant ID
	ClientID     string `json:"client_id,omitempty"`     // App registration client ID
	ClientSecret string `json:"client_secret,omitempty"` // App registration client secret
	FromAddress  string `json:"from_address,omitempty"`  // Shared mailbox address (sender)
	Recipients   string `json:"recipients,omitempty"`    // Comma-separated recipients
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}
