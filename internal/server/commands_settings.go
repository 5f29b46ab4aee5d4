package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/swingsense/impact-detector/internal/audio"
	"github.com/swingsense/impact-detector/internal/config"
	"github.com/swingsense/impact-detector/internal/recording"
	"github.com/swingsense/impact-detector/internal/types"
	"github.com/swingsense/impact-detector/internal/util"
)

// --- Audio handlers ---

// handleAudioUpdate processes an audio/update command.
func (h *CommandHandler) handleAudioUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *AudioUpdateRequest) error {
		if req.Input == "" {
			return nil // No change requested
		}

		slog.Info("audio/update: changing audio input", "input", req.Input)
		if err := h.cfg.SetAudioInput(req.Input); err != nil {
			return err
		}

		// Restart the session so the new device takes effect
		go func() {
			var err error
			switch h.engine.State() {
			case types.StateRunning:
				err = h.engine.Restart()
			case types.StateStopped:
				// Device change while idle takes effect on next start
			}
			if err != nil {
				slog.Error("audio/update: session restart failed", "error", err)
			}
		}()

		return nil
	})
}

// handleAudioDevices processes an audio/devices command.
func (h *CommandHandler) handleAudioDevices(send chan<- any) {
	HandleActionAsync(WSCommand{Type: "audio/devices"}, send, func() (any, error) {
		return map[string]any{"devices": audio.Devices()}, nil
	})
}

// --- Detection handlers ---

// handleDetectionUpdate processes a detection/update command.
func (h *CommandHandler) handleDetectionUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *DetectionUpdateRequest) error {
		if req.ImpactThreshold != nil {
			if err := h.cfg.SetImpactThreshold(*req.ImpactThreshold); err != nil {
				return err
			}
		}
		if req.NoiseFactor != nil {
			if err := h.cfg.SetNoiseFactor(*req.NoiseFactor); err != nil {
				return err
			}
		}

		// Threshold changes apply to the next session
		return nil
	})
}

// --- Notification handlers ---

// handleWebhookUpdate processes a notifications/webhook/update command.
func (h *CommandHandler) handleWebhookUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *WebhookUpdateRequest) error {
		return h.cfg.SetWebhookURL(req.URL)
	})
}

// handleLogUpdate processes a notifications/log/update command.
func (h *CommandHandler) handleLogUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *LogUpdateRequest) error {
		return h.cfg.SetLogPath(req.Path)
	})
}

// handleEmailUpdate processes a notifications/email/update command.
func (h *CommandHandler) handleEmailUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *EmailUpdateRequest) error {
		if err := h.cfg.SetGraphConfig(
			req.TenantID,
			req.ClientID,
			req.ClientSecret,
			req.FromAddress,
			req.Recipients,
		); err != nil {
			return err
		}
		h.notifier.InvalidateGraphClient()
		return nil
	})
}

// --- Recording handlers ---

// handleRecordingUpdate processes a recording/update command.
func (h *CommandHandler) handleRecordingUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(h, cmd, send, func(req *RecordingUpdateRequest) error {
		snap := h.cfg.Snapshot()

		enabled := snap.RecordingEnabled
		path := snap.RecordingPath
		retentionDays := snap.RecordingRetentionDays

		if req.Enabled != nil {
			enabled = *req.Enabled
		}
		if req.Path != "" {
			path = req.Path
		}
		if req.RetentionDays != nil {
			retentionDays = *req.RetentionDays
		}

		if enabled && path != "" {
			if err := util.CheckPathWritable(path); err != nil {
				return fmt.Errorf("recording_path: %w", err)
			}
		}

		return h.cfg.SetRecording(enabled, path, retentionDays)
	})
}

// handleRegenerateAPIKey processes a recording/regenerate-key command.
func (h *CommandHandler) handleRegenerateAPIKey(send chan<- any) {
	HandleActionAsync(WSCommand{Type: "recording/regenerate-key"}, send, func() (any, error) {
		newKey, err := config.GenerateAPIKey()
		if err != nil {
			return nil, err
		}

		if err := h.cfg.SetAPIKey(newKey); err != nil {
			return nil, err
		}

		slog.Info("API key regenerated")

		return map[string]string{"api_key": newKey}, nil
	})
}

// handleTestS3 processes a recording/test-s3 command.
func (h *CommandHandler) handleTestS3(cmd WSCommand, send chan<- any) {
	var req S3TestRequest
	if !DecodeAndValidate(cmd, send, &req) {
		return
	}

	HandleActionAsync(cmd, send, func() (any, error) {
		uploader := recording.NewUploader(&config.S3Config{
			Endpoint:  req.Endpoint,
			Region:    req.Region,
			Bucket:    req.Bucket,
			AccessKey: req.AccessKey,
			SecretKey: req.SecretKey,
		})
		if uploader == nil {
			return nil, fmt.Errorf("incomplete S3 configuration")
		}
		return nil, uploader.TestConnection(context.Background())
	})
}
