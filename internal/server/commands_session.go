package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/swingsense/impact-detector/internal/types"
)

// --- Session handlers ---

// handleSessionStart processes a session/start command.
func (h *CommandHandler) handleSessionStart(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		if err := h.engine.Start(); err != nil {
			return nil, err
		}
		slog.Info("session started")
		return nil, nil
	})
}

// handleSessionStop processes a session/stop command.
func (h *CommandHandler) handleSessionStop(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		if err := h.engine.Stop(); err != nil {
			return nil, err
		}
		slog.Info("session stopped")
		return nil, nil
	})
}

// handleSessionRestart processes a session/restart command.
func (h *CommandHandler) handleSessionRestart(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		return nil, h.engine.Restart()
	})
}

// --- Detection handlers ---

// handleDetectStart arms a one-shot detection and reports the outcome when
// it resolves. The wait can outlive the command round trip, so the result
// is delivered as a separate impact message.
func (h *CommandHandler) handleDetectStart(cmd WSCommand, send chan<- any) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in detect handler", "panic", r)
			}
		}()

		result, err := h.engine.DetectImpact(context.Background())
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				SendError(send, cmd.Type, err)
			}
			return
		}

		SendData(send, types.WSImpactResponse{
			Type:        "impact",
			Detected:    result.Detected,
			TimestampMs: result.TimestampMs,
			Confidence:  result.Confidence,
		})
	}()
}
