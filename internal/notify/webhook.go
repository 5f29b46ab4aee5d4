package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/swingsense/impact-detector/internal/types"
	"github.com/swingsense/impact-detector/internal/util"
)

// WebhookPayload represents the data sent to webhook endpoints.
type WebhookPayload struct {
	Event       string  `json:"event"`
	TimestampMs int64   `json:"timestamp_ms,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Amplitude   float64 `json:"amplitude,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	Message     string  `json:"message,omitempty"`
	Timestamp   string  `json:"timestamp"`

	// Clip fields (session_end only)
	ClipFilename  string `json:"clip_filename,omitempty"`
	ClipSizeBytes int64  `json:"clip_size_bytes,omitempty"`
	ClipError     string `json:"clip_error,omitempty"`
}

// SendImpactWebhook notifies the configured webhook of a detected impact.
func SendImpactWebhook(webhookURL string, event *types.ImpactEvent, threshold float64) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:       "impact_detected",
		TimestampMs: event.TimestampMs,
		Confidence:  event.Confidence,
		Amplitude:   event.Amplitude,
		Threshold:   threshold,
		Timestamp:   timestampUTC(),
	})
}

// SendSessionEndWebhook notifies the configured webhook that a session ended.
func SendSessionEndWebhook(webhookURL string, clip *types.ClipInfo) error {
	payload := &WebhookPayload{
		Event:     "session_end",
		Timestamp: timestampUTC(),
	}
	if clip != nil {
		payload.ClipFilename = clip.Filename
		payload.ClipSizeBytes = clip.SizeBytes
		payload.ClipError = clip.UploadErr
	}
	return sendWebhook(webhookURL, payload)
}

// SendTestWebhook sends a test webhook notification.
func SendTestWebhook(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     "test",
		Message:   "This is a test notification from " + AppName,
		Timestamp: timestampUTC(),
	})
}

// sendWebhook delivers a notification to the configured webhook endpoint.
func sendWebhook(webhookURL string, payload *WebhookPayload) error {
	if !util.IsConfigured(webhookURL) {
		return nil // Silently skip if not configured
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	client := &http.Client{Timeout: 10000 * time.Millisecond}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer util.SafeCloseFunc(resp.Body, "webhook response body")()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
