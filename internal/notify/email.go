package notify

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/swingsense/impact-detector/internal/types"
	"github.com/swingsense/impact-detector/internal/util"
)

// maxAttachmentBytes caps clip attachments on session report emails.
// Graph rejects sendMail payloads over ~3MB once base64 overhead is added.
const maxAttachmentBytes = 3 << 20

// SendTestEmail sends a test email to verify configuration.
func SendTestEmail(cfg *types.GraphConfig) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	client, err := NewGraphClient(cfg)
	if err != nil {
		return util.WrapError("create Graph client", err)
	}

	subject := "[TEST] " + AppName
	body := fmt.Sprintf(
		"This is a test notification from %s.\n\nTime: %s\n\nIf you received this, email notifications are working.",
		AppName, util.HumanTime(),
	)

	return client.SendMail(ParseRecipients(cfg.Recipients), subject, body)
}

// impactEmailContent builds the subject and body for an impact alert.
func impactEmailContent(event *types.ImpactEvent, threshold float64) (subject, body string) {
	subject = "[HIT] Impact Detected - " + AppName
	body = fmt.Sprintf(
		"An impact was detected during a live session.\n\n"+
			"Offset:     %s into the session\n"+
			"Confidence: %.2f\n"+
			"Amplitude:  %.2f (threshold %.2f)\n"+
			"Time:       %s",
		util.FormatDuration(event.TimestampMs), event.Confidence,
		event.Amplitude, threshold, util.HumanTime(),
	)
	return subject, body
}

// sessionEmailContent builds the subject and body for a session report.
func sessionEmailContent(clip *types.ClipInfo) (subject, body string) {
	subject = "[REPORT] Session Finished - " + AppName
	if clip == nil {
		body = fmt.Sprintf("A detection session finished.\n\nTime: %s\n\nNo session clip was recorded.", util.HumanTime())
		return subject, body
	}

	body = fmt.Sprintf(
		"A detection session finished.\n\n"+
			"Clip: %s (%d bytes)\n"+
			"Time: %s",
		clip.Filename, clip.SizeBytes, util.HumanTime(),
	)
	if clip.S3Key != "" {
		body += "\nS3:   " + clip.S3Key
	}
	if clip.UploadErr != "" {
		body += "\nUpload error: " + clip.UploadErr
	}
	return subject, body
}

// clipAttachment loads the session clip as an email attachment.
// Returns nil when the clip is missing or too large to attach.
func clipAttachment(clip *types.ClipInfo) *EmailAttachment {
	if clip == nil || clip.Path == "" || clip.SizeBytes > maxAttachmentBytes {
		return nil
	}

	data, err := os.ReadFile(clip.Path)
	if err != nil {
		return nil
	}

	return &EmailAttachment{
		Filename:    filepath.Base(clip.Path),
		ContentType: "audio/wav",
		Data:        data,
	}
}
