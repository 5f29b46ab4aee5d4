package notify

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/swingsense/impact-detector/internal/types"
	"github.com/swingsense/impact-detector/internal/util"
)

// LogImpact records a detected impact in the log file.
func LogImpact(logPath string, event *types.ImpactEvent, threshold float64) error {
	return appendLogEntry(logPath, &types.ImpactLogEntry{
		Timestamp:   timestampUTC(),
		Event:       "impact",
		TimestampMs: event.TimestampMs,
		Confidence:  event.Confidence,
		Amplitude:   event.Amplitude,
		Threshold:   threshold,
	})
}

// LogSessionEnd records a finished session with optional clip info.
func LogSessionEnd(logPath string, threshold float64, clip *types.ClipInfo) error {
	entry := &types.ImpactLogEntry{
		Timestamp: timestampUTC(),
		Event:     "session_end",
		Threshold: threshold,
	}

	if clip != nil {
		if clip.UploadErr != "" {
			entry.ClipError = clip.UploadErr
		}
		entry.ClipPath = clip.Path
		entry.ClipSizeBytes = clip.SizeBytes
	}

	return appendLogEntry(logPath, entry)
}

// WriteTestLog writes a test log entry.
func WriteTestLog(logPath string) error {
	if logPath == "" {
		return fmt.Errorf("log file path not configured")
	}

	return appendLogEntry(logPath, &types.ImpactLogEntry{
		Timestamp: timestampUTC(),
		Event:     "test",
	})
}

// appendLogEntry appends a log entry to the file.
func appendLogEntry(logPath string, entry *types.ImpactLogEntry) error {
	if !util.IsConfigured(logPath) {
		return nil
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return util.WrapError("marshal log entry", err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return util.WrapError("open log file", err)
	}
	defer util.SafeCloseFunc(f, "log file")()

	if _, err := f.Write(jsonData); err != nil {
		return util.WrapError("write log entry", err)
	}
	if _, err := f.WriteString("\n"); err != nil {
		return util.WrapError("write newline", err)
	}

	return nil
}
