package notify_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/swingsense/impact-detector/internal/notify"
	"github.com/swingsense/impact-detector/internal/types"
)

func TestSendImpactWebhook(t *testing.T) {
	t.Parallel()

	var got notify.WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := &types.ImpactEvent{TimestampMs: 1500, Confidence: 0.92, Amplitude: 0.88}
	if err := notify.SendImpactWebhook(srv.URL, event, 0.75); err != nil {
		t.Fatalf("SendImpactWebhook() error = %v", err)
	}

	if got.Event != "impact_detected" {
		t.Errorf("Event = %q, want impact_detected", got.Event)
	}
	if got.TimestampMs != 1500 || got.Confidence != 0.92 || got.Threshold != 0.75 {
		t.Errorf("payload = %+v, want event fields echoed", got)
	}
	if got.Timestamp == "" {
		t.Error("Timestamp is empty")
	}
}

func TestSendWebhookRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	event := &types.ImpactEvent{TimestampMs: 10, Confidence: 1}
	if err := notify.SendImpactWebhook(srv.URL, event, 0.75); err == nil {
		t.Fatal("SendImpactWebhook() accepted a 502 response")
	}
}

func TestSendWebhookSkipsWhenUnconfigured(t *testing.T) {
	t.Parallel()

	event := &types.ImpactEvent{TimestampMs: 10, Confidence: 1}
	if err := notify.SendImpactWebhook("", event, 0.75); err != nil {
		t.Errorf("unconfigured webhook should be a silent no-op, got %v", err)
	}
}

func TestLogImpactAppendsJSONLines(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "impacts.log")

	event := &types.ImpactEvent{TimestampMs: 2000, Confidence: 0.8, Amplitude: 0.79}
	if err := notify.LogImpact(logPath, event, 0.75); err != nil {
		t.Fatalf("LogImpact() error = %v", err)
	}
	if err := notify.LogSessionEnd(logPath, 0.75, &types.ClipInfo{Path: "/tmp/clip.wav", Filename: "clip.wav", SizeBytes: 42}); err != nil {
		t.Fatalf("LogSessionEnd() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var first types.ImpactLogEntry
	if err := json.Unmarshal([]byte(splitLines(t, data)[0]), &first); err != nil {
		t.Fatalf("parse first entry: %v", err)
	}
	if first.Event != "impact" || first.TimestampMs != 2000 {
		t.Errorf("first entry = %+v, want impact at 2000ms", first)
	}

	var second types.ImpactLogEntry
	if err := json.Unmarshal([]byte(splitLines(t, data)[1]), &second); err != nil {
		t.Fatalf("parse second entry: %v", err)
	}
	if second.Event != "session_end" || second.ClipPath != "/tmp/clip.wav" {
		t.Errorf("second entry = %+v, want session_end with clip path", second)
	}
}

func splitLines(t *testing.T, data []byte) []string {
	t.Helper()
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, string(data[start:i]))
			start = i + 1
		}
	}
	if len(lines) < 2 {
		t.Fatalf("expected at least 2 log lines, got %d", len(lines))
	}
	return lines
}

func TestParseRecipients(t *testing.T) {
	t.Parallel()

	got := notify.ParseRecipients(" a@example.com, ,b@example.com ")
	if len(got) != 2 || got[0] != "a@example.com" || got[1] != "b@example.com" {
		t.Errorf("ParseRecipients() = %v", got)
	}
	if notify.ParseRecipients("") != nil {
		t.Error("ParseRecipients(\"\") should be nil")
	}
}

func TestGraphValidation(t *testing.T) {
	t.Parallel()

	cfg := &types.GraphConfig{
		TenantID:     "12345678-1234-1234-1234-123456789abc",
		ClientID:     "87654321-4321-4321-4321-cba987654321",
		ClientSecret: "secret",
		FromAddress:  "detector@example.com",
		Recipients:   "coach@example.com",
	}
	if err := notify.ValidateConfig(cfg); err != nil {
		t.Errorf("ValidateConfig() error = %v", err)
	}
	if !notify.IsConfigured(cfg) {
		t.Error("IsConfigured() = false for complete config")
	}

	cfg.TenantID = "not-a-guid"
	if err := notify.ValidateConfig(cfg); err == nil {
		t.Error("ValidateConfig() accepted malformed tenant ID")
	}

	cfg.TenantID = ""
	if notify.IsConfigured(cfg) {
		t.Error("IsConfigured() = true with missing tenant ID")
	}
}
