package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/swingsense/impact-detector/internal/config"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	cfg := config.New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	snap := cfg.Snapshot()
	if snap.WebPort != config.DefaultWebPort {
		t.Errorf("WebPort = %d, want %d", snap.WebPort, config.DefaultWebPort)
	}
	if snap.ImpactThreshold != config.DefaultImpactThreshold {
		t.Errorf("ImpactThreshold = %v, want %v", snap.ImpactThreshold, config.DefaultImpactThreshold)
	}
	if snap.NoiseFactor != config.DefaultNoiseFactor {
		t.Errorf("NoiseFactor = %v, want %v", snap.NoiseFactor, config.DefaultNoiseFactor)
	}
}

func TestGraphConfigReturnsEmailSettings(t *testing.T) {
	t.Parallel()

	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := cfg.SetGraphConfig("tenant", "client", "secret", "from@example.com", "a@example.com,b@example.com"); err != nil {
		t.Fatalf("SetGraphConfig() error = %v", err)
	}

	gc := cfg.GraphConfig()
	if gc.TenantID != "tenant" || gc.ClientID != "client" || gc.ClientSecret != "secret" {
		t.Errorf("GraphConfig() credentials = %+v, want the stored values", gc)
	}
	if gc.FromAddress != "from@example.com" || gc.Recipients != "a@example.com,b@example.com" {
		t.Errorf("GraphConfig() addresses = %+v, want the stored values", gc)
	}
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	partial := `{"system": {"port": 9090}, "detection": {"impact_threshold": 0.6}}`
	if err := os.WriteFile(path, []byte(partial), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	snap := cfg.Snapshot()
	if snap.WebPort != 9090 {
		t.Errorf("WebPort = %d, want 9090", snap.WebPort)
	}
	if snap.ImpactThreshold != 0.6 {
		t.Errorf("ImpactThreshold = %v, want 0.6", snap.ImpactThreshold)
	}
	if snap.NoiseFactor != config.DefaultNoiseFactor {
		t.Errorf("NoiseFactor = %v, want default %v", snap.NoiseFactor, config.DefaultNoiseFactor)
	}
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	bad := `{"detection": {"impact_threshold": 1.5}}`
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.New(path)
	if err := cfg.Load(); err == nil {
		t.Fatal("Load() accepted impact_threshold > 1")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.New(path)
	if err := cfg.Load(); err == nil {
		t.Fatal("Load() accepted malformed JSON")
	}
}

func TestSettersPersist(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	cfg := config.New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := cfg.SetImpactThreshold(0.8); err != nil {
		t.Fatalf("SetImpactThreshold() error = %v", err)
	}
	if err := cfg.SetAudioInput("hw:1"); err != nil {
		t.Fatalf("SetAudioInput() error = %v", err)
	}

	reloaded := config.New(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	snap := reloaded.Snapshot()
	if snap.ImpactThreshold != 0.8 {
		t.Errorf("ImpactThreshold = %v, want 0.8", snap.ImpactThreshold)
	}
	if snap.AudioInput != "hw:1" {
		t.Errorf("AudioInput = %q, want hw:1", snap.AudioInput)
	}
}

func TestGenerateAPIKey(t *testing.T) {
	t.Parallel()

	key, err := config.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if len(key) != 32 {
		t.Errorf("key length = %d, want 32", len(key))
	}

	other, err := config.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if key == other {
		t.Error("two generated keys are identical")
	}
}

func TestSnapshotHasHelpers(t *testing.T) {
	t.Parallel()

	var snap config.Snapshot
	if snap.HasWebhook() || snap.HasGraph() || snap.HasLogPath() || snap.HasS3() {
		t.Error("empty snapshot reports configured channels")
	}

	snap.WebhookURL = "https://example.com/hook"
	if !snap.HasWebhook() {
		t.Error("HasWebhook() = false with URL set")
	}

	snap.S3 = config.S3Config{Bucket: "clips", AccessKey: "ak", SecretKey: "sk"}
	if !snap.HasS3() {
		t.Error("HasS3() = false with credentials set")
	}
}
