package notify

import (
	"sync"

	"github.com/swingsense/impact-detector/internal/config"
	"github.com/swingsense/impact-detector/internal/types"
	"github.com/swingsense/impact-detector/internal/util"
)

// ImpactNotifier fans out impact and session events to all configured
// notification channels. Deliveries run in the background so detection
// never waits on the network.
type ImpactNotifier struct {
	cfg *config.Config

	// mu protects the cached Graph client
	mu          sync.Mutex
	graphClient *GraphClient
}

// NewImpactNotifier returns an ImpactNotifier backed by the given config.
func NewImpactNotifier(cfg *config.Config) *ImpactNotifier {
	return &ImpactNotifier{cfg: cfg}
}

// InvalidateGraphClient clears the cached Graph client.
// Call this when Graph configuration changes.
func (n *ImpactNotifier) InvalidateGraphClient() {
	n.mu.Lock()
	n.graphClient = nil
	n.mu.Unlock()
}

// getOrCreateGraphClient returns the cached Graph client, creating it if needed.
func (n *ImpactNotifier) getOrCreateGraphClient(cfg *types.GraphConfig) (*GraphClient, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.graphClient != nil {
		return n.graphClient, nil
	}

	client, err := NewGraphClient(cfg)
	if err != nil {
		return nil, err
	}
	n.graphClient = client
	return client, nil
}

// ImpactDetected delivers an impact event to all configured channels.
func (n *ImpactNotifier) ImpactDetected(event *types.ImpactEvent) {
	cfg := n.cfg.Snapshot()

	if cfg.HasWebhook() {
		go util.LogNotifyResult(
			func() error { return SendImpactWebhook(cfg.WebhookURL, event, cfg.ImpactThreshold) },
			"Impact webhook",
		)
	}
	if cfg.HasLogPath() {
		go util.LogNotifyResult(
			func() error { return LogImpact(cfg.LogPath, event, cfg.ImpactThreshold) },
			"Impact log",
		)
	}
	if cfg.HasGraph() {
		go util.LogNotifyResult(
			func() error { return n.sendImpactEmail(&cfg, event) },
			"Impact email",
		)
	}
}

// SessionEnded delivers a session report to all configured channels.
// clip may be nil when recording is disabled.
func (n *ImpactNotifier) SessionEnded(clip *types.ClipInfo) {
	cfg := n.cfg.Snapshot()

	if cfg.HasWebhook() {
		go util.LogNotifyResult(
			func() error { return SendSessionEndWebhook(cfg.WebhookURL, clip) },
			"Session webhook",
		)
	}
	if cfg.HasLogPath() {
		go util.LogNotifyResult(
			func() error { return LogSessionEnd(cfg.LogPath, cfg.ImpactThreshold, clip) },
			"Session log",
		)
	}
	if cfg.HasGraph() {
		go util.LogNotifyResult(
			func() error { return n.sendSessionEmail(&cfg, clip) },
			"Session email",
		)
	}
}

// BuildGraphConfig creates a GraphConfig from the config snapshot.
func BuildGraphConfig(cfg *config.Snapshot) *types.GraphConfig {
	return &types.GraphConfig{
		TenantID:     cfg.GraphTenantID,
		ClientID:     cfg.GraphClientID,
		ClientSecret: cfg.GraphClientSecret,
		FromAddress:  cfg.GraphFromAddress,
		Recipients:   cfg.GraphRecipients,
	}
}

// sendEmail handles the common email sending infrastructure.
func (n *ImpactNotifier) sendEmail(cfg *types.GraphConfig, subject, body string, attachment *EmailAttachment) error {
	if !IsConfigured(cfg) {
		return nil
	}

	client, err := n.getOrCreateGraphClient(cfg)
	if err != nil {
		return util.WrapError("create Graph client", err)
	}

	recipients := ParseRecipients(cfg.Recipients)
	if err := client.SendMailWithAttachment(recipients, subject, body, attachment); err != nil {
		return util.WrapError("send email via Graph", err)
	}

	return nil
}

func (n *ImpactNotifier) sendImpactEmail(cfg *config.Snapshot, event *types.ImpactEvent) error {
	subject, body := impactEmailContent(event, cfg.ImpactThreshold)
	return n.sendEmail(BuildGraphConfig(cfg), subject, body, nil)
}

func (n *ImpactNotifier) sendSessionEmail(cfg *config.Snapshot, clip *types.ClipInfo) error {
	subject, body := sessionEmailContent(clip)
	return n.sendEmail(BuildGraphConfig(cfg), subject, body, clipAttachment(clip))
}
