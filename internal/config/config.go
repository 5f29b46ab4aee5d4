// Package config provides application configuration management.
package config

import (
	"cmp"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/swingsense/impact-detector/internal/types"
	"github.com/swingsense/impact-detector/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort         = 8080
	DefaultImpactThreshold = 0.75
	DefaultNoiseFactor     = 3.0
	DefaultRetentionDays   = 14
	DefaultRecordingDir    = "clips"
)

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	FFmpegPath string `json:"ffmpeg_path"` // Path to FFmpeg binary (empty = use PATH)
	Port       int    `json:"port"`        // HTTP server port
	APIKey     string `json:"api_key"`     // API key for the analyze endpoint
}

// AudioConfig holds audio input device settings.
type AudioConfig struct {
	Input string `json:"input"` // Audio input device identifier
}

// DetectionConfig holds impact detection tuning parameters.
type DetectionConfig struct {
	ImpactThreshold float64 `json:"impact_threshold"` // Minimum amplitude for a hit (fraction of full scale)
	NoiseFactor     float64 `json:"noise_factor"`     // Multiplier over the background estimate
}

// S3Config holds S3-compatible storage settings for clip uploads.
type S3Config struct {
	Endpoint  string `json:"endpoint"`   // S3 endpoint URL (empty = AWS)
	Region    string `json:"region"`     // S3 region
	Bucket    string `json:"bucket"`     // Bucket name
	AccessKey string `json:"access_key"` // Access key ID
	SecretKey string `json:"secret_key"` // Secret access key
	Prefix    string `json:"prefix"`     // Key prefix for uploaded clips
}

// RecordingConfig holds session clip recording settings.
type RecordingConfig struct {
	Enabled       bool     `json:"enabled"`        // Record session audio to clips
	Path          string   `json:"path"`           // Local clip directory
	RetentionDays int      `json:"retention_days"` // Days to keep local clips
	S3            S3Config `json:"s3"`             // Optional S3 upload target
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	URL string `json:"url"` // Webhook URL for impact events
}

// LogConfig holds log file notification settings.
type LogConfig struct {
	Path string `json:"path"` // Log file path for impact events
}

// EmailConfig holds Microsoft Graph email notification settings.
type EmailConfig struct {
	TenantID     string `json:"tenant_id"`     // Azure AD tenant ID
	ClientID     string `json:"client_id"`     // App registration client ID
	ClientSecret string `json:"client_secret"` // App registration client secret
	FromAddress  string `json:"from_address"`  // Shared mailbox sender address
	Recipients   string `json:"recipients"`    // Comma-separated recipient addresses
}

// NotificationsConfig holds all notification channel settings.
type NotificationsConfig struct {
	Webhook WebhookConfig `json:"webhook"` // Webhook settings
	Log     LogConfig     `json:"log"`     // Log file settings
	Email   EmailConfig   `json:"email"`   // Email settings
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System        SystemConfig        `json:"system"`
	Audio         AudioConfig         `json:"audio"`
	Detection     DetectionConfig     `json:"detection"`
	Recording     RecordingConfig     `json:"recording"`
	Notifications NotificationsConfig `json:"notifications"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{
			Port: DefaultWebPort,
		},
		Detection: DetectionConfig{
			ImpactThreshold: DefaultImpactThreshold,
			NoiseFactor:     DefaultNoiseFactor,
		},
		Recording: RecordingConfig{
			Path:          DefaultRecordingDir,
			RetentionDays: DefaultRetentionDays,
		},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	return c.validate()
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	if t := c.Detection.ImpactThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("invalid impact_threshold %v: must be in (0, 1]", t)
	}
	if f := c.Detection.NoiseFactor; f < 1 {
		return fmt.Errorf("invalid noise_factor %v: must be >= 1", f)
	}
	if c.Recording.Enabled {
		if err := util.ValidatePath("recording.path", c.Recording.Path); err != nil {
			return err
		}
	}
	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.System.Port == 0 {
		c.System.Port = DefaultWebPort
	}
	if c.Detection.ImpactThreshold == 0 {
		c.Detection.ImpactThreshold = DefaultImpactThreshold
	}
	if c.Detection.NoiseFactor == 0 {
		c.Detection.NoiseFactor = DefaultNoiseFactor
	}
	if c.Recording.Path == "" {
		c.Recording.Path = DefaultRecordingDir
	}
	if c.Recording.RetentionDays == 0 {
		c.Recording.RetentionDays = DefaultRetentionDays
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Getters for individual settings ---

// AudioInput returns the configured audio input device.
func (c *Config) AudioInput() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.Input
}

// GetFFmpegPath returns the configured FFmpeg binary path.
func (c *Config) GetFFmpegPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.FFmpegPath
}

// GetAPIKey returns the API key for the REST endpoints.
func (c *Config) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.APIKey
}

// ImpactThreshold returns the configured detection threshold.
func (c *Config) ImpactThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cmp.Or(c.Detection.ImpactThreshold, DefaultImpactThreshold)
}

// GraphConfig returns a copy of the current Graph/Email configuration.
func (c *Config) GraphConfig() types.GraphConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.GraphConfig{
		TenantID:     c.Notifications.Email.TenantID,
		ClientID:     c.Notifications.Email.ClientID,
		ClientSecret: c.Notifications.Email.ClientSecret,
		FromAddress:  c.Notifications.Email.FromAddress,
		Recipients:   c.Notifications.Email.Recipients,
	}
}

// --- Setters for individual settings ---

// SetAudioInput updates the audio input device and saves the configuration.
func (c *Config) SetAudioInput(input string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.Input = input
	return c.saveLocked()
}

// SetImpactThreshold updates the detection threshold and saves the configuration.
func (c *Config) SetImpactThreshold(threshold float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Detection.ImpactThreshold = threshold
	return c.saveLocked()
}

// SetNoiseFactor updates the background rejection multiplier and saves the configuration.
func (c *Config) SetNoiseFactor(factor float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Detection.NoiseFactor = factor
	return c.saveLocked()
}

// SetWebhookURL updates the webhook URL and saves the configuration.
func (c *Config) SetWebhookURL(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Webhook.URL = url
	return c.saveLocked()
}

// SetLogPath updates the log file path and saves the configuration.
func (c *Config) SetLogPath(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Log.Path = path
	return c.saveLocked()
}

// SetGraphConfig updates all Microsoft Graph/Email configuration fields and saves.
func (c *Config) SetGraphConfig(tenantID, clientID, clientSecret, fromAddress, recipients string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Email.TenantID = tenantID
	c.Notifications.Email.ClientID = clientID
	c.Notifications.Email.ClientSecret = clientSecret
	c.Notifications.Email.FromAddress = fromAddress
	c.Notifications.Email.Recipients = recipients
	return c.saveLocked()
}

// SetRecording updates the recording settings and saves the configuration.
func (c *Config) SetRecording(enabled bool, path string, retentionDays int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Recording.Enabled = enabled
	if path != "" {
		c.Recording.Path = path
	}
	if retentionDays > 0 {
		c.Recording.RetentionDays = retentionDays
	}
	return c.saveLocked()
}

// SetAPIKey updates the API key and saves the configuration.
func (c *Config) SetAPIKey(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.System.APIKey = key
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	// System
	WebPort    int
	APIKey     string
	FFmpegPath string

	// Audio
	AudioInput string

	// Detection
	ImpactThreshold float64
	NoiseFactor     float64

	// Recording
	RecordingEnabled       bool
	RecordingPath          string
	RecordingRetentionDays int
	S3                     S3Config

	// Notifications
	WebhookURL        string
	LogPath           string
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
	GraphFromAddress  string
	GraphRecipients   string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		// System
		WebPort:    c.System.Port,
		APIKey:     c.System.APIKey,
		FFmpegPath: c.System.FFmpegPath,

		// Audio
		AudioInput: c.Audio.Input,

		// Detection (with defaults)
		ImpactThreshold: cmp.Or(c.Detection.ImpactThreshold, DefaultImpactThreshold),
		NoiseFactor:     cmp.Or(c.Detection.NoiseFactor, DefaultNoiseFactor),

		// Recording
		RecordingEnabled:       c.Recording.Enabled,
		RecordingPath:          cmp.Or(c.Recording.Path, DefaultRecordingDir),
		RecordingRetentionDays: cmp.Or(c.Recording.RetentionDays, DefaultRetentionDays),
		S3:                     c.Recording.S3,

		// Notifications
		WebhookURL:        c.Notifications.Webhook.URL,
		LogPath:           c.Notifications.Log.Path,
		GraphTenantID:     c.Notifications.Email.TenantID,
		GraphClientID:     c.Notifications.Email.ClientID,
		GraphClientSecret: c.Notifications.Email.ClientSecret,
		GraphFromAddress:  c.Notifications.Email.FromAddress,
		GraphRecipients:   c.Notifications.Email.Recipients,
	}
}

// HasWebhook reports whether a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasGraph reports whether Microsoft Graph email notifications are configured.
func (s *Snapshot) HasGraph() bool {
	return s.GraphTenantID != "" && s.GraphClientID != "" && s.GraphClientSecret != "" &&
		s.GraphFromAddress != "" && s.GraphRecipients != ""
}

// HasLogPath reports whether a log path is configured.
func (s *Snapshot) HasLogPath() bool {
	return s.LogPath != ""
}

// HasS3 reports whether S3 uploads are configured.
func (s *Snapshot) HasS3() bool {
	return s.S3.Bucket != "" && s.S3.AccessKey != "" && s.S3.SecretKey != ""
}

// --- Utility functions ---

// GenerateAPIKey generates a new random 32-character alphanumeric API key.
func GenerateAPIKey() (string, error) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 32
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		result[i] = chars[n.Int64()]
	}
	return string(result), nil
}
