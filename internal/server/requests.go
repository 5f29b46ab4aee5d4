package server

// Request types for WebSocket commands with validation tags.
// These types define the expected input for each command and use
// go-playground/validator struct tags for automatic validation.

// --- Audio settings ---

// AudioUpdateRequest is the request body for audio/update.
type AudioUpdateRequest struct {
	Input string `json:"input" validate:"omitempty,max=256"`
}

// --- Detection settings ---

// DetectionUpdateRequest is the request body for detection/update.
type DetectionUpdateRequest struct {
	ImpactThreshold *float64 `json:"impact_threshold" validate:"omitempty,gt=0,lte=1"`
	NoiseFactor     *float64 `json:"noise_factor" validate:"omitempty,gte=1,lte=20"`
}

// --- Notification settings ---

// WebhookUpdateRequest is the request body for notifications/webhook/update.
type WebhookUpdateRequest struct {
	URL string `json:"url" validate:"omitempty,max=2048"`
}

// LogUpdateRequest is the request body for notifications/log/update.
type LogUpdateRequest struct {
	Path string `json:"path" validate:"omitempty,max=4096"`
}

// EmailUpdateRequest is the request body for notifications/email/update.
type EmailUpdateRequest struct {
	TenantID     string `json:"tenant_id" validate:"omitempty,max=100"`
	ClientID     string `json:"client_id" validate:"omitempty,max=100"`
	ClientSecret string `json:"client_secret" validate:"omitempty,max=500"`
	FromAddress  string `json:"from_address" validate:"omitempty,max=254"`
	Recipients   string `json:"recipients" validate:"omitempty,max=1000"`
}

// --- Recording settings ---

// RecordingUpdateRequest is the request body for recording/update.
type RecordingUpdateRequest struct {
	Enabled       *bool  `json:"enabled"`
	Path          string `json:"path" validate:"omitempty,max=4096"`
	RetentionDays *int   `json:"retention_days" validate:"omitempty,gte=0,lte=365"`
}

// --- S3 test ---

// S3TestRequest is the request body for recording/test-s3.
type S3TestRequest struct {
	Endpoint  string `json:"s3_endpoint" validate:"omitempty,max=2048"`
	Region    string `json:"s3_region" validate:"omitempty,max=64"`
	Bucket    string `json:"s3_bucket" validate:"required,max=63"`
	AccessKey string `json:"s3_access_key" validate:"required,max=128"`
	SecretKey string `json:"s3_secret_key" validate:"required,max=256"`
}
