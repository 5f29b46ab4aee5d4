// Package notify delivers impact and session notifications over webhooks,
// Microsoft Graph email and a JSON-lines log file.
package notify

import "time"

// AppName is the application name used in notifications.
const AppName = "SwingSense Impact Detector"

// timestampUTC returns the current UTC time in RFC3339 format.
func timestampUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
