// Package domain contains the wire types shared by the HTTP API, the CLI and
// the admin event stream.
package domain

import (
	"time"
)

// VerifyResponse is the body of every business outcome of a verification.
// Denials are still HTTP 200 with Valid false and a Reason.
type VerifyResponse struct {
	Valid         bool       `json:"valid"`
	Reason        string     `json:"reason,omitempty"`
	Note          string     `json:"note,omitempty"`
	Owner         string     `json:"owner,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	BoundTo       string     `json:"bound_to,omitempty"`
	ExpectedScope string     `json:"expected_scope,omitempty"`
}

// ReleaseResponse confirms a graceful release.
type ReleaseResponse struct {
	Released bool   `json:"released"`
	Key      string `json:"key"`
}

// LicenseDTO is a license as shown to administrators.
type LicenseDTO struct {
	Key             string     `json:"key"`
	Owner           string     `json:"owner"`
	ProductScope    *string    `json:"product_scope,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	DaysLeft        int        `json:"days_left"`
	BoundClientID   *string    `json:"bound_client_id,omitempty"`
	InUse           bool       `json:"in_use"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	HeartbeatAgeSec *float64   `json:"heartbeat_age_seconds,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
}

// LicenseListResponse wraps the admin listing.
type LicenseListResponse struct {
	Licenses []LicenseDTO `json:"licenses"`
	Total    int          `json:"total"`
}

// RenameResponse reports the key a license was moved to.
type RenameResponse struct {
	OldKey string `json:"old_key"`
	NewKey string `json:"new_key"`
}

// TokenResponse is returned by admin login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int64     `json:"expires_in"`
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}
