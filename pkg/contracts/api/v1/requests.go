// Package api contains request contracts for version 1 of the license API.
package api

import (
	"bytes"
	"encoding/json"
)

// VerifyRequest is a client's verification and heartbeat call. It is accepted
// as a JSON body or as query parameters.
type VerifyRequest struct {
	Key      string `json:"key" query:"key" validate:"required,max=128"`
	ClientID string `json:"client_id" query:"client_id" validate:"required,max=256"`
	Scope    string `json:"scope,omitempty" query:"scope" validate:"omitempty,max=128"`
}

// ReleaseRequest gives up a binding on graceful shutdown.
type ReleaseRequest struct {
	Key      string `json:"key" validate:"required,max=128"`
	ClientID string `json:"client_id" validate:"required,max=256"`
}

// CreateLicenseRequest issues a new license.
type CreateLicenseRequest struct {
	Owner        string `json:"owner" validate:"omitempty,max=256"`
	Days         int    `json:"days" validate:"required,min=1,max=36500"`
	ProductScope string `json:"product_scope,omitempty" validate:"omitempty,max=128"`
	CustomKey    string `json:"custom_key,omitempty" validate:"omitempty,max=128"`
}

// ExtendRequest shifts expiry by Days; negative values shorten it.
type ExtendRequest struct {
	Days DaysValue `json:"days" query:"days" validate:"required"`
}

// DaysValue accepts a day count as either a JSON number or a JSON string so
// that parsing and its error reporting stay in one place.
type DaysValue string

// UnmarshalJSON implements json.Unmarshaler.
func (d *DaysValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = DaysValue(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	*d = DaysValue(b)
	return nil
}

// RenameRequest moves a license to a new key.
type RenameRequest struct {
	NewKey string `json:"new_key" query:"new_key" validate:"required,max=128"`
}

// LoginRequest exchanges admin credentials for a session token.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=1024"`
}
