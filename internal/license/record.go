package license

import (
	"strings"
	"time"
)

// Record is the persisted state of one license key.
//
// Optional fields are pointers so that an absent value is distinguishable
// from an empty one both in memory and in the persisted JSON.
type Record struct {
	Owner           string     `json:"owner"`
	ProductScope    *string    `json:"product_scope,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	BoundClientID   *string    `json:"bound_client_id,omitempty"`
	InUse           bool       `json:"in_use"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.ProductScope != nil {
		out.ProductScope = StringPtr(*r.ProductScope)
	}
	if r.BoundClientID != nil {
		out.BoundClientID = StringPtr(*r.BoundClientID)
	}
	if r.LastHeartbeatAt != nil {
		t := *r.LastHeartbeatAt
		out.LastHeartbeatAt = &t
	}
	return out
}

// Scope returns the product scope or "" when the record is unscoped.
func (r Record) Scope() string {
	if r.ProductScope == nil {
		return ""
	}
	return *r.ProductScope
}

// BoundTo returns the bound client id or "" when no client is bound.
func (r Record) BoundTo() string {
	if r.BoundClientID == nil {
		return ""
	}
	return *r.BoundClientID
}

// IsBound reports whether a client identity is recorded on the key.
func (r Record) IsBound() bool {
	return r.BoundClientID != nil
}

// IsBoundTo reports whether clientID holds the binding.
func (r Record) IsBoundTo(clientID string) bool {
	return r.BoundClientID != nil && *r.BoundClientID == clientID
}

// IsExpired reports whether the license is invalid at now. A license is
// valid up to and including ExpiresAt.
func (r Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// MatchesScope reports whether the caller scope satisfies the record scope.
// Unscoped records accept any caller scope.
func (r Record) MatchesScope(scope string) bool {
	if r.ProductScope == nil {
		return true
	}
	return scope != "" && strings.EqualFold(*r.ProductScope, scope)
}

// HeartbeatAge returns the time since the last heartbeat, or false when no
// heartbeat has been recorded.
func (r Record) HeartbeatAge(now time.Time) (time.Duration, bool) {
	if r.LastHeartbeatAt == nil {
		return 0, false
	}
	return now.Sub(*r.LastHeartbeatAt), true
}

// bind assigns the key to clientID and stamps the heartbeat.
func (r *Record) bind(clientID string, now time.Time) {
	r.BoundClientID = StringPtr(clientID)
	r.InUse = true
	t := now
	r.LastHeartbeatAt = &t
}

// clearBinding removes the client binding and heartbeat.
func (r *Record) clearBinding() {
	r.BoundClientID = nil
	r.InUse = false
	r.LastHeartbeatAt = nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// OptionalString returns nil for an empty (after trim) string and a pointer to
// the trimmed value otherwise.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
