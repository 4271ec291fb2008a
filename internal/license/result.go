package license

import "time"

// Reason explains why a verification was declined.
type Reason string

const (
	ReasonNotFound      Reason = "license_not_found"
	ReasonScopeMismatch Reason = "scope_mismatch"
	ReasonExpired       Reason = "license_expired"
	ReasonInUse         Reason = "license_in_use"
)

// Err returns the sentinel error matching the reason.
func (r Reason) Err() error {
	switch r {
	case ReasonNotFound:
		return ErrKeyNotFound
	case ReasonScopeMismatch:
		return ErrScopeMismatch
	case ReasonExpired:
		return ErrExpired
	case ReasonInUse:
		return ErrInUse
	default:
		return nil
	}
}

// Note describes what a successful verification changed.
type Note string

const (
	NoteActivated          Note = "activated"
	NoteHeartbeatRefreshed Note = "heartbeat refreshed"
)

// VerifyRequest is a client's verification (and heartbeat) call.
type VerifyRequest struct {
	Key      string
	ClientID string
	Scope    string
}

// VerifyResult is the outcome of Verify. Exactly one of Note (valid) or
// Reason (invalid) is set.
type VerifyResult struct {
	Valid         bool
	Reason        Reason
	Note          Note
	Owner         string
	ExpiresAt     *time.Time
	BoundTo       string
	ExpectedScope string
	// Reclaimed is set when a stale binding was cleared during this call.
	Reclaimed bool
}

func valid(note Note, rec Record) VerifyResult {
	exp := rec.ExpiresAt
	return VerifyResult{
		Valid:     true,
		Note:      note,
		Owner:     rec.Owner,
		ExpiresAt: &exp,
		BoundTo:   rec.BoundTo(),
	}
}

func invalid(reason Reason) VerifyResult {
	return VerifyResult{Valid: false, Reason: reason}
}
