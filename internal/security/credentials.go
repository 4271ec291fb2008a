// Package security provides admin credential checks and signed session tokens.
package security

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for any username or password mismatch.
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	// ErrAdminDisabled is returned when no admin password hash is configured.
	ErrAdminDisabled = errors.New("admin access is not configured")
)

// HashPassword returns a bcrypt hash suitable for the admin_password_hash
// setting. A non-positive cost selects bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Authenticator checks admin username/password pairs against a single
// configured account.
type Authenticator struct {
	user   string
	hash   []byte
	logger *slog.Logger
}

// NewAuthenticator creates an Authenticator. An empty hash disables admin
// login entirely.
func NewAuthenticator(user, passwordHash string, logger *slog.Logger) (*Authenticator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Authenticator{
		user:   user,
		logger: logger.With(slog.String("component", "admin_auth")),
	}
	if passwordHash == "" {
		return a, nil
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash is not a bcrypt hash: %w", err)
	}
	a.hash = []byte(passwordHash)
	return a, nil
}

// Enabled reports whether an admin account is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.hash) > 0
}

// Authenticate verifies the credentials and returns the admin name.
func (a *Authenticator) Authenticate(user, password string) (string, error) {
	if !a.Enabled() {
		return "", ErrAdminDisabled
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	pwErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || pwErr != nil {
		a.logger.Warn("admin authentication failed", slog.String("user", user))
		return "", ErrInvalidCredentials
	}
	return a.user, nil
}
