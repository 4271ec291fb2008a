package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	api "github.com/antikraj/plugin-license-server1/pkg/contracts/api/v1"
	"github.com/antikraj/plugin-license-server1/pkg/contracts/domain"
)

// AuthService exchanges admin credentials for session tokens.
type AuthService interface {
	Login(ctx context.Context, req api.LoginRequest) (domain.TokenResponse, error)
}

// CredentialChecker verifies admin username/password pairs.
type CredentialChecker interface {
	Authenticate(user, password string) (string, error)
}

// TokenSigner issues admin session tokens.
type TokenSigner interface {
	Issue(subject string) (string, time.Time, error)
}

type authService struct {
	creds  CredentialChecker
	tokens TokenSigner
	now    func() time.Time
	logger *slog.Logger
}

// NewAuthService creates the login service.
func NewAuthService(creds CredentialChecker, tokens TokenSigner, logger *slog.Logger) AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		creds:  creds,
		tokens: tokens,
		now:    time.Now,
		logger: logger.With(slog.String("service", "auth")),
	}
}

func (s *authService) Login(ctx context.Context, req api.LoginRequest) (domain.TokenResponse, error) {
	name, err := s.creds.Authenticate(req.Username, req.Password)
	if err != nil {
		return domain.TokenResponse{}, err
	}

	token, expires, err := s.tokens.Issue(name)
	if err != nil {
		return domain.TokenResponse{}, fmt.Errorf("failed to issue admin token: %w", err)
	}

	s.logger.InfoContext(ctx, "admin logged in", slog.String("actor", name))

	expiresIn := int64(expires.Sub(s.now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return domain.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
		ExpiresIn:   expiresIn,
	}, nil
}
