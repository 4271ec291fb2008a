package services

import (
	"context"
	"log/slog"

	"github.com/antikraj/plugin-license-server1/internal/license"
	api "github.com/antikraj/plugin-license-server1/pkg/contracts/api/v1"
	"github.com/antikraj/plugin-license-server1/pkg/contracts/domain"
)

// LicenseService exposes the client-facing license operations.
type LicenseService interface {
	// Verify checks a key for a client and refreshes or claims the binding.
	// Denials are a response with Valid false, not an error.
	Verify(ctx context.Context, req api.VerifyRequest) (domain.VerifyResponse, error)

	// Release gives up the caller's binding.
	Release(ctx context.Context, req api.ReleaseRequest) (domain.ReleaseResponse, error)
}

// Verifier is the part of license.Lifecycle the service needs.
type Verifier interface {
	Verify(ctx context.Context, req license.VerifyRequest) (license.VerifyResult, error)
	Release(ctx context.Context, key, clientID string) error
}

type licenseService struct {
	lifecycle Verifier
	logger    *slog.Logger
}

// NewLicenseService creates the client-facing license service.
func NewLicenseService(lifecycle Verifier, logger *slog.Logger) LicenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &licenseService{
		lifecycle: lifecycle,
		logger:    logger.With(slog.String("service", "license")),
	}
}

func (s *licenseService) Verify(ctx context.Context, req api.VerifyRequest) (domain.VerifyResponse, error) {
	res, err := s.lifecycle.Verify(ctx, license.VerifyRequest{
		Key:      req.Key,
		ClientID: req.ClientID,
		Scope:    req.Scope,
	})
	if err != nil {
		return domain.VerifyResponse{}, err
	}
	return ToVerifyResponse(res), nil
}

func (s *licenseService) Release(ctx context.Context, req api.ReleaseRequest) (domain.ReleaseResponse, error) {
	if err := s.lifecycle.Release(ctx, req.Key, req.ClientID); err != nil {
		return domain.ReleaseResponse{}, err
	}
	return domain.ReleaseResponse{Released: true, Key: license.NormalizeKey(req.Key)}, nil
}

// ToVerifyResponse converts a lifecycle result into its wire form.
func ToVerifyResponse(res license.VerifyResult) domain.VerifyResponse {
	out := domain.VerifyResponse{
		Valid:         res.Valid,
		Reason:        string(res.Reason),
		Note:          string(res.Note),
		Owner:         res.Owner,
		BoundTo:       res.BoundTo,
		ExpectedScope: res.ExpectedScope,
	}
	if res.ExpiresAt != nil {
		t := res.ExpiresAt.UTC()
		out.ExpiresAt = &t
	}
	return out
}
