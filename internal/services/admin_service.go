package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/antikraj/plugin-license-server1/internal/exporter"
	"github.com/antikraj/plugin-license-server1/internal/license"
	api "github.com/antikraj/plugin-license-server1/pkg/contracts/api/v1"
	"github.com/antikraj/plugin-license-server1/pkg/contracts/domain"
)

// Report formats.
const (
	ReportXLSX = "xlsx"
	ReportCSV  = "csv"
)

// AdminService exposes the privileged license operations. Every method
// expects a context marked with license.WithAdmin.
type AdminService interface {
	Create(ctx context.Context, req api.CreateLicenseRequest) (domain.LicenseDTO, error)
	Extend(ctx context.Context, key string, days string) (domain.LicenseDTO, error)
	Expire(ctx context.Context, key string) (domain.LicenseDTO, error)
	Unbind(ctx context.Context, key string) (domain.LicenseDTO, error)
	Rename(ctx context.Context, key, newKey string) (domain.RenameResponse, error)
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (domain.LicenseDTO, error)
	List(ctx context.Context) (domain.LicenseListResponse, error)

	// Export returns the persisted snapshot byte for byte.
	Export(ctx context.Context) ([]byte, error)

	// Report writes every license to w in the given format.
	Report(ctx context.Context, w io.Writer, format string) error
}

// LicenseAdmin is the part of license.Admin the service needs.
type LicenseAdmin interface {
	Create(ctx context.Context, p license.CreateParams) (string, license.Record, error)
	Extend(ctx context.Context, key string, days int) (license.Record, error)
	Expire(ctx context.Context, key string) (license.Record, error)
	Unbind(ctx context.Context, key string) (license.Record, error)
	Rename(ctx context.Context, key, newKey string) (string, error)
	Delete(ctx context.Context, key string) error
	Export(ctx context.Context) ([]byte, error)
	Get(ctx context.Context, key string) (license.Entry, error)
	List(ctx context.Context) ([]license.Entry, error)
	Now() time.Time
	HeartbeatTimeout() time.Duration
}

type adminService struct {
	admin  LicenseAdmin
	logger *slog.Logger
}

// NewAdminService creates the admin service.
func NewAdminService(admin LicenseAdmin, logger *slog.Logger) AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &adminService{
		admin:  admin,
		logger: logger.With(slog.String("service", "admin")),
	}
}

func (s *adminService) Create(ctx context.Context, req api.CreateLicenseRequest) (domain.LicenseDTO, error) {
	key, rec, err := s.admin.Create(ctx, license.CreateParams{
		Owner:        req.Owner,
		Days:         req.Days,
		ProductScope: req.ProductScope,
		CustomKey:    req.CustomKey,
	})
	if err != nil {
		return domain.LicenseDTO{}, err
	}
	return s.recordDTO(key, rec), nil
}

func (s *adminService) Extend(ctx context.Context, key string, days string) (domain.LicenseDTO, error) {
	n, err := license.ParseDays(days)
	if err != nil {
		return domain.LicenseDTO{}, err
	}
	rec, err := s.admin.Extend(ctx, key, n)
	if err != nil {
		return domain.LicenseDTO{}, err
	}
	return s.recordDTO(license.NormalizeKey(key), rec), nil
}

func (s *adminService) Expire(ctx context.Context, key string) (domain.LicenseDTO, error) {
	rec, err := s.admin.Expire(ctx, key)
	if err != nil {
		return domain.LicenseDTO{}, err
	}
	return s.recordDTO(license.NormalizeKey(key), rec), nil
}

func (s *adminService) Unbind(ctx context.Context, key string) (domain.LicenseDTO, error) {
	rec, err := s.admin.Unbind(ctx, key)
	if err != nil {
		return domain.LicenseDTO{}, err
	}
	return s.recordDTO(license.NormalizeKey(key), rec), nil
}

func (s *adminService) Rename(ctx context.Context, key, newKey string) (domain.RenameResponse, error) {
	renamed, err := s.admin.Rename(ctx, key, newKey)
	if err != nil {
		return domain.RenameResponse{}, err
	}
	return domain.RenameResponse{OldKey: license.NormalizeKey(key), NewKey: renamed}, nil
}

func (s *adminService) Delete(ctx context.Context, key string) error {
	return s.admin.Delete(ctx, key)
}

func (s *adminService) Get(ctx context.Context, key string) (domain.LicenseDTO, error) {
	e, err := s.admin.Get(ctx, key)
	if err != nil {
		return domain.LicenseDTO{}, err
	}
	return ToLicenseDTO(e, s.admin.Now()), nil
}

func (s *adminService) List(ctx context.Context) (domain.LicenseListResponse, error) {
	entries, err := s.admin.List(ctx)
	if err != nil {
		return domain.LicenseListResponse{}, err
	}
	now := s.admin.Now()
	out := domain.LicenseListResponse{
		Licenses: make([]domain.LicenseDTO, 0, len(entries)),
		Total:    len(entries),
	}
	for _, e := range entries {
		out.Licenses = append(out.Licenses, ToLicenseDTO(e, now))
	}
	return out, nil
}

func (s *adminService) Export(ctx context.Context) ([]byte, error) {
	return s.admin.Export(ctx)
}

func (s *adminService) Report(ctx context.Context, w io.Writer, format string) error {
	entries, err := s.admin.List(ctx)
	if err != nil {
		return err
	}
	now := s.admin.Now()

	switch format {
	case ReportXLSX:
		err = exporter.WriteXLSX(w, entries, now)
	case ReportCSV:
		err = exporter.WriteCSV(w, entries, now, exporter.WriteOptions{BOMPrefix: true})
	default:
		return fmt.Errorf("%w: unknown report format %q", license.ErrInvalidInput, format)
	}
	if err != nil {
		return fmt.Errorf("failed to render %s report: %w", format, err)
	}

	s.logger.InfoContext(ctx, "license report generated",
		slog.String("format", format),
		slog.Int("licenses", len(entries)),
	)
	return nil
}

// recordDTO annotates a freshly mutated record the way List would.
func (s *adminService) recordDTO(key string, rec license.Record) domain.LicenseDTO {
	now := s.admin.Now()
	e := license.Entry{
		Key:    key,
		Record: rec,
		Status: license.ConnectionStatus(rec, now, s.admin.HeartbeatTimeout()),
	}
	if age, ok := rec.HeartbeatAge(now); ok {
		e.HeartbeatAge = &age
	}
	return ToLicenseDTO(e, now)
}

// ToLicenseDTO converts a listing entry into its wire form.
func ToLicenseDTO(e license.Entry, now time.Time) domain.LicenseDTO {
	rec := e.Record
	dto := domain.LicenseDTO{
		Key:           e.Key,
		Owner:         rec.Owner,
		ProductScope:  rec.ProductScope,
		ExpiresAt:     rec.ExpiresAt.UTC(),
		DaysLeft:      daysLeft(rec.ExpiresAt, now),
		BoundClientID: rec.BoundClientID,
		InUse:         rec.InUse,
		Status:        string(e.Status),
		CreatedAt:     rec.CreatedAt.UTC(),
	}
	if rec.LastHeartbeatAt != nil {
		t := rec.LastHeartbeatAt.UTC()
		dto.LastHeartbeatAt = &t
	}
	if e.HeartbeatAge != nil {
		secs := e.HeartbeatAge.Seconds()
		dto.HeartbeatAgeSec = &secs
	}
	return dto
}

func daysLeft(expires, now time.Time) int {
	if !expires.After(now) {
		return 0
	}
	return int(expires.Sub(now) / (24 * time.Hour))
}
