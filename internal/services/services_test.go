package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antikraj/plugin-license-server1/internal/license"
	"github.com/antikraj/plugin-license-server1/internal/security"
	"github.com/antikraj/plugin-license-server1/internal/shared/testutil"
	"github.com/antikraj/plugin-license-server1/internal/storage"
	api "github.com/antikraj/plugin-license-server1/pkg/contracts/api/v1"
	"github.com/antikraj/plugin-license-server1/pkg/contracts/domain"
)

type serviceFixture struct {
	store   *storage.MemoryStore
	clock   *license.ManualClock
	license LicenseService
	admin   AdminService
	ctx     context.Context
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	f := &serviceFixture{
		store: storage.NewMemoryStoreFrom(testutil.LicenseFixtures()),
		clock: license.NewManualClock(testutil.FixtureNow),
		ctx:   license.WithAdmin(context.Background(), "root"),
	}
	opts := []license.Option{
		license.WithClock(f.clock.Now),
		license.WithHeartbeatTimeout(10 * time.Second),
		license.WithLogger(logger),
	}
	f.license = NewLicenseService(license.NewLifecycle(f.store, opts...), logger)
	f.admin = NewAdminService(license.NewAdmin(f.store, opts...), logger)
	return f
}

func TestLicenseServiceVerify(t *testing.T) {
	f := newServiceFixture(t)

	tests := []struct {
		name string
		req  api.VerifyRequest
		want domain.VerifyResponse
	}{
		{
			name: "unknown key",
			req:  api.VerifyRequest{Key: "NOPE000000", ClientID: "srv1"},
			want: domain.VerifyResponse{Valid: false, Reason: "license_not_found"},
		},
		{
			name: "claim free key",
			req:  api.VerifyRequest{Key: testutil.FixtureFreeKey, ClientID: "srv2"},
			want: domain.VerifyResponse{Valid: true, Note: "activated", Owner: "alice", BoundTo: "srv2"},
		},
		{
			name: "refresh own binding",
			req:  api.VerifyRequest{Key: testutil.FixtureBoundKey, ClientID: "srv1"},
			want: domain.VerifyResponse{Valid: true, Note: "heartbeat refreshed", Owner: "bob", BoundTo: "srv1"},
		},
		{
			name: "other client denied",
			req:  api.VerifyRequest{Key: testutil.FixtureBoundKey, ClientID: "srv3"},
			want: domain.VerifyResponse{Valid: false, Reason: "license_in_use", BoundTo: "srv1"},
		},
		{
			name: "stale binding reclaimed",
			req:  api.VerifyRequest{Key: testutil.FixtureStaleKey, ClientID: "srv4"},
			want: domain.VerifyResponse{Valid: true, Note: "activated", Owner: "carol", BoundTo: "srv4"},
		},
		{
			name: "scope mismatch",
			req:  api.VerifyRequest{Key: testutil.FixtureScopedKey, ClientID: "srv5", Scope: "other"},
			want: domain.VerifyResponse{Valid: false, Reason: "scope_mismatch", ExpectedScope: "photoplug"},
		},
		{
			name: "lowercase key is normalized",
			req:  api.VerifyRequest{Key: "  scopedkey0000001 ", ClientID: "srv5", Scope: "PhotoPlug"},
			want: domain.VerifyResponse{Valid: true, Note: "activated", Owner: "erin", BoundTo: "srv5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.license.Verify(context.Background(), tt.req)
			require.NoError(t, err)

			if tt.want.Valid {
				require.NotNil(t, got.ExpiresAt)
				assert.Equal(t, time.UTC, got.ExpiresAt.Location())
			}
			got.ExpiresAt = nil
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLicenseServiceVerifyExpired(t *testing.T) {
	f := newServiceFixture(t)

	got, err := f.license.Verify(context.Background(), api.VerifyRequest{Key: testutil.FixtureExpiredKey, ClientID: "srv1"})
	require.NoError(t, err)
	assert.False(t, got.Valid)
	assert.Equal(t, "license_expired", got.Reason)
	assert.Equal(t, "dave", got.Owner)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, testutil.FixtureNow.Add(-time.Hour), *got.ExpiresAt)
}

func TestLicenseServiceVerifyInvalidInput(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.license.Verify(context.Background(), api.VerifyRequest{Key: "  ", ClientID: "srv1"})
	assert.ErrorIs(t, err, license.ErrInvalidInput)
}

func TestLicenseServiceRelease(t *testing.T) {
	f := newServiceFixture(t)

	got, err := f.license.Release(context.Background(), api.ReleaseRequest{Key: "boundkey00000001", ClientID: "srv1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReleaseResponse{Released: true, Key: testutil.FixtureBoundKey}, got)

	rec, err := f.store.Get(context.Background(), testutil.FixtureBoundKey)
	require.NoError(t, err)
	assert.False(t, rec.InUse)
	assert.Equal(t, "srv1", rec.BoundTo())

	_, err = f.license.Release(context.Background(), api.ReleaseRequest{Key: testutil.FixtureBoundKey, ClientID: "srv2"})
	assert.ErrorIs(t, err, license.ErrUnauthorized)

	_, err = f.license.Release(context.Background(), api.ReleaseRequest{Key: "MISSING000", ClientID: "srv1"})
	assert.ErrorIs(t, err, license.ErrKeyNotFound)
}

func TestAdminServiceCreate(t *testing.T) {
	f := newServiceFixture(t)

	dto, err := f.admin.Create(f.ctx, api.CreateLicenseRequest{Owner: "zoe", Days: 30, CustomKey: "longkey"})
	require.NoError(t, err)
	assert.Equal(t, "LONGKEY", dto.Key)
	assert.Equal(t, "zoe", dto.Owner)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), dto.ExpiresAt)
	assert.Equal(t, 30, dto.DaysLeft)
	assert.Equal(t, "unbound", dto.Status)
	assert.Nil(t, dto.ProductScope)

	_, err = f.admin.Create(f.ctx, api.CreateLicenseRequest{Owner: "zoe", Days: 30, CustomKey: "short"})
	assert.ErrorIs(t, err, license.ErrKeyTooShort)

	_, err = f.admin.Create(f.ctx, api.CreateLicenseRequest{Owner: "zoe", Days: 30, CustomKey: "LONGKEY"})
	assert.ErrorIs(t, err, license.ErrKeyConflict)

	generated, err := f.admin.Create(f.ctx, api.CreateLicenseRequest{Days: 1, ProductScope: "photoplug"})
	require.NoError(t, err)
	assert.Len(t, generated.Key, license.DefaultKeyLength)
	assert.Equal(t, license.DefaultOwner, generated.Owner)
	require.NotNil(t, generated.ProductScope)
	assert.Equal(t, "photoplug", *generated.ProductScope)
}

func TestAdminServiceRequiresAdmin(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.admin.List(context.Background())
	assert.ErrorIs(t, err, license.ErrUnauthorized)

	_, err = f.admin.Create(context.Background(), api.CreateLicenseRequest{Days: 1})
	assert.ErrorIs(t, err, license.ErrUnauthorized)
}

func TestAdminServiceExtend(t *testing.T) {
	f := newServiceFixture(t)

	dto, err := f.admin.Extend(f.ctx, testutil.FixtureFreeKey, "5")
	require.NoError(t, err)
	assert.Equal(t, testutil.FixtureNow.AddDate(0, 0, 35), dto.ExpiresAt)
	assert.Equal(t, 35, dto.DaysLeft)

	dto, err = f.admin.Extend(f.ctx, testutil.FixtureFreeKey, "-10")
	require.NoError(t, err)
	assert.Equal(t, 25, dto.DaysLeft)

	_, err = f.admin.Extend(f.ctx, testutil.FixtureFreeKey, "ten")
	assert.ErrorIs(t, err, license.ErrInvalidInput)

	_, err = f.admin.Extend(f.ctx, "MISSING000", "1")
	assert.ErrorIs(t, err, license.ErrKeyNotFound)
}

func TestAdminServiceExpireAndUnbind(t *testing.T) {
	f := newServiceFixture(t)

	dto, err := f.admin.Expire(f.ctx, testutil.FixtureBoundKey)
	require.NoError(t, err)
	assert.Equal(t, "expired", dto.Status)
	assert.Equal(t, 0, dto.DaysLeft)

	got, err := f.license.Verify(context.Background(), api.VerifyRequest{Key: testutil.FixtureBoundKey, ClientID: "srv1"})
	require.NoError(t, err)
	assert.Equal(t, "license_expired", got.Reason)

	dto, err = f.admin.Unbind(f.ctx, testutil.FixtureStaleKey)
	require.NoError(t, err)
	assert.Equal(t, "unbound", dto.Status)
	assert.Nil(t, dto.BoundClientID)
	assert.Nil(t, dto.LastHeartbeatAt)
	assert.False(t, dto.InUse)
}

func TestAdminServiceRenameDelete(t *testing.T) {
	f := newServiceFixture(t)

	res, err := f.admin.Rename(f.ctx, testutil.FixtureFreeKey, "renamed01")
	require.NoError(t, err)
	assert.Equal(t, domain.RenameResponse{OldKey: testutil.FixtureFreeKey, NewKey: "RENAMED01"}, res)

	_, err = f.admin.Get(f.ctx, testutil.FixtureFreeKey)
	assert.ErrorIs(t, err, license.ErrKeyNotFound)

	dto, err := f.admin.Get(f.ctx, "RENAMED01")
	require.NoError(t, err)
	assert.Equal(t, "alice", dto.Owner)

	_, err = f.admin.Rename(f.ctx, "RENAMED01", testutil.FixtureBoundKey)
	assert.ErrorIs(t, err, license.ErrKeyConflict)

	require.NoError(t, f.admin.Delete(f.ctx, "RENAMED01"))
	assert.ErrorIs(t, f.admin.Delete(f.ctx, "RENAMED01"), license.ErrKeyNotFound)
}

func TestAdminServiceList(t *testing.T) {
	f := newServiceFixture(t)

	list, err := f.admin.List(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 5, list.Total)
	require.Len(t, list.Licenses, 5)

	byKey := make(map[string]domain.LicenseDTO)
	for _, l := range list.Licenses {
		byKey[l.Key] = l
	}
	assert.Equal(t, "active", byKey[testutil.FixtureBoundKey].Status)
	require.NotNil(t, byKey[testutil.FixtureBoundKey].HeartbeatAgeSec)
	assert.InDelta(t, 2.0, *byKey[testutil.FixtureBoundKey].HeartbeatAgeSec, 0.001)
	assert.Equal(t, "offline", byKey[testutil.FixtureStaleKey].Status)
	assert.Equal(t, "expired", byKey[testutil.FixtureExpiredKey].Status)
	assert.Equal(t, "unbound", byKey[testutil.FixtureFreeKey].Status)

	// Sorted by key.
	assert.Equal(t, testutil.FixtureBoundKey, list.Licenses[0].Key)
}

func TestAdminServiceExport(t *testing.T) {
	f := newServiceFixture(t)

	data, err := f.admin.Export(f.ctx)
	require.NoError(t, err)

	want, err := license.EncodeSnapshot(testutil.LicenseFixtures())
	require.NoError(t, err)
	assert.Equal(t, want, data)
}

func TestAdminServiceReport(t *testing.T) {
	f := newServiceFixture(t)

	var csvBuf bytes.Buffer
	require.NoError(t, f.admin.Report(f.ctx, &csvBuf, ReportCSV))
	assert.Contains(t, csvBuf.String(), testutil.FixtureBoundKey)

	var xlsxBuf bytes.Buffer
	require.NoError(t, f.admin.Report(f.ctx, &xlsxBuf, ReportXLSX))
	// XLSX files are zip archives.
	assert.True(t, bytes.HasPrefix(xlsxBuf.Bytes(), []byte("PK")))

	err := f.admin.Report(f.ctx, &bytes.Buffer{}, "pdf")
	assert.ErrorIs(t, err, license.ErrInvalidInput)
}

func TestAuthServiceLogin(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)

	hash, err := security.HashPassword("s3cret", 4)
	require.NoError(t, err)
	creds, err := security.NewAuthenticator("admin", hash, logger)
	require.NoError(t, err)
	tokens, err := security.NewTokenIssuer("k", 15*time.Minute)
	require.NoError(t, err)

	svc := NewAuthService(creds, tokens, logger)

	resp, err := svc.Login(context.Background(), api.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.InDelta(t, 900, resp.ExpiresIn, 5)

	subject, err := tokens.Validate(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
	assert.True(t, logs.ContainsMessage("admin logged in"))

	_, err = svc.Login(context.Background(), api.LoginRequest{Username: "admin", Password: "wrong"})
	assert.ErrorIs(t, err, security.ErrInvalidCredentials)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeCounter int

func (c fakeCounter) ClientCount() int { return int(c) }

func TestHealthService(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	t.Run("ready", func(t *testing.T) {
		hs := NewHealthService(fakePinger{}, "memory", fakeCounter(2), logger)
		status := hs.ReadinessCheck(context.Background())
		assert.Equal(t, "ready", status.Status)
		assert.Equal(t, "ready", status.Services["store"].Status)
		assert.Equal(t, "2 observers connected", status.Services["events"].Message)
	})

	t.Run("store down", func(t *testing.T) {
		hs := NewHealthService(fakePinger{err: errors.New("connection refused")}, "postgres", nil, logger)
		status := hs.ReadinessCheck(context.Background())
		assert.Equal(t, "not_ready", status.Status)
		assert.Equal(t, "postgres store unreachable", status.Services["store"].Message)
		assert.NotContains(t, status.Services, "events")
	})

	t.Run("liveness and version", func(t *testing.T) {
		hs := NewHealthService(fakePinger{}, "memory", nil, logger)
		assert.Equal(t, "alive", hs.LivenessCheck(context.Background()).Status)
		assert.Equal(t, "ok", hs.HealthCheck(context.Background()).Status)
		assert.NotEmpty(t, hs.Version().Version)
	})
}
