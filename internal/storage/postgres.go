package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

const pqUniqueViolation = "23505"

const licensesSchema = `
CREATE TABLE IF NOT EXISTS licenses (
	key               TEXT PRIMARY KEY,
	owner             TEXT NOT NULL,
	product_scope     TEXT,
	expires_at        TIMESTAMPTZ NOT NULL,
	bound_client_id   TEXT,
	in_use            BOOLEAN NOT NULL DEFAULT FALSE,
	last_heartbeat_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL
)`

const licenseColumns = `key, owner, product_scope, expires_at, bound_client_id, in_use, last_heartbeat_at, created_at`

// PostgresConfig holds connection pool settings.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStore keeps one row per license. Update locks the row with
// SELECT ... FOR UPDATE for the duration of the read-modify-write.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, verifies the connection and ensures the schema.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, license.NewStoreError("open", fmt.Errorf("failed to open connection: %w", err))
	}

	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, license.NewStoreError("open", fmt.Errorf("failed to ping database: %w", err))
	}

	s := &PostgresStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromDB wraps an existing handle. The schema is not created.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the licenses table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, licensesSchema); err != nil {
		return license.NewStoreError("migrate", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (string, license.Record, error) {
	var (
		key       string
		rec       license.Record
		scope     sql.NullString
		boundTo   sql.NullString
		heartbeat sql.NullTime
	)
	if err := row.Scan(&key, &rec.Owner, &scope, &rec.ExpiresAt, &boundTo, &rec.InUse, &heartbeat, &rec.CreatedAt); err != nil {
		return "", license.Record{}, err
	}
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	if scope.Valid {
		rec.ProductScope = license.StringPtr(scope.String)
	}
	if boundTo.Valid {
		rec.BoundClientID = license.StringPtr(boundTo.String)
	}
	if heartbeat.Valid {
		t := heartbeat.Time.UTC()
		rec.LastHeartbeatAt = &t
	}
	return key, rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (license.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE key = $1`, key)
	_, rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return license.Record{}, license.ErrKeyNotFound
	}
	if err != nil {
		return license.Record{}, license.NewStoreError("get", err)
	}
	return rec, nil
}

func (s *PostgresStore) Create(ctx context.Context, key string, rec license.Record) error {
	query := `INSERT INTO licenses (` + licenseColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query,
		key, rec.Owner, nullString(rec.ProductScope), rec.ExpiresAt,
		nullString(rec.BoundClientID), rec.InUse, nullTime(rec.LastHeartbeatAt), rec.CreatedAt,
	)
	if isUniqueViolation(err) {
		return license.ErrKeyConflict
	}
	if err != nil {
		return license.NewStoreError("create", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, key string, fn license.UpdateFunc) (license.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return license.Record{}, license.NewStoreError("update", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE key = $1 FOR UPDATE`, key)
	_, rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return license.Record{}, license.ErrKeyNotFound
	}
	if err != nil {
		return license.Record{}, license.NewStoreError("update", err)
	}

	out, save, err := fn(rec)
	if err != nil {
		return license.Record{}, err
	}
	if !save {
		return out, nil
	}

	query := `UPDATE licenses SET owner = $2, product_scope = $3, expires_at = $4,
		bound_client_id = $5, in_use = $6, last_heartbeat_at = $7 WHERE key = $1`
	if _, err := tx.ExecContext(ctx, query,
		key, out.Owner, nullString(out.ProductScope), out.ExpiresAt,
		nullString(out.BoundClientID), out.InUse, nullTime(out.LastHeartbeatAt),
	); err != nil {
		return license.Record{}, license.NewStoreError("update", err)
	}
	if err := tx.Commit(); err != nil {
		return license.Record{}, license.NewStoreError("commit", err)
	}
	return out, nil
}

func (s *PostgresStore) Rename(ctx context.Context, oldKey, newKey string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE licenses SET key = $2 WHERE key = $1`, oldKey, newKey)
	if isUniqueViolation(err) {
		return license.ErrKeyConflict
	}
	if err != nil {
		return license.NewStoreError("rename", err)
	}
	return requireAffected(res, "rename")
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM licenses WHERE key = $1`, key)
	if err != nil {
		return license.NewStoreError("delete", err)
	}
	return requireAffected(res, "delete")
}

func (s *PostgresStore) Snapshot(ctx context.Context) (map[string]license.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+licenseColumns+` FROM licenses ORDER BY key`)
	if err != nil {
		return nil, license.NewStoreError("snapshot", err)
	}
	defer rows.Close()

	records := make(map[string]license.Record)
	for rows.Next() {
		key, rec, err := scanRecord(rows)
		if err != nil {
			return nil, license.NewStoreError("snapshot", err)
		}
		records[key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, license.NewStoreError("snapshot", err)
	}
	return records, nil
}

func (s *PostgresStore) Export(ctx context.Context) ([]byte, error) {
	records, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return license.EncodeSnapshot(records)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return license.NewStoreError("ping", s.db.PingContext(ctx))
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return license.NewStoreError(op, err)
	}
	if n == 0 {
		return license.ErrKeyNotFound
	}
	return nil
}
