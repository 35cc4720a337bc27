package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/namewise/internal/domain"
	_ "modernc.org/sqlite"
)

// isSQLiteConflict reports whether the error is a SQLITE_BUSY or
// "database is locked" concurrency error that warrants a retry.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS otp_records (
		email TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_otp_expires ON otp_records(expires_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindUserByEmail retrieves a user record, or (nil, nil) if absent.
func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT email, name, created_at FROM users WHERE email = ?`

	row := s.db.QueryRowContext(ctx, query, email)

	var user domain.User
	var createdAt int64

	err := row.Scan(&user.Email, &user.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

// SeedUsers inserts user records for the given emails, skipping existing ones.
func (s *SQLiteStore) SeedUsers(ctx context.Context, emails []string) error {
	query := `INSERT INTO users (email, name, created_at) VALUES (?, '', ?)
		ON CONFLICT(email) DO NOTHING`

	now := time.Now().Unix()
	for _, email := range emails {
		if _, err := s.db.ExecContext(ctx, query, email, now); err != nil {
			return fmt.Errorf("seed user %s: %w", email, err)
		}
	}
	return nil
}

// UpsertOTP creates or overwrites the OTP record for rec.Email.
func (s *SQLiteStore) UpsertOTP(ctx context.Context, rec *domain.OTPRecord) error {
	query := `
	INSERT INTO otp_records (email, code, expires_at)
	VALUES (?, ?, ?)
	ON CONFLICT(email) DO UPDATE SET
		code = excluded.code,
		expires_at = excluded.expires_at`

	_, err := s.db.ExecContext(ctx, query, rec.Email, rec.Code, rec.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert otp record: %w", err)
	}
	return nil
}

// GetOTP retrieves the unexpired OTP record for an email, or (nil, nil)
// if no record exists or the record has expired. Expired rows are left in
// place; CleanupExpiredOTPs prunes them.
func (s *SQLiteStore) GetOTP(ctx context.Context, email string) (*domain.OTPRecord, error) {
	query := `SELECT email, code, expires_at FROM otp_records WHERE email = ? AND expires_at > ?`

	row := s.db.QueryRowContext(ctx, query, email, time.Now().Unix())

	var rec domain.OTPRecord
	var expiresAt int64

	err := row.Scan(&rec.Email, &rec.Code, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan otp row: %w", err)
	}

	rec.ExpiresAt = time.Unix(expiresAt, 0)
	return &rec, nil
}

// DeleteOTP removes the OTP record for an email.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) DeleteOTP(ctx context.Context, email string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		_, err := s.db.ExecContext(ctx, `DELETE FROM otp_records WHERE email = ?`, email)
		if err == nil {
			return nil
		}

		if isSQLiteConflict(err) {
			if i < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
				slog.Debug("DeleteOTP failed with SQLITE_BUSY, retrying",
					"email", email,
					"attempt", i+1,
					"delay", delay)
				time.Sleep(delay)
				continue
			}
		}

		return fmt.Errorf("delete otp record after %d attempts: %w", i+1, err)
	}

	return nil
}

// CleanupExpiredOTPs removes OTP records past their expiry.
func (s *SQLiteStore) CleanupExpiredOTPs(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM otp_records WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired otp records: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
