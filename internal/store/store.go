// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/namewise/internal/domain"
)

// Repository defines the interface for persisting user records and OTP state.
// Backend choice (SQLite vs Redis) is a configuration detail; both
// implementations honor the same semantics:
//
//   - At most one OTP record exists per email; UpsertOTP overwrites
//     unconditionally.
//   - GetOTP returns (nil, nil) for records that are absent or expired.
type Repository interface {
	// FindUserByEmail retrieves a user record, or (nil, nil) if absent.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// SeedUsers inserts user records for the given emails, skipping ones
	// that already exist.
	SeedUsers(ctx context.Context, emails []string) error

	// UpsertOTP creates or overwrites the OTP record for rec.Email.
	UpsertOTP(ctx context.Context, rec *domain.OTPRecord) error

	// GetOTP retrieves the unexpired OTP record for an email, or (nil, nil)
	// if no record exists or the record has expired.
	GetOTP(ctx context.Context, email string) (*domain.OTPRecord, error)

	// DeleteOTP removes the OTP record for an email. Deleting a missing
	// record is not an error.
	DeleteOTP(ctx context.Context, email string) error

	// CleanupExpiredOTPs removes stale OTP records and returns how many
	// were deleted. Backends with native TTL may report zero.
	CleanupExpiredOTPs(ctx context.Context) (int64, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
