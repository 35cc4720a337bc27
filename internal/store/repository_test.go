package store

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/namewise/internal/domain"
)

// runRepositoryTests exercises the Repository semantics shared by every
// backend.
func runRepositoryTests(t *testing.T, repo Repository) {
	ctx := context.Background()

	t.Run("FindUserByEmailAbsent", func(t *testing.T) {
		user, err := repo.FindUserByEmail(ctx, "nobody@example.com")
		if err != nil {
			t.Fatalf("FindUserByEmail failed: %v", err)
		}
		if user != nil {
			t.Errorf("Expected nil for absent user, got %v", user)
		}
	})

	t.Run("SeedAndFindUser", func(t *testing.T) {
		if err := repo.SeedUsers(ctx, []string{"a@b.com", "c@d.com"}); err != nil {
			t.Fatalf("SeedUsers failed: %v", err)
		}

		user, err := repo.FindUserByEmail(ctx, "a@b.com")
		if err != nil {
			t.Fatalf("FindUserByEmail failed: %v", err)
		}
		if user == nil || user.Email != "a@b.com" {
			t.Errorf("Expected user a@b.com, got %v", user)
		}

		// Seeding again must not error or clobber existing records.
		if err := repo.SeedUsers(ctx, []string{"a@b.com"}); err != nil {
			t.Fatalf("Repeated SeedUsers failed: %v", err)
		}
	})

	t.Run("OTPLifecycle", func(t *testing.T) {
		rec := &domain.OTPRecord{
			Email:     "a@b.com",
			Code:      "123456",
			ExpiresAt: time.Now().Add(time.Minute),
		}
		if err := repo.UpsertOTP(ctx, rec); err != nil {
			t.Fatalf("UpsertOTP failed: %v", err)
		}

		got, err := repo.GetOTP(ctx, "a@b.com")
		if err != nil {
			t.Fatalf("GetOTP failed: %v", err)
		}
		if got == nil || got.Code != "123456" {
			t.Fatalf("Expected stored code 123456, got %v", got)
		}

		// Overwrite-on-issuance: a new record supersedes the old one.
		rec2 := &domain.OTPRecord{
			Email:     "a@b.com",
			Code:      "654321",
			ExpiresAt: time.Now().Add(time.Minute),
		}
		if err := repo.UpsertOTP(ctx, rec2); err != nil {
			t.Fatalf("Overwriting UpsertOTP failed: %v", err)
		}
		got, err = repo.GetOTP(ctx, "a@b.com")
		if err != nil {
			t.Fatalf("GetOTP failed: %v", err)
		}
		if got == nil || got.Code != "654321" {
			t.Fatalf("Expected overwritten code 654321, got %v", got)
		}

		if err := repo.DeleteOTP(ctx, "a@b.com"); err != nil {
			t.Fatalf("DeleteOTP failed: %v", err)
		}
		got, err = repo.GetOTP(ctx, "a@b.com")
		if err != nil {
			t.Fatalf("GetOTP after delete failed: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil after delete, got %v", got)
		}

		// Deleting a missing record is not an error.
		if err := repo.DeleteOTP(ctx, "a@b.com"); err != nil {
			t.Errorf("DeleteOTP on missing record failed: %v", err)
		}
	})

	t.Run("GetOTPExpired", func(t *testing.T) {
		rec := &domain.OTPRecord{
			Email:     "c@d.com",
			Code:      "111111",
			ExpiresAt: time.Now().Add(-time.Second),
		}
		if err := repo.UpsertOTP(ctx, rec); err != nil {
			t.Fatalf("UpsertOTP failed: %v", err)
		}

		got, err := repo.GetOTP(ctx, "c@d.com")
		if err != nil {
			t.Fatalf("GetOTP failed: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for expired record, got %v", got)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}
