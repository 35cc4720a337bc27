package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/namewise/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix = "user:"
	otpKeyPrefix  = "otp:"
)

// RedisStore implements Repository using Redis. OTP expiry is enforced by
// the key TTL, so stale records never linger.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedis creates a new Redis-backed repository.
func NewRedis(addr, password string, db int) *RedisStore {
	return &RedisStore{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewRedisWithClient wraps an existing Redis client. Used by tests.
func NewRedisWithClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

type redisUser struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type redisOTP struct {
	Code      string `json:"code"`
	ExpiresAt int64  `json:"expires_at"`
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// FindUserByEmail retrieves a user record, or (nil, nil) if absent.
func (s *RedisStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	data, err := s.rdb.Get(ctx, userKeyPrefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	var u redisUser
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	return &domain.User{
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: time.Unix(u.CreatedAt, 0),
	}, nil
}

// SeedUsers inserts user records for the given emails, skipping existing ones.
func (s *RedisStore) SeedUsers(ctx context.Context, emails []string) error {
	now := time.Now().Unix()
	for _, email := range emails {
		data, err := json.Marshal(redisUser{Email: email, CreatedAt: now})
		if err != nil {
			return fmt.Errorf("encode user %s: %w", email, err)
		}
		// SetNX keeps existing records intact.
		if err := s.rdb.SetNX(ctx, userKeyPrefix+email, data, 0).Err(); err != nil {
			return fmt.Errorf("seed user %s: %w", email, err)
		}
	}
	return nil
}

// UpsertOTP creates or overwrites the OTP record for rec.Email. The key TTL
// matches the record expiry.
func (s *RedisStore) UpsertOTP(ctx context.Context, rec *domain.OTPRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		// Already expired; storing it would be indistinguishable from absent.
		return s.DeleteOTP(ctx, rec.Email)
	}

	data, err := json.Marshal(redisOTP{Code: rec.Code, ExpiresAt: rec.ExpiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("encode otp record: %w", err)
	}

	if err := s.rdb.Set(ctx, otpKeyPrefix+rec.Email, data, ttl).Err(); err != nil {
		return fmt.Errorf("set otp record: %w", err)
	}
	return nil
}

// GetOTP retrieves the unexpired OTP record for an email, or (nil, nil) if
// no record exists. Redis evicts expired keys, but the stored expiry is
// still checked to guard against clock skew between writes.
func (s *RedisStore) GetOTP(ctx context.Context, email string) (*domain.OTPRecord, error) {
	data, err := s.rdb.Get(ctx, otpKeyPrefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get otp record: %w", err)
	}

	var rec redisOTP
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode otp record: %w", err)
	}

	out := &domain.OTPRecord{
		Email:     email,
		Code:      rec.Code,
		ExpiresAt: time.Unix(rec.ExpiresAt, 0),
	}
	if out.Expired(time.Now()) {
		return nil, nil
	}
	return out, nil
}

// DeleteOTP removes the OTP record for an email.
func (s *RedisStore) DeleteOTP(ctx context.Context, email string) error {
	if err := s.rdb.Del(ctx, otpKeyPrefix+email).Err(); err != nil {
		return fmt.Errorf("delete otp record: %w", err)
	}
	return nil
}

// CleanupExpiredOTPs is a no-op for Redis; key TTLs already evict stale
// records.
func (s *RedisStore) CleanupExpiredOTPs(ctx context.Context) (int64, error) {
	return 0, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
