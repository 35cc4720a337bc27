package domain

import (
	"time"
)

// OTPRecord is the single outstanding one-time passcode for an email address.
// Issuance overwrites any prior record for the same email unconditionally.
type OTPRecord struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the record is past its expiry at the given instant.
func (r *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
