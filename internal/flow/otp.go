package flow

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// otpMin and otpMax bound the generated 6-digit code space, inclusive.
const (
	otpMin = 100000
	otpMax = 999999
)

// generateOTP returns a uniform random 6-digit numeric code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", otpMin+n.Int64()), nil
}

// otpEqual compares two codes in constant time.
func otpEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
