// Package domain contains core domain types for the Namewise application.
package domain

import (
	"time"
)

// User represents a registered user allowed to sign in by email OTP.
type User struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
