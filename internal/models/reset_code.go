// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// ResetCode is the pending password reset for one email address.
type ResetCode struct { //nolint:govet // fieldalignment: readability over optimization
	Email      string     `db:"email" json:"email"`
	CodeHash   string     `db:"code_hash" json:"-"` // SHA256 hash
	Attempts   int        `db:"attempts" json:"attempts"`
	VerifiedAt *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the code is past its expiry at now.
func (c *ResetCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Verified reports whether the code was confirmed via verify-reset-code.
func (c *ResetCode) Verified() bool {
	return c.VerifiedAt != nil
}
