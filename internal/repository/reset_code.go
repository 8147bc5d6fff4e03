// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/bizcard-snap/internal/models"
)

// UpsertResetCode stores a new reset code for email, replacing any pending
// one in a single statement.
func (r *Repository) UpsertResetCode(ctx context.Context, email, codeHash string, createdAt, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reset_codes (email, code_hash, attempts, verified_at, expires_at, created_at)
		 VALUES (?, ?, 0, NULL, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET
			code_hash = excluded.code_hash,
			attempts = 0,
			verified_at = NULL,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		email, codeHash, expiresAt.UTC(), createdAt.UTC())
	return err
}

// GetResetCode retrieves the pending reset code for email.
func (r *Repository) GetResetCode(ctx context.Context, email string) (*models.ResetCode, error) {
	var code models.ResetCode
	if err := r.db.GetContext(ctx, &code, `SELECT * FROM reset_codes WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &code, nil
}

// IncrementResetAttempts records a failed guess and returns the new count.
func (r *Repository) IncrementResetAttempts(ctx context.Context, email string) (int, error) {
	var attempts int
	err := r.db.GetContext(ctx, &attempts,
		`UPDATE reset_codes SET attempts = attempts + 1 WHERE email = ? RETURNING attempts`, email)
	if err != nil {
		return 0, wrapError(err)
	}
	return attempts, nil
}

// MarkResetCodeVerified records a successful verification.
func (r *Repository) MarkResetCodeVerified(ctx context.Context, email string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reset_codes SET verified_at = ? WHERE email = ?`, at.UTC(), email)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteResetCode deletes the reset code for email.
func (r *Repository) DeleteResetCode(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reset_codes WHERE email = ?`, email)
	return err
}

// DeleteExpiredResetCodes deletes codes that expired before now.
func (r *Repository) DeleteExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reset_codes WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
