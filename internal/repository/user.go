// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/bizcard-snap/internal/models"
)

// CreateUser creates a new user.
func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?) RETURNING *`,
		username, email, passwordHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE username = ?`, username); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// UsernameExists checks if a username is taken.
func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username)
	return exists, err
}

// EmailExists checks if an email address is registered.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
	return exists, err
}

// ResetPassword sets a new password hash for the user with the given email
// and consumes the reset code in one transaction.
func (r *Repository) ResetPassword(ctx context.Context, email, passwordHash string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = ?, updated_at = ? WHERE email = ?`,
			passwordHash, time.Now().UTC(), email)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM reset_codes WHERE email = ?`, email)
		return err
	})
}

// DeleteUser deletes a user with all their cards and pending reset codes in
// one transaction.
func (r *Repository) DeleteUser(ctx context.Context, username string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		var user models.User
		if err := tx.GetContext(ctx, &user, `SELECT * FROM users WHERE username = ?`, username); err != nil {
			return wrapError(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE owner = ?`, username); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM reset_codes WHERE email = ?`, user.Email); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, user.ID)
		return err
	})
}
