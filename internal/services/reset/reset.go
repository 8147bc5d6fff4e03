// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package reset implements the emailed-code password reset flow.
package reset

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"codeberg.org/oliverandrich/bizcard-snap/internal/apperr"
	"codeberg.org/oliverandrich/bizcard-snap/internal/models"
	"codeberg.org/oliverandrich/bizcard-snap/internal/repository"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/auth"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/email"
)

const (
	// DefaultCodeLength is the number of digits in a reset code.
	DefaultCodeLength = 4
	// DefaultCodeTTL is how long a reset code is valid.
	DefaultCodeTTL = 10 * time.Minute
	// DefaultMaxAttempts is the number of wrong guesses that burn a code.
	DefaultMaxAttempts = 5
)

// Mailer delivers reset codes.
type Mailer interface {
	SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// Options tunes code generation and verification. Zero values use defaults.
type Options struct {
	CodeLength  int
	CodeTTL     time.Duration
	MaxAttempts int
}

// Service issues, verifies and redeems reset codes.
type Service struct {
	repo     *repository.Repository
	accounts *auth.Service
	mailer   Mailer
	opts     Options
	now      func() time.Time
}

// NewService creates a reset service. accounts validates and hashes the new
// password.
func NewService(repo *repository.Repository, accounts *auth.Service, mailer Mailer, opts Options) *Service {
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultCodeLength
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = DefaultCodeTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Service{
		repo:     repo,
		accounts: accounts,
		mailer:   mailer,
		opts:     opts,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SendCode stores a fresh code for a registered email and mails it. A new
// code supersedes any pending one.
func (s *Service) SendCode(ctx context.Context, emailAddr string) error {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" {
		return apperr.Validation("Email is required")
	}

	exists, err := s.repo.EmailExists(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if !exists {
		slog.Warn("reset_code_unknown_email", "email", emailAddr)
		return apperr.NotFound("Email not found")
	}

	code, err := generateCode(s.opts.CodeLength)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	now := s.now().UTC()
	if err := s.repo.UpsertResetCode(ctx, emailAddr, email.HashToken(code), now, now.Add(s.opts.CodeTTL)); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}

	if err := s.mailer.SendResetCode(ctx, emailAddr, code, s.opts.CodeTTL); err != nil {
		slog.Error("reset_code_send_failed", "email", emailAddr, "error", err)
		return apperr.Dependency("Failed to send email", err)
	}

	slog.Info("reset_code_sent", "email", emailAddr)
	return nil
}

// VerifyCode checks a code without consuming it. A match marks the code as
// verified so a later ResetPassword may omit it.
func (s *Service) VerifyCode(ctx context.Context, emailAddr, code string) error {
	emailAddr = strings.TrimSpace(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" || code == "" {
		return apperr.Validation("Email and code are required")
	}

	rc, err := s.pending(ctx, emailAddr, "No reset code found", "Code has expired")
	if err != nil {
		return err
	}

	if err := s.match(ctx, rc, code); err != nil {
		return err
	}

	if err := s.repo.MarkResetCodeVerified(ctx, emailAddr, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to mark code verified: %w", err)
	}

	slog.Info("reset_code_verified", "email", emailAddr)
	return nil
}

// ResetPassword sets a new password. The request must carry the matching
// code or follow a successful VerifyCode. The code is consumed on success.
func (s *Service) ResetPassword(ctx context.Context, emailAddr, password, code string) error {
	emailAddr = strings.TrimSpace(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" || password == "" {
		return apperr.Validation("Email and new password are required")
	}

	rc, err := s.pending(ctx, emailAddr, "No valid reset code found", "Reset code has expired")
	if err != nil {
		return err
	}

	switch {
	case code != "":
		if err := s.match(ctx, rc, code); err != nil {
			return err
		}
	case !rc.Verified():
		return apperr.Validation("Code verification required")
	}

	user, err := s.repo.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Email not found")
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.accounts.ValidatePassword(password, user.Username, user.Email).Err(); err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Message: err.Error(), Err: err}
	}

	hash, err := s.accounts.HashPassword(password)
	if err != nil {
		return err
	}

	if err := s.repo.ResetPassword(ctx, emailAddr, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Validation("Failed to reset password")
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	slog.Info("password_reset", "email", emailAddr, "username", user.Username)
	return nil
}

// pending loads the code for emailAddr. Expired codes are deleted and
// reported with expiredMsg.
func (s *Service) pending(ctx context.Context, emailAddr, missingMsg, expiredMsg string) (*models.ResetCode, error) {
	rc, err := s.repo.GetResetCode(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(missingMsg)
		}
		return nil, fmt.Errorf("failed to get reset code: %w", err)
	}

	if rc.Expired(s.now()) {
		if err := s.repo.DeleteResetCode(ctx, emailAddr); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to delete expired code: %w", err)
		}
		slog.Info("reset_code_expired", "email", emailAddr)
		return nil, apperr.Validation(expiredMsg)
	}

	return rc, nil
}

// match compares code against rc. A mismatch counts as an attempt and the
// code is deleted once MaxAttempts is reached.
func (s *Service) match(ctx context.Context, rc *models.ResetCode, code string) error {
	if subtle.ConstantTimeCompare([]byte(email.HashToken(code)), []byte(rc.CodeHash)) == 1 {
		return nil
	}

	attempts, err := s.repo.IncrementResetAttempts(ctx, rc.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to count attempt: %w", err)
	}
	if attempts >= s.opts.MaxAttempts {
		if err := s.repo.DeleteResetCode(ctx, rc.Email); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to delete reset code: %w", err)
		}
		slog.Warn("reset_code_exhausted", "email", rc.Email, "attempts", attempts)
	}

	return apperr.Validation("Invalid code")
}

// Sweep deletes all expired codes.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredResetCodes(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep reset codes: %w", err)
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("reset_sweep_failed", "error", err)
				}
				continue
			}
			if n > 0 {
				slog.Debug("reset_codes_swept", "count", n)
			}
		}
	}
}

// generateCode returns length uniformly random decimal digits.
func generateCode(length int) (string, error) {
	ten := big.NewInt(10)
	var b strings.Builder
	b.Grow(length)
	for range length {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
