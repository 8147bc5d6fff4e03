// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"codeberg.org/oliverandrich/bizcard-snap/internal/apperr"
	"codeberg.org/oliverandrich/bizcard-snap/internal/models"
	"codeberg.org/oliverandrich/bizcard-snap/internal/repository"
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

type Service struct {
	repo              *repository.Repository
	tokens            *Tokens
	passwordValidator *PasswordValidator
	cost              int
}

func NewService(repo *repository.Repository, tokens *Tokens) *Service {
	return &Service{
		repo:              repo,
		tokens:            tokens,
		passwordValidator: DefaultPasswordValidator(),
		cost:              bcrypt.DefaultCost,
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *Service) WithBcryptCost(cost int) *Service {
	s.cost = cost
	return s
}

// ValidatePassword validates a password and returns the validation result
func (s *Service) ValidatePassword(password string, userAttributes ...string) ValidationResult {
	return s.passwordValidator.Validate(password, userAttributes...)
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// SignupParams holds the parameters for user registration
type SignupParams struct {
	Username string
	Email    string
	Password string
}

// Signup creates a new user account
func (s *Service) Signup(ctx context.Context, params SignupParams) (*models.User, error) {
	params.Username = strings.TrimSpace(params.Username)
	params.Email = strings.TrimSpace(params.Email)
	if params.Username == "" || params.Email == "" || params.Password == "" {
		return nil, apperr.Validation("Missing required fields")
	}

	if _, err := mail.ParseAddress(params.Email); err != nil {
		return nil, apperr.Validation("Invalid email address")
	}

	if err := s.passwordValidator.Validate(params.Password, params.Username, params.Email).Err(); err != nil {
		return nil, &apperr.Error{Kind: apperr.KindValidation, Message: err.Error(), Err: err}
	}

	exists, err := s.repo.UsernameExists(ctx, params.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, apperr.Conflict("Username already exists")
	}

	exists, err = s.repo.EmailExists(ctx, params.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, apperr.Conflict("Email already exists")
	}

	passwordHash, err := s.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, params.Username, params.Email, passwordHash)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("Username or email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("signup_success", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login authenticates a user and returns a bearer token
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "username", username, "reason", "user_not_found")
			return "", apperr.Auth("Invalid credentials")
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "username", username, "reason", "invalid_password")
		return "", apperr.Auth("Invalid credentials")
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return "", err
	}

	slog.Info("login_success", "user_id", user.ID, "username", username)
	return token, nil
}

// Authenticate verifies a bearer token and returns its username.
func (s *Service) Authenticate(token string) (string, error) {
	username, err := s.tokens.Verify(token)
	if err != nil {
		return "", &apperr.Error{Kind: apperr.KindAuth, Message: "Invalid or expired token", Err: err}
	}
	return username, nil
}

// CurrentUser returns the account behind a verified username.
func (s *Service) CurrentUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// DeleteAccount removes the user together with all their cards.
func (s *Service) DeleteAccount(ctx context.Context, username string) error {
	if err := s.repo.DeleteUser(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Validation("Account deletion failed")
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	slog.Info("account_deleted", "username", username)
	return nil
}
