// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"codeberg.org/oliverandrich/bizcard-snap/internal/apperr"
	"codeberg.org/oliverandrich/bizcard-snap/internal/repository"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/auth"
	"codeberg.org/oliverandrich/bizcard-snap/internal/testutil"
)

func newService(t *testing.T) (*auth.Service, *repository.Repository) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	svc := auth.NewService(repo, auth.NewTokens("test-secret", time.Hour)).WithBcryptCost(bcrypt.MinCost)
	return svc, repo
}

func signup(t *testing.T, svc *auth.Service, username string) {
	t.Helper()
	_, err := svc.Signup(context.Background(), auth.SignupParams{
		Username: username,
		Email:    username + "@example.com",
		Password: testutil.TestPassword,
	})
	require.NoError(t, err)
}

func TestSignup(t *testing.T) {
	svc, _ := newService(t)

	user, err := svc.Signup(context.Background(), auth.SignupParams{
		Username: "alice",
		Email:    "alice@example.com",
		Password: testutil.TestPassword,
	})

	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, testutil.TestPassword, user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(testutil.TestPassword)))
}

func TestSignup_MissingFields(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Signup(context.Background(), auth.SignupParams{Username: "alice"})

	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Missing required fields", apperr.Message(err, ""))
}

func TestSignup_InvalidEmail(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Signup(context.Background(), auth.SignupParams{
		Username: "alice", Email: "not-an-email", Password: testutil.TestPassword,
	})

	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSignup_WeakPassword(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Signup(context.Background(), auth.SignupParams{
		Username: "alice", Email: "alice@example.com", Password: "12345678",
	})

	assert.True(t, apperr.Is(err, apperr.KindValidation))
	var pve *auth.PasswordValidationError
	assert.ErrorAs(t, err, &pve)
}

func TestSignup_DuplicateUsername(t *testing.T) {
	svc, _ := newService(t)
	signup(t, svc, "alice")

	_, err := svc.Signup(context.Background(), auth.SignupParams{
		Username: "alice", Email: "other@example.com", Password: testutil.TestPassword,
	})

	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "Username already exists", apperr.Message(err, ""))
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, _ := newService(t)
	signup(t, svc, "alice")

	_, err := svc.Signup(context.Background(), auth.SignupParams{
		Username: "bob", Email: "alice@example.com", Password: testutil.TestPassword,
	})

	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "Email already exists", apperr.Message(err, ""))
}

func TestLogin(t *testing.T) {
	svc, _ := newService(t)
	signup(t, svc, "alice")

	token, err := svc.Login(context.Background(), "alice", testutil.TestPassword)

	require.NoError(t, err)
	username, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newService(t)
	signup(t, svc, "alice")

	_, err := svc.Login(context.Background(), "alice", "wrong-password")

	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestLogin_UnknownUser(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Login(context.Background(), "nobody", "whatever-password")

	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Equal(t, "Invalid credentials", apperr.Message(err, ""))
}

func TestAuthenticate_Invalid(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Authenticate("garbage")

	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestCurrentUser(t *testing.T) {
	svc, _ := newService(t)
	signup(t, svc, "alice")

	user, err := svc.CurrentUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	_, err = svc.CurrentUser(context.Background(), "nobody")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteAccount(t *testing.T) {
	svc, repo := newService(t)
	signup(t, svc, "alice")
	testutil.NewTestCard(t, repo, "alice", "John Smith")

	require.NoError(t, svc.DeleteAccount(context.Background(), "alice"))

	count, err := repo.CountCards(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, count)

	err = svc.DeleteAccount(context.Background(), "alice")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
