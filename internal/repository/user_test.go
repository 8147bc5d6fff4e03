// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/bizcard-snap/internal/repository"
	"codeberg.org/oliverandrich/bizcard-snap/internal/testutil"
)

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "alice", "alice@example.com", "hash")

	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "hash", user.PasswordHash)
	assert.NotZero(t, user.CreatedAt)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, "alice", "other@example.com", "hash")

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, "bob", "alice@example.com", "hash")

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestGetUserByUsername(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "alice")

	retrieved, err := repo.GetUserByUsername(ctx, "alice")

	require.NoError(t, err)
	assert.Equal(t, created.ID, retrieved.ID)
}

func TestGetUserByUsername_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByUsername(context.Background(), "nobody")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "alice")

	retrieved, err := repo.GetUserByEmail(ctx, "alice@example.com")

	require.NoError(t, err)
	assert.Equal(t, created.ID, retrieved.ID)

	_, err = repo.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUsernameAndEmailExists(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "alice")

	exists, err := repo.UsernameExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.UsernameExists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.EmailExists(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestResetPassword(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "alice")
	now := time.Now()
	require.NoError(t, repo.UpsertResetCode(ctx, "alice@example.com", "codehash", now, now.Add(time.Minute)))

	err := repo.ResetPassword(ctx, "alice@example.com", "newhash")

	require.NoError(t, err)
	user, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "newhash", user.PasswordHash)
	_, err = repo.GetResetCode(ctx, "alice@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResetPassword_UnknownEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.ResetPassword(context.Background(), "nobody@example.com", "newhash")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteUser_CascadesCardsAndCodes(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "alice")
	testutil.NewTestUser(t, repo, "bob")
	testutil.NewTestCard(t, repo, "alice", "John Smith")
	testutil.NewTestCard(t, repo, "alice", "Jane Doe")
	testutil.NewTestCard(t, repo, "bob", "Max Mustermann")
	now := time.Now()
	require.NoError(t, repo.UpsertResetCode(ctx, "alice@example.com", "codehash", now, now.Add(time.Minute)))

	err := repo.DeleteUser(ctx, "alice")

	require.NoError(t, err)
	_, err = repo.GetUserByUsername(ctx, "alice")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	count, err := repo.CountCards(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = repo.GetResetCode(ctx, "alice@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	count, err = repo.CountCards(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteUser_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.DeleteUser(context.Background(), "nobody")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}
