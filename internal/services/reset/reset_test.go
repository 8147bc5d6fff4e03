// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package reset

import (
	"context"
	"errors"
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

const newPassword = "purple-monkey-dishwasher"

type fakeMailer struct {
	to   string
	code string
	ttl  time.Duration
	sent int
	err  error
}

func (m *fakeMailer) SendResetCode(_ context.Context, to, code string, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.to, m.code, m.ttl = to, code, ttl
	m.sent++
	return nil
}

type fixture struct {
	svc    *Service
	repo   *repository.Repository
	mailer *fakeMailer
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestUser(t, repo, "alice")

	accounts := auth.NewService(repo, auth.NewTokens("secret", time.Hour)).WithBcryptCost(bcrypt.MinCost)
	f := &fixture{
		repo:   repo,
		mailer: &fakeMailer{},
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(repo, accounts, f.mailer, Options{}).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) sendCode(t *testing.T) string {
	t.Helper()
	require.NoError(t, f.svc.SendCode(context.Background(), "alice@example.com"))
	return f.mailer.code
}

func wrongCode(code string) string {
	if code == "0000" {
		return "1111"
	}
	return "0000"
}

func TestGenerateCode(t *testing.T) {
	for range 20 {
		code, err := generateCode(6)
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}

func TestSendCode(t *testing.T) {
	f := newFixture(t)

	code := f.sendCode(t)

	assert.Regexp(t, `^\d{4}$`, code)
	assert.Equal(t, "alice@example.com", f.mailer.to)
	assert.Equal(t, DefaultCodeTTL, f.mailer.ttl)

	rc, err := f.repo.GetResetCode(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, code, rc.CodeHash)
	assert.True(t, rc.ExpiresAt.Equal(f.now.Add(DefaultCodeTTL)))
}

func TestSendCode_MissingEmail(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SendCode(context.Background(), " ")

	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSendCode_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SendCode(context.Background(), "nobody@example.com")

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "Email not found", apperr.Message(err, ""))
	assert.Zero(t, f.mailer.sent)
}

func TestSendCode_MailerFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")

	err := f.svc.SendCode(context.Background(), "alice@example.com")

	assert.True(t, apperr.Is(err, apperr.KindDependency))
	assert.Equal(t, "Failed to send email", apperr.Message(err, ""))
}

func TestSendCode_SupersedesPending(t *testing.T) {
	f := newFixture(t)
	first := f.sendCode(t)
	f.now = f.now.Add(time.Minute)
	var second string
	for second == "" || second == first {
		second = f.sendCode(t)
	}

	err := f.svc.VerifyCode(context.Background(), "alice@example.com", first)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.NoError(t, f.svc.VerifyCode(context.Background(), "alice@example.com", second))
}

func TestVerifyCode(t *testing.T) {
	f := newFixture(t)
	code := f.sendCode(t)

	require.NoError(t, f.svc.VerifyCode(context.Background(), "alice@example.com", code))

	rc, err := f.repo.GetResetCode(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, rc.Verified())
}

func TestVerifyCode_MissingFields(t *testing.T) {
	f := newFixture(t)

	err := f.svc.VerifyCode(context.Background(), "alice@example.com", "")

	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Email and code are required", apperr.Message(err, ""))
}

func TestVerifyCode_NoCode(t *testing.T) {
	f := newFixture(t)

	err := f.svc.VerifyCode(context.Background(), "alice@example.com", "1234")

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "No reset code found", apperr.Message(err, ""))
}

func TestVerifyCode_Mismatch(t *testing.T) {
	f := newFixture(t)
	code := f.sendCode(t)

	err := f.svc.VerifyCode(context.Background(), "alice@example.com", wrongCode(code))

	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Invalid code", apperr.Message(err, ""))

	rc, err := f.repo.GetResetCode(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, rc.Attempts)
	assert.False(t, rc.Verified())
}

func TestVerifyCode_Expired(t *testing.T) {
	f := newFixture(t)
	code := f.sendCode(t)
	f.now = f.now.Add(DefaultCodeTTL + time.Second)

	err := f.svc.VerifyCode(context.Background(), "alice@example.com", code)

	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Code has expired", apperr.Message(err, ""))

	// The expired code is gone.
	err = f.svc.VerifyCode(context.Background(), "alice@example.com", code)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestVerifyCode_ExhaustsAttempts(t *testing.T) {
	f := newFixture(t)
	code := f.sendCode(t)

	for range DefaultMaxAttempts {
		err := f.svc.VerifyCode(context.Background(), "alice@example.com", wrongCode(code))
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	}

	err := f.svc.VerifyCode(context.Background(), "alice@example.com", code)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestResetPassword_WithCode(t *testing.T) {
	f := newFixture(t)
	code := f.sendCode(t)

	require.NoError(t, f.svc.ResetPassword(context.Background(), "alice@example.com", newPassword, code))

	user, err := f.repo.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)))

	_, err = f.repo.GetResetCode(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResetPassword_AfterVerify(t *testing.T) {
	f := newFixture(t)
	code := f.sendCode(t)
	require.NoError(t, f.svc.VerifyCode(context.Background(), "alice@example.com", code))

	assert.NoError(t, f.svc.ResetPassword(context.Background(), "alice@example.com", newPassword, ""))
}

func TestResetPassword_RequiresVerification(t *testing.T) {
	f := newFixture(t)
	f.sendCode(t)

	err := f.svc.ResetPassword(context.Background(), "alice@example.com", newPassword, "")

	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Code verification required", apperr.Message(err, ""))
}

func TestResetPassword_WrongCode(t *testing.T) {
	f := newFixture(t)
	code := f.sendCode(t)

	err := f.svc.ResetPassword(context.Background(), "alice@example.com", newPassword, wrongCode(code))

	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Invalid code", apperr.Message(err, ""))
}

func TestResetPassword_NoCode(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ResetPassword(context.Background(), "alice@example.com", newPassword, "1234")

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "No valid reset code found", apperr.Message(err, ""))
}

func TestResetPassword_Expired(t *testing.T) {
	f := newFixture(t)
	code := f.sendCode(t)
	f.now = f.now.Add(time.Hour)

	err := f.svc.ResetPassword(context.Background(), "alice@example.com", newPassword, code)

	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Reset code has expired", apperr.Message(err, ""))
}

func TestResetPassword_WeakPassword(t *testing.T) {
	f := newFixture(t)
	code := f.sendCode(t)

	err := f.svc.ResetPassword(context.Background(), "alice@example.com", "short", code)

	assert.True(t, apperr.Is(err, apperr.KindValidation))
	var pve *auth.PasswordValidationError
	assert.ErrorAs(t, err, &pve)

	// The code survives a rejected password.
	_, err = f.repo.GetResetCode(context.Background(), "alice@example.com")
	assert.NoError(t, err)
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	f.sendCode(t)

	n, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(DefaultCodeTTL + time.Minute)
	n, err = f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		f.svc.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
