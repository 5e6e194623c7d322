package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coachboard/internal/apperrors"
	"coachboard/internal/database"
)

func TestSignUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.sm.Auth.SignUp(ctx, "  Ana@Example.COM ", "correct horse", " Ana ")
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", p.Email)
	require.Equal(t, "Ana", p.FullName)
	require.Equal(t, database.StatusNone, p.SubscriptionStatus)
	require.NotEmpty(t, p.LinkCode)
	require.NotEqual(t, "correct horse", p.PasswordHash)

	welcome := env.mailer.to("ana@example.com")
	require.Len(t, welcome, 1)
	require.Contains(t, welcome[0].Subject, "Welcome")

	_, err = env.sm.Auth.SignUp(ctx, "ana@example.com", "another pass", "")
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = env.sm.Auth.SignUp(ctx, "bo@example.com", "short", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = env.sm.Auth.SignUp(ctx, "not-an-email", "long enough", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLoginAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signUp(t, "ana@example.com")

	_, err := env.sm.Auth.Login(ctx, "ana@example.com", "wrong password")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = env.sm.Auth.Login(ctx, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	session, err := env.sm.Auth.Login(ctx, "ANA@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, testNow.Add(30*24*time.Hour), session.ExpiresAt)

	got, err := env.sm.Auth.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	env.clock.Advance(31 * 24 * time.Hour)
	_, err = env.sm.Auth.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = env.repo.GetAuthSession(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrNotFound, "expired session is removed")
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signUp(t, "ana@example.com")

	session, err := env.sm.Auth.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	require.NoError(t, env.sm.Auth.Logout(ctx, session.Token))

	_, err = env.sm.Auth.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signUp(t, "ana@example.com")

	require.NoError(t, env.sm.Auth.RequestPasswordReset(ctx, "ghost@example.com"))
	require.Empty(t, env.mailer.to("ghost@example.com"))

	oldSession, err := env.sm.Auth.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, env.sm.Auth.RequestPasswordReset(ctx, "ana@example.com"))
	mails := env.mailer.to("ana@example.com")
	require.Len(t, mails, 2)
	m := tokenPattern.FindStringSubmatch(mails[1].HTML)
	require.Len(t, m, 2, "reset link in email")
	token := m[1]

	require.ErrorIs(t, env.sm.Auth.ResetPassword(ctx, token, "short"), apperrors.ErrInvalidInput)
	require.NoError(t, env.sm.Auth.ResetPassword(ctx, token, "battery staple"))

	_, err = env.sm.Auth.Authenticate(ctx, oldSession.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized, "sessions revoked on reset")

	_, err = env.sm.Auth.Login(ctx, "ana@example.com", "correct horse")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = env.sm.Auth.Login(ctx, "ana@example.com", "battery staple")
	require.NoError(t, err)

	require.ErrorIs(t, env.sm.Auth.ResetPassword(ctx, token, "yet another one"), apperrors.ErrUnauthorized)
}

func TestPasswordResetExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signUp(t, "ana@example.com")

	require.NoError(t, env.sm.Auth.RequestPasswordReset(ctx, "ana@example.com"))
	mails := env.mailer.to("ana@example.com")
	token := tokenPattern.FindStringSubmatch(mails[len(mails)-1].HTML)[1]

	env.clock.Advance(2 * time.Hour)
	require.ErrorIs(t, env.sm.Auth.ResetPassword(ctx, token, "battery staple"), apperrors.ErrUnauthorized)
}

func TestLinkTelegramMovesChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.signUp(t, "ana@example.com")
	bo := env.signUp(t, "bo@example.com")

	_, err := env.sm.Auth.LinkTelegram(ctx, ana.LinkCode, 777)
	require.NoError(t, err)
	_, err = env.sm.Auth.LinkTelegram(ctx, strings.ToLower(bo.LinkCode), 777)
	require.NoError(t, err)

	byChat, err := env.sm.Auth.ProfileByChat(ctx, 777)
	require.NoError(t, err)
	require.Equal(t, bo.ID, byChat.ID)

	former, err := env.repo.GetProfile(ctx, ana.ID)
	require.NoError(t, err)
	require.Zero(t, former.TelegramChatID)

	// Relinking the current owner is a no-op.
	again, err := env.sm.Auth.LinkTelegram(ctx, bo.LinkCode, 777)
	require.NoError(t, err)
	require.Equal(t, int64(777), again.TelegramChatID)

	linked, err := env.repo.ListProfilesWithTelegram(ctx)
	require.NoError(t, err)
	require.Len(t, linked, 1)
}

func TestLinkTelegramAndCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signUp(t, "ana@example.com")

	linked, err := env.sm.Auth.LinkTelegram(ctx, p.LinkCode, 4242)
	require.NoError(t, err)
	require.Equal(t, int64(4242), linked.TelegramChatID)

	byChat, err := env.sm.Auth.ProfileByChat(ctx, 4242)
	require.NoError(t, err)
	require.Equal(t, p.ID, byChat.ID)

	_, err = env.sm.Auth.LinkTelegram(ctx, "NOPE", 1)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.sm.Auth.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	env.clock.Advance(31 * 24 * time.Hour)
	n, err := env.sm.Auth.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	p := env.signUp(t, "ana@example.com")

	name := "Ana Lima"
	got, err := env.sm.Auth.UpdateProfile(context.Background(), p.ID, ProfileUpdate{FullName: &name})
	require.NoError(t, err)
	require.Equal(t, "Ana Lima", got.FullName)
}
