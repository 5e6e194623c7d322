package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"coachboard/internal/apperrors"
)

var now = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "repo.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func createProfile(t *testing.T, r *Repository, id, email string, chatID int64) Profile {
	t.Helper()
	p := Profile{
		ID:                 id,
		Email:              email,
		PasswordHash:       "hash",
		SubscriptionStatus: StatusNone,
		TelegramChatID:     chatID,
		LinkCode:           "CODE" + id,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, r.CreateProfile(context.Background(), p))
	return p
}

func TestProfileLookups(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	want := createProfile(t, r, "p1", "ana@example.com", 77)

	byEmail, err := r.GetProfileByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	if diff := cmp.Diff(want, *byEmail, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}

	byChat, err := r.GetProfileByChatID(ctx, 77)
	require.NoError(t, err)
	require.Equal(t, "p1", byChat.ID)

	_, err = r.GetProfile(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	dup := want
	dup.ID, dup.LinkCode = "p2", "OTHER"
	err = r.CreateProfile(ctx, dup)
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestReleaseTelegramChat(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	createProfile(t, r, "p1", "ana@example.com", 77)
	createProfile(t, r, "p2", "bo@example.com", 0)

	// A chat cannot sit on two profiles.
	bo, err := r.GetProfile(ctx, "p2")
	require.NoError(t, err)
	bo.TelegramChatID = 77
	require.Error(t, r.UpdateProfile(ctx, *bo))

	n, err := r.ReleaseTelegramChat(ctx, 77, "p2", now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.NoError(t, r.UpdateProfile(ctx, *bo))

	n, err = r.ReleaseTelegramChat(ctx, 77, "p2", now)
	require.NoError(t, err)
	require.Zero(t, n)

	byChat, err := r.GetProfileByChatID(ctx, 77)
	require.NoError(t, err)
	require.Equal(t, "p2", byChat.ID)
}

func TestNewLogsThroughLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	db, err := New(filepath.Join(t.TempDir(), "log.db"), zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.Equal(t, 1, logs.FilterMessage("schema ready").Len())
	require.Equal(t, 1, logs.FilterMessage("database initialized").Len())
}

func TestWithTxRollsBack(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	createProfile(t, r, "p1", "ana@example.com", 0)

	boom := errors.New("boom")
	err := r.WithTx(ctx, func(tx *Repository) error {
		require.NoError(t, tx.SetSubscriptionStatus(ctx, "p1", StatusCoaching, now))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := r.GetProfile(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, StatusNone, p.SubscriptionStatus)
}

func TestRecordBillingEventDedups(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	fresh, err := r.RecordBillingEvent(ctx, "evt_1", "invoice.payment_failed", now)
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = r.RecordBillingEvent(ctx, "evt_1", "invoice.payment_failed", now)
	require.NoError(t, err)
	require.False(t, fresh)

	require.NoError(t, r.ForgetBillingEvent(ctx, "evt_1"))
	fresh, err = r.RecordBillingEvent(ctx, "evt_1", "invoice.payment_failed", now)
	require.NoError(t, err)
	require.True(t, fresh)
}

func TestTasksForReminder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	createProfile(t, r, "linked", "ana@example.com", 77)
	createProfile(t, r, "unlinked", "bo@example.com", 0)

	add := func(id, profileID, hhmm string, completed bool) {
		require.NoError(t, r.AddTask(ctx, Task{
			ID: id, ProfileID: profileID, Title: id, Date: "2026-10-18",
			TimeUTC: hhmm, Completed: completed, CreatedAt: now,
		}))
	}
	add("due", "linked", "09:30", false)
	add("later", "linked", "11:00", false)
	add("done", "linked", "08:00", true)
	add("no-chat", "unlinked", "09:00", false)

	reminders, err := r.GetTasksForReminder(ctx, "2026-10-18", "10:00")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	require.Equal(t, "due", reminders[0].TaskID)
	require.Equal(t, int64(77), reminders[0].ChatID)

	require.NoError(t, r.MarkTaskReminded(ctx, "due", now))
	reminders, err = r.GetTasksForReminder(ctx, "2026-10-18", "10:00")
	require.NoError(t, err)
	require.Empty(t, reminders)
}

func TestConsumePasswordResetOnce(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	createProfile(t, r, "p1", "ana@example.com", 0)

	require.NoError(t, r.CreatePasswordReset(ctx, PasswordReset{Token: "tok", ProfileID: "p1", ExpiresAt: now.Add(time.Hour)}))

	profileID, err := r.ConsumePasswordReset(ctx, "tok", now)
	require.NoError(t, err)
	require.Equal(t, "p1", profileID)

	_, err = r.ConsumePasswordReset(ctx, "tok", now)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
