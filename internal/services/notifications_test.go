package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckAndSendReminders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.signUp(t, "ana@example.com")
	bo := env.signUp(t, "bo@example.com")
	_, err := env.sm.Auth.LinkTelegram(ctx, ana.LinkCode, 100)
	require.NoError(t, err)

	due, err := env.sm.Tasks.AddTask(ctx, ana.ID, TaskInput{Title: "due", TimeUTC: "09:30"})
	require.NoError(t, err)
	_, err = env.sm.Tasks.AddTask(ctx, ana.ID, TaskInput{Title: "later", TimeUTC: "11:00"})
	require.NoError(t, err)
	done, err := env.sm.Tasks.AddTask(ctx, ana.ID, TaskInput{Title: "done", TimeUTC: "08:00"})
	require.NoError(t, err)
	_, err = env.sm.Tasks.SetTaskCompletion(ctx, ana.ID, done.ID, true)
	require.NoError(t, err)
	_, err = env.sm.Tasks.AddTask(ctx, bo.ID, TaskInput{Title: "unlinked", TimeUTC: "08:00"})
	require.NoError(t, err)

	require.Equal(t, 1, env.sm.Notification.CheckAndSendReminders(ctx))
	require.Len(t, env.sender.reminders, 1)
	require.Equal(t, due.ID, env.sender.reminders[0].TaskID)
	require.Equal(t, int64(100), env.sender.reminders[0].ChatID)

	require.Zero(t, env.sm.Notification.CheckAndSendReminders(ctx), "reminded tasks are not sent twice")

	env.clock.Advance(90 * time.Minute)
	require.Equal(t, 1, env.sm.Notification.CheckAndSendReminders(ctx))
	require.Equal(t, "later", env.sender.reminders[1].Title)
}

func TestRemindersRetryAfterSendFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.signUp(t, "ana@example.com")
	_, err := env.sm.Auth.LinkTelegram(ctx, ana.LinkCode, 100)
	require.NoError(t, err)
	_, err = env.sm.Tasks.AddTask(ctx, ana.ID, TaskInput{Title: "due", TimeUTC: "09:00"})
	require.NoError(t, err)

	env.sender.fail = true
	require.Zero(t, env.sm.Notification.CheckAndSendReminders(ctx))
	env.sender.fail = false
	require.Equal(t, 1, env.sm.Notification.CheckAndSendReminders(ctx))
}

func TestSendDailySummaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.signUp(t, "ana@example.com")
	env.signUp(t, "idle@example.com")
	_, err := env.sm.Auth.LinkTelegram(ctx, ana.LinkCode, 100)
	require.NoError(t, err)

	task, err := env.sm.Tasks.AddTask(ctx, ana.ID, TaskInput{Title: "read"})
	require.NoError(t, err)
	_, err = env.sm.Tasks.AddTask(ctx, ana.ID, TaskInput{Title: "write"})
	require.NoError(t, err)
	_, err = env.sm.Tasks.SetTaskCompletion(ctx, ana.ID, task.ID, true)
	require.NoError(t, err)

	env.sm.Notification.SendDailySummaries(ctx)

	mails := env.mailer.to("ana@example.com")
	require.Equal(t, "Your day: 1/2 tasks done", mails[len(mails)-1].Subject)
	require.Contains(t, mails[len(mails)-1].HTML, "write")
	require.Len(t, env.mailer.to("idle@example.com"), 1, "only the welcome email")

	require.Len(t, env.sender.messages, 1)
	require.Equal(t, int64(100), env.sender.messages[0].ChatID)
	require.Contains(t, env.sender.messages[0].Text, "1/2 (50%)")
	require.Contains(t, env.sender.messages[0].Text, "write")
}

func TestSendWeeklyReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.signUp(t, "ana@example.com")
	env.signUp(t, "idle@example.com")

	_, err := env.sm.Tasks.AddTask(ctx, ana.ID, TaskInput{Title: "read", Date: "2026-10-14"})
	require.NoError(t, err)

	env.sm.Notification.SendWeeklyReports(ctx)

	mails := env.mailer.to("ana@example.com")
	require.Equal(t, "Week 42: 0% of tasks done", mails[len(mails)-1].Subject)
	require.Len(t, env.mailer.to("idle@example.com"), 1)
}
