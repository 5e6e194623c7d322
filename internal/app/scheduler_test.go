package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"coachboard/internal/config"
)

type countingNotifier struct {
	mu        sync.Mutex
	reminders int
	summaries int
	reports   int
}

func (n *countingNotifier) CheckAndSendReminders(context.Context) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders++
	return 2
}

func (n *countingNotifier) SendDailySummaries(context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries++
}

func (n *countingNotifier) SendWeeklyReports(context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports++
}

type stubCleaner struct {
	calls int
	err   error
}

func (c *stubCleaner) CleanupExpiredSessions(context.Context) (int64, error) {
	c.calls++
	return 3, c.err
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	schedule := config.Default().Schedule
	schedule.DailySummary = "every evening"

	_, err := NewScheduler(schedule, &countingNotifier{}, &stubCleaner{}, zaptest.NewLogger(t))
	require.ErrorContains(t, err, "daily_summary")
}

func TestSchedulerRegistersEnabledJobs(t *testing.T) {
	schedule := config.Default().Schedule
	schedule.WeeklyReport = ""

	s, err := NewScheduler(schedule, &countingNotifier{}, &stubCleaner{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 3)
}

func TestSchedulerJobs(t *testing.T) {
	n := &countingNotifier{}
	cleaner := &stubCleaner{}
	s, err := NewScheduler(config.Default().Schedule, n, cleaner, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	s.runReminders(ctx)
	s.runCleanup(ctx)
	cleaner.err = errors.New("database locked")
	s.runCleanup(ctx)

	assert.Equal(t, 1, n.reminders)
	assert.Equal(t, 2, cleaner.calls)
}

func TestSchedulerStartStopDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := NewScheduler(config.Default().Schedule, &countingNotifier{}, &stubCleaner{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Stop()
}
