package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"coachboard/internal/config"
)

const jobTimeout = 5 * time.Minute

type notifier interface {
	CheckAndSendReminders(ctx context.Context) int
	SendDailySummaries(ctx context.Context)
	SendWeeklyReports(ctx context.Context)
}

type sessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic reminder, digest and cleanup jobs in UTC.
type Scheduler struct {
	cron     *cron.Cron
	notifier notifier
	cleaner  sessionCleaner
	logger   *zap.Logger
	ctx      context.Context
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

func NewScheduler(schedule config.ScheduleConfig, n notifier, cleaner sessionCleaner, logger *zap.Logger) (*Scheduler, error) {
	clog := cronLogger{sugar: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		notifier: n,
		cleaner:  cleaner,
		logger:   logger,
		ctx:      context.Background(),
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context)
	}{
		{"reminders", schedule.Reminders, s.runReminders},
		{"daily_summary", schedule.DailySummary, s.notifier.SendDailySummaries},
		{"weekly_report", schedule.WeeklyReport, s.notifier.SendWeeklyReports},
		{"session_cleanup", schedule.Cleanup, s.runCleanup},
	}
	for _, job := range jobs {
		if err := s.add(job.name, job.spec, job.run); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, run func(ctx context.Context)) error {
	if spec == "" {
		s.logger.Info("job disabled", zap.String("job", name))
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
		defer cancel()
		start := time.Now()
		run(ctx)
		s.logger.Debug("job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) runReminders(ctx context.Context) {
	if sent := s.notifier.CheckAndSendReminders(ctx); sent > 0 {
		s.logger.Info("reminders sent", zap.Int("count", sent))
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	removed, err := s.cleaner.CleanupExpiredSessions(ctx)
	if err != nil {
		s.logger.Error("cleanup sessions", zap.Error(err))
		return
	}
	s.logger.Info("expired sessions removed", zap.Int64("count", removed))
}

// Start runs the jobs with ctx as their parent context. It must be called
// at most once.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
