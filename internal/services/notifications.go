package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"coachboard/internal/database"
	"coachboard/internal/email"
	"coachboard/internal/utils"
)

// NotificationSender delivers chat messages to linked profiles.
type NotificationSender interface {
	SendMessage(chatID int64, text string) error
	SendTaskReminder(reminder database.TaskReminder) error
}

type NotificationService struct {
	sender     NotificationSender
	repository *database.Repository
	mailer     email.Mailer
	dashboard  *DashboardService
	baseURL    string
	now        func() time.Time
	logger     *zap.Logger
}

func NewNotificationService(sender NotificationSender, repo *database.Repository, mailer email.Mailer, dashboard *DashboardService, baseURL string, now func() time.Time, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		sender:     sender,
		repository: repo,
		mailer:     mailer,
		dashboard:  dashboard,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        now,
		logger:     logger,
	}
}

// CheckAndSendReminders pushes a chat reminder for every due task that has
// not been reminded yet. It returns the number of reminders sent.
func (ns *NotificationService) CheckAndSendReminders(ctx context.Context) int {
	if ns.sender == nil {
		return 0
	}

	now := ns.now()
	currentTime := now.Format(utils.TimeLayout)
	today := utils.DateKey(now)

	reminders, err := ns.repository.GetTasksForReminder(ctx, today, currentTime)
	if err != nil {
		ns.logger.Error("load due tasks", zap.Error(err))
		return 0
	}
	if len(reminders) > 0 {
		ns.logger.Debug("due tasks found", zap.Int("count", len(reminders)), zap.String("time", currentTime))
	}

	sent := 0
	for _, reminder := range reminders {
		if err := ns.sender.SendTaskReminder(reminder); err != nil {
			ns.logger.Warn("send reminder", zap.String("task_id", reminder.TaskID), zap.Error(err))
			continue
		}
		if err := ns.repository.MarkTaskReminded(ctx, reminder.TaskID, now); err != nil {
			ns.logger.Error("mark reminded", zap.String("task_id", reminder.TaskID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// SendDailySummaries emails and, when linked, messages every profile that
// had tasks today.
func (ns *NotificationService) SendDailySummaries(ctx context.Context) {
	today := utils.DateKey(ns.now())

	profiles, err := ns.repository.ListProfiles(ctx)
	if err != nil {
		ns.logger.Error("list profiles", zap.Error(err))
		return
	}

	for i := range profiles {
		profile := &profiles[i]
		summary, err := ns.repository.GetDailySummary(ctx, profile.ID, today)
		if err != nil {
			ns.logger.Error("daily summary", zap.String("profile_id", profile.ID), zap.Error(err))
			continue
		}
		if summary.Total == 0 {
			continue
		}
		tasks, err := ns.repository.ListTasksByDate(ctx, profile.ID, today)
		if err != nil {
			ns.logger.Error("list tasks", zap.String("profile_id", profile.ID), zap.Error(err))
			continue
		}

		var open []string
		for _, t := range tasks {
			if !t.Completed {
				open = append(open, t.Title)
			}
		}

		sendEmail(ctx, ns.mailer, ns.logger, email.TemplateDailySummary, profile.Email, email.DailySummaryData{
			Name:       displayName(profile),
			Date:       today,
			Completed:  summary.Completed,
			Total:      summary.Total,
			Percentage: summary.Percentage,
			Sessions:   summary.Sessions,
			Open:       open,
		})

		if ns.sender != nil && profile.TelegramChatID != 0 {
			if err := ns.sender.SendMessage(profile.TelegramChatID, DailySummaryText(summary, tasks)); err != nil {
				ns.logger.Warn("send daily summary", zap.String("profile_id", profile.ID), zap.Error(err))
			}
		}
	}
}

// SendWeeklyReports emails the current week's report to every profile with
// activity during the week.
func (ns *NotificationService) SendWeeklyReports(ctx context.Context) {
	now := ns.now()

	profiles, err := ns.repository.ListProfiles(ctx)
	if err != nil {
		ns.logger.Error("list profiles", zap.Error(err))
		return
	}

	for i := range profiles {
		profile := &profiles[i]
		report, err := ns.dashboard.WeeklyReport(ctx, profile.ID, now)
		if err != nil {
			ns.logger.Error("weekly report", zap.String("profile_id", profile.ID), zap.Error(err))
			continue
		}
		if report.TotalTasks == 0 && report.Sessions == 0 {
			continue
		}

		sendEmail(ctx, ns.mailer, ns.logger, email.TemplateWeeklyReport, profile.Email, email.WeeklyReportData{
			Name:          displayName(profile),
			Week:          report.WeekNumber,
			StartDate:     report.StartDate,
			EndDate:       report.EndDate,
			Done:          report.TotalDone,
			Total:         report.TotalTasks,
			Sessions:      report.Sessions,
			CompletionPct: report.CompletionPct,
			Insights:      report.Insights,
		})
	}
}

// DailySummaryMessage renders today's summary for the chat.
func (ns *NotificationService) DailySummaryMessage(ctx context.Context, profileID string) (string, error) {
	today := utils.DateKey(ns.now())
	summary, err := ns.repository.GetDailySummary(ctx, profileID, today)
	if err != nil {
		return "", err
	}
	tasks, err := ns.repository.ListTasksByDate(ctx, profileID, today)
	if err != nil {
		return "", err
	}
	return DailySummaryText(summary, tasks), nil
}

// WeeklyReportMessage renders the current week's report for the chat.
func (ns *NotificationService) WeeklyReportMessage(ctx context.Context, profileID string) (string, error) {
	report, err := ns.dashboard.WeeklyReport(ctx, profileID, ns.now())
	if err != nil {
		return "", err
	}
	return WeeklyReportText(report), nil
}

// DailySummaryText renders the chat version of a daily summary.
func DailySummaryText(summary *database.DailySummary, tasks []database.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Summary for %s</b>\n\n", summary.Date)
	fmt.Fprintf(&b, "✅ Done: %d/%d (%.0f%%)\n", summary.Completed, summary.Total, summary.Percentage)
	if summary.Sessions > 0 {
		fmt.Fprintf(&b, "🗣 Sessions: %d %s\n", summary.Sessions, utils.GetMoodEmoji(summary.AvgMood))
	}

	var open []database.Task
	for _, t := range tasks {
		if !t.Completed {
			open = append(open, t)
		}
	}
	if len(open) > 0 {
		b.WriteString("\n<b>Still open:</b>\n")
		for _, t := range open {
			fmt.Fprintf(&b, "⬜ %s (%s)\n", html.EscapeString(t.Title), utils.FormatTimeForDisplay(t.TimeUTC))
		}
	}

	b.WriteString("\nTomorrow is a new day! 🌅")
	return b.String()
}

// WeeklyReportText renders the chat version of a weekly report.
func WeeklyReportText(report *database.WeeklyAnalytics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 <b>Week %d</b> (%s to %s)\n\n", report.WeekNumber, report.StartDate, report.EndDate)
	fmt.Fprintf(&b, "✅ Tasks: %d/%d (%.0f%%)\n", report.TotalDone, report.TotalTasks, report.CompletionPct)
	fmt.Fprintf(&b, "🗣 Sessions: %d\n", report.Sessions)
	if mood, ok := report.AvgFeelings["mood"]; ok {
		fmt.Fprintf(&b, "%s Mood: %.1f/10\n", utils.GetMoodEmoji(mood), mood)
	}
	if motivation, ok := report.AvgFeelings["motivation"]; ok {
		fmt.Fprintf(&b, "🔥 Motivation: %.1f/10\n", motivation)
	}
	if len(report.StressLevels) > 0 {
		fmt.Fprintf(&b, "Stress: %s %d  %s %d  %s %d\n",
			utils.GetLevelEmoji(database.LevelLow), report.StressLevels[database.LevelLow],
			utils.GetLevelEmoji(database.LevelMedium), report.StressLevels[database.LevelMedium],
			utils.GetLevelEmoji(database.LevelHigh), report.StressLevels[database.LevelHigh])
	}
	if len(report.Insights) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(report.Insights, "\n"))
	}
	return b.String()
}
