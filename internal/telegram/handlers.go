package telegram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"coachboard/internal/apperrors"
	"coachboard/internal/database"
	"coachboard/internal/services"
	"coachboard/internal/utils"
)

const helpMessage = `🎯 <b>Coachboard</b>

Commands:
/today - Tasks for today
/summary - Today's summary
/week - This week's report
/add [task] [HH:MM] - Add a task for today
/help - Help

Example:
/add Evening run at 18:30

Times are in UTC.`

const notLinkedMessage = `🔗 This chat is not linked to an account yet.

Open your dashboard, copy the link code from your profile and send:
/start YOURCODE`

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	if args == "" {
		if _, err := b.services.Auth.ProfileByChat(ctx, chatID); err == nil {
			b.reply(chatID, helpMessage)
			return
		}
		b.reply(chatID, notLinkedMessage)
		return
	}

	profile, err := b.services.Auth.LinkTelegram(ctx, args, chatID)
	if errors.Is(err, apperrors.ErrNotFound) {
		b.reply(chatID, "❌ Link code not recognized. Check it on your profile page.")
		return
	}
	if err != nil {
		b.logger.Error("link telegram", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(chatID, "❌ Could not link this chat, try again later")
		return
	}

	b.reply(chatID, fmt.Sprintf("✅ Linked to %s\n\n%s", escape(profile.Email), helpMessage))
}

func (b *Bot) handleHelp(_ context.Context, msg *tgbotapi.Message, _ *database.Profile, _ string) {
	b.reply(msg.Chat.ID, helpMessage)
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message, profile *database.Profile, _ string) {
	chatID := msg.Chat.ID
	tasks, err := b.services.Tasks.ListTasks(ctx, profile.ID, "")
	if err != nil {
		b.logger.Error("list tasks", zap.String("profile_id", profile.ID), zap.Error(err))
		b.reply(chatID, "❌ Could not load tasks")
		return
	}

	if len(tasks) == 0 {
		b.reply(chatID, "📭 No tasks for today")
		return
	}

	b.reply(chatID, todayText(tasks, b.now()))
	for _, task := range tasks {
		if task.Completed {
			continue
		}
		if err := b.sendWithKeyboard(chatID, fmt.Sprintf("⬜ %s", escape(task.Title)), taskKeyboard(task.ID)); err != nil {
			b.logger.Warn("send task keyboard", zap.String("task_id", task.ID), zap.Error(err))
		}
	}
}

func (b *Bot) handleSummary(ctx context.Context, msg *tgbotapi.Message, profile *database.Profile, _ string) {
	text, err := b.services.Notification.DailySummaryMessage(ctx, profile.ID)
	if err != nil {
		b.logger.Error("daily summary", zap.String("profile_id", profile.ID), zap.Error(err))
		b.reply(msg.Chat.ID, "❌ Could not build the summary")
		return
	}
	b.reply(msg.Chat.ID, text)
}

func (b *Bot) handleWeek(ctx context.Context, msg *tgbotapi.Message, profile *database.Profile, _ string) {
	text, err := b.services.Notification.WeeklyReportMessage(ctx, profile.ID)
	if err != nil {
		b.logger.Error("weekly report", zap.String("profile_id", profile.ID), zap.Error(err))
		b.reply(msg.Chat.ID, "❌ Could not build the weekly report")
		return
	}
	b.reply(msg.Chat.ID, text)
}

var addTimePattern = regexp.MustCompile(`^(.*?)\s+(?:at\s+)?(\d{1,2}):(\d{2})$`)

// parseAddArgs splits "/add" arguments into a title and an optional
// trailing HH:MM time.
func parseAddArgs(args string) (string, string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return "", "", errors.New("missing task title")
	}

	matches := addTimePattern.FindStringSubmatch(args)
	if matches == nil {
		return args, "", nil
	}

	title := strings.TrimSpace(matches[1])
	if title == "" {
		return "", "", errors.New("missing task title")
	}
	hour := matches[2]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	hhmm := hour + ":" + matches[3]
	if !utils.ValidTime(hhmm) {
		return "", "", fmt.Errorf("invalid time %s:%s", matches[2], matches[3])
	}
	return title, hhmm, nil
}

func (b *Bot) handleAddTask(ctx context.Context, msg *tgbotapi.Message, profile *database.Profile, args string) {
	chatID := msg.Chat.ID
	title, hhmm, err := parseAddArgs(args)
	if err != nil {
		b.reply(chatID, "❌ Usage: /add [task] [HH:MM]\nExample: /add Evening run at 18:30")
		return
	}

	task, err := b.services.Tasks.AddTask(ctx, profile.ID, services.TaskInput{Title: title, TimeUTC: hhmm})
	if err != nil {
		b.logger.Warn("add task", zap.String("profile_id", profile.ID), zap.Error(err))
		b.reply(chatID, "❌ Could not add the task")
		return
	}

	b.reply(chatID, fmt.Sprintf("✅ Added: <b>%s</b>\n⏰ %s %s", escape(task.Title), task.Date, utils.FormatTimeForDisplay(task.TimeUTC)))
}

func todayText(tasks []database.Task, now time.Time) string {
	var message strings.Builder
	fmt.Fprintf(&message, "📅 <b>Tasks for %s</b>\n\n", utils.DateKey(now))

	current := now.UTC().Format(utils.TimeLayout)
	done := 0
	for _, task := range tasks {
		if task.Completed {
			done++
		}
		overdue := !task.Completed && task.TimeUTC < current
		fmt.Fprintf(&message, "%s <b>%s</b> (%s)\n", utils.GetTaskStatusEmoji(task, overdue), escape(task.Title), utils.FormatTimeForDisplay(task.TimeUTC))
	}
	fmt.Fprintf(&message, "\nDone: %d/%d", done, len(tasks))
	return message.String()
}
