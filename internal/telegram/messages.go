package telegram

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"coachboard/internal/database"
	"coachboard/internal/utils"
)

const (
	completePrefix = "complete_"
	snoozePrefix   = "snooze_"
)

// reply sends an HTML message and logs delivery failures.
func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		b.logger.Error("send telegram message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

func taskKeyboard(taskID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", completePrefix+taskID),
			tgbotapi.NewInlineKeyboardButtonData("⏰ +1h", snoozePrefix+taskID),
		),
	)
}

func reminderText(reminder database.TaskReminder) string {
	var message strings.Builder
	message.WriteString("⏰ <b>Reminder</b>\n\n")
	fmt.Fprintf(&message, "<b>%s</b>\n", escape(reminder.Title))
	if reminder.GoalTitle != "" {
		fmt.Fprintf(&message, "🎯 %s\n", escape(reminder.GoalTitle))
	}
	fmt.Fprintf(&message, "🕒 %s %s\n", reminder.Date, utils.FormatTimeForDisplay(reminder.TimeUTC))
	if reminder.Notes != "" {
		fmt.Fprintf(&message, "\n📝 %s\n", escape(reminder.Notes))
	}
	return message.String()
}

// escape makes user text safe for HTML parse mode.
func escape(s string) string {
	return html.EscapeString(s)
}
