package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"coachboard/internal/apperrors"
	"coachboard/internal/database"
	"coachboard/internal/services"
	"coachboard/internal/utils"
)

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type commandHandler func(ctx context.Context, msg *tgbotapi.Message, profile *database.Profile, args string)

type Bot struct {
	api      botAPI
	username string
	services *services.ServiceManager
	handlers map[string]commandHandler
	logger   *zap.Logger
	now      func() time.Time
}

func NewBot(token string, serviceManager *services.ServiceManager, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	bot := newBot(api, serviceManager, logger)
	bot.username = api.Self.UserName
	logger.Info("telegram bot initialized", zap.String("username", bot.username))
	return bot, nil
}

func newBot(api botAPI, serviceManager *services.ServiceManager, logger *zap.Logger) *Bot {
	bot := &Bot{
		api:      api,
		services: serviceManager,
		handlers: make(map[string]commandHandler),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	bot.registerHandlers()
	return bot
}

func (b *Bot) registerHandlers() {
	b.handlers["/today"] = b.handleToday
	b.handlers["/summary"] = b.handleSummary
	b.handlers["/week"] = b.handleWeek
	b.handlers["/add"] = b.handleAddTask
	b.handlers["/help"] = b.handleHelp
}

func (b *Bot) GetUsername() string {
	return b.username
}

// SendMessage sends an HTML message to a chat.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

// SendTaskReminder sends a due task with complete and snooze buttons.
func (b *Bot) SendTaskReminder(reminder database.TaskReminder) error {
	return b.sendWithKeyboard(reminder.ChatID, reminderText(reminder), taskKeyboard(reminder.TaskID))
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.Chat == nil {
		return
	}

	b.handleMessage(ctx, update.Message)
}

func splitCommand(text string) (string, string) {
	command, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	// Commands in groups arrive as /cmd@botname.
	command, _, _ = strings.Cut(command, "@")
	return strings.ToLower(command), strings.TrimSpace(args)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !strings.HasPrefix(msg.Text, "/") {
		return
	}
	command, args := splitCommand(msg.Text)
	chatID := msg.Chat.ID

	if command == "/start" {
		b.handleStart(ctx, msg, args)
		return
	}

	profile, ok := b.profileForChat(ctx, chatID)
	if !ok {
		return
	}

	handler, exists := b.handlers[command]
	if !exists {
		b.reply(chatID, "❌ Unknown command. Use /help")
		return
	}
	handler(ctx, msg, profile, args)
}

// profileForChat resolves the linked profile, telling the chat how to link
// when there is none.
func (b *Bot) profileForChat(ctx context.Context, chatID int64) (*database.Profile, bool) {
	profile, err := b.services.Auth.ProfileByChat(ctx, chatID)
	if errors.Is(err, apperrors.ErrNotFound) {
		b.reply(chatID, notLinkedMessage)
		return nil, false
	}
	if err != nil {
		b.logger.Error("lookup chat profile", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(chatID, "❌ Something went wrong, try again later")
		return nil, false
	}
	return profile, true
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "✅")); err != nil {
			b.logger.Warn("answer callback", zap.Error(err))
		}
	}()

	if callback.Message == nil || callback.Message.Chat == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	profile, ok := b.profileForChat(ctx, chatID)
	if !ok {
		return
	}

	data := callback.Data
	b.logger.Debug("callback received", zap.String("data", data))

	switch {
	case strings.HasPrefix(data, completePrefix):
		b.handleCompleteTask(ctx, chatID, profile, strings.TrimPrefix(data, completePrefix))
	case strings.HasPrefix(data, snoozePrefix):
		b.handleSnoozeTask(ctx, chatID, profile, strings.TrimPrefix(data, snoozePrefix))
	}
}

func (b *Bot) handleCompleteTask(ctx context.Context, chatID int64, profile *database.Profile, taskID string) {
	task, err := b.services.Tasks.SetTaskCompletion(ctx, profile.ID, taskID, true)
	if err != nil {
		b.logger.Warn("complete task", zap.String("task_id", taskID), zap.Error(err))
		b.reply(chatID, "❌ Could not update the task")
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ Done: %s", task.Title))
}

func (b *Bot) handleSnoozeTask(ctx context.Context, chatID int64, profile *database.Profile, taskID string) {
	task, err := b.services.Tasks.SnoozeTask(ctx, profile.ID, taskID, services.DefaultSnoozeMinutes)
	if err != nil {
		b.logger.Warn("snooze task", zap.String("task_id", taskID), zap.Error(err))
		b.reply(chatID, "❌ Could not snooze the task")
		return
	}
	b.reply(chatID, fmt.Sprintf("⏰ Snoozed until %s %s", task.Date, utils.FormatTimeForDisplay(task.TimeUTC)))
}
