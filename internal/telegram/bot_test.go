package telegram

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"coachboard/internal/coach"
	"coachboard/internal/database"
	"coachboard/internal/services"
)

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	answered []string
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answered = append(f.answered, cb.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type testBot struct {
	bot *Bot
	api *fakeAPI
	sm  *services.ServiceManager
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	logger := zaptest.NewLogger(t)
	db, err := database.New(filepath.Join(t.TempDir(), "bot.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sm := services.NewServiceManager(db, services.Dependencies{
		Coach:  coach.NewMockClient(),
		Logger: logger,
		Now:    func() time.Time { return testNow },
	})
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
	bot := newBot(api, sm, logger)
	bot.now = func() time.Time { return testNow }
	return &testBot{bot: bot, api: api, sm: sm}
}

func (tb *testBot) linkedProfile(t *testing.T, chatID int64) *database.Profile {
	t.Helper()
	ctx := context.Background()
	p, err := tb.sm.Auth.SignUp(ctx, "ana@example.com", "correct horse", "Ana")
	require.NoError(t, err)
	tb.send(chatID, "/start "+p.LinkCode)
	linked, err := tb.sm.Auth.ProfileByChat(ctx, chatID)
	require.NoError(t, err)
	require.Equal(t, p.ID, linked.ID)
	return linked
}

func (tb *testBot) send(chatID int64, text string) {
	tb.bot.handleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}},
	})
}

func TestParseAddArgs(t *testing.T) {
	tests := []struct {
		args    string
		title   string
		hhmm    string
		wantErr bool
	}{
		{args: "Evening run at 18:30", title: "Evening run", hhmm: "18:30"},
		{args: "Stretch 7:05", title: "Stretch", hhmm: "07:05"},
		{args: "Read a chapter", title: "Read a chapter"},
		{args: "Bad time 25:00", wantErr: true},
		{args: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			title, hhmm, err := parseAddArgs(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.title, title)
			assert.Equal(t, tt.hhmm, hhmm)
		})
	}
}

func TestSplitCommand(t *testing.T) {
	cmd, args := splitCommand("/Add@coach_bot  Walk the dog 08:00 ")
	assert.Equal(t, "/add", cmd)
	assert.Equal(t, "Walk the dog 08:00", args)
}

func TestTaskKeyboard(t *testing.T) {
	kb := taskKeyboard("abc")
	require.Len(t, kb.InlineKeyboard, 1)
	row := kb.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, "complete_abc", *row[0].CallbackData)
	assert.Equal(t, "snooze_abc", *row[1].CallbackData)
}

func TestUnlinkedChatIsAskedToLink(t *testing.T) {
	tb := newTestBot(t)

	tb.send(42, "/today")

	msg := tb.api.last(t)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, notLinkedMessage, msg.Text)
}

func TestStartWithUnknownCode(t *testing.T) {
	tb := newTestBot(t)

	tb.send(42, "/start NOPE")

	assert.Contains(t, tb.api.last(t).Text, "not recognized")
}

func TestAddAndListToday(t *testing.T) {
	tb := newTestBot(t)
	profile := tb.linkedProfile(t, 7)

	tb.send(7, "/add Evening <run> at 18:30")
	assert.Contains(t, tb.api.last(t).Text, "Evening &lt;run&gt;")

	tasks, err := tb.sm.Tasks.ListTasks(context.Background(), profile.ID, "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "18:30", tasks[0].TimeUTC)
	assert.Equal(t, "2026-10-18", tasks[0].Date)

	tb.send(7, "/today")
	last := tb.api.last(t)
	assert.Equal(t, taskKeyboard(tasks[0].ID), last.ReplyMarkup)
}

func TestCallbacksCompleteAndSnooze(t *testing.T) {
	tb := newTestBot(t)
	profile := tb.linkedProfile(t, 7)
	ctx := context.Background()

	task, err := tb.sm.Tasks.AddTask(ctx, profile.ID, services.TaskInput{Title: "Plan week", TimeUTC: "23:30"})
	require.NoError(t, err)

	callback := func(id, data string) {
		tb.bot.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      id,
			Data:    data,
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}},
		}})
	}

	callback("cb1", snoozePrefix+task.ID)
	snoozed, err := tb.sm.Tasks.GetTask(ctx, profile.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", snoozed.Date)
	assert.Equal(t, "00:30", snoozed.TimeUTC)

	callback("cb2", completePrefix+task.ID)
	done, err := tb.sm.Tasks.GetTask(ctx, profile.ID, task.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Contains(t, tb.api.last(t).Text, "Done: Plan week")

	assert.Equal(t, []string{"cb1", "cb2"}, tb.api.answered)
}

func TestCallbackFromOtherChatCannotTouchTask(t *testing.T) {
	tb := newTestBot(t)
	profile := tb.linkedProfile(t, 7)
	ctx := context.Background()

	task, err := tb.sm.Tasks.AddTask(ctx, profile.ID, services.TaskInput{Title: "Private"})
	require.NoError(t, err)

	tb.bot.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    completePrefix + task.ID,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 99}},
	}})

	got, err := tb.sm.Tasks.GetTask(ctx, profile.ID, task.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Equal(t, notLinkedMessage, tb.api.last(t).Text)
}

func TestSendTaskReminder(t *testing.T) {
	tb := newTestBot(t)

	require.NoError(t, tb.bot.SendTaskReminder(database.TaskReminder{
		TaskID:    "t1",
		ChatID:    5,
		Title:     "Stretch",
		TimeUTC:   "09:00",
		Date:      "2026-10-18",
		GoalTitle: "Stay healthy",
	}))

	msg := tb.api.last(t)
	assert.Equal(t, int64(5), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "Stretch")
	assert.Contains(t, msg.Text, "Stay healthy")
	assert.Equal(t, taskKeyboard("t1"), msg.ReplyMarkup)
}

func TestStartStopsOnCancel(t *testing.T) {
	tb := newTestBot(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tb.bot.Start(ctx)
		close(done)
	}()

	tb.api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 1}}}
	cancel()
	<-done

	tb.api.mu.Lock()
	defer tb.api.mu.Unlock()
	assert.True(t, tb.api.stopped)
}
