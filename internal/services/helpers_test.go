package services

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"coachboard/internal/billing"
	"coachboard/internal/coach"
	"coachboard/internal/config"
	"coachboard/internal/database"
	"coachboard/internal/email"
	"coachboard/internal/voice"
)

const testWebhookSecret = "whsec_test"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) to(addr string) []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []email.Message
	for _, msg := range m.sent {
		if msg.To == addr {
			out = append(out, msg)
		}
	}
	return out
}

type fakeGateway struct {
	checkout     billing.CheckoutRequest
	portalCustID string
}

func (g *fakeGateway) CheckoutURL(_ context.Context, req billing.CheckoutRequest) (string, error) {
	g.checkout = req
	return "https://checkout.example.com/" + req.PriceID, nil
}

func (g *fakeGateway) PortalURL(_ context.Context, customerID, _ string) (string, error) {
	g.portalCustID = customerID
	return "https://portal.example.com/" + customerID, nil
}

type chatMessage struct {
	ChatID int64
	Text   string
}

type fakeSender struct {
	mu        sync.Mutex
	messages  []chatMessage
	reminders []database.TaskReminder
	fail      bool
}

func (s *fakeSender) SendMessage(chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("chat unavailable")
	}
	s.messages = append(s.messages, chatMessage{ChatID: chatID, Text: text})
	return nil
}

func (s *fakeSender) SendTaskReminder(r database.TaskReminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("chat unavailable")
	}
	s.reminders = append(s.reminders, r)
	return nil
}

type fakeSynth struct{}

func (fakeSynth) Synthesize(_ context.Context, text string) (voice.Audio, error) {
	return voice.Audio{ContentType: "audio/mpeg", Data: []byte(text)}, nil
}

type testEnv struct {
	sm      *ServiceManager
	repo    *database.Repository
	clock   *fakeClock
	mailer  *fakeMailer
	gateway *fakeGateway
	sender  *fakeSender
}

// Sunday of ISO week 42.
var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)
	db, err := database.New(filepath.Join(t.TempDir(), "coach.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Server.BaseURL = "https://app.example.com"
	cfg.Billing.WebhookSecret = testWebhookSecret
	cfg.Billing.BasePriceID = "price_base"
	cfg.Billing.HumanCoachPriceID = "price_human"

	env := &testEnv{
		clock:   &fakeClock{t: testNow},
		mailer:  &fakeMailer{},
		gateway: &fakeGateway{},
		sender:  &fakeSender{},
	}
	env.sm = NewServiceManager(db, Dependencies{
		Config:  cfg,
		Mailer:  env.mailer,
		Gateway: env.gateway,
		Coach:   coach.NewMockClient(),
		Voice:   fakeSynth{},
		Logger:  logger,
		Now:     env.clock.Now,
	})
	env.sm.Auth.hashCost = bcrypt.MinCost
	env.sm.SetNotificationSender(env.sender)
	env.repo = env.sm.Repository()
	return env
}

func (e *testEnv) signUp(t *testing.T, addr string) *database.Profile {
	t.Helper()
	p, err := e.sm.Auth.SignUp(context.Background(), addr, "correct horse", "Ana")
	require.NoError(t, err)
	return p
}

func (e *testEnv) makePaid(t *testing.T, profileID string) {
	t.Helper()
	require.NoError(t, e.repo.SetSubscriptionStatus(context.Background(), profileID, database.StatusCoaching, e.clock.Now()))
}

func (e *testEnv) goalWithSteps(t *testing.T, profileID string, steps ...string) *database.Goal {
	t.Helper()
	in := GoalInput{Title: "Run a marathon"}
	for _, s := range steps {
		in.Steps = append(in.Steps, StepInput{Title: s})
	}
	g, err := e.sm.Goals.CreateGoal(context.Background(), profileID, in)
	require.NoError(t, err)
	return g
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f-]{36})`)
