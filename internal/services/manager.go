package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coachboard/internal/apperrors"
	"coachboard/internal/billing"
	"coachboard/internal/coach"
	"coachboard/internal/config"
	"coachboard/internal/database"
	"coachboard/internal/email"
	"coachboard/internal/voice"
)

// Dependencies are the external collaborators of the services. Gateway and
// Voice may be nil when the feature is not configured.
type Dependencies struct {
	Config  *config.Config
	Mailer  email.Mailer
	Gateway billing.Gateway
	Coach   coach.Client
	Voice   voice.Synthesizer
	Logger  *zap.Logger
	Now     func() time.Time
}

type ServiceManager struct {
	Auth         *AuthService
	Goals        *GoalService
	Sessions     *SessionService
	Tasks        *TaskService
	Dashboard    *DashboardService
	Billing      *BillingService
	Coach        *CoachService
	Voice        *VoiceService
	Notification *NotificationService
	repository   *database.Repository
}

func NewServiceManager(db *database.Database, deps Dependencies) *ServiceManager {
	repo := database.NewRepository(db)

	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}

	goals := NewGoalService(repo, now)
	dashboard := NewDashboardService(repo, now)

	return &ServiceManager{
		Auth:         NewAuthService(repo, deps.Mailer, cfg, now, logger.Named("auth")),
		Goals:        goals,
		Sessions:     NewSessionService(repo, now),
		Tasks:        NewTaskService(repo, now),
		Dashboard:    dashboard,
		Billing:      NewBillingService(repo, deps.Gateway, deps.Mailer, cfg, now, logger.Named("billing")),
		Coach:        NewCoachService(repo, deps.Coach, goals, now, logger.Named("coach")),
		Voice:        NewVoiceService(repo, deps.Voice),
		Notification: NewNotificationService(nil, repo, deps.Mailer, dashboard, cfg.Server.BaseURL, now, logger.Named("notifications")),
		repository:   repo,
	}
}

// SetNotificationSender attaches the chat transport used for reminders.
func (sm *ServiceManager) SetNotificationSender(sender NotificationSender) {
	sm.Notification.sender = sender
}

func (sm *ServiceManager) Repository() *database.Repository {
	return sm.repository
}

// requirePaid fails with ErrPaymentRequired unless the profile has a plan.
func requirePaid(ctx context.Context, repo *database.Repository, profileID string) (*database.Profile, error) {
	profile, err := repo.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !profile.SubscriptionStatus.Paid() {
		return nil, apperrors.ErrPaymentRequired
	}
	return profile, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), apperrors.ErrInvalidInput)
}

func sendEmail(ctx context.Context, mailer email.Mailer, logger *zap.Logger, name email.Template, to string, data any) {
	if mailer == nil || to == "" {
		return
	}
	msg, err := email.Render(name, to, data)
	if err != nil {
		logger.Error("render email", zap.String("template", string(name)), zap.Error(err))
		return
	}
	if err := mailer.Send(ctx, msg); err != nil {
		logger.Warn("send email", zap.String("template", string(name)), zap.String("to", to), zap.Error(err))
	}
}

func displayName(p *database.Profile) string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}
