package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coachboard/internal/billing"
	"coachboard/internal/coach"
	"coachboard/internal/config"
	"coachboard/internal/database"
	"coachboard/internal/email"
	"coachboard/internal/httpapi"
	"coachboard/internal/services"
	"coachboard/internal/telegram"
	"coachboard/internal/voice"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	config    *config.Config
	logger    *zap.Logger
	db        *database.Database
	bot       *telegram.Bot
	services  *services.ServiceManager
	scheduler *Scheduler
	server    *http.Server
}

// New wires every component from cfg. Optional integrations are skipped
// when their keys are missing.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	db, err := database.New(cfg.Database.Path, logger.Named("database"))
	if err != nil {
		return nil, err
	}

	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	serviceManager := services.NewServiceManager(db, deps)

	a := &Application{
		config:   cfg,
		logger:   logger,
		db:       db,
		services: serviceManager,
	}

	if cfg.TelegramEnabled() {
		bot, err := telegram.NewBot(cfg.Telegram.Token, serviceManager, logger.Named("telegram"))
		if err != nil {
			db.Close()
			return nil, err
		}
		serviceManager.SetNotificationSender(bot)
		a.bot = bot
	} else {
		logger.Info("telegram disabled, reminders go out by email digest only")
	}

	a.scheduler, err = NewScheduler(cfg.Schedule, serviceManager.Notification, serviceManager.Auth, logger.Named("scheduler"))
	if err != nil {
		db.Close()
		return nil, err
	}

	a.server = &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           httpapi.NewServer(serviceManager, logger.Named("http"), cfg.Server.BaseURL),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func buildDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.Dependencies, error) {
	deps := services.Dependencies{Config: cfg, Logger: logger}

	if cfg.Email.APIKey != "" {
		mailer, err := email.NewResendMailer(cfg.Email.APIKey, cfg.Email.From)
		if err != nil {
			return deps, err
		}
		deps.Mailer = mailer
	} else {
		deps.Mailer = email.NewLogMailer(logger.Named("email"))
	}

	if cfg.BillingEnabled() {
		deps.Gateway = billing.NewStripeGateway(cfg.Billing.SecretKey)
	}

	if cfg.Coach.UseMock {
		deps.Coach = coach.NewMockClient()
	} else {
		client, err := coach.NewGeminiClient(ctx, cfg.Coach.APIKey, cfg.Coach.Model)
		if err != nil {
			return deps, err
		}
		deps.Coach = client
	}

	if cfg.VoiceEnabled() {
		deps.Voice = voice.NewElevenLabsClient(cfg.Voice.APIKey, cfg.Voice.VoiceID, cfg.Voice.Model)
	}

	return deps, nil
}

// Run serves HTTP, polls Telegram and runs the scheduler until ctx is
// cancelled or one of them fails.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	g.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.bot != nil {
		g.Go(func() error {
			// Catch up on reminders that came due while the process was down.
			a.services.Notification.CheckAndSendReminders(ctx)
			a.bot.Start(ctx)
			return nil
		})
		a.logger.Info("telegram bot started", zap.String("username", a.bot.GetUsername()))
	}

	err := g.Wait()
	a.logger.Info("application stopped")
	return err
}

// Digest sends today's daily summaries once.
func (a *Application) Digest(ctx context.Context) {
	a.services.Notification.SendDailySummaries(ctx)
}

func (a *Application) Close() error {
	return a.db.Close()
}
