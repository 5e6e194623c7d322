package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"coachboard/internal/apperrors"
	"coachboard/internal/config"
	"coachboard/internal/database"
	"coachboard/internal/email"
)

const minPasswordLength = 8

type AuthService struct {
	repository *database.Repository
	mailer     email.Mailer
	sessionTTL time.Duration
	resetTTL   time.Duration
	baseURL    string
	hashCost   int
	now        func() time.Time
	logger     *zap.Logger
}

func NewAuthService(repo *database.Repository, mailer email.Mailer, cfg *config.Config, now func() time.Time, logger *zap.Logger) *AuthService {
	return &AuthService{
		repository: repo,
		mailer:     mailer,
		sessionTTL: cfg.Auth.SessionTTL,
		resetTTL:   cfg.Auth.ResetTokenTTL,
		baseURL:    strings.TrimRight(cfg.Server.BaseURL, "/"),
		hashCost:   bcrypt.DefaultCost,
		now:        now,
		logger:     logger,
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func newLinkCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func (s *AuthService) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", invalid("password must be at least %d characters", minPasswordLength)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (s *AuthService) SignUp(ctx context.Context, emailAddr, password, fullName string) (*database.Profile, error) {
	emailAddr = normalizeEmail(emailAddr)
	if _, err := mail.ParseAddress(emailAddr); err != nil {
		return nil, invalid("invalid email %q", emailAddr)
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	profile := database.Profile{
		ID:                 uuid.NewString(),
		Email:              emailAddr,
		FullName:           strings.TrimSpace(fullName),
		PasswordHash:       hash,
		SubscriptionStatus: database.StatusNone,
		LinkCode:           newLinkCode(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repository.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info("profile created", zap.String("profile_id", profile.ID))
	sendEmail(ctx, s.mailer, s.logger, email.TemplateWelcome, profile.Email, email.WelcomeData{
		Name:         displayName(&profile),
		DashboardURL: s.baseURL + "/dashboard",
	})
	return &profile, nil
}

// Login checks the credentials and opens a new auth session.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (*database.AuthSession, error) {
	profile, err := s.repository.GetProfileByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrUnauthorized
	}

	now := s.now()
	session := database.AuthSession{
		Token:     uuid.NewString(),
		ProfileID: profile.ID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.repository.CreateAuthSession(ctx, session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.repository.DeleteAuthSession(ctx, token)
}

// Authenticate resolves a bearer token to its profile. Expired sessions are
// removed.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*database.Profile, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	session, err := s.repository.GetAuthSession(ctx, token)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !s.now().Before(session.ExpiresAt) {
		if err := s.repository.DeleteAuthSession(ctx, token); err != nil {
			s.logger.Warn("delete expired session", zap.Error(err))
		}
		return nil, apperrors.ErrUnauthorized
	}

	profile, err := s.repository.GetProfile(ctx, session.ProfileID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	return profile, err
}

// RequestPasswordReset never reveals whether the email is registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	profile, err := s.repository.GetProfileByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	reset := database.PasswordReset{
		Token:     uuid.NewString(),
		ProfileID: profile.ID,
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.repository.CreatePasswordReset(ctx, reset); err != nil {
		return err
	}

	sendEmail(ctx, s.mailer, s.logger, email.TemplatePasswordReset, profile.Email, email.PasswordResetData{
		Name:      displayName(profile),
		ResetURL:  s.baseURL + "/reset-password?token=" + reset.Token,
		ExpiresIn: s.resetTTL.String(),
	})
	return nil
}

// ResetPassword consumes the token, stores the new hash and revokes every
// open session of the profile.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	return s.repository.WithTx(ctx, func(tx *database.Repository) error {
		profileID, err := tx.ConsumePasswordReset(ctx, token, s.now())
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("reset token invalid or expired: %w", apperrors.ErrUnauthorized)
		}
		if err != nil {
			return err
		}

		profile, err := tx.GetProfile(ctx, profileID)
		if err != nil {
			return err
		}
		profile.PasswordHash = hash
		profile.UpdatedAt = s.now()
		if err := tx.UpdateProfile(ctx, *profile); err != nil {
			return err
		}
		return tx.DeleteAuthSessionsForProfile(ctx, profileID)
	})
}

type ProfileUpdate struct {
	FullName *string `json:"full_name"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, profileID string, in ProfileUpdate) (*database.Profile, error) {
	profile, err := s.repository.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		profile.FullName = strings.TrimSpace(*in.FullName)
	}
	profile.UpdatedAt = s.now()
	if err := s.repository.UpdateProfile(ctx, *profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// LinkTelegram attaches a chat to the profile owning the link code. A chat
// belongs to one profile at a time; earlier links to it are dropped.
func (s *AuthService) LinkTelegram(ctx context.Context, code string, chatID int64) (*database.Profile, error) {
	var (
		profile  *database.Profile
		released int64
	)
	err := s.repository.WithTx(ctx, func(tx *database.Repository) error {
		var err error
		profile, err = tx.GetProfileByLinkCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
		if err != nil {
			return err
		}
		now := s.now()
		if released, err = tx.ReleaseTelegramChat(ctx, chatID, profile.ID, now); err != nil {
			return err
		}
		profile.TelegramChatID = chatID
		profile.UpdatedAt = now
		return tx.UpdateProfile(ctx, *profile)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("telegram linked",
		zap.String("profile_id", profile.ID),
		zap.Int64("chat_id", chatID),
		zap.Int64("released", released),
	)
	return profile, nil
}

func (s *AuthService) ProfileByChat(ctx context.Context, chatID int64) (*database.Profile, error) {
	return s.repository.GetProfileByChatID(ctx, chatID)
}

func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.repository.DeleteExpiredAuthSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired sessions removed", zap.Int64("count", n))
	}
	return n, nil
}
