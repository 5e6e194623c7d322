package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"coachboard/internal/apperrors"
)

const profileColumns = `id, email, full_name, password_hash, subscription_status, customer_id, telegram_chat_id, link_code, created_at, updated_at`

func scanProfile(row rowScanner) (Profile, error) {
	var (
		p          Profile
		customerID sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&p.PasswordHash,
		&p.SubscriptionStatus,
		&customerID,
		&p.TelegramChatID,
		&p.LinkCode,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	p.CustomerID = customerID.String
	return p, err
}

func (r *Repository) getProfileWhere(ctx context.Context, where string, arg any) (*Profile, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE `+where, arg)
	p, err := scanProfile(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *Repository) CreateProfile(ctx context.Context, p Profile) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, password_hash, subscription_status, customer_id, telegram_chat_id, link_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Email, p.FullName, p.PasswordHash, p.SubscriptionStatus, nullString(p.CustomerID),
		p.TelegramChatID, p.LinkCode, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("profile %s: %w", p.Email, apperrors.ErrConflict)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *Repository) GetProfile(ctx context.Context, id string) (*Profile, error) {
	return r.getProfileWhere(ctx, "id = ?", id)
}

func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	return r.getProfileWhere(ctx, "email = ?", email)
}

func (r *Repository) GetProfileByCustomerID(ctx context.Context, customerID string) (*Profile, error) {
	return r.getProfileWhere(ctx, "customer_id = ?", customerID)
}

func (r *Repository) GetProfileByLinkCode(ctx context.Context, code string) (*Profile, error) {
	return r.getProfileWhere(ctx, "link_code = ?", code)
}

func (r *Repository) GetProfileByChatID(ctx context.Context, chatID int64) (*Profile, error) {
	return r.getProfileWhere(ctx, "telegram_chat_id = ?", chatID)
}

func (r *Repository) UpdateProfile(ctx context.Context, p Profile) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE profiles
		SET full_name = ?, password_hash = ?, telegram_chat_id = ?, updated_at = ?
		WHERE id = ?
	`, p.FullName, p.PasswordHash, p.TelegramChatID, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireAffected(res)
}

// ReleaseTelegramChat detaches chatID from every profile except keepProfileID.
func (r *Repository) ReleaseTelegramChat(ctx context.Context, chatID int64, keepProfileID string, at time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE profiles SET telegram_chat_id = 0, updated_at = ? WHERE telegram_chat_id = ? AND id != ?",
		at, chatID, keepProfileID)
	if err != nil {
		return 0, fmt.Errorf("release telegram chat: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) SetSubscriptionStatus(ctx context.Context, profileID string, status SubscriptionStatus, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE profiles SET subscription_status = ?, updated_at = ? WHERE id = ?",
		status, at, profileID)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) SetCustomerID(ctx context.Context, profileID, customerID string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE profiles SET customer_id = ?, updated_at = ? WHERE id = ?",
		nullString(customerID), at, profileID)
	if err != nil {
		return fmt.Errorf("update customer id: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) listProfiles(ctx context.Context, query string) ([]Profile, error) {
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *Repository) ListProfiles(ctx context.Context) ([]Profile, error) {
	return r.listProfiles(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at`)
}

func (r *Repository) ListProfilesWithTelegram(ctx context.Context) ([]Profile, error) {
	return r.listProfiles(ctx, `SELECT `+profileColumns+` FROM profiles WHERE telegram_chat_id != 0 ORDER BY created_at`)
}

// Auth sessions

func (r *Repository) CreateAuthSession(ctx context.Context, s AuthSession) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO auth_sessions (token, profile_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		s.Token, s.ProfileID, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert auth session: %w", err)
	}
	return nil
}

func (r *Repository) GetAuthSession(ctx context.Context, token string) (*AuthSession, error) {
	var s AuthSession
	err := r.q.QueryRowContext(ctx,
		"SELECT token, profile_id, expires_at, created_at FROM auth_sessions WHERE token = ?", token,
	).Scan(&s.Token, &s.ProfileID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *Repository) DeleteAuthSession(ctx context.Context, token string) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM auth_sessions WHERE token = ?", token)
	return err
}

func (r *Repository) DeleteAuthSessionsForProfile(ctx context.Context, profileID string) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM auth_sessions WHERE profile_id = ?", profileID)
	return err
}

func (r *Repository) DeleteExpiredAuthSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM auth_sessions WHERE expires_at <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Password resets

func (r *Repository) CreatePasswordReset(ctx context.Context, reset PasswordReset) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO password_resets (token, profile_id, expires_at, used) VALUES (?, ?, ?, 0)",
		reset.Token, reset.ProfileID, reset.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

// ConsumePasswordReset marks an unused, unexpired reset token as used and
// returns the profile it belongs to.
func (r *Repository) ConsumePasswordReset(ctx context.Context, token string, now time.Time) (string, error) {
	var (
		reset PasswordReset
		used  bool
	)
	err := r.q.QueryRowContext(ctx,
		"SELECT token, profile_id, expires_at, used FROM password_resets WHERE token = ?", token,
	).Scan(&reset.Token, &reset.ProfileID, &reset.ExpiresAt, &used)
	if err != nil {
		return "", notFound(err)
	}
	if used || !now.Before(reset.ExpiresAt) {
		return "", apperrors.ErrNotFound
	}

	res, err := r.q.ExecContext(ctx, "UPDATE password_resets SET used = 1 WHERE token = ? AND used = 0", token)
	if err != nil {
		return "", fmt.Errorf("consume password reset: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return "", err
	}
	return reset.ProfileID, nil
}
