package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type Database struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(path string, logger *zap.Logger) (*Database, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	d := &Database{db: db, logger: logger}
	if err := d.init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	d.logger.Info("database initialized", zap.String("path", path))
	return d, nil
}

func (d *Database) init(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			full_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			subscription_status TEXT NOT NULL DEFAULT '0' CHECK(subscription_status IN ('0', '1', '2')),
			customer_id TEXT,
			telegram_chat_id INTEGER NOT NULL DEFAULT 0,
			link_code TEXT UNIQUE NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS auth_sessions (
			token TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS password_resets (
			token TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			expires_at DATETIME NOT NULL,
			used BOOLEAN NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS goals (
			id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			target_date TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS steps (
			id TEXT PRIMARY KEY,
			goal_id TEXT NOT NULL REFERENCES goals(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			deadline TEXT NOT NULL DEFAULT '',
			progress_percent REAL NOT NULL DEFAULT 0,
			completed BOOLEAN NOT NULL DEFAULT 0,
			completed_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			goal_id TEXT REFERENCES goals(id) ON DELETE SET NULL,
			step_id TEXT REFERENCES steps(id) ON DELETE SET NULL,
			mood INTEGER NOT NULL CHECK(mood >= 1 AND mood <= 10),
			motivation INTEGER NOT NULL CHECK(motivation >= 1 AND motivation <= 10),
			blockers TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			progress_percent REAL NOT NULL DEFAULT 0,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			date TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			goal_id TEXT REFERENCES goals(id) ON DELETE SET NULL,
			step_id TEXT REFERENCES steps(id) ON DELETE SET NULL,
			title TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			time_utc TEXT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT 0,
			completed_at DATETIME,
			reminded_at DATETIME,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS session_tasks (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			completed BOOLEAN NOT NULL,
			PRIMARY KEY (session_id, task_id)
		)`,

		`CREATE TABLE IF NOT EXISTS insights (
			id TEXT PRIMARY KEY,
			session_id TEXT UNIQUE NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			goal_id TEXT REFERENCES goals(id) ON DELETE SET NULL,
			step_id TEXT REFERENCES steps(id) ON DELETE SET NULL,
			progress_percent REAL NOT NULL,
			effort_level TEXT NOT NULL,
			stress_level TEXT NOT NULL,
			summary TEXT NOT NULL,
			date TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			customer_id TEXT NOT NULL,
			price_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			plan TEXT NOT NULL DEFAULT '0',
			current_period_end DATETIME,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS billing_events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			received_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS coach_conversations (
			id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			flow TEXT NOT NULL,
			goal_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS coach_messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES coach_conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_telegram_chat ON profiles(telegram_chat_id) WHERE telegram_chat_id != 0`,
		`CREATE INDEX IF NOT EXISTS idx_goals_profile ON goals(profile_id)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_goal ON steps(goal_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_profile_date ON sessions(profile_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_step ON sessions(step_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_profile_date ON tasks(profile_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_time ON tasks(time_utc)`,
		`CREATE INDEX IF NOT EXISTS idx_insights_profile ON insights(profile_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_profile ON subscriptions(profile_id)`,
		`CREATE INDEX IF NOT EXISTS idx_coach_messages_conversation ON coach_messages(conversation_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := d.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	d.logger.Debug("schema ready", zap.Int("statements", len(queries)))
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
