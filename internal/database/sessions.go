package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const sessionColumns = `id, profile_id, goal_id, step_id, mood, motivation, blockers, notes, progress_percent, duration_minutes, date, created_at`

const insightColumns = `id, session_id, profile_id, goal_id, step_id, progress_percent, effort_level, stress_level, summary, date, created_at`

type SessionFilter struct {
	ProfileID string
	GoalID    string
	StepID    string
	Limit     int
}

// Sessions and insights outlive their goal and step: the links are nulled
// when those are deleted.
func scanSession(row rowScanner) (Session, error) {
	var (
		s              Session
		goalID, stepID sql.NullString
	)
	err := row.Scan(
		&s.ID,
		&s.ProfileID,
		&goalID,
		&stepID,
		&s.Mood,
		&s.Motivation,
		&s.Blockers,
		&s.Notes,
		&s.ProgressPercent,
		&s.DurationMinutes,
		&s.Date,
		&s.CreatedAt,
	)
	s.GoalID = goalID.String
	s.StepID = stepID.String
	return s, err
}

func scanInsight(row rowScanner) (Insight, error) {
	var (
		i              Insight
		goalID, stepID sql.NullString
	)
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.ProfileID,
		&goalID,
		&stepID,
		&i.ProgressPercent,
		&i.EffortLevel,
		&i.StressLevel,
		&i.Summary,
		&i.Date,
		&i.CreatedAt,
	)
	i.GoalID = goalID.String
	i.StepID = stepID.String
	return i, err
}

// CreateSession stores the session together with its task records.
func (r *Repository) CreateSession(ctx context.Context, s Session) error {
	return r.WithTx(ctx, func(tx *Repository) error {
		_, err := tx.q.ExecContext(ctx, `
			INSERT INTO sessions (id, profile_id, goal_id, step_id, mood, motivation, blockers, notes, progress_percent, duration_minutes, date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, s.ID, s.ProfileID, nullString(s.GoalID), nullString(s.StepID), s.Mood, s.Motivation, s.Blockers, s.Notes,
			s.ProgressPercent, s.DurationMinutes, s.Date, s.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for _, rec := range s.TaskRecords {
			_, err := tx.q.ExecContext(ctx,
				"INSERT INTO session_tasks (session_id, task_id, completed) VALUES (?, ?, ?)",
				s.ID, rec.TaskID, rec.Completed)
			if err != nil {
				return fmt.Errorf("insert session task: %w", err)
			}
		}
		return nil
	})
}

func (r *Repository) GetSession(ctx context.Context, profileID, sessionID string) (*Session, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ? AND profile_id = ?`, sessionID, profileID)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := r.q.QueryContext(ctx,
		"SELECT session_id, task_id, completed FROM session_tasks WHERE session_id = ? ORDER BY rowid", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec SessionTask
		if err := rows.Scan(&rec.SessionID, &rec.TaskID, &rec.Completed); err != nil {
			return nil, err
		}
		s.TaskRecords = append(s.TaskRecords, rec)
	}
	return &s, rows.Err()
}

// ListSessions returns the newest sessions first.
func (r *Repository) ListSessions(ctx context.Context, f SessionFilter) ([]Session, error) {
	where := []string{"profile_id = ?"}
	args := []any{f.ProfileID}
	if f.GoalID != "" {
		where = append(where, "goal_id = ?")
		args = append(args, f.GoalID)
	}
	if f.StepID != "" {
		where = append(where, "step_id = ?")
		args = append(args, f.StepID)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *Repository) MaxStepProgress(ctx context.Context, stepID string) (float64, error) {
	var progress sql.NullFloat64
	err := r.q.QueryRowContext(ctx, "SELECT MAX(progress_percent) FROM sessions WHERE step_id = ?", stepID).Scan(&progress)
	return progress.Float64, err
}

// Insight repository methods

func (r *Repository) CreateInsight(ctx context.Context, i Insight) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO insights (`+insightColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, i.ID, i.SessionID, i.ProfileID, nullString(i.GoalID), nullString(i.StepID), i.ProgressPercent,
		i.EffortLevel, i.StressLevel, i.Summary, i.Date, i.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}
	return nil
}

func (r *Repository) GetInsightBySession(ctx context.Context, profileID, sessionID string) (*Insight, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+insightColumns+` FROM insights WHERE session_id = ? AND profile_id = ?`, sessionID, profileID)
	i, err := scanInsight(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &i, nil
}

func (r *Repository) ListInsights(ctx context.Context, profileID string, limit int) ([]Insight, error) {
	query := `SELECT ` + insightColumns + ` FROM insights WHERE profile_id = ? ORDER BY created_at DESC`
	args := []any{profileID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insights []Insight
	for rows.Next() {
		i, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		insights = append(insights, i)
	}
	return insights, rows.Err()
}
