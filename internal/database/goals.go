package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"coachboard/internal/apperrors"
)

const goalColumns = `id, profile_id, title, description, target_date, status, created_at, updated_at`

const stepColumns = `s.id, s.goal_id, s.position, s.title, s.description, s.deadline, s.progress_percent, s.completed, s.completed_at, s.created_at, s.updated_at`

func scanGoal(row rowScanner) (Goal, error) {
	var g Goal
	err := row.Scan(&g.ID, &g.ProfileID, &g.Title, &g.Description, &g.TargetDate, &g.Status, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func scanStep(row rowScanner) (Step, error) {
	var (
		s           Step
		completedAt sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.GoalID,
		&s.Position,
		&s.Title,
		&s.Description,
		&s.Deadline,
		&s.ProgressPercent,
		&s.Completed,
		&completedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	s.CompletedAt = timePtr(completedAt)
	return s, err
}

// CreateGoal inserts the goal and its steps atomically.
func (r *Repository) CreateGoal(ctx context.Context, goal Goal) error {
	return r.WithTx(ctx, func(tx *Repository) error {
		_, err := tx.q.ExecContext(ctx, `
			INSERT INTO goals (id, profile_id, title, description, target_date, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, goal.ID, goal.ProfileID, goal.Title, goal.Description, goal.TargetDate, goal.Status, goal.CreatedAt, goal.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert goal: %w", err)
		}
		for _, step := range goal.Steps {
			if err := tx.CreateStep(ctx, step); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetGoal(ctx context.Context, profileID, goalID string) (*Goal, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ? AND profile_id = ?`, goalID, profileID)
	g, err := scanGoal(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (r *Repository) ListGoals(ctx context.Context, profileID string) ([]Goal, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+goalColumns+`
		FROM goals
		WHERE profile_id = ?
		ORDER BY created_at
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (r *Repository) UpdateGoal(ctx context.Context, goal Goal) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE goals
		SET title = ?, description = ?, target_date = ?, status = ?, updated_at = ?
		WHERE id = ? AND profile_id = ?
	`, goal.Title, goal.Description, goal.TargetDate, goal.Status, goal.UpdatedAt, goal.ID, goal.ProfileID)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) DeleteGoal(ctx context.Context, profileID, goalID string) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM goals WHERE id = ? AND profile_id = ?", goalID, profileID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return requireAffected(res)
}

// Step repository methods

func (r *Repository) CreateStep(ctx context.Context, step Step) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO steps (id, goal_id, position, title, description, deadline, progress_percent, completed, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, step.ID, step.GoalID, step.Position, step.Title, step.Description, step.Deadline,
		step.ProgressPercent, step.Completed, nullTime(step.CompletedAt), step.CreatedAt, step.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// GetStep returns a step only when its goal belongs to the profile.
func (r *Repository) GetStep(ctx context.Context, profileID, stepID string) (*Step, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+stepColumns+`
		FROM steps s
		JOIN goals g ON g.id = s.goal_id
		WHERE s.id = ? AND g.profile_id = ?
	`, stepID, profileID)
	s, err := scanStep(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *Repository) querySteps(ctx context.Context, query string, args ...any) ([]Step, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r *Repository) ListSteps(ctx context.Context, goalID string) ([]Step, error) {
	return r.querySteps(ctx, `
		SELECT `+stepColumns+`
		FROM steps s
		WHERE s.goal_id = ?
		ORDER BY s.position
	`, goalID)
}

func (r *Repository) ListStepsForProfile(ctx context.Context, profileID string) ([]Step, error) {
	return r.querySteps(ctx, `
		SELECT `+stepColumns+`
		FROM steps s
		JOIN goals g ON g.id = s.goal_id
		WHERE g.profile_id = ?
		ORDER BY g.created_at, s.position
	`, profileID)
}

func (r *Repository) UpdateStep(ctx context.Context, step Step) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE steps
		SET position = ?, title = ?, description = ?, deadline = ?, progress_percent = ?, completed = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, step.Position, step.Title, step.Description, step.Deadline, step.ProgressPercent,
		step.Completed, nullTime(step.CompletedAt), step.UpdatedAt, step.ID)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) NextStepPosition(ctx context.Context, goalID string) (int, error) {
	var next int
	err := r.q.QueryRowContext(ctx, "SELECT COALESCE(MAX(position) + 1, 0) FROM steps WHERE goal_id = ?", goalID).Scan(&next)
	return next, err
}

// DeleteStep removes the step and closes the gap in positions.
func (r *Repository) DeleteStep(ctx context.Context, step Step) error {
	return r.WithTx(ctx, func(tx *Repository) error {
		res, err := tx.q.ExecContext(ctx, "DELETE FROM steps WHERE id = ?", step.ID)
		if err != nil {
			return fmt.Errorf("delete step: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		_, err = tx.q.ExecContext(ctx,
			"UPDATE steps SET position = position - 1 WHERE goal_id = ? AND position > ?",
			step.GoalID, step.Position)
		if err != nil {
			return fmt.Errorf("repack steps: %w", err)
		}
		return nil
	})
}

// ReorderSteps assigns positions following stepIDs, which must name every
// step of the goal exactly once.
func (r *Repository) ReorderSteps(ctx context.Context, goalID string, stepIDs []string, at time.Time) error {
	return r.WithTx(ctx, func(tx *Repository) error {
		steps, err := tx.ListSteps(ctx, goalID)
		if err != nil {
			return err
		}
		if len(steps) != len(stepIDs) {
			return fmt.Errorf("expected %d step ids, got %d: %w", len(steps), len(stepIDs), apperrors.ErrInvalidInput)
		}

		known := make(map[string]bool, len(steps))
		for _, s := range steps {
			known[s.ID] = true
		}
		for position, id := range stepIDs {
			if !known[id] {
				return fmt.Errorf("step %q not in goal or repeated: %w", id, apperrors.ErrInvalidInput)
			}
			delete(known, id)

			_, err := tx.q.ExecContext(ctx,
				"UPDATE steps SET position = ?, updated_at = ? WHERE id = ? AND goal_id = ?",
				position, at, id, goalID)
			if err != nil {
				return fmt.Errorf("reorder step: %w", err)
			}
		}
		return nil
	})
}
