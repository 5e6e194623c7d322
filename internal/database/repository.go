package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coachboard/internal/apperrors"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	Db *Database
	q  queryer
}

func NewRepository(db *Database) *Repository {
	return &Repository{Db: db, q: db.db}
}

// WithTx runs fn against a repository bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	if _, nested := r.q.(*sql.Tx); nested {
		return fn(r)
	}

	tx, err := r.Db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&Repository{Db: r.Db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// Task repository methods

const taskColumns = `id, profile_id, goal_id, step_id, title, notes, date, time_utc, completed, completed_at, reminded_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		task                    Task
		goalID, stepID          sql.NullString
		completedAt, remindedAt sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&task.ProfileID,
		&goalID,
		&stepID,
		&task.Title,
		&task.Notes,
		&task.Date,
		&task.TimeUTC,
		&task.Completed,
		&completedAt,
		&remindedAt,
		&task.CreatedAt,
	)
	if err != nil {
		return Task{}, err
	}
	task.GoalID = goalID.String
	task.StepID = stepID.String
	task.CompletedAt = timePtr(completedAt)
	task.RemindedAt = timePtr(remindedAt)
	return task, nil
}

func (r *Repository) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *Repository) AddTask(ctx context.Context, task Task) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO tasks (id, profile_id, goal_id, step_id, title, notes, date, time_utc, completed, completed_at, reminded_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.ProfileID, nullString(task.GoalID), nullString(task.StepID), task.Title, task.Notes,
		task.Date, task.TimeUTC, task.Completed, nullTime(task.CompletedAt), nullTime(task.RemindedAt), task.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *Repository) GetTask(ctx context.Context, profileID, taskID string) (*Task, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND profile_id = ?`, taskID, profileID)
	task, err := scanTask(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

func (r *Repository) ListTasksByDate(ctx context.Context, profileID, date string) ([]Task, error) {
	return r.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE profile_id = ? AND date = ?
		ORDER BY time_utc, created_at
	`, profileID, date)
}

func (r *Repository) ListTasksBetween(ctx context.Context, profileID, from, to string) ([]Task, error) {
	return r.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE profile_id = ? AND date BETWEEN ? AND ?
		ORDER BY date, time_utc, created_at
	`, profileID, from, to)
}

func (r *Repository) UpdateTask(ctx context.Context, task Task) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE tasks
		SET goal_id = ?, step_id = ?, title = ?, notes = ?, date = ?, time_utc = ?, reminded_at = ?
		WHERE id = ? AND profile_id = ?
	`, nullString(task.GoalID), nullString(task.StepID), task.Title, task.Notes, task.Date, task.TimeUTC,
		nullTime(task.RemindedAt), task.ID, task.ProfileID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) UpdateTaskCompletion(ctx context.Context, profileID, taskID string, completed bool, at time.Time) error {
	var completedAt *time.Time
	if completed {
		completedAt = &at
	}
	res, err := r.q.ExecContext(ctx,
		"UPDATE tasks SET completed = ?, completed_at = ? WHERE id = ? AND profile_id = ?",
		completed, nullTime(completedAt), taskID, profileID)
	if err != nil {
		return fmt.Errorf("update task completion: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) DeleteTask(ctx context.Context, profileID, taskID string) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND profile_id = ?", taskID, profileID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(res)
}

// GetTasksForReminder returns today's open tasks whose time has passed and
// that were not reminded yet, for profiles with a linked Telegram chat.
func (r *Repository) GetTasksForReminder(ctx context.Context, today, currentTime string) ([]TaskReminder, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT t.id, t.profile_id, p.telegram_chat_id, t.title, t.time_utc, t.notes, t.date, COALESCE(g.title, '')
		FROM tasks t
		JOIN profiles p ON p.id = t.profile_id
		LEFT JOIN goals g ON g.id = t.goal_id
		WHERE t.date = ?
		AND t.time_utc <= ?
		AND t.completed = 0
		AND t.reminded_at IS NULL
		AND p.telegram_chat_id != 0
		ORDER BY t.time_utc
	`, today, currentTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []TaskReminder
	for rows.Next() {
		var reminder TaskReminder
		err := rows.Scan(
			&reminder.TaskID,
			&reminder.ProfileID,
			&reminder.ChatID,
			&reminder.Title,
			&reminder.TimeUTC,
			&reminder.Notes,
			&reminder.Date,
			&reminder.GoalTitle,
		)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}

	return reminders, rows.Err()
}

func (r *Repository) MarkTaskReminded(ctx context.Context, taskID string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, "UPDATE tasks SET reminded_at = ? WHERE id = ?", at, taskID)
	return err
}

// Analytics repository methods

func (r *Repository) GetDailySummary(ctx context.Context, profileID, date string) (*DailySummary, error) {
	summaries, err := r.GetDailySummaries(ctx, profileID, date, date)
	if err != nil {
		return nil, err
	}
	summary, ok := summaries[date]
	if !ok {
		summary = DailySummary{Date: date}
	}
	return &summary, nil
}

// GetDailySummaries returns one summary per date that has tasks or sessions.
func (r *Repository) GetDailySummaries(ctx context.Context, profileID, from, to string) (map[string]DailySummary, error) {
	summaries := make(map[string]DailySummary)

	rows, err := r.q.QueryContext(ctx, `
		SELECT
			date,
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN completed = 1 THEN 1 ELSE 0 END), 0) as completed
		FROM tasks
		WHERE profile_id = ? AND date BETWEEN ? AND ?
		GROUP BY date
	`, profileID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s DailySummary
		if err := rows.Scan(&s.Date, &s.Total, &s.Completed); err != nil {
			return nil, err
		}
		s.Percentage = Percent(s.Completed, s.Total)
		summaries[s.Date] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessionRows, err := r.q.QueryContext(ctx, `
		SELECT date, COUNT(*), AVG(mood)
		FROM sessions
		WHERE profile_id = ? AND date BETWEEN ? AND ?
		GROUP BY date
	`, profileID, from, to)
	if err != nil {
		return nil, err
	}
	defer sessionRows.Close()

	for sessionRows.Next() {
		var (
			date    string
			count   int
			avgMood sql.NullFloat64
		)
		if err := sessionRows.Scan(&date, &count, &avgMood); err != nil {
			return nil, err
		}
		s := summaries[date]
		s.Date = date
		s.Sessions = count
		s.AvgMood = avgMood.Float64
		summaries[date] = s
	}

	return summaries, sessionRows.Err()
}

// ActiveDates returns the distinct dates with a completed task or a logged session.
func (r *Repository) ActiveDates(ctx context.Context, profileID, from, to string) (map[string]bool, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT date FROM tasks WHERE profile_id = ? AND completed = 1 AND date BETWEEN ? AND ?
		UNION
		SELECT date FROM sessions WHERE profile_id = ? AND date BETWEEN ? AND ?
	`, profileID, from, to, profileID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		dates[date] = true
	}
	return dates, rows.Err()
}

func (r *Repository) GetWeeklyAnalytics(ctx context.Context, profileID, startDate, endDate string) (*WeeklyAnalytics, error) {
	analytics := &WeeklyAnalytics{
		StartDate:    startDate,
		EndDate:      endDate,
		GoalStats:    make(map[string]GoalStat),
		AvgFeelings:  make(map[string]float64),
		EffortLevels: make(map[Level]int),
		StressLevels: make(map[Level]int),
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT
			COALESCE(t.goal_id, ''),
			COALESCE(g.title, ''),
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN t.completed = 1 THEN 1 ELSE 0 END), 0) as completed
		FROM tasks t
		LEFT JOIN goals g ON g.id = t.goal_id
		WHERE t.profile_id = ? AND t.date BETWEEN ? AND ?
		GROUP BY t.goal_id
	`, profileID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var goalID string
		var stats GoalStat
		if err := rows.Scan(&goalID, &stats.Title, &stats.Total, &stats.Completed); err != nil {
			return nil, err
		}
		analytics.GoalStats[goalID] = stats
		analytics.TotalTasks += stats.Total
		analytics.TotalDone += stats.Completed
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessionRows, err := r.q.QueryContext(ctx, `
		SELECT s.goal_id, g.title, COUNT(*)
		FROM sessions s
		JOIN goals g ON g.id = s.goal_id
		WHERE s.profile_id = ? AND s.date BETWEEN ? AND ?
		GROUP BY s.goal_id
	`, profileID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer sessionRows.Close()

	for sessionRows.Next() {
		var goalID, title string
		var count int
		if err := sessionRows.Scan(&goalID, &title, &count); err != nil {
			return nil, err
		}
		stats := analytics.GoalStats[goalID]
		stats.Title = title
		stats.Sessions = count
		analytics.GoalStats[goalID] = stats
		analytics.Sessions += count
	}
	if err := sessionRows.Err(); err != nil {
		return nil, err
	}

	var avgMood, avgMotivation sql.NullFloat64
	err = r.q.QueryRowContext(ctx, `
		SELECT AVG(mood), AVG(motivation)
		FROM sessions
		WHERE profile_id = ? AND date BETWEEN ? AND ?
	`, profileID, startDate, endDate).Scan(&avgMood, &avgMotivation)
	if err != nil {
		return nil, err
	}
	if avgMood.Valid {
		analytics.AvgFeelings["mood"] = avgMood.Float64
	}
	if avgMotivation.Valid {
		analytics.AvgFeelings["motivation"] = avgMotivation.Float64
	}

	levelRows, err := r.q.QueryContext(ctx, `
		SELECT effort_level, stress_level
		FROM insights
		WHERE profile_id = ? AND date BETWEEN ? AND ?
	`, profileID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer levelRows.Close()

	for levelRows.Next() {
		var effort, stress Level
		if err := levelRows.Scan(&effort, &stress); err != nil {
			return nil, err
		}
		analytics.EffortLevels[effort]++
		analytics.StressLevels[stress]++
	}

	analytics.CompletionPct = Percent(analytics.TotalDone, analytics.TotalTasks)
	return analytics, levelRows.Err()
}
