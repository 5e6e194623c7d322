package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coachboard/internal/database"
	"coachboard/internal/utils"
)

type TaskCompletion struct {
	TaskID    string `json:"task_id"`
	Completed bool   `json:"completed"`
}

type SessionInput struct {
	StepID          string           `json:"step_id"`
	Mood            int              `json:"mood"`
	Motivation      int              `json:"motivation"`
	Blockers        string           `json:"blockers"`
	Notes           string           `json:"notes"`
	ProgressPercent float64          `json:"progress_percent"`
	DurationMinutes int              `json:"duration_minutes"`
	Date            string           `json:"date"`
	TaskCompletions []TaskCompletion `json:"task_completions"`
}

type SessionResult struct {
	Session    database.Session    `json:"session"`
	Insight    database.Insight    `json:"insight"`
	Step       database.Step       `json:"step"`
	GoalStatus database.GoalStatus `json:"goal_status"`
}

type SessionService struct {
	repository *database.Repository
	now        func() time.Time
}

func NewSessionService(repo *database.Repository, now func() time.Time) *SessionService {
	return &SessionService{repository: repo, now: now}
}

func (in SessionInput) validate() error {
	if in.StepID == "" {
		return invalid("step_id is required")
	}
	if in.Mood < 1 || in.Mood > 10 {
		return invalid("mood must be between 1 and 10")
	}
	if in.Motivation < 1 || in.Motivation > 10 {
		return invalid("motivation must be between 1 and 10")
	}
	if in.ProgressPercent < 0 || in.ProgressPercent > 100 {
		return invalid("progress_percent must be between 0 and 100")
	}
	if in.DurationMinutes < 0 {
		return invalid("duration_minutes must not be negative")
	}
	if err := validOptionalDate("date", in.Date); err != nil {
		return err
	}

	seen := make(map[string]bool, len(in.TaskCompletions))
	for _, tc := range in.TaskCompletions {
		if tc.TaskID == "" || seen[tc.TaskID] {
			return invalid("task completions must name distinct tasks")
		}
		seen[tc.TaskID] = true
	}
	return nil
}

// LogSession records a session against a step, applies its task
// completions, re-derives the step and goal state and stores an insight.
func (ss *SessionService) LogSession(ctx context.Context, profileID string, in SessionInput) (*SessionResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := ss.now()
	date := in.Date
	if date == "" {
		date = utils.DateKey(now)
	}

	var result SessionResult
	err := ss.repository.WithTx(ctx, func(tx *database.Repository) error {
		step, err := tx.GetStep(ctx, profileID, in.StepID)
		if err != nil {
			return err
		}

		session := database.Session{
			ID:              uuid.NewString(),
			ProfileID:       profileID,
			GoalID:          step.GoalID,
			StepID:          step.ID,
			Mood:            in.Mood,
			Motivation:      in.Motivation,
			Blockers:        strings.TrimSpace(in.Blockers),
			Notes:           strings.TrimSpace(in.Notes),
			ProgressPercent: in.ProgressPercent,
			DurationMinutes: in.DurationMinutes,
			Date:            date,
			CreatedAt:       now,
		}
		for _, tc := range in.TaskCompletions {
			if _, err := tx.GetTask(ctx, profileID, tc.TaskID); err != nil {
				return fmt.Errorf("task %s: %w", tc.TaskID, err)
			}
			if err := tx.UpdateTaskCompletion(ctx, profileID, tc.TaskID, tc.Completed, now); err != nil {
				return err
			}
			session.TaskRecords = append(session.TaskRecords, database.SessionTask{
				SessionID: session.ID,
				TaskID:    tc.TaskID,
				Completed: tc.Completed,
			})
		}
		if err := tx.CreateSession(ctx, session); err != nil {
			return err
		}

		progress, err := tx.MaxStepProgress(ctx, step.ID)
		if err != nil {
			return err
		}
		applyStepProgress(step, progress, now)
		if err := tx.UpdateStep(ctx, *step); err != nil {
			return err
		}
		if err := syncGoalStatus(ctx, tx, profileID, step.GoalID, now); err != nil {
			return err
		}
		goal, err := tx.GetGoal(ctx, profileID, step.GoalID)
		if err != nil {
			return err
		}

		insight := DeriveInsight(session)
		insight.ID = uuid.NewString()
		insight.CreatedAt = now
		if err := tx.CreateInsight(ctx, insight); err != nil {
			return err
		}

		result = SessionResult{Session: session, Insight: insight, Step: *step, GoalStatus: goal.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// applyStepProgress sets the step progress and completion from the best
// session progress so far.
func applyStepProgress(step *database.Step, progress float64, at time.Time) {
	step.ProgressPercent = progress
	completed := progress >= 100
	switch {
	case completed && !step.Completed:
		step.CompletedAt = &at
	case !completed:
		step.CompletedAt = nil
	}
	step.Completed = completed
	step.UpdatedAt = at
}

// DeriveInsight computes progress, effort and stress for a session.
func DeriveInsight(s database.Session) database.Insight {
	completed := 0
	for _, rec := range s.TaskRecords {
		if rec.Completed {
			completed++
		}
	}

	progress := s.ProgressPercent
	if len(s.TaskRecords) > 0 {
		progress = database.Percent(completed, len(s.TaskRecords))
	}

	effort := database.LevelLow
	switch {
	case completed >= 3 || s.DurationMinutes >= 60:
		effort = database.LevelHigh
	case completed >= 1 || s.DurationMinutes >= 20:
		effort = database.LevelMedium
	}

	blocked := strings.TrimSpace(s.Blockers) != ""
	stress := database.LevelLow
	switch {
	case s.Mood <= 3 || (blocked && s.Motivation <= 4):
		stress = database.LevelHigh
	case s.Mood <= 6 || blocked:
		stress = database.LevelMedium
	}

	summary := fmt.Sprintf("%.0f%% progress, %s effort, %s stress", progress, effort, stress)
	if len(s.TaskRecords) > 0 {
		summary += fmt.Sprintf(", %d/%d tasks done", completed, len(s.TaskRecords))
	}
	if blocked {
		summary += ", blocked by: " + strings.TrimSpace(s.Blockers)
	}

	return database.Insight{
		SessionID:       s.ID,
		ProfileID:       s.ProfileID,
		GoalID:          s.GoalID,
		StepID:          s.StepID,
		ProgressPercent: progress,
		EffortLevel:     effort,
		StressLevel:     stress,
		Summary:         summary,
		Date:            s.Date,
	}
}

func (ss *SessionService) GetSession(ctx context.Context, profileID, sessionID string) (*database.Session, error) {
	return ss.repository.GetSession(ctx, profileID, sessionID)
}

func (ss *SessionService) GetInsight(ctx context.Context, profileID, sessionID string) (*database.Insight, error) {
	return ss.repository.GetInsightBySession(ctx, profileID, sessionID)
}

func (ss *SessionService) ListSessions(ctx context.Context, f database.SessionFilter) ([]database.Session, error) {
	if f.Limit < 0 {
		return nil, invalid("limit must not be negative")
	}
	return ss.repository.ListSessions(ctx, f)
}

func (ss *SessionService) ListInsights(ctx context.Context, profileID string, limit int) ([]database.Insight, error) {
	if limit < 0 {
		return nil, invalid("limit must not be negative")
	}
	return ss.repository.ListInsights(ctx, profileID, limit)
}
