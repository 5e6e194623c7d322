package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"coachboard/internal/database"
	"coachboard/internal/utils"
)

type StepInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

type GoalInput struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	TargetDate  string      `json:"target_date"`
	Steps       []StepInput `json:"steps"`
}

type GoalUpdate struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	TargetDate  *string              `json:"target_date"`
	Status      *database.GoalStatus `json:"status"`
}

type StepUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
}

type GoalService struct {
	repository *database.Repository
	now        func() time.Time
}

func NewGoalService(repo *database.Repository, now func() time.Time) *GoalService {
	return &GoalService{repository: repo, now: now}
}

func validOptionalDate(field, value string) error {
	if value != "" && !utils.ValidDate(value) {
		return invalid("%s must be YYYY-MM-DD, got %q", field, value)
	}
	return nil
}

func validGoalStatus(s database.GoalStatus) bool {
	switch s {
	case database.GoalActive, database.GoalCompleted, database.GoalArchived:
		return true
	}
	return false
}

func (in StepInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("step title is required")
	}
	return validOptionalDate("deadline", in.Deadline)
}

func (gs *GoalService) CreateGoal(ctx context.Context, profileID string, in GoalInput) (*database.Goal, error) {
	goal, err := gs.newGoal(profileID, in)
	if err != nil {
		return nil, err
	}
	if err := gs.repository.CreateGoal(ctx, *goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// newGoal validates the input and assigns ids and positions without storing.
func (gs *GoalService) newGoal(profileID string, in GoalInput) (*database.Goal, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("goal title is required")
	}
	if err := validOptionalDate("target_date", in.TargetDate); err != nil {
		return nil, err
	}
	for _, s := range in.Steps {
		if err := s.validate(); err != nil {
			return nil, err
		}
	}

	now := gs.now()
	goal := database.Goal{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		TargetDate:  in.TargetDate,
		Status:      database.GoalActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, s := range in.Steps {
		goal.Steps = append(goal.Steps, database.Step{
			ID:          uuid.NewString(),
			GoalID:      goal.ID,
			Position:    i,
			Title:       strings.TrimSpace(s.Title),
			Description: strings.TrimSpace(s.Description),
			Deadline:    s.Deadline,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return &goal, nil
}

// GetGoal returns the goal with its ordered steps and derived progress.
func (gs *GoalService) GetGoal(ctx context.Context, profileID, goalID string) (*database.Goal, error) {
	return loadGoal(ctx, gs.repository, profileID, goalID)
}

func loadGoal(ctx context.Context, repo *database.Repository, profileID, goalID string) (*database.Goal, error) {
	goal, err := repo.GetGoal(ctx, profileID, goalID)
	if err != nil {
		return nil, err
	}
	steps, err := repo.ListSteps(ctx, goal.ID)
	if err != nil {
		return nil, err
	}
	goal.Steps = steps
	goal.ProgressPercent = goalProgress(steps)
	return goal, nil
}

func (gs *GoalService) ListGoals(ctx context.Context, profileID string) ([]database.Goal, error) {
	goals, err := gs.repository.ListGoals(ctx, profileID)
	if err != nil {
		return nil, err
	}
	steps, err := gs.repository.ListStepsForProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	byGoal := make(map[string][]database.Step)
	for _, s := range steps {
		byGoal[s.GoalID] = append(byGoal[s.GoalID], s)
	}
	for i := range goals {
		goals[i].Steps = byGoal[goals[i].ID]
		goals[i].ProgressPercent = goalProgress(goals[i].Steps)
	}
	return goals, nil
}

func (gs *GoalService) UpdateGoal(ctx context.Context, profileID, goalID string, in GoalUpdate) (*database.Goal, error) {
	goal, err := gs.repository.GetGoal(ctx, profileID, goalID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, invalid("goal title is required")
		}
		goal.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		goal.Description = strings.TrimSpace(*in.Description)
	}
	if in.TargetDate != nil {
		if err := validOptionalDate("target_date", *in.TargetDate); err != nil {
			return nil, err
		}
		goal.TargetDate = *in.TargetDate
	}
	if in.Status != nil {
		if !validGoalStatus(*in.Status) {
			return nil, invalid("unknown goal status %q", *in.Status)
		}
		goal.Status = *in.Status
	}
	goal.UpdatedAt = gs.now()

	if err := gs.repository.UpdateGoal(ctx, *goal); err != nil {
		return nil, err
	}
	return gs.GetGoal(ctx, profileID, goalID)
}

func (gs *GoalService) DeleteGoal(ctx context.Context, profileID, goalID string) error {
	return gs.repository.DeleteGoal(ctx, profileID, goalID)
}

func (gs *GoalService) AddStep(ctx context.Context, profileID, goalID string, in StepInput) (*database.Step, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var step database.Step
	err := gs.repository.WithTx(ctx, func(tx *database.Repository) error {
		if _, err := tx.GetGoal(ctx, profileID, goalID); err != nil {
			return err
		}
		position, err := tx.NextStepPosition(ctx, goalID)
		if err != nil {
			return err
		}

		now := gs.now()
		step = database.Step{
			ID:          uuid.NewString(),
			GoalID:      goalID,
			Position:    position,
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			Deadline:    in.Deadline,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateStep(ctx, step); err != nil {
			return err
		}
		// A new open step reopens a completed goal.
		return syncGoalStatus(ctx, tx, profileID, goalID, now)
	})
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func (gs *GoalService) UpdateStep(ctx context.Context, profileID, stepID string, in StepUpdate) (*database.Step, error) {
	step, err := gs.repository.GetStep(ctx, profileID, stepID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, invalid("step title is required")
		}
		step.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		step.Description = strings.TrimSpace(*in.Description)
	}
	if in.Deadline != nil {
		if err := validOptionalDate("deadline", *in.Deadline); err != nil {
			return nil, err
		}
		step.Deadline = *in.Deadline
	}
	step.UpdatedAt = gs.now()

	if err := gs.repository.UpdateStep(ctx, *step); err != nil {
		return nil, err
	}
	return step, nil
}

func (gs *GoalService) DeleteStep(ctx context.Context, profileID, stepID string) error {
	return gs.repository.WithTx(ctx, func(tx *database.Repository) error {
		step, err := tx.GetStep(ctx, profileID, stepID)
		if err != nil {
			return err
		}
		if err := tx.DeleteStep(ctx, *step); err != nil {
			return err
		}
		return syncGoalStatus(ctx, tx, profileID, step.GoalID, gs.now())
	})
}

func (gs *GoalService) ReorderSteps(ctx context.Context, profileID, goalID string, stepIDs []string) (*database.Goal, error) {
	if _, err := gs.repository.GetGoal(ctx, profileID, goalID); err != nil {
		return nil, err
	}
	if err := gs.repository.ReorderSteps(ctx, goalID, stepIDs, gs.now()); err != nil {
		return nil, err
	}
	return gs.GetGoal(ctx, profileID, goalID)
}

func goalProgress(steps []database.Step) float64 {
	done := 0
	for _, s := range steps {
		if s.Completed {
			done++
		}
	}
	return database.Percent(done, len(steps))
}

// syncGoalStatus marks the goal completed when every step is complete and
// reopens it when a step is not. Archived goals are left alone.
func syncGoalStatus(ctx context.Context, repo *database.Repository, profileID, goalID string, at time.Time) error {
	goal, err := repo.GetGoal(ctx, profileID, goalID)
	if err != nil {
		return err
	}
	if goal.Status == database.GoalArchived {
		return nil
	}
	steps, err := repo.ListSteps(ctx, goalID)
	if err != nil {
		return err
	}

	status := database.GoalActive
	if len(steps) > 0 && goalProgress(steps) >= 100 {
		status = database.GoalCompleted
	}
	if status == goal.Status {
		return nil
	}
	goal.Status = status
	goal.UpdatedAt = at
	return repo.UpdateGoal(ctx, *goal)
}
