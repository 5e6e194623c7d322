package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"coachboard/internal/database"
	"coachboard/internal/utils"
)

const (
	DefaultTaskTime      = "09:00"
	DefaultSnoozeMinutes = 60
	maxSnoozeMinutes     = 24 * 60
)

type TaskInput struct {
	Title   string `json:"title"`
	Notes   string `json:"notes"`
	Date    string `json:"date"`
	TimeUTC string `json:"time_utc"`
	GoalID  string `json:"goal_id"`
	StepID  string `json:"step_id"`
}

type TaskUpdate struct {
	Title   *string `json:"title"`
	Notes   *string `json:"notes"`
	Date    *string `json:"date"`
	TimeUTC *string `json:"time_utc"`
}

type TaskService struct {
	repository *database.Repository
	now        func() time.Time
}

func NewTaskService(repo *database.Repository, now func() time.Time) *TaskService {
	return &TaskService{
		repository: repo,
		now:        now,
	}
}

func validTaskSlot(date, hhmm string) error {
	if !utils.ValidDate(date) {
		return invalid("date must be YYYY-MM-DD, got %q", date)
	}
	if !utils.ValidTime(hhmm) {
		return invalid("time must be HH:MM, got %q", hhmm)
	}
	return nil
}

// AddTask creates a task, defaulting to today at 09:00 UTC. A step link
// implies its goal.
func (ts *TaskService) AddTask(ctx context.Context, profileID string, in TaskInput) (*database.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("task title is required")
	}

	now := ts.now()
	task := database.Task{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Title:     strings.TrimSpace(in.Title),
		Notes:     strings.TrimSpace(in.Notes),
		Date:      in.Date,
		TimeUTC:   in.TimeUTC,
		CreatedAt: now,
	}
	if task.Date == "" {
		task.Date = utils.DateKey(now)
	}
	if task.TimeUTC == "" {
		task.TimeUTC = DefaultTaskTime
	}
	if err := validTaskSlot(task.Date, task.TimeUTC); err != nil {
		return nil, err
	}

	if in.StepID != "" {
		step, err := ts.repository.GetStep(ctx, profileID, in.StepID)
		if err != nil {
			return nil, err
		}
		if in.GoalID != "" && in.GoalID != step.GoalID {
			return nil, invalid("step %s does not belong to goal %s", in.StepID, in.GoalID)
		}
		task.StepID = step.ID
		task.GoalID = step.GoalID
	} else if in.GoalID != "" {
		if _, err := ts.repository.GetGoal(ctx, profileID, in.GoalID); err != nil {
			return nil, err
		}
		task.GoalID = in.GoalID
	}

	if err := ts.repository.AddTask(ctx, task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (ts *TaskService) GetTask(ctx context.Context, profileID, taskID string) (*database.Task, error) {
	return ts.repository.GetTask(ctx, profileID, taskID)
}

func (ts *TaskService) ListTasks(ctx context.Context, profileID, date string) ([]database.Task, error) {
	if date == "" {
		date = utils.DateKey(ts.now())
	}
	if !utils.ValidDate(date) {
		return nil, invalid("date must be YYYY-MM-DD, got %q", date)
	}
	return ts.repository.ListTasksByDate(ctx, profileID, date)
}

func (ts *TaskService) ListTasksBetween(ctx context.Context, profileID, from, to string) ([]database.Task, error) {
	if !utils.ValidDate(from) || !utils.ValidDate(to) {
		return nil, invalid("from and to must be YYYY-MM-DD")
	}
	if to < from {
		return nil, invalid("range end %s before start %s", to, from)
	}
	return ts.repository.ListTasksBetween(ctx, profileID, from, to)
}

// UpdateTask edits the task. Moving it to another slot re-arms the reminder.
func (ts *TaskService) UpdateTask(ctx context.Context, profileID, taskID string, in TaskUpdate) (*database.Task, error) {
	task, err := ts.repository.GetTask(ctx, profileID, taskID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, invalid("task title is required")
		}
		task.Title = strings.TrimSpace(*in.Title)
	}
	if in.Notes != nil {
		task.Notes = strings.TrimSpace(*in.Notes)
	}

	date, hhmm := task.Date, task.TimeUTC
	if in.Date != nil {
		date = *in.Date
	}
	if in.TimeUTC != nil {
		hhmm = *in.TimeUTC
	}
	if err := validTaskSlot(date, hhmm); err != nil {
		return nil, err
	}
	if date != task.Date || hhmm != task.TimeUTC {
		task.Date, task.TimeUTC = date, hhmm
		task.RemindedAt = nil
	}

	if err := ts.repository.UpdateTask(ctx, *task); err != nil {
		return nil, err
	}
	return task, nil
}

func (ts *TaskService) SetTaskCompletion(ctx context.Context, profileID, taskID string, completed bool) (*database.Task, error) {
	if err := ts.repository.UpdateTaskCompletion(ctx, profileID, taskID, completed, ts.now()); err != nil {
		return nil, err
	}
	return ts.repository.GetTask(ctx, profileID, taskID)
}

func (ts *TaskService) ToggleTask(ctx context.Context, profileID, taskID string) (*database.Task, error) {
	task, err := ts.repository.GetTask(ctx, profileID, taskID)
	if err != nil {
		return nil, err
	}
	return ts.SetTaskCompletion(ctx, profileID, taskID, !task.Completed)
}

// SnoozeTask moves the task forward by minutes, rolling over to the next
// day when needed, and re-arms its reminder.
func (ts *TaskService) SnoozeTask(ctx context.Context, profileID, taskID string, minutes int) (*database.Task, error) {
	if minutes == 0 {
		minutes = DefaultSnoozeMinutes
	}
	if minutes < 1 || minutes > maxSnoozeMinutes {
		return nil, invalid("snooze must be between 1 and %d minutes", maxSnoozeMinutes)
	}

	task, err := ts.repository.GetTask(ctx, profileID, taskID)
	if err != nil {
		return nil, err
	}

	newTime, days, err := utils.AddMinutes(task.TimeUTC, minutes)
	if err != nil {
		return nil, err
	}
	if days > 0 {
		d, err := utils.ParseDate(task.Date)
		if err != nil {
			return nil, err
		}
		task.Date = utils.DateKey(d.AddDate(0, 0, days))
	}
	task.TimeUTC = newTime
	task.RemindedAt = nil

	if err := ts.repository.UpdateTask(ctx, *task); err != nil {
		return nil, err
	}
	return task, nil
}

func (ts *TaskService) DeleteTask(ctx context.Context, profileID, taskID string) error {
	return ts.repository.DeleteTask(ctx, profileID, taskID)
}
