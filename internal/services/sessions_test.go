package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"coachboard/internal/apperrors"
	"coachboard/internal/database"
)

func records(done, total int) []database.SessionTask {
	out := make([]database.SessionTask, total)
	for i := range out {
		out[i].Completed = i < done
	}
	return out
}

func TestDeriveInsight(t *testing.T) {
	cases := []struct {
		name     string
		session  database.Session
		progress float64
		effort   database.Level
		stress   database.Level
	}{
		{
			name:     "reported progress without records",
			session:  database.Session{Mood: 8, Motivation: 8, ProgressPercent: 40, DurationMinutes: 10},
			progress: 40,
			effort:   database.LevelLow,
			stress:   database.LevelLow,
		},
		{
			name:     "records override reported progress",
			session:  database.Session{Mood: 7, Motivation: 7, ProgressPercent: 90, TaskRecords: records(1, 4)},
			progress: 25,
			effort:   database.LevelMedium,
			stress:   database.LevelLow,
		},
		{
			name:     "three completed records is high effort",
			session:  database.Session{Mood: 5, Motivation: 5, TaskRecords: records(3, 3)},
			progress: 100,
			effort:   database.LevelHigh,
			stress:   database.LevelMedium,
		},
		{
			name:     "an hour is high effort",
			session:  database.Session{Mood: 9, Motivation: 9, DurationMinutes: 60},
			effort:   database.LevelHigh,
			stress:   database.LevelLow,
		},
		{
			name:     "twenty minutes is medium effort",
			session:  database.Session{Mood: 9, Motivation: 9, DurationMinutes: 20},
			effort:   database.LevelMedium,
			stress:   database.LevelLow,
		},
		{
			name:    "low mood is high stress",
			session: database.Session{Mood: 3, Motivation: 9},
			effort:  database.LevelLow,
			stress:  database.LevelHigh,
		},
		{
			name:    "blocked and unmotivated is high stress",
			session: database.Session{Mood: 8, Motivation: 4, Blockers: "no time"},
			effort:  database.LevelLow,
			stress:  database.LevelHigh,
		},
		{
			name:    "blocked but motivated is medium stress",
			session: database.Session{Mood: 8, Motivation: 7, Blockers: "no time"},
			effort:  database.LevelLow,
			stress:  database.LevelMedium,
		},
		{
			name:    "whitespace blockers do not count",
			session: database.Session{Mood: 8, Motivation: 2, Blockers: "  "},
			effort:  database.LevelLow,
			stress:  database.LevelLow,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveInsight(tc.session)
			require.Equal(t, tc.progress, got.ProgressPercent)
			require.Equal(t, tc.effort, got.EffortLevel)
			require.Equal(t, tc.stress, got.StressLevel)
			require.NotEmpty(t, got.Summary)
		})
	}
}

func TestLogSessionDerivesStepAndGoal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.signUp(t, "ana@example.com")
	g := env.goalWithSteps(t, ana.ID, "base", "long runs")
	first, second := g.Steps[0], g.Steps[1]

	t1, err := env.sm.Tasks.AddTask(ctx, ana.ID, TaskInput{Title: "5k", StepID: first.ID})
	require.NoError(t, err)
	t2, err := env.sm.Tasks.AddTask(ctx, ana.ID, TaskInput{Title: "stretch", StepID: first.ID})
	require.NoError(t, err)

	res, err := env.sm.Sessions.LogSession(ctx, ana.ID, SessionInput{
		StepID:          first.ID,
		Mood:            7,
		Motivation:      8,
		ProgressPercent: 100,
		DurationMinutes: 45,
		TaskCompletions: []TaskCompletion{{TaskID: t1.ID, Completed: true}, {TaskID: t2.ID, Completed: false}},
	})
	require.NoError(t, err)
	require.Equal(t, "2026-10-18", res.Session.Date)
	require.True(t, res.Step.Completed)
	require.NotNil(t, res.Step.CompletedAt)
	require.Equal(t, database.GoalActive, res.GoalStatus)
	require.Equal(t, float64(50), res.Insight.ProgressPercent)
	require.Equal(t, database.LevelMedium, res.Insight.EffortLevel)

	done, err := env.sm.Tasks.GetTask(ctx, ana.ID, t1.ID)
	require.NoError(t, err)
	require.True(t, done.Completed)

	stored, err := env.sm.Sessions.GetSession(ctx, ana.ID, res.Session.ID)
	require.NoError(t, err)
	require.Len(t, stored.TaskRecords, 2)

	// A later, lower report does not lower the step progress.
	res, err = env.sm.Sessions.LogSession(ctx, ana.ID, SessionInput{StepID: first.ID, Mood: 5, Motivation: 5, ProgressPercent: 30})
	require.NoError(t, err)
	require.Equal(t, float64(100), res.Step.ProgressPercent)
	require.True(t, res.Step.Completed)

	res, err = env.sm.Sessions.LogSession(ctx, ana.ID, SessionInput{StepID: second.ID, Mood: 9, Motivation: 9, ProgressPercent: 100})
	require.NoError(t, err)
	require.Equal(t, database.GoalCompleted, res.GoalStatus)

	goal, err := env.sm.Goals.GetGoal(ctx, ana.ID, g.ID)
	require.NoError(t, err)
	require.Equal(t, float64(100), goal.ProgressPercent)

	// A new open step reopens the goal.
	_, err = env.sm.Goals.AddStep(ctx, ana.ID, g.ID, StepInput{Title: "race"})
	require.NoError(t, err)
	goal, err = env.sm.Goals.GetGoal(ctx, ana.ID, g.ID)
	require.NoError(t, err)
	require.Equal(t, database.GoalActive, goal.Status)

	sessions, err := env.sm.Sessions.ListSessions(ctx, database.SessionFilter{ProfileID: ana.ID, StepID: first.ID})
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	insights, err := env.sm.Sessions.ListInsights(ctx, ana.ID, 2)
	require.NoError(t, err)
	require.Len(t, insights, 2)
}

func TestLogSessionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.signUp(t, "ana@example.com")
	bo := env.signUp(t, "bo@example.com")
	g := env.goalWithSteps(t, ana.ID, "base")
	step := g.Steps[0]

	boTask, err := env.sm.Tasks.AddTask(ctx, bo.ID, TaskInput{Title: "not yours"})
	require.NoError(t, err)

	cases := []SessionInput{
		{Mood: 5, Motivation: 5},
		{StepID: step.ID, Mood: 0, Motivation: 5},
		{StepID: step.ID, Mood: 5, Motivation: 11},
		{StepID: step.ID, Mood: 5, Motivation: 5, ProgressPercent: 101},
		{StepID: step.ID, Mood: 5, Motivation: 5, DurationMinutes: -1},
		{StepID: step.ID, Mood: 5, Motivation: 5, Date: "18/10/2026"},
		{StepID: step.ID, Mood: 5, Motivation: 5, TaskCompletions: []TaskCompletion{{TaskID: "a"}, {TaskID: "a"}}},
	}
	for _, in := range cases {
		_, err := env.sm.Sessions.LogSession(ctx, ana.ID, in)
		require.ErrorIs(t, err, apperrors.ErrInvalidInput, "%+v", in)
	}

	_, err = env.sm.Sessions.LogSession(ctx, bo.ID, SessionInput{StepID: step.ID, Mood: 5, Motivation: 5})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.sm.Sessions.LogSession(ctx, ana.ID, SessionInput{
		StepID: step.ID, Mood: 5, Motivation: 5,
		TaskCompletions: []TaskCompletion{{TaskID: boTask.ID, Completed: true}},
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	sessions, err := env.sm.Sessions.ListSessions(ctx, database.SessionFilter{ProfileID: ana.ID})
	require.NoError(t, err)
	require.Empty(t, sessions, "failed sessions leave nothing behind")
}
