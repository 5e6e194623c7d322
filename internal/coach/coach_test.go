package coach

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePlanToleratesFences(t *testing.T) {
	plan, err := ParsePlan("```json\n{\"title\":\"Run 10k\",\"steps\":[{\"title\":\"Run 3k\",\"deadline_days\":7}]}\n```")
	require.NoError(t, err)
	require.Equal(t, "Run 10k", plan.Title)
	require.Len(t, plan.Steps, 1)
	require.Equal(t, 7, plan.Steps[0].DeadlineDays)
}

func TestParsePlanValidates(t *testing.T) {
	_, err := ParsePlan(`{"title":"","steps":[{"title":"x"}]}`)
	require.ErrorContains(t, err, "no title")

	_, err = ParsePlan(`{"title":"Goal","steps":[]}`)
	require.ErrorContains(t, err, "1-10 steps")

	_, err = ParsePlan(`{"title":"Goal","steps":[{"title":"x","deadline_days":-1}]}`)
	require.ErrorContains(t, err, "out of range")

	_, err = ParsePlan(`not json`)
	require.ErrorContains(t, err, "decode goal plan")
}

func TestMockPlanUsesFirstUserTurn(t *testing.T) {
	out, err := NewMockClient().Generate(context.Background(), Request{
		Flow: FlowGoalCreation,
		History: []Turn{
			{Role: RoleCoach, Text: WelcomeMessage(FlowGoalCreation, "")},
			{Role: RoleUser, Text: "Learn Spanish"},
		},
		JSON: true,
	})
	require.NoError(t, err)

	plan, err := ParsePlan(out)
	require.NoError(t, err)
	require.Equal(t, "Learn Spanish", plan.Title)
	require.Len(t, plan.Steps, 3)
}

func TestBuildSystemPromptPerFlow(t *testing.T) {
	onboarding := BuildSystemPrompt(FlowOnboarding, "Ana")
	require.Contains(t, onboarding, "Flow: onboarding")
	require.Contains(t, onboarding, "name is Ana")

	goal := BuildSystemPrompt(FlowGoalCreation, "")
	require.Contains(t, goal, "Flow: goal_creation")
	require.NotContains(t, goal, "name is")
}

func TestParseFlow(t *testing.T) {
	f, ok := ParseFlow("")
	require.True(t, ok)
	require.Equal(t, FlowOnboarding, f)

	_, ok = ParseFlow("therapy")
	require.False(t, ok)
}
