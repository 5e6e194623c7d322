package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockClient answers deterministically. Used in local mode and tests.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(_ context.Context, req Request) (string, error) {
	if req.JSON {
		return m.plan(req)
	}
	return fmt.Sprintf("I hear you. You said %q. What would make that feel achievable this week?", req.Message), nil
}

// plan turns the first user message into a three-step goal.
func (m *MockClient) plan(req Request) (string, error) {
	title := "My next goal"
	for _, turn := range req.History {
		if turn.Role == RoleUser && strings.TrimSpace(turn.Text) != "" {
			title = strings.TrimSpace(turn.Text)
			break
		}
	}

	plan := GoalPlan{
		Title:       title,
		Description: "Plan drafted with your coach.",
		Steps: []PlanStep{
			{Title: "Define what done looks like", DeadlineDays: 7},
			{Title: "Build a weekly routine", DeadlineDays: 21},
			{Title: "Review progress and adjust", DeadlineDays: 42},
		},
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
