package coach

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const maxPlanSteps = 10

type PlanStep struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	DeadlineDays int    `json:"deadline_days"`
}

type GoalPlan struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Steps       []PlanStep `json:"steps"`
}

// ParsePlan decodes a model reply into a goal plan. Code fences around the
// JSON are tolerated.
func ParsePlan(text string) (GoalPlan, error) {
	raw := strings.TrimSpace(text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var plan GoalPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return GoalPlan{}, fmt.Errorf("decode goal plan: %w", err)
	}
	return plan, plan.Validate()
}

func (p GoalPlan) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("goal plan has no title")
	}
	if len(p.Steps) == 0 || len(p.Steps) > maxPlanSteps {
		return fmt.Errorf("goal plan must have 1-%d steps, got %d", maxPlanSteps, len(p.Steps))
	}
	for i, s := range p.Steps {
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("goal plan step %d has no title", i+1)
		}
		if s.DeadlineDays < 0 || s.DeadlineDays > 730 {
			return fmt.Errorf("goal plan step %d has deadline_days %d out of range", i+1, s.DeadlineDays)
		}
	}
	return nil
}
