package coach

import "context"

type Role string

const (
	RoleUser  Role = "user"
	RoleCoach Role = "coach"
)

type Flow string

const (
	FlowOnboarding   Flow = "onboarding"
	FlowGoalCreation Flow = "goal_creation"
)

func ParseFlow(s string) (Flow, bool) {
	switch Flow(s) {
	case FlowOnboarding, FlowGoalCreation:
		return Flow(s), true
	case "":
		return FlowOnboarding, true
	default:
		return "", false
	}
}

type Turn struct {
	Role Role
	Text string
}

// Request carries everything the model needs for one coach turn.
type Request struct {
	Flow     Flow
	UserName string
	History  []Turn
	Message  string
	// JSON asks for a machine-readable goal plan instead of prose.
	JSON bool
}

// Client generates coach replies.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
