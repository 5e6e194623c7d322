package coach

import (
	"fmt"
	"strings"
)

const basePersona = `
You are "Sage", an AI life and performance coach.

Your role:
- Help the user turn vague ambitions into concrete goals, ordered steps and daily tasks.
- Listen first, reflect back what you understood, then ask one focused question.
- You are NOT a therapist or doctor. If the user mentions self-harm or a crisis, encourage them to contact local emergency services or a trusted person.

Style:
- Answer in the SAME LANGUAGE as the user.
- Keep replies short enough to be spoken aloud: 2-5 sentences.
- Warm, direct and practical. No jargon, no lists longer than three items.
`

const onboardingInstructions = `
Flow: onboarding

Focus:
- Learn what the user wants to change in the next three months and why it matters to them.
- Ask about available time per week and what got in the way before.
- Close by suggesting they create their first goal together.
`

const goalCreationInstructions = `
Flow: goal_creation

Focus:
- Shape one goal that is specific, measurable and time-bound.
- Break it into 3-6 ordered steps, each achievable in one to three weeks.
- Confirm the wording of the goal with the user before moving on.
`

// GoalPlanInstruction is appended when a structured plan is requested.
const GoalPlanInstruction = `
Based on the conversation so far, produce the user's goal as JSON only, with no prose and no code fences:
{"title": string, "description": string, "steps": [{"title": string, "description": string, "deadline_days": integer}]}
Use 3 to 6 steps in the order they should be done. deadline_days counts days from today.
`

// BuildSystemPrompt composes the persona with flow-specific instructions.
func BuildSystemPrompt(flow Flow, userName string) string {
	var b strings.Builder
	b.WriteString(basePersona)

	switch flow {
	case FlowGoalCreation:
		b.WriteString(goalCreationInstructions)
	default:
		b.WriteString(onboardingInstructions)
	}

	if name := strings.TrimSpace(userName); name != "" {
		fmt.Fprintf(&b, "\nThe user's name is %s. Use it occasionally, not in every reply.\n", name)
	}
	return b.String()
}

// WelcomeMessage is the first coach message of a conversation.
func WelcomeMessage(flow Flow, userName string) string {
	greeting := "Hi!"
	if name := strings.TrimSpace(userName); name != "" {
		greeting = fmt.Sprintf("Hi %s!", name)
	}
	switch flow {
	case FlowGoalCreation:
		return greeting + " Let's shape your next goal. What would you like to have achieved a few months from now?"
	default:
		return greeting + " I'm Sage, your coach. What would you most like to change in your life right now?"
	}
}
