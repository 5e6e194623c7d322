package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coachboard/internal/apperrors"
	"coachboard/internal/coach"
	"coachboard/internal/database"
	"coachboard/internal/utils"
	"coachboard/internal/voice"
)

const (
	historyLimit     = 20
	maxMessageLength = 4000
)

type ConversationView struct {
	Conversation database.Conversation  `json:"conversation"`
	Messages     []database.CoachMessage `json:"messages"`
}

type CoachService struct {
	repository *database.Repository
	client     coach.Client
	goals      *GoalService
	now        func() time.Time
	logger     *zap.Logger
}

func NewCoachService(repo *database.Repository, client coach.Client, goals *GoalService, now func() time.Time, logger *zap.Logger) *CoachService {
	return &CoachService{
		repository: repo,
		client:     client,
		goals:      goals,
		now:        now,
		logger:     logger,
	}
}

// StartConversation opens a conversation in the given flow and stores the
// coach's greeting.
func (cs *CoachService) StartConversation(ctx context.Context, profileID, flowName string) (*ConversationView, error) {
	profile, err := requirePaid(ctx, cs.repository, profileID)
	if err != nil {
		return nil, err
	}
	flow, ok := coach.ParseFlow(flowName)
	if !ok {
		return nil, invalid("unknown flow %q", flowName)
	}

	now := cs.now()
	conv := database.Conversation{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Flow:      string(flow),
		CreatedAt: now,
		UpdatedAt: now,
	}
	greeting := database.CoachMessage{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           string(coach.RoleCoach),
		Text:           coach.WelcomeMessage(flow, profile.FullName),
		CreatedAt:      now,
	}

	err = cs.repository.WithTx(ctx, func(tx *database.Repository) error {
		if err := tx.CreateConversation(ctx, conv); err != nil {
			return err
		}
		return tx.AppendCoachMessage(ctx, greeting)
	})
	if err != nil {
		return nil, err
	}
	return &ConversationView{Conversation: conv, Messages: []database.CoachMessage{greeting}}, nil
}

func (cs *CoachService) GetConversation(ctx context.Context, profileID, conversationID string) (*ConversationView, error) {
	conv, err := cs.repository.GetConversation(ctx, profileID, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := cs.repository.ListCoachMessages(ctx, conv.ID, 0)
	if err != nil {
		return nil, err
	}
	return &ConversationView{Conversation: *conv, Messages: msgs}, nil
}

func turns(msgs []database.CoachMessage) []coach.Turn {
	out := make([]coach.Turn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, coach.Turn{Role: coach.Role(m.Role), Text: m.Text})
	}
	return out
}

// Reply stores the user's message, asks the model for the coach's answer
// using the recent history and stores that too.
func (cs *CoachService) Reply(ctx context.Context, profileID, conversationID, text string) (*database.CoachMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > maxMessageLength {
		return nil, invalid("message must be between 1 and %d characters", maxMessageLength)
	}
	if cs.client == nil {
		return nil, apperrors.ErrUnavailable
	}
	profile, err := requirePaid(ctx, cs.repository, profileID)
	if err != nil {
		return nil, err
	}
	conv, err := cs.repository.GetConversation(ctx, profileID, conversationID)
	if err != nil {
		return nil, err
	}

	history, err := cs.repository.ListCoachMessages(ctx, conv.ID, historyLimit)
	if err != nil {
		return nil, err
	}

	userMsg := database.CoachMessage{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           string(coach.RoleUser),
		Text:           text,
		CreatedAt:      cs.now(),
	}
	if err := cs.repository.AppendCoachMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	answer, err := cs.client.Generate(ctx, coach.Request{
		Flow:     coach.Flow(conv.Flow),
		UserName: profile.FullName,
		History:  turns(history),
		Message:  text,
	})
	if err != nil {
		cs.logger.Error("coach generate", zap.String("conversation_id", conv.ID), zap.Error(err))
		return nil, fmt.Errorf("coach reply: %w", err)
	}

	reply := database.CoachMessage{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           string(coach.RoleCoach),
		Text:           strings.TrimSpace(answer),
		CreatedAt:      cs.now(),
	}
	if err := cs.repository.AppendCoachMessage(ctx, reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// DraftGoal turns the conversation into a goal plan and creates the goal.
func (cs *CoachService) DraftGoal(ctx context.Context, profileID, conversationID string) (*database.Goal, error) {
	if cs.client == nil {
		return nil, apperrors.ErrUnavailable
	}
	profile, err := requirePaid(ctx, cs.repository, profileID)
	if err != nil {
		return nil, err
	}
	conv, err := cs.repository.GetConversation(ctx, profileID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.GoalID != "" {
		return nil, fmt.Errorf("conversation already produced goal %s: %w", conv.GoalID, apperrors.ErrConflict)
	}

	history, err := cs.repository.ListCoachMessages(ctx, conv.ID, historyLimit)
	if err != nil {
		return nil, err
	}

	raw, err := cs.client.Generate(ctx, coach.Request{
		Flow:     coach.Flow(conv.Flow),
		UserName: profile.FullName,
		History:  turns(history),
		Message:  coach.GoalPlanInstruction,
		JSON:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("coach plan: %w", err)
	}
	plan, err := coach.ParsePlan(raw)
	if err != nil {
		cs.logger.Warn("unusable goal plan", zap.String("conversation_id", conv.ID), zap.Error(err))
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInvalidInput)
	}

	goal, err := cs.goals.newGoal(profileID, planToInput(plan, cs.now()))
	if err != nil {
		return nil, err
	}
	// The plan call is slow; another draft may have landed meanwhile.
	err = cs.repository.WithTx(ctx, func(tx *database.Repository) error {
		current, err := tx.GetConversation(ctx, profileID, conv.ID)
		if err != nil {
			return err
		}
		if current.GoalID != "" {
			return fmt.Errorf("conversation already produced goal %s: %w", current.GoalID, apperrors.ErrConflict)
		}
		if err := tx.CreateGoal(ctx, *goal); err != nil {
			return err
		}
		return tx.SetConversationGoal(ctx, conv.ID, goal.ID, cs.now())
	})
	if err != nil {
		return nil, err
	}
	cs.logger.Info("goal drafted", zap.String("conversation_id", conv.ID), zap.String("goal_id", goal.ID))
	return goal, nil
}

func planToInput(plan coach.GoalPlan, now time.Time) GoalInput {
	in := GoalInput{Title: plan.Title, Description: plan.Description}
	latest := 0
	for _, s := range plan.Steps {
		step := StepInput{Title: s.Title, Description: s.Description}
		if s.DeadlineDays > 0 {
			step.Deadline = utils.DateKey(now.AddDate(0, 0, s.DeadlineDays))
			if s.DeadlineDays > latest {
				latest = s.DeadlineDays
			}
		}
		in.Steps = append(in.Steps, step)
	}
	if latest > 0 {
		in.TargetDate = utils.DateKey(now.AddDate(0, 0, latest))
	}
	return in
}

type VoiceService struct {
	repository *database.Repository
	synth      voice.Synthesizer
}

func NewVoiceService(repo *database.Repository, synth voice.Synthesizer) *VoiceService {
	return &VoiceService{repository: repo, synth: synth}
}

func (vs *VoiceService) Synthesize(ctx context.Context, profileID, text string) (voice.Audio, error) {
	if vs.synth == nil {
		return voice.Audio{}, apperrors.ErrUnavailable
	}
	if err := voice.ValidateText(text); err != nil {
		return voice.Audio{}, fmt.Errorf("%v: %w", err, apperrors.ErrInvalidInput)
	}
	if _, err := requirePaid(ctx, vs.repository, profileID); err != nil {
		return voice.Audio{}, err
	}
	return vs.synth.Synthesize(ctx, strings.TrimSpace(text))
}
