package database

import (
	"context"
	"fmt"
	"time"
)

func (r *Repository) CreateConversation(ctx context.Context, c Conversation) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO coach_conversations (id, profile_id, flow, goal_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.ProfileID, c.Flow, c.GoalID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *Repository) GetConversation(ctx context.Context, profileID, id string) (*Conversation, error) {
	var c Conversation
	err := r.q.QueryRowContext(ctx, `
		SELECT id, profile_id, flow, goal_id, created_at, updated_at
		FROM coach_conversations
		WHERE id = ? AND profile_id = ?
	`, id, profileID).Scan(&c.ID, &c.ProfileID, &c.Flow, &c.GoalID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *Repository) SetConversationGoal(ctx context.Context, id, goalID string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE coach_conversations SET goal_id = ?, updated_at = ? WHERE id = ?", goalID, at, id)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) AppendCoachMessage(ctx context.Context, m CoachMessage) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO coach_messages (id, conversation_id, role, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, m.Role, m.Text, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert coach message: %w", err)
	}
	_, err = r.q.ExecContext(ctx, "UPDATE coach_conversations SET updated_at = ? WHERE id = ?", m.CreatedAt, m.ConversationID)
	return err
}

// ListCoachMessages returns the last limit messages in chronological order.
// A limit <= 0 returns all.
func (r *Repository) ListCoachMessages(ctx context.Context, conversationID string, limit int) ([]CoachMessage, error) {
	query := `
		SELECT id, conversation_id, role, text, created_at
		FROM coach_messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []CoachMessage
	for rows.Next() {
		var m CoachMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
