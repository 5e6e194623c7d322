package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (r *Repository) UpsertSubscription(ctx context.Context, sub Subscription) error {
	const stmt = `
INSERT INTO subscriptions (id, profile_id, customer_id, price_id, status, plan, current_period_end, cancel_at_period_end, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  profile_id=excluded.profile_id,
  customer_id=excluded.customer_id,
  price_id=excluded.price_id,
  status=excluded.status,
  plan=excluded.plan,
  current_period_end=excluded.current_period_end,
  cancel_at_period_end=excluded.cancel_at_period_end,
  updated_at=excluded.updated_at;
`
	_, err := r.q.ExecContext(ctx, stmt,
		sub.ID,
		sub.ProfileID,
		sub.CustomerID,
		sub.PriceID,
		sub.Status,
		sub.Plan,
		nullTime(sub.CurrentPeriodEnd),
		sub.CancelAtPeriodEnd,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// GetSubscriptionByProfile returns the most recently updated subscription.
func (r *Repository) GetSubscriptionByProfile(ctx context.Context, profileID string) (*Subscription, error) {
	var (
		sub       Subscription
		periodEnd sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, profile_id, customer_id, price_id, status, plan, current_period_end, cancel_at_period_end, updated_at
		FROM subscriptions
		WHERE profile_id = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, profileID).Scan(
		&sub.ID,
		&sub.ProfileID,
		&sub.CustomerID,
		&sub.PriceID,
		&sub.Status,
		&sub.Plan,
		&periodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	sub.CurrentPeriodEnd = timePtr(periodEnd)
	return &sub, nil
}

// RecordBillingEvent stores a processed webhook event id. It returns false
// when the event was already recorded.
func (r *Repository) RecordBillingEvent(ctx context.Context, eventID, eventType string, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO billing_events (id, type, received_at) VALUES (?, ?, ?)",
		eventID, eventType, at)
	if err != nil {
		return false, fmt.Errorf("record billing event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ForgetBillingEvent removes an event id so a failed delivery can be retried.
func (r *Repository) ForgetBillingEvent(ctx context.Context, eventID string) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM billing_events WHERE id = ?", eventID)
	return err
}
